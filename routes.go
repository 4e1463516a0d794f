package main

import "net/http"

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.errorRecoveryMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.versionMiddleware("v1"))

	// Warehouse
	api.HandleFunc("/tables", s.handleListTables).Methods("GET")
	api.HandleFunc("/tables/{name}", s.handleGetTable).Methods("GET")
	api.HandleFunc("/warehouse/refresh", s.handleRefreshWarehouse).Methods("POST")

	// Models and predictions
	api.HandleFunc("/models/train", s.handleTrainModels).Methods("POST")
	api.HandleFunc("/predict", s.handlePredict).Methods("POST")

	// Reporting
	api.HandleFunc("/report", s.handleExportReport).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeErrorResponse(w, http.StatusNotFound, "Not Found")
	})
}
