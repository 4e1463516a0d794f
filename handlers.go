package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/OrderLens/OrderLens-Go/pipelines/Output"
	"github.com/OrderLens/OrderLens-Go/pipelines/Predict"
	"github.com/OrderLens/OrderLens-Go/pipelines/Warehouse"
)

// handleHealth reports service and warehouse health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	warehouseStatus := "up"
	status := http.StatusOK
	if err := s.client.Ping(ctx); err != nil {
		warehouseStatus = "down"
		status = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, status, map[string]any{
		"status":    "ok",
		"version":   orderlensVersion,
		"warehouse": warehouseStatus,
	})
}

// handleListTables returns the known warehouse table names
func (s *Server) handleListTables(w http.ResponseWriter, r *http.Request) {
	writeSuccessResponse(w, map[string]any{
		"tables": warehouse.TableNames,
	})
}

// handleGetTable returns a preview of one warehouse table
func (s *Server) handleGetTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	limit := parseLimit(r, 10)

	snapshot, err := s.cache.Snapshot(r.Context())
	if err != nil {
		writeWarehouseError(w, err)
		return
	}

	table := snapshot.Table(name)
	if table == nil {
		writeErrorResponse(w, http.StatusNotFound, fmt.Sprintf("unknown warehouse table: %s", name))
		return
	}

	preview := table.Head(limit)
	writeSuccessResponse(w, map[string]any{
		"name":       preview.Name,
		"columns":    preview.Columns,
		"rows":       preview.Rows,
		"total_rows": table.NumRows(),
	})
}

// handleRefreshWarehouse refetches the warehouse snapshot and drops the
// loaded models so subsequent requests see fresh data
func (s *Server) handleRefreshWarehouse(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.Refresh(r.Context()); err != nil {
		writeWarehouseError(w, err)
		return
	}

	s.mu.Lock()
	s.svc = nil
	s.mu.Unlock()

	writeSuccessResponse(w, map[string]any{
		"refreshed_at": s.cache.FetchedAt().UTC().Format(time.RFC3339),
	})
}

// handleTrainModels discards persisted models and retrains all three
func (s *Server) handleTrainModels(w http.ResponseWriter, r *http.Request) {
	if _, err := s.retrainModels(r.Context()); err != nil {
		writeWarehouseError(w, err)
		return
	}

	writeSuccessResponse(w, map[string]any{
		"models": []string{reviewModelKey, lateModelKey, churnModelKey},
	})
}

// handlePredict runs one input through the three models
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var input predict.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeBadRequestResponse(w, "invalid request body: "+err.Error())
		return
	}

	svc, err := s.ensureModels(r.Context())
	if err != nil {
		writeWarehouseError(w, err)
		return
	}

	result, err := svc.Predict(input)
	if err != nil {
		if errors.Is(err, predict.ErrShapeMismatch) {
			writeBadRequestResponse(w, err.Error())
			return
		}
		writeInternalServerErrorResponse(w, err.Error())
		return
	}

	writeSuccessResponse(w, result)
}

// reportRequest is the body of a report export request. The input fields
// match the prediction endpoint; destination is optional.
type reportRequest struct {
	predict.Input
	Destination string `json:"destination,omitempty"`
}

// handleExportReport predicts from the input and writes the PDF report
func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequestResponse(w, "invalid request body: "+err.Error())
		return
	}

	svc, err := s.ensureModels(r.Context())
	if err != nil {
		writeWarehouseError(w, err)
		return
	}

	result, err := svc.Predict(req.Input)
	if err != nil {
		if errors.Is(err, predict.ErrShapeMismatch) {
			writeBadRequestResponse(w, err.Error())
			return
		}
		writeInternalServerErrorResponse(w, err.Error())
		return
	}

	destination := req.Destination
	if destination == "" {
		destination = s.config.Report.Path
	}

	entries := reportEntries(result)
	if err := s.exporter.Export(entries, destination); err != nil {
		writeInternalServerErrorResponse(w, err.Error())
		return
	}

	writeSuccessResponse(w, map[string]any{
		"destination": destination,
		"lines":       output.Lines(entries),
		"result":      result,
	})
}

// reportEntries renders a prediction result as report lines, in fixed order
func reportEntries(result *predict.Result) []output.Entry {
	deliveryStatus := "On Time"
	if result.IsLate {
		deliveryStatus = "Late"
	}
	churnRisk := "No"
	if result.WillChurn {
		churnRisk = "Yes"
	}

	return []output.Entry{
		{Label: "Predicted Review Score", Value: fmt.Sprintf("%.2f", result.ReviewScore)},
		{Label: "Delivery Status", Value: deliveryStatus},
		{Label: "Churn Risk", Value: churnRisk},
	}
}

// writeWarehouseError maps warehouse connectivity failures to 503 and
// everything else to 500
func writeWarehouseError(w http.ResponseWriter, err error) {
	if errors.Is(err, warehouse.ErrConnection) {
		writeErrorResponse(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeInternalServerErrorResponse(w, err.Error())
}
