package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"

	"github.com/OrderLens/OrderLens-Go/pipelines/Features"
	"github.com/OrderLens/OrderLens-Go/pipelines/ML"
	"github.com/OrderLens/OrderLens-Go/pipelines/Output"
	"github.com/OrderLens/OrderLens-Go/pipelines/Predict"
	"github.com/OrderLens/OrderLens-Go/pipelines/Warehouse"
	"github.com/OrderLens/OrderLens-Go/utils"
)

// Model store keys; artifacts live under the configured models directory
const (
	reviewModelKey = "review_model"
	lateModelKey   = "late_model"
	churnModelKey  = "churn_model"
)

// Server wires the warehouse, feature pipeline, model store and report
// exporter behind the HTTP API
type Server struct {
	router   *mux.Router
	config   *utils.Config
	client   *warehouse.Client
	cache    *warehouse.Cache
	store    *ml.Store
	exporter *output.Exporter
	cron     *cron.Cron

	mu  sync.Mutex
	svc *predict.Service
}

// NewServer creates a fully wired server from configuration
func NewServer(config *utils.Config) (*Server, error) {
	client, err := warehouse.NewClient(config.Warehouse.Driver, config.Warehouse.DSN, config.Warehouse.Schema)
	if err != nil {
		return nil, fmt.Errorf("connecting to warehouse: %w", err)
	}

	store, err := ml.NewStore(config.Models.Dir, config.Models.NumTrees, config.Models.Seed)
	if err != nil {
		return nil, fmt.Errorf("opening model store: %w", err)
	}

	s := &Server{
		router:   mux.NewRouter(),
		config:   config,
		client:   client,
		cache:    warehouse.NewCache(client),
		store:    store,
		exporter: output.NewExporter(config.Report.Title),
	}

	s.setupRoutes()

	if config.Warehouse.RefreshCron != "" {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(config.Warehouse.RefreshCron, s.scheduledRefresh)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("scheduling warehouse refresh: %w", err)
		}
		s.cron.Start()
	}

	return s, nil
}

// Close stops the refresh scheduler and the warehouse connection
func (s *Server) Close() error {
	if s.cron != nil {
		s.cron.Stop()
	}
	return s.client.Close()
}

// scheduledRefresh refetches the warehouse snapshot and drops the loaded
// models so the next request retrains against fresh data
func (s *Server) scheduledRefresh() {
	ctx := context.Background()
	if err := s.cache.Refresh(ctx); err != nil {
		utils.GetLogger().Error("Scheduled warehouse refresh failed", err, utils.Component("server"))
		return
	}
	s.mu.Lock()
	s.svc = nil
	s.mu.Unlock()
	utils.GetLogger().Info("Scheduled warehouse refresh complete", utils.Component("server"))
}

// ensureModels returns the prediction service, training or loading the three
// models on first use. Serialized so concurrent requests train once.
func (s *Server) ensureModels(ctx context.Context) (*predict.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.svc != nil {
		return s.svc, nil
	}

	svc, err := s.buildService(ctx)
	if err != nil {
		return nil, err
	}
	s.svc = svc
	return svc, nil
}

// retrainModels discards any persisted artifacts and trains all three models
// from the current snapshot
func (s *Server) retrainModels(ctx context.Context) (*predict.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range []string{reviewModelKey, lateModelKey, churnModelKey} {
		if err := s.store.Remove(key); err != nil {
			return nil, fmt.Errorf("removing %s: %w", key, err)
		}
	}
	s.svc = nil

	svc, err := s.buildService(ctx)
	if err != nil {
		return nil, err
	}
	s.svc = svc
	return svc, nil
}

// buildService prepares the dataset and trains or loads the three models.
// Caller holds s.mu.
func (s *Server) buildService(ctx context.Context) (*predict.Service, error) {
	snapshot, err := s.cache.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	dataset, err := features.Prepare(snapshot)
	if err != nil {
		return nil, fmt.Errorf("preparing features: %w", err)
	}
	if dataset.NumRows() == 0 {
		return nil, fmt.Errorf("no trainable rows after feature preparation")
	}

	names := dataset.FeatureNames()

	review, err := s.store.GetOrTrain(reviewModelKey, ml.Regression, dataset.X, dataset.ReviewScore, names)
	if err != nil {
		return nil, err
	}
	late, err := s.store.GetOrTrain(lateModelKey, ml.Classification, dataset.X, dataset.LateDelivery, names)
	if err != nil {
		return nil, err
	}
	churn, err := s.store.GetOrTrain(churnModelKey, ml.Classification, dataset.X, dataset.Churn, names)
	if err != nil {
		return nil, err
	}

	return predict.NewService(review, late, churn), nil
}
