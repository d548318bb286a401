// Package worker provides async analysis processing for the Pro tier.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/opensource-finance/heron/internal/analysis"
	"github.com/opensource-finance/heron/internal/domain"
	"github.com/opensource-finance/heron/internal/monitor"
)

// Worker processes analysis requests asynchronously from the EventBus.
type Worker struct {
	bus    domain.EventBus
	repo   domain.Repository
	engine *analysis.Engine

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via wildcard if supported)
	TenantIDs []string

	// WorkerCount is the number of concurrent workers per tenant
	WorkerCount int
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, engine *analysis.Engine) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		repo:   repo,
		engine: engine,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing analysis requests for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants (for testing/dev).
func (w *Worker) startGlobalWorker() error {
	// Subscribe using a special "global" tenant ID
	// In production, you'd want to subscribe with wildcards or JetStream
	sub, err := w.bus.Subscribe(w.ctx, "_global", domain.TopicAnalysisRequested, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts workers for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicAnalysisRequested, func(ctx context.Context, msg *domain.Message) error {
		return w.processRequest(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicAnalysisRequested,
	)

	return nil
}

// handleMessage handles messages from global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processRequest(ctx, msg.TenantID, msg)
}

// AnalysisRequest is the message payload for async analysis processing.
type AnalysisRequest struct {
	AnalysisID string `json:"analysisId,omitempty"`
	TenantID   string `json:"tenantId"`
	DatasetID  string `json:"datasetId"`
	Operation  string `json:"operation"`
	TraceID    string `json:"traceId,omitempty"`
}

// AnalysisCompleted is published after a request is processed.
type AnalysisCompleted struct {
	AnalysisID string `json:"analysisId"`
	DatasetID  string `json:"datasetId"`
	Operation  string `json:"operation"`
	TraceID    string `json:"traceId,omitempty"`
}

// processRequest runs one analysis request through the pipeline.
func (w *Worker) processRequest(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	// Parse message
	var req AnalysisRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse analysis request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if req.TenantID != "" {
		tenantID = req.TenantID
	}

	traceID := req.TraceID
	if traceID == "" {
		traceID = msg.ID
	}

	op, err := domain.ParseOperation(req.Operation)
	if err != nil {
		slog.Error("invalid analysis request",
			"dataset_id", req.DatasetID,
			"trace_id", traceID,
			"error", err,
		)
		return err
	}

	slog.Debug("processing analysis request",
		"dataset_id", req.DatasetID,
		"operation", op,
		"tenant_id", tenantID,
		"trace_id", traceID,
	)

	// 1. Load the dataset
	ds, err := w.repo.GetDataset(ctx, tenantID, req.DatasetID)
	if err != nil {
		slog.Error("failed to load dataset",
			"dataset_id", req.DatasetID,
			"error", err,
		)
		return fmt.Errorf("load dataset %s: %w", req.DatasetID, err)
	}

	// 2. Run the operation
	raw, err := w.engine.RunJSON(op, ds.Claims)
	if err != nil {
		slog.Error("analysis failed",
			"dataset_id", req.DatasetID,
			"operation", op,
			"error", err,
		)
		return err
	}

	// 3. Persist the result
	analysisID := req.AnalysisID
	if analysisID == "" {
		analysisID = uuid.New().String()
	}
	record := &domain.Analysis{
		ID:        analysisID,
		TenantID:  tenantID,
		DatasetID: req.DatasetID,
		Operation: op,
		Result:    raw,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.repo.SaveAnalysis(ctx, tenantID, record); err != nil {
		slog.Error("failed to save analysis",
			"analysis_id", analysisID,
			"error", err,
		)
	}

	// 4. Publish completion
	completed, _ := json.Marshal(AnalysisCompleted{
		AnalysisID: analysisID,
		DatasetID:  req.DatasetID,
		Operation:  string(op),
		TraceID:    traceID,
	})
	if err := w.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, completed); err != nil {
		slog.Error("failed to publish completion",
			"analysis_id", analysisID,
			"error", err,
		)
	}

	// 5. Fan out KPI alerts from monitoring runs
	if op == domain.OpMonitorDevelopment {
		w.publishAlerts(ctx, tenantID, req.DatasetID, raw)
	}

	slog.Info("analysis processed",
		"analysis_id", analysisID,
		"dataset_id", req.DatasetID,
		"operation", op,
		"tenant_id", tenantID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// publishAlerts re-publishes each monitoring alert on the alert topic.
func (w *Worker) publishAlerts(ctx context.Context, tenantID, datasetID string, raw json.RawMessage) {
	var result monitor.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		slog.Error("failed to parse monitoring result",
			"dataset_id", datasetID,
			"error", err,
		)
		return
	}

	for _, alert := range result.Alerts {
		payload, _ := json.Marshal(alert)
		if err := w.bus.Publish(ctx, tenantID, domain.TopicKPIAlert, payload); err != nil {
			slog.Error("failed to publish KPI alert",
				"alert_id", alert.AlertID,
				"error", err,
			)
		}
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
