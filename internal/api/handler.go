package api

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/opensource-finance/heron/internal/analysis"
	"github.com/opensource-finance/heron/internal/cache"
	"github.com/opensource-finance/heron/internal/domain"
)

// resultTTL is how long analysis results stay memoized. A dataset is
// immutable once uploaded, so the TTL only bounds memory growth.
const resultTTL = 30 * time.Minute

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *analysis.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, engine *analysis.Engine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  engine,
		version: version,
	}
}

// CreateDatasetRequest is the request body for POST /datasets.
type CreateDatasetRequest struct {
	Name   string             `json:"name"`
	Claims domain.ClaimsTable `json:"claims"`
}

// DatasetResponse is the metadata returned for an uploaded dataset.
type DatasetResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RowCount  int       `json:"rowCount"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateDataset handles POST /datasets requests.
func (h *Handler) CreateDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateDatasetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if len(req.Claims) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "claims is required and must not be empty",
		})
		return
	}
	if req.Name == "" {
		req.Name = "dataset-" + time.Now().UTC().Format("20060102150405")
	}

	ds := &domain.Dataset{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      req.Name,
		RowCount:  len(req.Claims),
		Claims:    req.Claims,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveDataset(ctx, tenantID, ds); err != nil {
		slog.Error("failed to save dataset", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save dataset",
		})
		return
	}

	slog.Info("dataset created",
		"dataset_id", ds.ID,
		"tenant_id", tenantID,
		"row_count", ds.RowCount,
	)

	writeJSON(w, http.StatusCreated, DatasetResponse{
		ID:        ds.ID,
		Name:      ds.Name,
		RowCount:  ds.RowCount,
		CreatedAt: ds.CreatedAt,
	})
}

// ListDatasets returns dataset metadata for the tenant.
func (h *Handler) ListDatasets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	datasets, err := h.repo.ListDatasets(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list datasets", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list datasets",
		})
		return
	}

	out := make([]DatasetResponse, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, DatasetResponse{
			ID:        ds.ID,
			Name:      ds.Name,
			RowCount:  ds.RowCount,
			CreatedAt: ds.CreatedAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"datasets": out,
		"count":    len(out),
	})
}

// GetDataset retrieves a dataset by ID, including its claims.
func (h *Handler) GetDataset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	datasetID := chi.URLParam(r, "id")

	ds, err := h.repo.GetDataset(ctx, tenantID, datasetID)
	if err != nil {
		slog.Error("failed to get dataset", "id", datasetID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "dataset not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, ds)
}

// ConfigOverrides are optional per-request engine config overrides.
// Zero-valued fields fall back to defaults.
type ConfigOverrides struct {
	Fraud      *domain.FraudConfig      `json:"fraud,omitempty"`
	Litigation *domain.LitigationConfig `json:"litigation,omitempty"`
	Monitoring *domain.MonitoringConfig `json:"monitoring,omitempty"`
}

// AnalyzeRequest is the optional request body for analyze endpoints.
// For POST /analyze/{operation} either DatasetID or inline Claims is
// required; the dataset-scoped route takes the dataset from the URL.
type AnalyzeRequest struct {
	DatasetID string             `json:"datasetId,omitempty"`
	Claims    domain.ClaimsTable `json:"claims,omitempty"`
	Config    *ConfigOverrides   `json:"config,omitempty"`
}

// AnalyzeResponse is the response for analyze endpoints.
type AnalyzeResponse struct {
	AnalysisID string          `json:"analysisId"`
	DatasetID  string          `json:"datasetId,omitempty"`
	Operation  string          `json:"operation"`
	Cached     bool            `json:"cached"`
	Result     json.RawMessage `json:"result"`
	Metadata   struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /datasets/{id}/analyze/{operation}: it runs the
// named operation synchronously, persists the result, and memoizes it
// so repeated runs over an immutable dataset hit the cache. The body is
// optional and may carry config overrides.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	datasetID := chi.URLParam(r, "id")

	op, err := domain.ParseOperation(chi.URLParam(r, "operation"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Body is optional on this route
	var req AnalyzeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	h.runAnalysis(w, r, start, op, datasetID, nil, req.Config)
}

// AnalyzeInline handles POST /analyze/{operation} with a dataset
// reference or inline claims in the body.
func (h *Handler) AnalyzeInline(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	op, err := domain.ParseOperation(chi.URLParam(r, "operation"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.DatasetID == "" && len(req.Claims) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "datasetId or claims is required",
		})
		return
	}

	h.runAnalysis(w, r, start, op, req.DatasetID, req.Claims, req.Config)
}

// runAnalysis is the shared analyze pipeline: resolve claims, check the
// result cache, run the engine, persist, memoize, publish, respond.
// Inline claims are never cached (no stable identity to key on).
func (h *Handler) runAnalysis(w http.ResponseWriter, r *http.Request, start time.Time, op domain.Operation, datasetID string, claims domain.ClaimsTable, overrides *ConfigOverrides) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	resp := AnalyzeResponse{
		DatasetID: datasetID,
		Operation: string(op),
	}

	var cacheKey string
	if datasetID != "" && len(claims) == 0 {
		cacheKey = cache.ResultKey(datasetID, op)
		if overrides != nil {
			cacheKey += ":" + configDigest(overrides)
		}
	}

	// Cache hit short-circuits both the engine run and the save.
	if h.cache != nil && cacheKey != "" {
		if cached, err := h.cache.Get(ctx, tenantID, cacheKey); err == nil && cached != nil {
			var saved domain.Analysis
			if err := json.Unmarshal(cached, &saved); err == nil {
				resp.AnalysisID = saved.ID
				resp.Cached = true
				resp.Result = saved.Result
				resp.Metadata.TraceID = traceID
				resp.Metadata.TotalMs = time.Since(start).Milliseconds()
				resp.Metadata.Version = h.version
				writeJSON(w, http.StatusOK, resp)
				return
			}
		}
	}

	if len(claims) == 0 {
		ds, err := h.repo.GetDataset(ctx, tenantID, datasetID)
		if err != nil {
			slog.Error("failed to get dataset", "id", datasetID, "error", err)
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "dataset not found",
			})
			return
		}
		claims = ds.Claims
	}

	engine := h.engine
	if overrides != nil {
		var fraudCfg domain.FraudConfig
		var litCfg domain.LitigationConfig
		var monCfg domain.MonitoringConfig
		if overrides.Fraud != nil {
			fraudCfg = *overrides.Fraud
		}
		if overrides.Litigation != nil {
			litCfg = *overrides.Litigation
		}
		if overrides.Monitoring != nil {
			monCfg = *overrides.Monitoring
		}
		engine = h.engine.WithConfig(fraudCfg, litCfg, monCfg)
	}

	raw, err := engine.RunJSON(op, claims)
	if err != nil {
		slog.Error("analysis failed",
			"dataset_id", datasetID,
			"operation", op,
			"error", err,
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "analysis failed",
		})
		return
	}

	record := &domain.Analysis{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		DatasetID: datasetID,
		Operation: op,
		Result:    raw,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.repo.SaveAnalysis(ctx, tenantID, record); err != nil {
		slog.Error("failed to save analysis", "id", record.ID, "error", err)
	}

	if h.cache != nil && cacheKey != "" {
		if encoded, err := json.Marshal(record); err == nil {
			_ = h.cache.Set(ctx, tenantID, cacheKey, encoded, resultTTL)
		}
	}

	if h.bus != nil {
		completed, _ := json.Marshal(map[string]string{
			"analysisId": record.ID,
			"datasetId":  datasetID,
			"operation":  string(op),
			"traceId":    traceID,
		})
		if err := h.bus.Publish(ctx, tenantID, domain.TopicAnalysisCompleted, completed); err != nil {
			slog.Error("failed to publish completion", "id", record.ID, "error", err)
		}
	}

	resp.AnalysisID = record.ID
	resp.Result = raw
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	slog.Info("analysis completed",
		"analysis_id", record.ID,
		"dataset_id", datasetID,
		"operation", op,
		"tenant_id", tenantID,
		"duration_ms", resp.Metadata.TotalMs,
	)

	writeJSON(w, http.StatusOK, resp)
}

// configDigest keys cache entries by config overrides so a tuned run
// never serves a default-config result or vice versa.
func configDigest(overrides *ConfigOverrides) string {
	encoded, err := json.Marshal(overrides)
	if err != nil {
		return "cfg"
	}
	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:8])
}

// GetAnalysis retrieves a stored analysis result by ID.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	analysisID := chi.URLParam(r, "id")

	a, err := h.repo.GetAnalysis(ctx, tenantID, analysisID)
	if err != nil {
		slog.Error("failed to get analysis", "id", analysisID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "analysis not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, a)
}

// ListAnalyses returns stored analyses for a dataset, newest first.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	datasetID := chi.URLParam(r, "id")

	analyses, err := h.repo.ListAnalysesByDataset(ctx, tenantID, datasetID)
	if err != nil {
		slog.Error("failed to list analyses", "dataset_id", datasetID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list analyses",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// ListOperations returns the supported analysis operations.
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"operations": domain.Operations(),
	})
}

// CreateFraudRuleRequest is the request body for creating a custom
// fraud rule.
type CreateFraudRuleRequest struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Expression  string  `json:"expression"`
	Weight      float64 `json:"weight"`
	Flag        string  `json:"flag"`
	Enabled     bool    `json:"enabled"`
}

// CreateFraudRule validates, persists, and hot-loads a custom CEL rule.
func (h *Handler) CreateFraudRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req CreateFraudRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	rule := &domain.FraudRule{
		ID:          req.ID,
		TenantID:    tenantID,
		Name:        req.Name,
		Description: req.Description,
		Expression:  req.Expression,
		Weight:      req.Weight,
		Flag:        req.Flag,
		Enabled:     req.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Compile check before touching storage
	rules := h.engine.Rules()
	if rules == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "custom rules not available",
		})
		return
	}
	if err := rules.ValidateRule(rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid rule: " + err.Error(),
		})
		return
	}

	if err := h.repo.SaveFraudRule(ctx, tenantID, rule); err != nil {
		slog.Error("failed to save fraud rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save rule",
		})
		return
	}

	if rule.Enabled {
		if err := rules.LoadRule(rule); err != nil {
			slog.Error("failed to load fraud rule", "id", rule.ID, "error", err)
		}
	}

	slog.Info("fraud rule created", "id", rule.ID, "name", rule.Name, "tenant_id", tenantID)
	writeJSON(w, http.StatusCreated, rule)
}

// GetFraudRule retrieves a custom fraud rule by ID.
func (h *Handler) GetFraudRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	rule, err := h.repo.GetFraudRule(ctx, tenantID, ruleID)
	if err != nil {
		slog.Error("failed to get fraud rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// ListFraudRules returns the tenant's enabled custom fraud rules.
func (h *Handler) ListFraudRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ListFraudRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list fraud rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"rules": rules,
		"count": len(rules),
	})
}

// DeleteFraudRule disables a custom rule and reloads the rule set.
func (h *Handler) DeleteFraudRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	ruleID := chi.URLParam(r, "id")

	if err := h.repo.DeleteFraudRule(ctx, tenantID, ruleID); err != nil {
		slog.Error("failed to delete fraud rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "rule not found",
		})
		return
	}

	// Reload so the deleted rule stops firing immediately
	if rules := h.engine.Rules(); rules != nil {
		remaining, err := h.repo.ListFraudRules(ctx, tenantID)
		if err != nil {
			slog.Error("failed to reload rules after delete", "error", err)
		} else if err := rules.ReloadRules(remaining); err != nil {
			slog.Error("failed to reload rule set", "error", err)
		}
	}

	slog.Info("fraud rule deleted", "id", ruleID, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "rule deleted",
	})
}

// ReloadFraudRules reloads the tenant's rules from the repository into
// the engine. Enables hot reload without a restart.
func (h *Handler) ReloadFraudRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules := h.engine.Rules()
	if rules == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "custom rules not available",
		})
		return
	}

	dbRules, err := h.repo.ListFraudRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list fraud rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load rules from database",
		})
		return
	}

	if err := rules.ReloadRules(dbRules); err != nil {
		slog.Error("failed to reload rule set", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload rules: " + err.Error(),
		})
		return
	}

	slog.Info("fraud rules reloaded", "count", len(dbRules), "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "rules reloaded successfully",
		"count":   len(dbRules),
	})
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
