package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/algolend/kestrel/internal/domain"
	"github.com/algolend/kestrel/internal/engine"
	"github.com/algolend/kestrel/internal/flags"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	pipeline   *engine.Pipeline
	store      domain.RecordStore
	cache      domain.Cache
	bus        domain.EventBus
	flagEngine *flags.Engine
	version    string
}

// NewHandler creates a new API handler.
func NewHandler(pipeline *engine.Pipeline, store domain.RecordStore, cache domain.Cache, bus domain.EventBus, flagEngine *flags.Engine, version string) *Handler {
	return &Handler{
		pipeline:   pipeline,
		store:      store,
		cache:      cache,
		bus:        bus,
		flagEngine: flagEngine,
		version:    version,
	}
}

// captureDevice records the client device metadata for the submitted
// application. The first X-Forwarded-For entry wins over RemoteAddr
// because the server normally sits behind a proxy.
func captureDevice(r *http.Request) domain.DeviceSignals {
	dev := domain.DeviceSignals{
		UserAgent:      r.UserAgent(),
		AcceptLanguage: r.Header.Get("Accept-Language"),
		CapturedAt:     time.Now().UTC(),
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		dev.ForwardedChain = parts
		dev.IP = domain.NormalizeIP(parts[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		dev.IP = domain.NormalizeIP(host)
	} else {
		dev.IP = domain.NormalizeIP(r.RemoteAddr)
	}

	return dev
}

// Evaluate handles POST /credit-checks: runs one full synchronous credit
// evaluation and returns the appended decision record.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	// Device attributes come from the transport layer, never the body.
	req.Device = captureDevice(r)

	rec, err := h.pipeline.Evaluate(ctx, &req)
	if err != nil {
		h.writeEvaluationError(w, &req, err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// EvaluateAsync handles POST /credit-checks/async: validates the request,
// queues it on the event bus and returns immediately. A worker consumes
// the queue and publishes the completed decision.
func (h *Handler) EvaluateAsync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "event bus not available",
		})
		return
	}

	var req domain.EvaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	req.Device = captureDevice(r)

	// Reject obviously bad requests before they enter the queue.
	if err := req.Validate(); err != nil {
		h.writeEvaluationError(w, &req, err)
		return
	}

	payload, err := json.Marshal(&req)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to encode request",
		})
		return
	}

	if err := h.bus.Publish(ctx, domain.TopicEvaluationRequested, payload); err != nil {
		slog.Error("failed to queue evaluation", "applicationId", req.ApplicationID, "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "failed to queue evaluation",
		})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"applicationId": req.ApplicationID,
		"status":        "queued",
	})
}

// writeEvaluationError maps pipeline errors to HTTP status codes.
func (h *Handler) writeEvaluationError(w http.ResponseWriter, req *domain.EvaluationRequest, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": verr.Error(),
			"field": verr.Field,
		})
		return
	}

	if errors.Is(err, domain.ErrEnquiryLimit) {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"error": err.Error(),
		})
		return
	}

	var terr *domain.TransportError
	if errors.As(err, &terr) {
		slog.Error("bureau unreachable", "applicationId", req.ApplicationID, "error", err)
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"error": "credit bureau unreachable",
		})
		return
	}

	var perr *domain.ProtocolError
	var derr *domain.DecodeError
	var merr *domain.MissingAssetError
	if errors.As(err, &perr) || errors.As(err, &derr) || errors.As(err, &merr) {
		slog.Error("bureau response unusable", "applicationId", req.ApplicationID, "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "credit bureau returned an unusable response",
		})
		return
	}

	slog.Error("evaluation failed", "applicationId", req.ApplicationID, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "evaluation failed",
	})
}

// GetDecision retrieves a decision record by ID.
func (h *Handler) GetDecision(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID := chi.URLParam(r, "id")

	if recordID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "decision id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	rec, err := h.store.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "decision not found",
			})
			return
		}
		slog.Error("failed to get decision", "id", recordID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load decision",
		})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// DownloadReport serves the raw compressed bureau payload stored with a
// decision record as a zip download.
func (h *Handler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	recordID := chi.URLParam(r, "id")

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	rec, err := h.store.GetRecord(ctx, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "decision not found",
			})
			return
		}
		slog.Error("failed to get decision", "id", recordID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load decision",
		})
		return
	}

	if rec.RawPayload == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no report payload stored for this decision",
		})
		return
	}

	raw, err := base64.StdEncoding.DecodeString(rec.RawPayload)
	if err != nil {
		slog.Error("stored payload is not valid base64", "id", recordID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "stored report payload is corrupt",
		})
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="report-`+rec.ReportReference+`.zip"`)
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}

// listLimit parses the ?limit= query parameter, 0 meaning store default.
func listLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

// ListDecisionsByUser lists decision summaries for one user, newest first.
func (h *Handler) ListDecisionsByUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := chi.URLParam(r, "userID")

	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	summaries, err := h.store.ListRecordsByUser(ctx, userID, listLimit(r))
	if err != nil {
		slog.Error("failed to list decisions by user", "userId", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": summaries,
		"count":     len(summaries),
	})
}

// ListDecisionsByIdentity lists decision summaries for one identity
// number across users, newest first.
func (h *Handler) ListDecisionsByIdentity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	idNumber := chi.URLParam(r, "idNumber")

	if idNumber == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "identity number is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	summaries, err := h.store.ListRecordsByIDNumber(ctx, idNumber, listLimit(r))
	if err != nil {
		slog.Error("failed to list decisions by identity", "idNumber", idNumber, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list decisions",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": summaries,
		"count":     len(summaries),
	})
}

// ListFlagRules returns all persisted flag rules, enabled or not.
func (h *Handler) ListFlagRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	rules, err := h.store.ListFlagRules(ctx)
	if err != nil {
		slog.Error("failed to list flag rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list flag rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// GetFlagRule retrieves a flag rule by ID.
func (h *Handler) GetFlagRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	rule, err := h.store.GetFlagRule(ctx, ruleID)
	if err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "flag rule not found",
			})
			return
		}
		slog.Error("failed to get flag rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to load flag rule",
		})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// SaveFlagRule creates or replaces a flag rule. The CEL expression is
// compiled before the rule is persisted so a bad expression never lands
// in the database.
func (h *Handler) SaveFlagRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var rule domain.FlagRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if rule.ID == "" || rule.Name == "" || rule.Expression == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "id, name, and expression are required",
		})
		return
	}

	if h.flagEngine != nil {
		if err := h.flagEngine.ValidateRule(&rule); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid CEL expression: " + err.Error(),
			})
			return
		}
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	if err := h.store.SaveFlagRule(ctx, &rule); err != nil {
		slog.Error("failed to save flag rule", "id", rule.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save flag rule",
		})
		return
	}

	slog.Info("flag rule saved", "id", rule.ID, "name", rule.Name)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":    rule,
		"message": "Flag rule saved. Call POST /flag-rules/reload to apply changes.",
	})
}

// DeleteFlagRule deletes a flag rule and auto-reloads the engine.
func (h *Handler) DeleteFlagRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ruleID := chi.URLParam(r, "id")

	if ruleID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "rule id is required",
		})
		return
	}

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}

	if err := h.store.DeleteFlagRule(ctx, ruleID); err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "flag rule not found",
			})
			return
		}
		slog.Error("failed to delete flag rule", "id", ruleID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to delete flag rule",
		})
		return
	}

	// Drop the rule from the running engine too.
	if h.flagEngine != nil {
		if err := h.reloadFlagRules(ctx); err != nil {
			slog.Error("failed to reload flag rules after delete", "error", err)
		} else {
			slog.Info("flag rules auto-reloaded after delete")
		}
	}

	slog.Info("flag rule deleted", "id", ruleID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Flag rule deleted and engine reloaded.",
	})
}

// ReloadFlagRules reloads all enabled flag rules from the database into
// the engine, allowing hot updates without a restart.
func (h *Handler) ReloadFlagRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "record store not available",
		})
		return
	}
	if h.flagEngine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "flag engine not available",
		})
		return
	}

	if err := h.reloadFlagRules(ctx); err != nil {
		slog.Error("failed to reload flag rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to reload flag rules: " + err.Error(),
		})
		return
	}

	count := h.flagEngine.RuleCount()
	slog.Info("flag rules reloaded from database", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "flag rules reloaded successfully",
		"count":   count,
	})
}

func (h *Handler) reloadFlagRules(ctx context.Context) error {
	dbRules, err := h.store.ListFlagRules(ctx)
	if err != nil {
		return err
	}
	if err := h.flagEngine.ReloadRules(dbRules); err != nil {
		return err
	}
	if h.bus != nil {
		payload, _ := json.Marshal(map[string]int{"count": h.flagEngine.RuleCount()})
		if err := h.bus.Publish(ctx, domain.TopicFlagRulesReloaded, payload); err != nil {
			slog.Warn("failed to publish flag rules reloaded event", "error", err)
		}
	}
	return nil
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
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

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
