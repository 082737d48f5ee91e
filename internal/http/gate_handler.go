package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/community-gate/internal/application"
)

type gateService interface {
	Evaluate(ctx context.Context, params application.EvaluateParams) (application.EvaluationResult, error)
	Invalidate(ctx context.Context, tenantID string)
	UpcomingWindows(ctx context.Context, params application.WindowsParams) (application.CurfewWindows, error)
}

// defaultWindowSpan applies when GET /tenants/{id}/curfew-windows omits to.
const defaultWindowSpan = 7 * 24 * time.Hour

// GateHandler serves curfew evaluations for gate devices.
type GateHandler struct {
	service   gateService
	responder responder
	logger    *slog.Logger
	now       func() time.Time
}

func NewGateHandler(service gateService, logger *slog.Logger) *GateHandler {
	base := defaultLogger(logger)
	return &GateHandler{service: service, responder: newResponder(base), logger: base, now: time.Now}
}

func (h *GateHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "GateHandler", operation, attrs...)
}

// Evaluate handles POST /gate/evaluations.
func (h *GateHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Evaluate", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode evaluation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Evaluate", "tenant_id", req.TenantID)

	params, vErr := req.toParams()
	if vErr != nil {
		logger.InfoContext(r.Context(), "rejected evaluation request", "error", vErr, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	result, err := h.service.Evaluate(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "gate evaluation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("evaluation_id", result.EvaluationID).InfoContext(r.Context(), "gate evaluated", "restricted", result.Restricted, "stale", result.Stale)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toEvaluationResponse(result))
}

// Invalidate handles POST /tenants/{id}/curfew-snapshot/invalidate.
func (h *GateHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	tenantID, ok := TenantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(tenantID) == "" {
		h.log(r.Context(), "Invalidate", "error_kind", "bad_request").ErrorContext(r.Context(), "missing tenant id for invalidation")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTenantID)
		return
	}

	h.service.Invalidate(r.Context(), tenantID)
	h.log(r.Context(), "Invalidate", "tenant_id", tenantID).InfoContext(r.Context(), "curfew snapshot invalidated")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Windows handles GET /tenants/{id}/curfew-windows?from=&to=. from defaults
// to now and to defaults to a week after from.
func (h *GateHandler) Windows(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	tenantID, ok := TenantIDFromContext(r.Context())
	if !ok || strings.TrimSpace(tenantID) == "" {
		h.log(r.Context(), "Windows", "error_kind", "bad_request").ErrorContext(r.Context(), "missing tenant id for window listing")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidTenantID)
		return
	}
	logger := h.log(r.Context(), "Windows", "tenant_id", tenantID)

	params, vErr := parseWindowQuery(r, tenantID, h.now)
	if vErr != nil {
		logger.InfoContext(r.Context(), "rejected window request", "error", vErr, "error_kind", application.ErrorKind(vErr))
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	windows, err := h.service.UpcomingWindows(r.Context(), params)
	if err != nil {
		logger.ErrorContext(r.Context(), "curfew window listing failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toWindowsResponse(windows))
}

func parseWindowQuery(r *http.Request, tenantID string, now func() time.Time) (application.WindowsParams, *application.ValidationError) {
	query := r.URL.Query()
	params := application.WindowsParams{TenantID: tenantID, From: now()}
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}

	if value := strings.TrimSpace(query.Get("from")); value != "" {
		from, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			vErr.FieldErrors["from"] = "from must be RFC 3339"
		} else {
			params.From = from
		}
	}
	params.To = params.From.Add(defaultWindowSpan)
	if value := strings.TrimSpace(query.Get("to")); value != "" {
		to, err := time.Parse(time.RFC3339Nano, value)
		if err != nil {
			vErr.FieldErrors["to"] = "to must be RFC 3339"
		} else {
			params.To = to
		}
	}
	if vErr.HasErrors() {
		return params, vErr
	}
	return params, nil
}

type windowDTO struct {
	RuleID       string `json:"rule_id"`
	LogicalNight string `json:"logical_night"`
	Start        string `json:"start"`
	End          string `json:"end"`
}

type windowsResponse struct {
	TenantID        string      `json:"tenant_id"`
	Timezone        string      `json:"timezone"`
	From            string      `json:"from"`
	To              string      `json:"to"`
	Windows         []windowDTO `json:"windows"`
	SnapshotVersion string      `json:"snapshot_version"`
	Stale           bool        `json:"stale,omitempty"`
}

func toWindowsResponse(windows application.CurfewWindows) windowsResponse {
	response := windowsResponse{
		TenantID:        windows.TenantID,
		Timezone:        windows.Timezone,
		From:            windows.From.Format(time.RFC3339),
		To:              windows.To.Format(time.RFC3339),
		Windows:         make([]windowDTO, 0, len(windows.Windows)),
		SnapshotVersion: windows.SnapshotVersion,
		Stale:           windows.Stale,
	}
	for _, window := range windows.Windows {
		response.Windows = append(response.Windows, windowDTO{
			RuleID:       window.RuleID,
			LogicalNight: window.LogicalNight.String(),
			Start:        window.Start.Format(time.RFC3339),
			End:          window.End.Format(time.RFC3339),
		})
	}
	return response
}

type evaluationRequest struct {
	TenantID  string `json:"tenant_id"`
	Timestamp string `json:"timestamp"`
}

func (req evaluationRequest) toParams() (application.EvaluateParams, *application.ValidationError) {
	params := application.EvaluateParams{TenantID: req.TenantID}
	value := strings.TrimSpace(req.Timestamp)
	if value == "" {
		return params, nil
	}
	timestamp, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return params, &application.ValidationError{FieldErrors: map[string]string{"timestamp": "timestamp must be RFC 3339"}}
	}
	params.Timestamp = timestamp
	return params, nil
}

type matchDTO struct {
	RuleID       string `json:"rule_id"`
	LogicalNight string `json:"logical_night"`
}

type skippedRuleDTO struct {
	RuleID string `json:"rule_id"`
	Reason string `json:"reason"`
}

type evaluationResponse struct {
	EvaluationID    string           `json:"evaluation_id"`
	TenantID        string           `json:"tenant_id"`
	EvaluatedAt     string           `json:"evaluated_at"`
	LocalTime       string           `json:"local_time"`
	Timezone        string           `json:"timezone"`
	Restricted      bool             `json:"restricted"`
	MatchedRules    []string         `json:"matched_rules"`
	Matches         []matchDTO       `json:"matches"`
	SkippedRules    []skippedRuleDTO `json:"skipped_rules"`
	SnapshotVersion string           `json:"snapshot_version"`
	Stale           bool             `json:"stale,omitempty"`
}

func toEvaluationResponse(result application.EvaluationResult) evaluationResponse {
	matched := result.MatchedRules
	if matched == nil {
		matched = []string{}
	}
	matches := make([]matchDTO, 0, len(result.Matches))
	for _, match := range result.Matches {
		matches = append(matches, matchDTO{RuleID: match.RuleID, LogicalNight: match.LogicalNight.String()})
	}
	skipped := make([]skippedRuleDTO, 0, len(result.Skipped))
	for _, rule := range result.Skipped {
		skipped = append(skipped, skippedRuleDTO{RuleID: rule.RuleID, Reason: rule.Reason})
	}
	return evaluationResponse{
		EvaluationID:    result.EvaluationID,
		TenantID:        result.TenantID,
		EvaluatedAt:     result.EvaluatedAt.Format(time.RFC3339Nano),
		LocalTime:       result.LocalTime.Format(time.RFC3339Nano),
		Timezone:        result.Timezone,
		Restricted:      result.Restricted,
		MatchedRules:    matched,
		Matches:         matches,
		SkippedRules:    skipped,
		SnapshotVersion: result.SnapshotVersion,
		Stale:           result.Stale,
	}
}
