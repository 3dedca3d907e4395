package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/intentgw/gateway/admission"
	"github.com/intentgw/gateway/gwerrors"
	"github.com/intentgw/gateway/orchestrator"
	"github.com/intentgw/gateway/plan"
	"github.com/intentgw/gateway/streaming"
)

// Runner is the subset of *orchestrator.Orchestrator the server drives.
type Runner interface {
	ObtainPlan(ctx context.Context, principal plan.Principal, intent string) (*plan.Plan, error)
	Execute(ctx context.Context, principal plan.Principal, intent, bearerToken, correlationID string) (*plan.ExecutionResult, error)
	ExecuteStep(ctx context.Context, step plan.Step, ec *plan.ExecutionContext, bearerToken string) plan.StepResult
}

var _ Runner = (*orchestrator.Orchestrator)(nil)
var _ streaming.StepRunner = (*orchestrator.Orchestrator)(nil)

// Server is the gateway's HTTP surface: admission pipeline in front of the
// orchestrator, plus plan-only and streaming variants (§6).
type Server struct {
	pipeline *admission.Pipeline
	runner   Runner
	logger   Logger
	devMode  bool
}

// New builds a Server.
func New(pipeline *admission.Pipeline, runner Runner, logger Logger, devMode bool) *Server {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Server{pipeline: pipeline, runner: runner, logger: logger, devMode: devMode}
}

// Handler returns the fully-wired http.Handler (routes + middleware).
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/intent/execute", s.handleExecute)
	mux.HandleFunc("POST /api/intent/plan", s.handlePlan)
	mux.HandleFunc("GET /api/intent/stream", s.handleStream)
	mux.HandleFunc("GET /api/intent/stream/{intent}", s.handleStream)

	var handler http.Handler = mux
	handler = RequestMiddleware(s.logger, s.devMode)(handler)
	return handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
}

type intentRequest struct {
	Intent string `json:"intent"`
}

func bearerToken(r *http.Request) string {
	return r.Header.Get("Authorization")
}

// admit runs the admission pipeline and, on refusal, writes the error
// response itself (including the X-RateLimit-* headers for quota
// refusals), so every call site can just check the returned bool.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, intent string) (admission.Decision, bool) {
	decision := s.pipeline.Admit(r.Context(), bearerToken(r), intent)
	if decision.QuotaChecked {
		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt, 10))
	}
	if !decision.Allowed {
		writeError(w, r, decision.ToError())
		return decision, false
	}
	return decision, true
}

// executionResponse is the /api/intent/execute response DTO (§6):
// {success, result, executionTimeMs, executedAt, planId}. It deliberately
// narrows plan.ExecutionResult — intent, per-step detail, and the error
// message are internal/audit concerns, not part of this endpoint's wire
// contract.
type executionResponse struct {
	Success         bool        `json:"success"`
	Result          plan.Value  `json:"result,omitempty"`
	ExecutionTimeMs int64       `json:"executionTimeMs"`
	ExecutedAt      string      `json:"executedAt"`
	PlanID          string      `json:"planId"`
}

func toExecutionResponse(result *plan.ExecutionResult) executionResponse {
	return executionResponse{
		Success:         result.Success,
		Result:          result.AggregatedResult,
		ExecutionTimeMs: result.TotalDurationMs,
		ExecutedAt:      result.ExecutedAt.Format(time.RFC3339Nano),
		PlanID:          result.PlanID,
	}
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, gwerrors.New(gwerrors.Invalid, "request body must be valid JSON"))
		return
	}

	decision, ok := s.admit(w, r, req.Intent)
	if !ok {
		return
	}

	correlationID := correlationIDFromContext(r.Context())
	result, err := s.runner.Execute(r.Context(), decision.Principal, req.Intent, bearerToken(r), correlationID)
	if err != nil {
		writeError(w, r, asGatewayError(err))
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(toExecutionResponse(result))
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, gwerrors.New(gwerrors.Invalid, "request body must be valid JSON"))
		return
	}

	decision, ok := s.admit(w, r, req.Intent)
	if !ok {
		return
	}

	p, err := s.runner.ObtainPlan(r.Context(), decision.Principal, req.Intent)
	if err != nil {
		writeError(w, r, asGatewayError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(p)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	intent := strings.TrimSpace(r.PathValue("intent"))
	if intent == "" {
		intent = strings.TrimSpace(r.URL.Query().Get("intent"))
	}
	decision, ok := s.admit(w, r, intent)
	if !ok {
		return
	}

	correlationID := correlationIDFromContext(r.Context())
	sw, err := streaming.NewWriter(w)
	if err != nil {
		writeError(w, r, gwerrors.Wrap(gwerrors.Internal, "streaming unsupported by this client", err))
		return
	}

	_ = streaming.Emit(r.Context(), sw, s.runner, decision.Principal, intent, bearerToken(r), correlationID)
}

// errorBody is the JSON shape returned for every non-2xx response (§6).
type errorBody struct {
	StatusCode    int    `json:"statusCode"`
	Error         string `json:"error"`
	Details       string `json:"details,omitempty"`
	ErrorCode     string `json:"errorCode,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	TraceID       string `json:"traceId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Path          string `json:"path,omitempty"`
}

// writeError writes gerr as the spec's error body, threading the request's
// correlation id and trace id through so a refusal can be correlated to the
// request log and server-side traces even though the request was never
// admitted. No audit record is written for a refusal.
func writeError(w http.ResponseWriter, r *http.Request, gerr *gwerrors.Error) {
	if gerr.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(gerr.RetryAfter))
	}
	status := gerr.HTTPStatus()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		StatusCode:    status,
		Error:         http.StatusText(status),
		Details:       gerr.Message,
		ErrorCode:     string(gerr.Kind),
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
		TraceID:       traceIDFromContext(r.Context()),
		CorrelationID: correlationIDFromContext(r.Context()),
		Path:          r.URL.Path,
	})
}

func asGatewayError(err error) *gwerrors.Error {
	var gerr *gwerrors.Error
	if errors.As(err, &gerr) {
		return gerr
	}
	return gwerrors.Wrap(gwerrors.Internal, "unexpected error", err)
}
