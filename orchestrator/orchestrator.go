// Package orchestrator implements C9: it obtains a plan (from cache or the
// Planner collaborator), walks steps in order threading context through the
// step executor, and aggregates the outcome into an ExecutionResult.
//
// Grounded on orchestration.StandardOrchestrator.ProcessRequest (plan-cache
// probe, execute, record, cache-response idiom), generalized: the teacher's
// free-text LLM "synthesis" step has no analog here — the spec has no
// synthesis stage — so aggregation follows §4.7's single-value/step-view
// rule instead.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/intentgw/gateway/audit"
	"github.com/intentgw/gateway/collaborator"
	"github.com/intentgw/gateway/executor"
	"github.com/intentgw/gateway/plan"
)

// Cache is the subset of cache.Cache the orchestrator needs for the plan
// cache (C4 usage (a)).
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
}

// Logger is the minimal logging surface the orchestrator needs.
type Logger interface {
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

// StepView is one entry of a multi-step aggregated result (§4.7 step 4).
type StepView struct {
	Order      int        `json:"order"`
	Service    string     `json:"service"`
	Function   string     `json:"function"`
	Success    bool       `json:"success"`
	Value      plan.Value `json:"value,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMs int64      `json:"durationMs"`
}

// Orchestrator is C9: obtains a plan, executes its steps in order, and
// aggregates the result.
type Orchestrator struct {
	planner   collaborator.Planner
	exec      *executor.StepExecutor
	planCache Cache
	planTTL   time.Duration
	auditSink audit.Sink
	logger    Logger
}

// New builds an Orchestrator.
func New(planner collaborator.Planner, exec *executor.StepExecutor, planCache Cache, planTTL time.Duration, auditSink audit.Sink, logger Logger) *Orchestrator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Orchestrator{planner: planner, exec: exec, planCache: planCache, planTTL: planTTL, auditSink: auditSink, logger: logger}
}

// PlanKey returns the plan-cache fingerprint for (intent, userID): a hash of
// the concatenation, per §4.1's usage (a).
func PlanKey(intent, userID string) string {
	h := sha256.Sum256([]byte(intent + "\x00" + userID))
	return hex.EncodeToString(h[:])
}

// ObtainPlan probes the plan cache, falling back to the Planner collaborator
// and caching its result with planTTL.
func (o *Orchestrator) ObtainPlan(ctx context.Context, principal plan.Principal, intent string) (*plan.Plan, error) {
	key := PlanKey(intent, principal.UserID)
	if cached, ok := o.planCache.Get(key); ok {
		if p, ok := cached.(*plan.Plan); ok {
			return p, nil
		}
	}

	p, err := o.planner.Plan(ctx, intent, principal)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	o.planCache.Set(key, p, o.planTTL)
	return p, nil
}

// Execute runs intent end to end: obtain the plan, walk its steps, and
// produce an ExecutionResult. correlationID is propagated to the audit
// record (I8); bearerToken is propagated to every downstream call (P8).
func (o *Orchestrator) Execute(ctx context.Context, principal plan.Principal, intent, bearerToken, correlationID string) (*plan.ExecutionResult, error) {
	start := time.Now()

	p, err := o.ObtainPlan(ctx, principal, intent)
	if err != nil {
		o.auditSink.Append(audit.Record{
			UserID: principal.UserID, Action: audit.ActionExecute, Resource: "intent",
			Method: "PLAN", StatusCode: 500, Success: false, ErrorMessage: err.Error(),
			Context: map[string]any{"correlation_id": correlationID},
		})
		return nil, err
	}

	ec := plan.NewExecutionContext(principal.UserID, intent)
	results := make([]plan.StepResult, 0, len(p.Steps))

	terminated := false
	for i, step := range p.Steps {
		if terminated {
			results = append(results, plan.StepResult{
				Order: step.Order, ServiceName: step.ServiceName, FunctionName: step.FunctionName,
				Success: false, ErrorCategory: plan.CategoryPermanent, RetryCount: 0, Duration: 0,
				Error: &plan.StepError{Message: "skipped: earlier permanent failure aborted the plan", Category: plan.CategoryPermanent},
			})
			continue
		}

		result := o.exec.Execute(ctx, step, ec, bearerToken)
		ec.Append(result)
		results = append(results, result)

		if !result.Success && !step.HasFallback && result.ErrorCategory == plan.CategoryPermanent {
			if !remainingHasFallback(p.Steps[i+1:]) {
				terminated = true
			}
		}
	}

	success := true
	for _, r := range results {
		if !r.Success {
			success = false
			break
		}
	}

	aggregated := aggregate(results)
	totalDuration := time.Since(start)

	execResult := &plan.ExecutionResult{
		PlanID: p.ID, Intent: intent, Success: success,
		AggregatedResult: aggregated, Steps: results,
		TotalDuration: totalDuration, TotalDurationMs: totalDuration.Milliseconds(),
		ExecutedAt:    time.Now().UTC(),
		CorrelationID: correlationID,
	}
	if !success {
		execResult.ErrorMessage = firstError(results)
	}

	status := 200
	if !success {
		status = 500
	}
	ok, msg := audit.RecordsFromStatus(status, execResult.ErrorMessage)
	o.auditSink.Append(audit.Record{
		UserID: principal.UserID, Action: audit.ActionExecute, Resource: "intent",
		Method: "EXECUTE", StatusCode: status, Success: ok, ErrorMessage: msg,
		Context: map[string]any{"correlation_id": correlationID, "plan_id": p.ID},
	})

	return execResult, nil
}

// ExecuteStep runs a single step through the wrapped executor. Exposed so
// the streaming adapter (streaming.StepRunner) can drive step-by-step
// execution while emitting progress events between steps.
func (o *Orchestrator) ExecuteStep(ctx context.Context, step plan.Step, ec *plan.ExecutionContext, bearerToken string) plan.StepResult {
	return o.exec.Execute(ctx, step, ec, bearerToken)
}

func remainingHasFallback(steps []plan.Step) bool {
	for _, s := range steps {
		if s.HasFallback {
			return true
		}
	}
	return false
}

// aggregate implements §4.7 step 4: a single step's value stands alone,
// otherwise the result is a mapping whose "steps" entry is the sequence of
// step views.
func aggregate(results []plan.StepResult) plan.Value {
	if len(results) == 1 {
		return results[0].Value
	}
	views := make([]plan.Value, len(results))
	for i, r := range results {
		errMsg := ""
		if r.Error != nil {
			errMsg = r.Error.Message
		}
		views[i] = StepView{
			Order: r.Order, Service: r.ServiceName, Function: r.FunctionName,
			Success: r.Success, Value: r.Value, Error: errMsg, DurationMs: r.DurationMs,
		}
	}
	return map[string]plan.Value{"steps": views}
}

func firstError(results []plan.StepResult) string {
	for _, r := range results {
		if !r.Success && r.Error != nil {
			return r.Error.Message
		}
	}
	return ""
}
