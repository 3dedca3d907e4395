// Package plan holds the gateway's core data model: Plan, Step, Value,
// StepResult and ExecutionResult, plus the ExecutionContext the resolver and
// executor thread through one execution.
package plan

import (
	"fmt"
	"time"
)

// Principal identifies the caller for the lifetime of one request.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the principal carries the given role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Plan is an ordered, immutable sequence of Steps realizing an Intent.
type Plan struct {
	ID     string `json:"planId"`
	Intent string `json:"intent"`
	Steps  []Step `json:"steps"`
}

// Validate enforces invariant I1: order values form 1..N with no gaps or
// duplicates.
func (p *Plan) Validate() error {
	seen := make(map[int]bool, len(p.Steps))
	for _, s := range p.Steps {
		if s.Order <= 0 {
			return fmt.Errorf("plan %s: step order must be positive, got %d", p.ID, s.Order)
		}
		if seen[s.Order] {
			return fmt.Errorf("plan %s: duplicate step order %d", p.ID, s.Order)
		}
		seen[s.Order] = true
	}
	for i := 1; i <= len(p.Steps); i++ {
		if !seen[i] {
			return fmt.Errorf("plan %s: missing step order %d (gap-free 1..N required)", p.ID, i)
		}
	}
	return nil
}

// Step is one downstream operation: a named function on a named service.
type Step struct {
	Order         int               `json:"order"`
	ServiceName   string            `json:"serviceName"`
	FunctionName  string            `json:"functionName"`
	Description   string            `json:"description,omitempty"`
	Parameters    map[string]Value  `json:"parameters,omitempty"`
	FallbackValue Value             `json:"fallbackValue,omitempty"`
	HasFallback   bool              `json:"-"`
}

// ErrorCategory classifies a downstream failure for retry eligibility (§4.4).
type ErrorCategory string

const (
	CategoryTransient ErrorCategory = "Transient"
	CategoryPermanent ErrorCategory = "Permanent"
	CategoryUnknown   ErrorCategory = "Unknown"
)

// RetryAttempt records one retry in a step's history.
type RetryAttempt struct {
	AttemptNumber   int
	Timestamp       time.Time
	ErrorMessage    string
	WaitBeforeRetry time.Duration
	HTTPStatus      *int
}

// StepError carries the terminal (or fallback-triggering) error for a step.
type StepError struct {
	Message       string
	Category      ErrorCategory
	RetryAttempts int
	RetryHistory  []RetryAttempt
	HTTPStatus    *int
	UsedFallback  bool
	FallbackValue Value
}

// StepResult is produced for every step in the plan, in order (I3).
//
// Duration is tagged as milliseconds on the wire (durationMs), matching the
// streaming event contract in package streaming — a raw time.Duration would
// otherwise serialize as nanoseconds.
type StepResult struct {
	Order         int           `json:"order"`
	ServiceName   string        `json:"serviceName"`
	FunctionName  string        `json:"functionName"`
	Success       bool          `json:"success"`
	Value         Value         `json:"value,omitempty"`
	Error         *StepError    `json:"error,omitempty"`
	Duration      time.Duration `json:"-"`
	DurationMs    int64         `json:"durationMs"`
	RetryCount    int           `json:"retryCount"`
	UsedFallback  bool          `json:"usedFallback"`
	ErrorCategory ErrorCategory `json:"errorCategory,omitempty"`
}

// ExecutionResult is the outcome of running a Plan end to end. It is the
// gateway's internal domain model; the /api/intent/execute response body is
// the narrower DTO server.executionResponse derives from it (§6), not this
// struct marshaled directly.
type ExecutionResult struct {
	PlanID           string        `json:"planId"`
	Intent           string        `json:"intent"`
	Success          bool          `json:"success"`
	AggregatedResult Value         `json:"result,omitempty"`
	Steps            []StepResult  `json:"steps,omitempty"`
	ErrorMessage     string        `json:"errorMessage,omitempty"`
	TotalDuration    time.Duration `json:"-"`
	TotalDurationMs  int64         `json:"executionTimeMs"`
	ExecutedAt       time.Time     `json:"executedAt"`
	CorrelationID    string        `json:"correlationId,omitempty"`
}

// ExecutionContext is the resolver's lookup environment for one execution.
// It is never shared across executions or goroutines outside the owning
// orchestrator (§5).
type ExecutionContext struct {
	UserID      string
	Intent      string
	StepResults []StepResult // append-only, ascending Order
	Variables   map[string]Value
}

// NewExecutionContext seeds a fresh context for one execution.
func NewExecutionContext(userID, intent string) *ExecutionContext {
	return &ExecutionContext{
		UserID:      userID,
		Intent:      intent,
		StepResults: make([]StepResult, 0, 8),
		Variables:   make(map[string]Value),
	}
}

// Append records a step's result. The resolver finds results by Order via
// ResultFor and treats every appended result as visible, so forward-only
// resolution (I4) holds only if each result is appended after its own step
// has run and before the next step resolves its parameters.
func (c *ExecutionContext) Append(r StepResult) {
	c.StepResults = append(c.StepResults, r)
}

// ResultFor returns the StepResult with the given order, if already recorded.
func (c *ExecutionContext) ResultFor(order int) (StepResult, bool) {
	for _, r := range c.StepResults {
		if r.Order == order {
			return r, true
		}
	}
	return StepResult{}, false
}
