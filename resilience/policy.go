// Package resilience composes the per-service retry/backoff/timeout policy
// (C6) with the error classifier (§4.4). Grounded on resilience.Retry /
// RetryWithCircuitBreaker from the teacher repo, adapted to the spec's exact
// wait formula and per-service override table instead of the teacher's
// exponential-with-jitter default.
package resilience

import (
	"context"
	"time"

	"github.com/intentgw/gateway/plan"
)

// Config is one service's retry/timeout parameters (§4.3 defaults:
// maxRetries=3, backoffMs=100, timeout=30s).
type Config struct {
	MaxRetries int
	BackoffMs  int
	Timeout    time.Duration
}

// DefaultConfig returns the spec's global defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BackoffMs: 100, Timeout: 30 * time.Second}
}

// Policy resolves a Config per service, falling back to a default.
type Policy struct {
	deflt      Config
	perService map[string]Config
}

// NewPolicy builds a Policy. perService may be nil.
func NewPolicy(deflt Config, perService map[string]Config) *Policy {
	if perService == nil {
		perService = map[string]Config{}
	}
	return &Policy{deflt: deflt, perService: perService}
}

// ConfigFor returns the effective config for a service.
func (p *Policy) ConfigFor(service string) Config {
	if cfg, ok := p.perService[service]; ok {
		return cfg
	}
	return p.deflt
}

// SetServiceConfig overrides the config for one service.
func (p *Policy) SetServiceConfig(service string, cfg Config) {
	p.perService[service] = cfg
}

// Call is the downstream invocation shape Execute drives: it returns a
// Value, the HTTP status it observed (nil if none), and an error.
type Call func(ctx context.Context) (plan.Value, *int, error)

// Outcome is the result of driving a Call through retries and timeout.
type Outcome struct {
	Value      plan.Value
	Err        error
	Category   plan.ErrorCategory
	HTTPStatus *int
	RetryCount int
	History    []plan.RetryAttempt
}

// Execute runs call under cfg's timeout, retrying on Transient failures per
// the spec's backoff formula: wait before attempt k (1-indexed retry) is
// backoffMs × 2^k milliseconds; the initial attempt has no wait. Retries
// stop as soon as the last error classifies as non-Transient, or the
// timeout/cancellation fires.
func Execute(ctx context.Context, cfg Config, call Call) Outcome {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var out Outcome
	maxAttempts := cfg.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			out.Err = deadlineErr(ctx)
			out.Category = plan.CategoryTransient
			out.RetryCount = attempt - 1
			return out
		default:
		}

		value, status, err := call(ctx)
		out.Value = value
		out.Err = err
		out.HTTPStatus = status

		if err == nil {
			out.Category = ""
			out.RetryCount = attempt - 1
			return out
		}

		out.Category = Classify(err, status)
		out.RetryCount = attempt - 1

		if out.Category != plan.CategoryTransient || attempt == maxAttempts {
			return out
		}

		wait := time.Duration(cfg.BackoffMs) * time.Duration(1<<uint(attempt)) * time.Millisecond
		out.History = append(out.History, plan.RetryAttempt{
			AttemptNumber:   attempt,
			Timestamp:       time.Now(),
			ErrorMessage:    err.Error(),
			WaitBeforeRetry: wait,
			HTTPStatus:      status,
		})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			out.Err = deadlineErr(ctx)
			out.Category = plan.CategoryTransient
			return out
		case <-timer.C:
		}
	}

	return out
}

func deadlineErr(ctx context.Context) error {
	return context.Cause(ctx)
}
