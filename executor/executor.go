// Package executor implements the step executor (C8): resolves a step's
// parameters, gates the call through the circuit breaker, drives retries and
// timeout, applies fallback, and records a StepResult.
//
// Grounded on orchestration.PlanExecutor.ExecuteStep (per-step timeout
// context, attempt loop, structured StepResult) generalized from "call an
// agent" to "call serviceName.functionName with resolved parameters",
// recomposed around resilience.Execute + breaker.Table instead of the
// teacher's inline retry loop.
package executor

import (
	"context"
	"time"

	"github.com/intentgw/gateway/breaker"
	"github.com/intentgw/gateway/collaborator"
	"github.com/intentgw/gateway/plan"
	"github.com/intentgw/gateway/resilience"
	"github.com/intentgw/gateway/resolver"
)

// Logger is the minimal logging surface the executor needs.
type Logger interface {
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Error(msg string, fields map[string]any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, map[string]any) {}
func (noopLogger) Info(string, map[string]any)  {}
func (noopLogger) Error(string, map[string]any) {}

// StepExecutor executes a single Step under resilience and breaker policy.
type StepExecutor struct {
	client   collaborator.ServiceClient
	breakers *breaker.Table
	policy   *resilience.Policy
	resolver *resolver.Resolver
	logger   Logger
}

// New builds a StepExecutor.
func New(client collaborator.ServiceClient, breakers *breaker.Table, policy *resilience.Policy, resolver *resolver.Resolver, logger Logger) *StepExecutor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &StepExecutor{client: client, breakers: breakers, policy: policy, resolver: resolver, logger: logger}
}

// breakerOpenErr is a synthetic marker for fail-fast errors so
// resilience.Classify still sees them as Transient without a real HTTP
// round trip.
type breakerOpenErr struct{ service string }

func (e *breakerOpenErr) Error() string { return "circuit breaker open for transient: " + e.service }

// Execute runs step against ec, using bearerToken for downstream token
// propagation (P8). It always returns a StepResult (I3) and never panics on
// downstream failure — failures are represented in the result per I2.
func (e *StepExecutor) Execute(ctx context.Context, step plan.Step, ec *plan.ExecutionContext, bearerToken string) plan.StepResult {
	start := time.Now()

	resolved := e.resolver.ResolveParameters(step.Parameters, ec)

	cfg := e.policy.ConfigFor(step.ServiceName)
	outcome := resilience.Execute(ctx, cfg, func(ctx context.Context) (plan.Value, *int, error) {
		if !e.breakers.Allow(step.ServiceName) {
			return nil, nil, &breakerOpenErr{service: step.ServiceName}
		}

		value, status, err := e.client.Call(ctx, step.ServiceName, step.FunctionName, resolved, bearerToken)
		if err != nil {
			e.breakers.RecordFailure(step.ServiceName)
			return value, status, err
		}
		e.breakers.RecordSuccess(step.ServiceName)
		return value, status, nil
	})

	duration := time.Since(start)

	if outcome.Err == nil {
		e.logger.Debug("step succeeded", map[string]any{"order": step.Order, "service": step.ServiceName, "retries": outcome.RetryCount})
		return plan.StepResult{
			Order:        step.Order,
			ServiceName:  step.ServiceName,
			FunctionName: step.FunctionName,
			Success:      true,
			Value:        outcome.Value,
			Duration:     duration,
			DurationMs:   duration.Milliseconds(),
			RetryCount:   outcome.RetryCount,
		}
	}

	stepErr := &plan.StepError{
		Message:       outcome.Err.Error(),
		Category:      outcome.Category,
		RetryAttempts: outcome.RetryCount,
		RetryHistory:  outcome.History,
		HTTPStatus:    outcome.HTTPStatus,
	}

	if step.HasFallback {
		stepErr.UsedFallback = true
		stepErr.FallbackValue = step.FallbackValue
		e.logger.Info("step failed, using fallback", map[string]any{"order": step.Order, "service": step.ServiceName, "error": outcome.Err.Error()})
		return plan.StepResult{
			Order:         step.Order,
			ServiceName:   step.ServiceName,
			FunctionName:  step.FunctionName,
			Success:       true,
			Value:         step.FallbackValue,
			Error:         stepErr,
			Duration:      duration,
			DurationMs:    duration.Milliseconds(),
			RetryCount:    outcome.RetryCount,
			UsedFallback:  true,
			ErrorCategory: outcome.Category,
		}
	}

	e.logger.Error("step failed", map[string]any{"order": step.Order, "service": step.ServiceName, "error": outcome.Err.Error(), "category": outcome.Category})
	return plan.StepResult{
		Order:         step.Order,
		ServiceName:   step.ServiceName,
		FunctionName:  step.FunctionName,
		Success:       false,
		Error:         stepErr,
		Duration:      duration,
		DurationMs:    duration.Milliseconds(),
		RetryCount:    outcome.RetryCount,
		ErrorCategory: outcome.Category,
	}
}

// RecoveryAction is derivable from (errorCategory, httpStatus, retryAttempts,
// remainingSteps) per spec §9 and should be computed, not stored.
type RecoveryAction string

const (
	RetryImmediate    RecoveryAction = "retry-immediate"
	RetryBackoff      RecoveryAction = "retry-backoff"
	RetryLongerTimeout RecoveryAction = "retry-longer-timeout"
	SkipWithFallback  RecoveryAction = "skip-with-fallback"
	Abort             RecoveryAction = "abort"
	BreakerOpenAction RecoveryAction = "breaker-open"
)

// RecommendedAction computes the recovery action a caller (e.g. an
// operational dashboard) would take for a given StepResult, without the
// executor itself needing to persist any such classification.
func RecommendedAction(result plan.StepResult, hasFallback bool, remainingSteps int) RecoveryAction {
	if result.Success {
		return ""
	}
	switch result.ErrorCategory {
	case plan.CategoryTransient:
		if hasFallback {
			return SkipWithFallback
		}
		if result.RetryCount == 0 {
			return RetryImmediate
		}
		return RetryBackoff
	case plan.CategoryPermanent:
		if hasFallback {
			return SkipWithFallback
		}
		return Abort
	default:
		if remainingSteps == 0 {
			return Abort
		}
		return RetryLongerTimeout
	}
}
