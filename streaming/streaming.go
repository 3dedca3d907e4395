// Package streaming implements C10: the Server-Sent Events adapter that
// turns an orchestration run into an ordered sequence of typed events.
//
// Grounded on core's middleware responseWriter/Flush pattern (wrapping
// http.ResponseWriter, flushing after every write) generalized from
// line-delimited logging to SSE framing.
package streaming

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/intentgw/gateway/plan"
)

// EventType enumerates the recognized SSE event names (§4.9).
type EventType string

const (
	EventExecutionStarted EventType = "execution_started"
	EventPlanGenerated    EventType = "plan_generated"
	EventStepStarted      EventType = "step_started"
	EventStepProgress     EventType = "step_progress"
	EventStepCompleted    EventType = "step_completed"
	EventStepFailed       EventType = "step_failed"
	EventExecutionDone    EventType = "execution_completed"
	EventExecutionFailed  EventType = "execution_failed"
)

// Event is one SSE message (§4.9). StepOrder is 0 for execution-level events
// (execution_started, plan_generated, execution_completed, execution_failed)
// and the 1-indexed step order for step-level events. ServiceName/
// FunctionName are only populated for step-level events; DurationMs is set
// on step_completed/step_failed and on the terminal execution event.
type Event struct {
	EventType     EventType  `json:"eventType"`
	StepOrder     int        `json:"stepOrder"`
	ServiceName   string     `json:"serviceName,omitempty"`
	FunctionName  string     `json:"functionName,omitempty"`
	Data          plan.Value `json:"data,omitempty"`
	Timestamp     string     `json:"timestamp"`
	DurationMs    int64      `json:"durationMs,omitempty"`
	CorrelationID string     `json:"correlationId"`
}

// Writer frames Events as SSE over an http.ResponseWriter, flushing after
// every event so the client sees it without buffering delay.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	bw      *bufio.Writer
}

// NewWriter sets the SSE response headers and returns a Writer. It returns
// an error if w does not support flushing (required for streaming).
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming: response writer does not support flushing")
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	return &Writer{w: w, flusher: flusher, bw: bufio.NewWriter(w)}, nil
}

// Send writes one event frame and flushes immediately.
func (sw *Writer) Send(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(sw.bw, "event: %s\ndata: %s\n\n", ev.EventType, payload); err != nil {
		return err
	}
	if err := sw.bw.Flush(); err != nil {
		return err
	}
	sw.flusher.Flush()
	return nil
}

// StepRunner is the subset of the orchestrator the streaming adapter
// drives, decoupled from its concrete type so tests can substitute a stub.
type StepRunner interface {
	ObtainPlan(ctx context.Context, principal plan.Principal, intent string) (*plan.Plan, error)
	ExecuteStep(ctx context.Context, step plan.Step, ec *plan.ExecutionContext, bearerToken string) plan.StepResult
}

// Emit drives runner through intent and writes the full event sequence to
// sw, in strict order (§4.9): execution_started, plan_generated, then per
// step started/completed|failed, then execution_completed|failed. If ctx is
// canceled mid-run, execution_completed is never sent; an execution_failed
// with a Canceled category is sent instead, best-effort.
func Emit(ctx context.Context, sw *Writer, runner StepRunner, principal plan.Principal, intent, bearerToken, correlationID string) error {
	start := time.Now()
	now := func() string { return time.Now().UTC().Format(time.RFC3339Nano) }

	if err := sw.Send(Event{
		EventType: EventExecutionStarted, CorrelationID: correlationID, Timestamp: now(),
		Data: map[string]plan.Value{"intent": intent},
	}); err != nil {
		return err
	}

	p, err := runner.ObtainPlan(ctx, principal, intent)
	if err != nil {
		return sw.Send(Event{
			EventType: EventExecutionFailed, CorrelationID: correlationID, Timestamp: now(),
			DurationMs: time.Since(start).Milliseconds(), Data: map[string]plan.Value{"error": err.Error()},
		})
	}
	if err := sw.Send(Event{
		EventType: EventPlanGenerated, CorrelationID: correlationID, Timestamp: now(),
		Data: map[string]plan.Value{"planId": p.ID, "steps": len(p.Steps)},
	}); err != nil {
		return err
	}

	ec := plan.NewExecutionContext(principal.UserID, intent)
	overallSuccess := true

	for _, step := range p.Steps {
		if ctx.Err() != nil {
			return sw.Send(Event{
				EventType: EventExecutionFailed, CorrelationID: correlationID, Timestamp: now(),
				DurationMs: time.Since(start).Milliseconds(),
				Data:       map[string]plan.Value{"error": "canceled", "errorType": "Canceled"},
			})
		}

		if err := sw.Send(Event{
			EventType: EventStepStarted, StepOrder: step.Order,
			ServiceName: step.ServiceName, FunctionName: step.FunctionName,
			CorrelationID: correlationID, Timestamp: now(),
		}); err != nil {
			return err
		}

		stepStart := time.Now()
		result := runner.ExecuteStep(ctx, step, ec, bearerToken)
		ec.Append(result)
		stepDuration := time.Since(stepStart).Milliseconds()

		if result.Success {
			if err := sw.Send(Event{
				EventType: EventStepCompleted, StepOrder: result.Order,
				ServiceName: result.ServiceName, FunctionName: result.FunctionName,
				CorrelationID: correlationID, Timestamp: now(), DurationMs: stepDuration,
				Data: map[string]plan.Value{"value": result.Value},
			}); err != nil {
				return err
			}
		} else {
			overallSuccess = false
			errMsg := ""
			if result.Error != nil {
				errMsg = result.Error.Message
			}
			if err := sw.Send(Event{
				EventType: EventStepFailed, StepOrder: result.Order,
				ServiceName: result.ServiceName, FunctionName: result.FunctionName,
				CorrelationID: correlationID, Timestamp: now(), DurationMs: stepDuration,
				Data: map[string]plan.Value{"error": errMsg},
			}); err != nil {
				return err
			}
		}
	}

	if ctx.Err() != nil {
		return sw.Send(Event{
			EventType: EventExecutionFailed, CorrelationID: correlationID, Timestamp: now(),
			DurationMs: time.Since(start).Milliseconds(),
			Data:       map[string]plan.Value{"error": "canceled", "errorType": "Canceled"},
		})
	}

	totalMs := time.Since(start).Milliseconds()
	if overallSuccess {
		return sw.Send(Event{
			EventType: EventExecutionDone, CorrelationID: correlationID, Timestamp: now(), DurationMs: totalMs,
		})
	}
	return sw.Send(Event{
		EventType: EventExecutionFailed, CorrelationID: correlationID, Timestamp: now(), DurationMs: totalMs,
		Data: map[string]plan.Value{"error": "one or more steps failed"},
	})
}
