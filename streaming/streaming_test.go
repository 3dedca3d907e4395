package streaming

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/intentgw/gateway/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	p        *plan.Plan
	planErr  error
	results  map[int]plan.StepResult
}

func (s *stubRunner) ObtainPlan(ctx context.Context, principal plan.Principal, intent string) (*plan.Plan, error) {
	if s.planErr != nil {
		return nil, s.planErr
	}
	return s.p, nil
}

func (s *stubRunner) ExecuteStep(ctx context.Context, step plan.Step, ec *plan.ExecutionContext, bearerToken string) plan.StepResult {
	return s.results[step.Order]
}

func frames(body string) []map[string]any {
	var out []map[string]any
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")
		for _, line := range lines {
			if strings.HasPrefix(line, "data: ") {
				var m map[string]any
				_ = json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &m)
				out = append(out, m)
			}
		}
	}
	return out
}

func TestEmitSuccessSequence(t *testing.T) {
	p := &plan.Plan{ID: "p1", Intent: "hi", Steps: []plan.Step{
		{Order: 1, ServiceName: "Svc", FunctionName: "Fn"},
	}}
	runner := &stubRunner{p: p, results: map[int]plan.StepResult{
		1: {Order: 1, Success: true, Value: map[string]plan.Value{"ok": true}},
	}}

	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	err = Emit(context.Background(), sw, runner, plan.Principal{UserID: "u1"}, "hi", "tok", "corr-1")
	require.NoError(t, err)

	fs := frames(rec.Body.String())
	require.Len(t, fs, 5)
	assert.Equal(t, "execution_started", fs[0]["eventType"])
	assert.Equal(t, "plan_generated", fs[1]["eventType"])
	assert.Equal(t, "step_started", fs[2]["eventType"])
	assert.Equal(t, "step_completed", fs[3]["eventType"])
	assert.Equal(t, "execution_completed", fs[4]["eventType"])
	for _, f := range fs {
		assert.Equal(t, "corr-1", f["correlationId"])
		assert.NotEmpty(t, f["timestamp"])
	}
	assert.EqualValues(t, 0, fs[0]["stepOrder"])
	assert.EqualValues(t, 1, fs[2]["stepOrder"])
	assert.Equal(t, "Svc", fs[2]["serviceName"])
	assert.Equal(t, "Fn", fs[2]["functionName"])
	assert.EqualValues(t, 1, fs[3]["stepOrder"])
}

func TestEmitStepFailureEndsInExecutionFailed(t *testing.T) {
	p := &plan.Plan{ID: "p2", Intent: "hi", Steps: []plan.Step{
		{Order: 1, ServiceName: "Svc", FunctionName: "Fn"},
	}}
	runner := &stubRunner{p: p, results: map[int]plan.StepResult{
		1: {Order: 1, Success: false, Error: &plan.StepError{Message: "boom"}},
	}}

	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	err = Emit(context.Background(), sw, runner, plan.Principal{UserID: "u1"}, "hi", "tok", "corr-2")
	require.NoError(t, err)

	fs := frames(rec.Body.String())
	last := fs[len(fs)-1]
	assert.Equal(t, "execution_failed", last["eventType"])
}

func TestEmitCancellationSkipsExecutionCompleted(t *testing.T) {
	p := &plan.Plan{ID: "p3", Intent: "hi", Steps: []plan.Step{
		{Order: 1, ServiceName: "Svc", FunctionName: "Fn"},
	}}
	runner := &stubRunner{p: p, results: map[int]plan.StepResult{
		1: {Order: 1, Success: true},
	}}

	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = Emit(ctx, sw, runner, plan.Principal{UserID: "u1"}, "hi", "tok", "corr-3")
	require.NoError(t, err)

	fs := frames(rec.Body.String())
	for _, f := range fs {
		assert.NotEqual(t, "execution_completed", f["eventType"])
	}
	last := fs[len(fs)-1]
	assert.Equal(t, "execution_failed", last["eventType"])
	data, ok := last["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Canceled", data["errorType"])
}

func TestEmitPlannerErrorShortCircuits(t *testing.T) {
	runner := &stubRunner{planErr: assert.AnError}
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	require.NoError(t, err)

	err = Emit(context.Background(), sw, runner, plan.Principal{UserID: "u1"}, "hi", "tok", "corr-4")
	require.NoError(t, err)

	fs := frames(rec.Body.String())
	require.Len(t, fs, 2)
	assert.Equal(t, "execution_started", fs[0]["eventType"])
	assert.Equal(t, "execution_failed", fs[1]["eventType"])
}
