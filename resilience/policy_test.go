package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/intentgw/gateway/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteSucceedsFirstTry(t *testing.T) {
	out := Execute(context.Background(), DefaultConfig(), func(ctx context.Context) (plan.Value, *int, error) {
		return "ok", nil, nil
	})
	require.NoError(t, out.Err)
	assert.Equal(t, "ok", out.Value)
	assert.Equal(t, 0, out.RetryCount)
}

func TestExecuteRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 3, BackoffMs: 1, Timeout: time.Second}
	out := Execute(context.Background(), cfg, func(ctx context.Context) (plan.Value, *int, error) {
		calls++
		if calls < 3 {
			return nil, nil, errors.New("timeout talking to service")
		}
		return map[string]any{"ok": true}, nil, nil
	})
	require.NoError(t, out.Err)
	assert.Equal(t, 2, out.RetryCount)
	assert.Len(t, out.History, 2)
}

func TestExecutePermanentShortCircuits(t *testing.T) {
	calls := 0
	cfg := Config{MaxRetries: 3, BackoffMs: 1, Timeout: time.Second}
	out := Execute(context.Background(), cfg, func(ctx context.Context) (plan.Value, *int, error) {
		calls++
		return nil, nil, errors.New("unauthorized access")
	})
	assert.Error(t, out.Err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, plan.CategoryPermanent, out.Category)
}

func TestExecuteExhaustsRetries(t *testing.T) {
	cfg := Config{MaxRetries: 2, BackoffMs: 1, Timeout: time.Second}
	out := Execute(context.Background(), cfg, func(ctx context.Context) (plan.Value, *int, error) {
		return nil, nil, errors.New("connection refused")
	})
	assert.Error(t, out.Err)
	assert.Equal(t, 2, out.RetryCount)
	assert.Len(t, out.History, 2)
}

func TestExecuteHonorsTimeout(t *testing.T) {
	cfg := Config{MaxRetries: 5, BackoffMs: 50, Timeout: 30 * time.Millisecond}
	out := Execute(context.Background(), cfg, func(ctx context.Context) (plan.Value, *int, error) {
		return nil, nil, errors.New("temporary glitch")
	})
	assert.Error(t, out.Err)
	assert.Equal(t, plan.CategoryTransient, out.Category)
}

func TestClassify(t *testing.T) {
	status408 := 408
	status404 := 404
	assert.Equal(t, plan.CategoryTransient, Classify(errors.New("request timeout"), nil))
	assert.Equal(t, plan.CategoryPermanent, Classify(errors.New("invalid input"), nil))
	assert.Equal(t, plan.CategoryUnknown, Classify(errors.New("something odd"), nil))
	assert.Equal(t, plan.CategoryTransient, Classify(errors.New("x"), &status408))
	assert.Equal(t, plan.CategoryPermanent, Classify(errors.New("x"), &status404))
}
