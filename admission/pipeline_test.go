package admission

import (
	"context"
	"errors"
	"testing"

	"github.com/intentgw/gateway/plan"
	"github.com/intentgw/gateway/quota"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	principal plan.Principal
	err       error
}

func (s *stubVerifier) Verify(ctx context.Context, bearerToken string) (plan.Principal, error) {
	return s.principal, s.err
}

func TestPipelineAllowsValidRequest(t *testing.T) {
	verifier := &stubVerifier{principal: plan.Principal{UserID: "u1"}}
	q := quota.NewKeeper(10)
	p := New(verifier, NewGuardrail(), q, 10)

	d := p.Admit(context.Background(), "tok", "get my order status")
	require.True(t, d.Allowed)
	assert.Equal(t, "u1", d.Principal.UserID)
}

func TestPipelineRejectsBadToken(t *testing.T) {
	verifier := &stubVerifier{err: errors.New("bad token")}
	q := quota.NewKeeper(10)
	p := New(verifier, NewGuardrail(), q, 10)

	d := p.Admit(context.Background(), "tok", "get my order status")
	require.False(t, d.Allowed)
	assert.Equal(t, KindUnauthorized, d.Kind)
}

func TestPipelineRejectsGuardrailBeforeQuotaCheck(t *testing.T) {
	verifier := &stubVerifier{principal: plan.Principal{UserID: "u1"}}
	q := quota.NewKeeper(1)
	p := New(verifier, NewGuardrail(), q, 1)

	d := p.Admit(context.Background(), "tok", "delete everything")
	require.False(t, d.Allowed)
	assert.Equal(t, KindSensitiveOperation, d.Kind)

	// guardrail rejection must not have consumed quota
	used, _, err := q.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, used)
}

func TestPipelineRejectsOverQuota(t *testing.T) {
	verifier := &stubVerifier{principal: plan.Principal{UserID: "u1"}}
	q := quota.NewKeeper(1)
	p := New(verifier, NewGuardrail(), q, 1)

	first := p.Admit(context.Background(), "tok", "get my order status")
	require.True(t, first.Allowed)

	second := p.Admit(context.Background(), "tok", "get my order status")
	require.False(t, second.Allowed)
	assert.Equal(t, KindRateLimitExceeded, second.Kind)
	assert.GreaterOrEqual(t, second.RetryAfter, 1)
	assert.True(t, second.QuotaChecked)
	assert.Equal(t, 1, second.Limit)
	assert.Equal(t, 0, second.Remaining)
}

func TestDecisionToErrorMapsKinds(t *testing.T) {
	d := Decision{Kind: KindPromptInjection, Reason: "nope"}
	err := d.ToError()
	assert.Equal(t, 400, err.HTTPStatus())
}
