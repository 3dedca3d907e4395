package staticplanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/intentgw/gateway/plan"
)

func TestPlanReturnsSingleStepForwardingIntent(t *testing.T) {
	s := New("GreetingService", "Respond")

	p, err := s.Plan(context.Background(), "say hello", plan.Principal{UserID: "u1"})
	require.NoError(t, err)

	require.Len(t, p.Steps, 1)
	step := p.Steps[0]
	assert.Equal(t, 1, step.Order)
	assert.Equal(t, "GreetingService", step.ServiceName)
	assert.Equal(t, "Respond", step.FunctionName)
	assert.Equal(t, "${intent}", step.Parameters["intent"])
	assert.Equal(t, "${userId}", step.Parameters["userId"])
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "say hello", p.Intent)
}

func TestPlanIsValid(t *testing.T) {
	s := New("Svc", "Fn")
	p, err := s.Plan(context.Background(), "anything", plan.Principal{UserID: "u1"})
	require.NoError(t, err)
	assert.NoError(t, p.Validate())
}
