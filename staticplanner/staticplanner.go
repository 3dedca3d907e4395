// Package staticplanner implements collaborator.Planner with a fixed,
// rule-based single step, the zero-config default Planner (§9 design
// decision) — no model credentials required.
//
// Grounded on the reference implementation's own stub planner: a
// placeholder collaborator good enough to exercise the orchestration core
// end to end before a real Planner is wired in.
package staticplanner

import (
	"context"

	"github.com/google/uuid"

	"github.com/intentgw/gateway/plan"
)

// Single is a Planner that always returns a one-step plan calling a fixed
// service/function with two parameters, "intent" and "userId", set to the
// ${intent} and ${userId} references. It exists so
// the gateway can run without a model-backed Planner configured.
type Single struct {
	ServiceName  string
	FunctionName string
}

// New builds a Single planner targeting serviceName.functionName.
func New(serviceName, functionName string) *Single {
	return &Single{ServiceName: serviceName, FunctionName: functionName}
}

// Plan returns a single-step plan that forwards the intent verbatim.
func (s *Single) Plan(ctx context.Context, intent string, principal plan.Principal) (*plan.Plan, error) {
	p := &plan.Plan{
		ID:     uuid.NewString(),
		Intent: intent,
		Steps: []plan.Step{
			{
				Order:        1,
				ServiceName:  s.ServiceName,
				FunctionName: s.FunctionName,
				Parameters:   map[string]plan.Value{"intent": "${intent}", "userId": "${userId}"},
			},
		},
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
