// Package collaborator declares the external collaborator contracts the
// orchestration core depends on but does not implement: the natural
// language planner, downstream service clients, the token verifier, and the
// optional distributed quota store (spec §6).
//
// Grounded on the teacher's own pattern of small capability interfaces
// (core.AIClient, communication.AgentCommunicator, core.Discovery) that
// concrete packages elsewhere in the tree implement.
package collaborator

import (
	"context"

	"github.com/intentgw/gateway/plan"
)

// Planner produces a Plan for an intent. Implementations may be
// model-backed (bedrockplanner) or rule-based (staticplanner); either must
// satisfy I1 (gap-free 1..N step ordering).
type Planner interface {
	Plan(ctx context.Context, intent string, principal plan.Principal) (*plan.Plan, error)
}

// ServiceClient invokes one operation on a named downstream service,
// forwarding the caller's bearer token unchanged (token propagation, §6/P8).
// Implementations should return an error whose HTTPStatus (if any) lets
// resilience.Classify categorize it.
type ServiceClient interface {
	Call(ctx context.Context, serviceName, functionName string, params map[string]plan.Value, bearerToken string) (plan.Value, *int, error)
}

// TokenVerifier validates a bearer credential and yields a Principal.
// Claim precedence for userId is standard subject -> "sub" -> "oid".
type TokenVerifier interface {
	Verify(ctx context.Context, bearerToken string) (plan.Principal, error)
}

// QuotaStore is the optional distributed backend for quota tracking (§6).
// IncrementAndCheck atomically increments the caller's usage and reports
// whether the daily limit is still satisfied.
type QuotaStore interface {
	IncrementAndCheck(ctx context.Context, userID string, dailyLimit int) (allowed bool, used int, resetAt int64, err error)
	Get(ctx context.Context, userID string) (used int, resetAt int64, err error)
	Reset(ctx context.Context, userID string) error
}
