package admission

import (
	"context"
	"time"

	"github.com/intentgw/gateway/collaborator"
	"github.com/intentgw/gateway/gwerrors"
	"github.com/intentgw/gateway/plan"
)

// Kind names the reason an admission check refused a request. Distinct
// from gwerrors.Kind so this package has no compile-time dependency on the
// HTTP-status mapping, but the values line up one-to-one (see ToError).
type Kind string

const (
	KindInvalid            Kind = "Invalid"
	KindUnauthorized       Kind = "Unauthorized"
	KindPromptInjection    Kind = "PromptInjectionDetected"
	KindSensitiveOperation Kind = "SensitiveOperationDetected"
	KindRateLimitExceeded  Kind = "RateLimitExceeded"
)

// Decision is the outcome of running the admission pipeline: either Allow
// (principal is populated, proceed to orchestration) or a refusal carrying
// Kind/Reason/RetryAfter.
type Decision struct {
	Allowed    bool
	Principal  plan.Principal
	Kind       Kind
	Reason     string
	RetryAfter int // seconds; only meaningful for KindRateLimitExceeded

	// Quota state, populated whenever the quota check ran (i.e. the request
	// passed token verification and the guardrail). Limit/Remaining/ResetAt
	// back the X-RateLimit-* response headers (§6); Remaining is 0 once the
	// daily quota is exhausted.
	QuotaChecked bool
	Limit        int
	Remaining    int
	ResetAt      int64 // unix seconds
}

// ToError converts a refusal into the *gwerrors.Error the HTTP layer maps
// to a status code and response body.
func (d Decision) ToError() *gwerrors.Error {
	var kind gwerrors.Kind
	switch d.Kind {
	case KindInvalid:
		kind = gwerrors.Invalid
	case KindUnauthorized:
		kind = gwerrors.Unauthorized
	case KindPromptInjection:
		kind = gwerrors.PromptInjectionDetected
	case KindSensitiveOperation:
		kind = gwerrors.SensitiveOperation
	case KindRateLimitExceeded:
		kind = gwerrors.RateLimitExceeded
	default:
		kind = gwerrors.Internal
	}
	err := gwerrors.New(kind, d.Reason)
	err.RetryAfter = d.RetryAfter
	return err
}

// Pipeline composes C1 -> C2 -> C3 in the order §4.8 requires.
type Pipeline struct {
	verifier   collaborator.TokenVerifier
	guardrail  *Guardrail
	quota      collaborator.QuotaStore
	dailyLimit int
}

// New builds a Pipeline. dailyLimit is the per-user daily quota ceiling
// passed to the QuotaStore on every check.
func New(verifier collaborator.TokenVerifier, guardrail *Guardrail, quota collaborator.QuotaStore, dailyLimit int) *Pipeline {
	return &Pipeline{verifier: verifier, guardrail: guardrail, quota: quota, dailyLimit: dailyLimit}
}

// Admit runs the full admission sequence for one incoming intent.
func (p *Pipeline) Admit(ctx context.Context, bearerToken, intent string) Decision {
	principal, err := p.verifier.Verify(ctx, bearerToken)
	if err != nil {
		return Decision{Kind: KindUnauthorized, Reason: err.Error()}
	}

	if kind := p.guardrail.Check(intent, principal.UserID); kind != "" {
		return Decision{Kind: kind, Reason: guardrailReason(kind)}
	}

	allowed, used, resetAt, err := p.quota.IncrementAndCheck(ctx, principal.UserID, p.dailyLimit)
	if err != nil {
		return Decision{Kind: KindRateLimitExceeded, Reason: "quota check failed: " + err.Error(), RetryAfter: 1}
	}

	remaining := p.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}

	if !allowed {
		retryAfter := int(resetAt - time.Now().Unix())
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Decision{
			Kind: KindRateLimitExceeded, Reason: "daily quota exceeded", RetryAfter: retryAfter,
			QuotaChecked: true, Limit: p.dailyLimit, Remaining: remaining, ResetAt: resetAt,
		}
	}

	return Decision{
		Allowed: true, Principal: principal,
		QuotaChecked: true, Limit: p.dailyLimit, Remaining: remaining, ResetAt: resetAt,
	}
}

func guardrailReason(kind Kind) string {
	switch kind {
	case KindInvalid:
		return "intent and userId must be non-empty"
	case KindPromptInjection:
		return "intent matched a prompt-injection pattern"
	case KindSensitiveOperation:
		return "intent names a restricted operation"
	default:
		return "admission refused"
	}
}
