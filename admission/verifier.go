// Package admission implements C1 (token verification), C2 (guardrail), and
// C12 (the composed admission pipeline gating every execution).
package admission

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/intentgw/gateway/gwerrors"
	"github.com/intentgw/gateway/plan"
)

// StaticVerifier verifies a bearer token as a compact, HMAC-signed claim set
// (header.payload.signature, base64url segments) using a single shared
// secret. It is the zero-config default token verifier; production
// deployments normally substitute a proper OIDC/JWT verifier implementing
// the same collaborator.TokenVerifier interface.
type StaticVerifier struct {
	secret []byte
}

// NewStaticVerifier builds a StaticVerifier keyed on secret.
func NewStaticVerifier(secret string) *StaticVerifier {
	return &StaticVerifier{secret: []byte(secret)}
}

type staticClaims struct {
	Sub   string   `json:"sub"`
	OID   string   `json:"oid"`
	Roles []string `json:"roles"`
}

// Verify checks bearerToken's signature and extracts a Principal. Claim
// precedence for the user identifier is "sub" then "oid" (§6).
func (v *StaticVerifier) Verify(ctx context.Context, bearerToken string) (plan.Principal, error) {
	token := strings.TrimPrefix(bearerToken, "Bearer ")
	if token == "" {
		return plan.Principal{}, gwerrors.New(gwerrors.Unauthorized, "missing bearer token")
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return plan.Principal{}, gwerrors.New(gwerrors.Unauthorized, "malformed bearer token")
	}

	payload, sig := parts[1], parts[2]
	expected := v.sign(parts[0] + "." + payload)
	if !hmac.Equal([]byte(sig), []byte(expected)) {
		return plan.Principal{}, gwerrors.New(gwerrors.Unauthorized, "invalid token signature")
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return plan.Principal{}, gwerrors.Wrap(gwerrors.Unauthorized, "invalid token payload", err)
	}
	var claims staticClaims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return plan.Principal{}, gwerrors.Wrap(gwerrors.Unauthorized, "invalid token claims", err)
	}

	userID := claims.Sub
	if userID == "" {
		userID = claims.OID
	}
	if userID == "" {
		return plan.Principal{}, gwerrors.New(gwerrors.Unauthorized, "token has no subject")
	}

	return plan.Principal{UserID: userID, Roles: claims.Roles}, nil
}

func (v *StaticVerifier) sign(data string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(data))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
