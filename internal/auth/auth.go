// Package auth implements the AuthGate component: RS256 bearer-token
// verification against one configured public key and audience, scope
// extraction, and per-endpoint scope enforcement.
package auth

import "context"

// Scopes recognised by this service (spec section 4.3).
const (
	ScopeStrategicCoordination = "utm.strategic_coordination"
	ScopeConstraintConsumption = "utm.constraint_consumption"
)

// Identity is what AuthGate attaches to a request after it decodes and
// verifies the bearer token: {client_id, scopes, issuer}.
type Identity struct {
	ClientID string
	Scopes   []string
	Issuer   string
}

// HasScope reports whether the identity was granted the given scope.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasAnyScope reports whether the identity holds at least one of the given
// scopes.
func (id *Identity) HasAnyScope(scopes ...string) bool {
	for _, scope := range scopes {
		if id.HasScope(scope) {
			return true
		}
	}
	return false
}

type ctxKey struct{}

// NewContext attaches id to ctx.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext extracts the Identity attached by AuthGate. Returns nil if the
// request was never authenticated.
func FromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(ctxKey{}).(*Identity)
	return id
}
