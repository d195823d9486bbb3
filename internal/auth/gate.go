package auth

import (
	"crypto/rsa"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BenjaminPelletier/dss/internal/dsserr"
)

// Gate validates bearer access tokens against one configured RS256 public
// key and audience, per spec section 4.3. The node holds exactly one key and
// one audience for the lifetime of the process; there is no discovery and no
// key rotation.
type Gate struct {
	publicKey *rsa.PublicKey
	audience  string
}

// NewGate parses publicKeyPEM (whitespace-tolerant) and stores audience. An
// empty key or audience is a configuration error, surfaced at Authenticate
// time as ServerMisconfigured rather than at startup, mirroring the
// original's per-request configuration check.
func NewGate(publicKeyPEM, audience string) (*Gate, error) {
	g := &Gate{audience: strings.TrimSpace(audience)}
	pem := strings.TrimSpace(publicKeyPEM)
	if pem == "" {
		return g, nil
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pem))
	if err != nil {
		return nil, err
	}
	g.publicKey = key
	return g, nil
}

// claims is the subset of registered and custom JWT claims AuthGate reads.
type claims struct {
	jwt.RegisteredClaims
	Scope    string `json:"scope"`
	ClientID string `json:"client_id"`
}

// Authenticate extracts, decodes, and verifies the bearer token carried by
// the Authorization header, returning the resulting Identity. It decodes the
// token at most once; callers must not call Authenticate twice for the same
// request.
func (g *Gate) Authenticate(authorizationHeader string) (*Identity, error) {
	if g.publicKey == nil {
		return nil, dsserr.ServerMisconfiguredf("public key for access tokens is not configured on server")
	}
	if g.audience == "" {
		return nil, dsserr.ServerMisconfiguredf("audience for access tokens is not configured on server")
	}
	if authorizationHeader == "" {
		return nil, dsserr.Unauthenticatedf("missing Authorization header")
	}

	raw := strings.TrimPrefix(authorizationHeader, "Bearer ")
	raw = strings.TrimSpace(raw)

	var parsed claims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(t *jwt.Token) (any, error) {
		return g.publicKey, nil
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(g.audience),
	)
	if err != nil {
		return nil, authError(err)
	}

	if parsed.Scope == "" {
		return nil, dsserr.Unauthenticatedf("token missing scope claim")
	}

	clientID := parsed.ClientID
	if clientID == "" {
		clientID = parsed.Subject
	}

	return &Identity{
		ClientID: clientID,
		Scopes:   strings.Split(parsed.Scope, " "),
		Issuer:   parsed.Issuer,
	}, nil
}

// authError translates a jwt parse/verify error into the exact message
// family the original authorization module raises, so client-visible
// behavior matches across the port.
func authError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return dsserr.Unauthenticatedf("access token is immature")
	case errors.Is(err, jwt.ErrTokenExpired):
		return dsserr.Unauthenticatedf("access token has expired")
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return dsserr.Unauthenticatedf("access token signature is invalid")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return dsserr.Unauthenticatedf("access token cannot be decoded")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return dsserr.Unauthenticatedf("access token audience is invalid")
	default:
		return dsserr.Unauthenticatedf("access token cannot be decoded")
	}
}

// RequireScope checks that id holds at least one of the permitted scopes.
func RequireScope(id *Identity, permitted ...string) error {
	if id == nil {
		return dsserr.Unauthenticatedf("no authenticated identity")
	}
	if !id.HasAnyScope(permitted...) {
		return dsserr.Forbiddenf("requires one of scopes %v, has %v", permitted, id.Scopes)
	}
	return nil
}
