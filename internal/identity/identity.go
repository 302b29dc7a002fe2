// Package identity is the identity provider boundary: it validates bearer
// tokens and places the stable owner id in the request context. Absence of
// an owner id means no state may be loaded or persisted — handlers reject
// such requests with 401 before touching any store.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that are malformed, expired,
// signed with the wrong key, or missing a subject.
var ErrInvalidToken = errors.New("invalid token")

type ctxKey struct{}

// OwnerID extracts the authenticated owner id from ctx.
func OwnerID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// WithOwnerID returns a context carrying ownerID. Exported for tests that
// exercise handlers without the middleware.
func WithOwnerID(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, ownerID)
}

// Provider validates and issues HS256 tokens whose subject is the owner id.
type Provider struct {
	secret []byte
}

// NewProvider returns a Provider using secret for HMAC signing.
func NewProvider(secret []byte) *Provider {
	return &Provider{secret: secret}
}

// NewToken issues a token for ownerID, valid for ttl. Used by the sync CLI
// and by tests; the production login flow lives outside this module.
func (p *Provider) NewToken(ownerID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   ownerID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("identity.Provider.NewToken: %w", err)
	}
	return signed, nil
}

// Validate checks the token signature and expiry and returns the owner id.
func (p *Provider) Validate(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("identity.Provider.Validate: %w", ErrInvalidToken)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", fmt.Errorf("identity.Provider.Validate: %w", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Middleware authenticates requests via the Authorization bearer header and
// stores the owner id in the request context. Requests without a valid
// token receive 401 with an empty body.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || raw == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		ownerID, err := p.Validate(raw)
		if err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithOwnerID(r.Context(), ownerID)))
	})
}
