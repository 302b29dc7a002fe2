package identity_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpetrov/slotplan/internal/identity"
)

func TestProvider_TokenRoundTrip(t *testing.T) {
	p := identity.NewProvider([]byte("test-secret"))

	token, err := p.NewToken("owner-1", time.Hour)
	require.NoError(t, err)

	owner, err := p.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "owner-1", owner)
}

func TestProvider_Validate_WrongSecret(t *testing.T) {
	issuer := identity.NewProvider([]byte("secret-a"))
	verifier := identity.NewProvider([]byte("secret-b"))

	token, err := issuer.NewToken("owner-1", time.Hour)
	require.NoError(t, err)

	_, err = verifier.Validate(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestProvider_Validate_Expired(t *testing.T) {
	p := identity.NewProvider([]byte("test-secret"))

	token, err := p.NewToken("owner-1", -time.Minute)
	require.NoError(t, err)

	_, err = p.Validate(token)
	assert.ErrorIs(t, err, identity.ErrInvalidToken)
}

func TestMiddleware_InjectsOwnerID(t *testing.T) {
	p := identity.NewProvider([]byte("test-secret"))
	token, err := p.NewToken("owner-1", time.Hour)
	require.NoError(t, err)

	var gotOwner string
	h := p.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner, _ = identity.OwnerID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "owner-1", gotOwner)
}

// TestMiddleware_MissingToken verifies that without an owner identity no
// request reaches the handler — no state may be loaded or persisted.
func TestMiddleware_MissingToken(t *testing.T) {
	p := identity.NewProvider([]byte("test-secret"))
	called := false
	h := p.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestMiddleware_MalformedToken(t *testing.T) {
	p := identity.NewProvider([]byte("test-secret"))
	h := p.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
