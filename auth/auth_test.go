package auth_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/donor-crm/auth"
	"github.com/warp/donor-crm/crm"
	"github.com/warp/donor-crm/logging"
	"github.com/warp/donor-crm/store/sqlstore"
	"golang.org/x/crypto/bcrypt"
)

var secret = []byte("test-secret-0123456789")

func i64(n int64) *int64 { return &n }

// =============================================================================
// PASSWORDS & TOKENS
// =============================================================================

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := auth.HashPassword("secret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("secret", hash))
	assert.False(t, auth.CheckPassword("wrong", hash))
}

func TestJWT_RoundTrip(t *testing.T) {
	user := crm.User{ID: 7, Email: "a@example.com", Role: crm.RoleAdmin, LocationID: i64(3)}

	token, expires, err := auth.GenerateJWT(user, secret, time.Hour)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	claims, err := auth.ValidateJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.NotEmpty(t, claims.ID, "jti is set")

	id := claims.Identity()
	assert.Equal(t, crm.RoleAdmin, id.Role)
	assert.Equal(t, int64(3), *id.LocationID)
}

func TestJWT_UniqueIDs(t *testing.T) {
	user := crm.User{ID: 7, Role: crm.RoleUser}
	a, _, err := auth.GenerateJWT(user, secret, time.Hour)
	require.NoError(t, err)
	b, _, err := auth.GenerateJWT(user, secret, time.Hour)
	require.NoError(t, err)

	ca, err := auth.ValidateJWT(a, secret)
	require.NoError(t, err)
	cb, err := auth.ValidateJWT(b, secret)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestJWT_Rejects(t *testing.T) {
	user := crm.User{ID: 7, Role: crm.RoleUser}

	expired, _, err := auth.GenerateJWT(user, secret, -time.Minute)
	require.NoError(t, err)
	_, err = auth.ValidateJWT(expired, secret)
	assert.ErrorIs(t, err, auth.ErrExpiredJWT)

	valid, _, err := auth.GenerateJWT(user, secret, time.Hour)
	require.NoError(t, err)
	_, err = auth.ValidateJWT(valid, []byte("another-secret"))
	assert.ErrorIs(t, err, auth.ErrInvalidJWT)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.Claims{UserID: 7, Role: "super_admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.ValidateJWT(unsigned, secret)
	assert.ErrorIs(t, err, auth.ErrInvalidJWT)

	_, err = auth.ValidateJWT("garbage", secret)
	assert.ErrorIs(t, err, auth.ErrInvalidJWT)
}

// =============================================================================
// SERVICE
// =============================================================================

func newService(t *testing.T) (*auth.Service, *sqlstore.Store) {
	store, err := sqlstore.NewSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return auth.NewService(store, secret, time.Hour, bcrypt.MinCost, logging.Discard()), store
}

var root = crm.Identity{UserID: 1, Role: crm.RoleSuperAdmin}

func TestService_CreateUserAndLogin(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()
	loc, err := store.CreateLocation(ctx, crm.Location{Name: "Boston"})
	require.NoError(t, err)

	// GIVEN: An admin created by a super admin
	user, err := svc.CreateUser(ctx, root, auth.NewUser{
		Email: " Admin@Boston.org ", Name: "Boston Admin", Password: "correct-horse",
		Role: crm.RoleAdmin, LocationID: &loc.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "admin@boston.org", user.Email)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	// WHEN: Logging in with the right password
	session, err := svc.Login(ctx, "ADMIN@boston.org", "correct-horse")
	require.NoError(t, err)

	// THEN: The token resolves to the admin's scoped identity
	id, err := svc.Resolve(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, id.UserID)
	scope, err := id.Scope()
	require.NoError(t, err)
	assert.True(t, scope.Allows(loc.ID))
	assert.False(t, scope.Allows(loc.ID+1))
}

func TestService_LoginFailures(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, root, auth.NewUser{Email: "u@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "u@example.com", "wrong-password")
	assert.ErrorIs(t, err, crm.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "password1")
	assert.ErrorIs(t, err, crm.ErrInvalidCredentials)

	_, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, crm.ErrValidation)
}

func TestService_CreateUserValidation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		in    auth.NewUser
		field string
	}{
		{"bad email", auth.NewUser{Email: "not-an-email", Password: "password1"}, "email"},
		{"short password", auth.NewUser{Email: "a@example.com", Password: "short"}, "password"},
		{"unknown role", auth.NewUser{Email: "a@example.com", Password: "password1", Role: "owner"}, "role"},
		{"admin without location", auth.NewUser{Email: "a@example.com", Password: "password1", Role: crm.RoleAdmin}, "locationId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateUser(ctx, root, tt.in)
			var ve *crm.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestService_CreateUserRequiresSuperAdmin(t *testing.T) {
	svc, _ := newService(t)
	admin := crm.Identity{UserID: 2, Role: crm.RoleAdmin, LocationID: i64(1)}

	_, err := svc.CreateUser(context.Background(), admin, auth.NewUser{Email: "a@example.com", Password: "password1"})
	assert.ErrorIs(t, err, crm.ErrForbidden)
}

func TestService_DuplicateEmailConflicts(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, root, auth.NewUser{Email: "a@example.com", Password: "password1"})
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, root, auth.NewUser{Email: "A@example.com", Password: "password2"})
	assert.ErrorIs(t, err, crm.ErrConflict)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func TestMiddleware_AttachesIdentity(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.CreateUser(ctx, root, auth.NewUser{Email: "root@example.com", Password: "password1", Role: crm.RoleSuperAdmin})
	require.NoError(t, err)
	session, err := svc.Login(ctx, "root@example.com", "password1")
	require.NoError(t, err)

	var seen crm.Identity
	handler := auth.Middleware(svc, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.IdentityFrom(r.Context())
	}))

	// Bearer header
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+session.Token)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, seen.IsSuperAdmin())

	// Cookie
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.SessionCookie, Value: session.Token})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.True(t, seen.IsSuperAdmin())

	// Invalid token degrades to anonymous
	req = httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer nope")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.False(t, seen.IsAuthenticated())
}

// resolverFunc adapts a function to auth.Resolver.
type resolverFunc func(ctx context.Context, token string) (crm.Identity, error)

func (f resolverFunc) Resolve(ctx context.Context, token string) (crm.Identity, error) {
	return f(ctx, token)
}

func TestMiddleware_ResolveFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantNext   bool
	}{
		{"expired token is anonymous", auth.ErrExpiredJWT, http.StatusOK, true},
		{"invalid token is anonymous", fmt.Errorf("parse: %w", auth.ErrInvalidJWT), http.StatusOK, true},
		{"database failure is a server error", errors.New("database is locked"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// GIVEN: A resolver that fails with tt.err
			resolver := resolverFunc(func(context.Context, string) (crm.Identity, error) {
				return crm.Anonymous, tt.err
			})
			called := false
			handler := auth.Middleware(resolver, logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				assert.False(t, auth.IdentityFrom(r.Context()).IsAuthenticated())
			}))

			// WHEN: A request carries a token
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			req.Header.Set("Authorization", "Bearer abc")
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			// THEN: Only token errors reach the handler
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantNext, called)
			if !tt.wantNext {
				assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
			}
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", auth.TokenFromRequest(req))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "", auth.TokenFromRequest(req))

	req.Header.Set("Authorization", "bearer abc")
	assert.Equal(t, "abc", auth.TokenFromRequest(req))
}
