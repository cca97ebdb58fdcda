package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtwroastery/roastery-backend/pkg/auth"
	"github.com/rtwroastery/roastery-backend/pkg/auth/session"
	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

var authTestJWT = config.JWTConfig{Secret: "middleware-secret", Issuer: "rtw-roastery", ExpirationMinutes: 60}

type sessionCheck func(accessID string) (bool, error)

func (f sessionCheck) HasSession(_ context.Context, accessID string) (bool, error) {
	return f(accessID)
}

func checkerOrNil(f sessionCheck) session.AccessSessionChecker {
	if f == nil {
		return nil
	}
	return f
}

func issue(t *testing.T, role enums.UserRole, issuedAt time.Time) (token string, userID uuid.UUID, accessID string) {
	t.Helper()
	userID = uuid.New()
	accessID = uuid.NewString()
	token, err := auth.MintAccessToken(authTestJWT, issuedAt, auth.AccessTokenPayload{
		UserID: userID,
		Email:  "cup@roastery.test",
		Role:   role,
		JTI:    accessID,
	})
	require.NoError(t, err)
	return token, userID, accessID
}

func TestAuthRejections(t *testing.T) {
	live, _, _ := issue(t, enums.UserRoleCustomer, time.Now())
	stale, _, _ := issue(t, enums.UserRoleCustomer, time.Now().Add(-2*time.Hour))

	cases := []struct {
		name    string
		header  string
		checker sessionCheck
		status  int
	}{
		{"no header", "", nil, http.StatusUnauthorized},
		{"wrong scheme", "Basic " + live, nil, http.StatusUnauthorized},
		{"scheme only", "Bearer ", nil, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", nil, http.StatusUnauthorized},
		{"expired token", "Bearer " + stale, nil, http.StatusUnauthorized},
		{"revoked session", "Bearer " + live, func(string) (bool, error) { return false, nil }, http.StatusUnauthorized},
		{"session store down", "Bearer " + live, func(string) (bool, error) { return false, errors.New("redis down") }, http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reached := false
			h := Auth(authTestJWT, checkerOrNil(tc.checker), nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
				reached = true
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			assert.False(t, reached)
		})
	}
}

func TestAuthSeedsCaller(t *testing.T) {
	token, userID, accessID := issue(t, enums.UserRoleAdmin, time.Now())

	var checked string
	var got Caller
	h := Auth(authTestJWT, sessionCheck(func(id string) (bool, error) {
		checked = id
		return true, nil
	}), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = CallerFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, accessID, checked)
	assert.Equal(t, Caller{UserID: userID.String(), Role: string(enums.UserRoleAdmin), AccessID: accessID}, got)
}

func TestCallerSetters(t *testing.T) {
	ctx := WithUserID(context.Background(), "u-1")
	ctx = WithRole(ctx, "admin")
	ctx = WithAccessID(ctx, "jti-1")

	assert.Equal(t, "u-1", UserIDFromContext(ctx))
	assert.Equal(t, "admin", RoleFromContext(ctx))
	assert.Equal(t, "jti-1", AccessIDFromContext(ctx))
	assert.Empty(t, UserIDFromContext(context.Background()))

	_, err := AuthenticatedUserID(ctx)
	assert.Error(t, err)
	id := uuid.New()
	got, err := AuthenticatedUserID(WithUserID(ctx, id.String()))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestRequireRole(t *testing.T) {
	h := RequireRole(enums.UserRoleAdmin, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for role, want := range map[enums.UserRole]int{
		enums.UserRoleCustomer: http.StatusForbidden,
		enums.UserRoleAdmin:    http.StatusNoContent,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(req.Context(), string(role)))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, role)
	}
}
