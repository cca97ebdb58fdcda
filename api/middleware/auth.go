package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rtwroastery/roastery-backend/api/responses"
	pkgAuth "github.com/rtwroastery/roastery-backend/pkg/auth"
	"github.com/rtwroastery/roastery-backend/pkg/auth/session"
	"github.com/rtwroastery/roastery-backend/pkg/config"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

// Auth admits requests carrying a valid bearer token whose session has not
// been revoked. A nil checker skips the session lookup.
func Auth(cfg config.JWTConfig, checker session.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := authenticate(r, cfg, checker)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithCaller(r.Context(), caller)
			ctx = logg.WithFields(ctx, map[string]any{
				"user_id":    caller.UserID,
				"actor_role": caller.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(r *http.Request, cfg config.JWTConfig, checker session.AccessSessionChecker) (Caller, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims, err := pkgAuth.ParseAccessToken(cfg, raw)
	switch {
	case errors.Is(err, pkgAuth.ErrTokenExpired):
		return Caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "token expired")
	case err != nil:
		return Caller{}, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	case claims.ID == "":
		return Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id")
	}

	if checker != nil {
		live, err := checker.HasSession(r.Context(), claims.ID)
		if err != nil {
			return Caller{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session")
		}
		if !live {
			return Caller{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session revoked")
		}
	}

	return Caller{
		UserID:   claims.UserID.String(),
		Role:     string(claims.Role),
		AccessID: claims.ID,
	}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
