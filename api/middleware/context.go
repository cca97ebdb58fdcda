package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

type callerKey struct{}

// Caller is the authenticated principal Auth resolves from a bearer token.
type Caller struct {
	UserID   string
	Role     string
	AccessID string
}

// CallerFromContext returns the zero Caller for anonymous requests.
func CallerFromContext(ctx context.Context) Caller {
	if ctx == nil {
		return Caller{}
	}
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}

func WithCaller(ctx context.Context, c Caller) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, callerKey{}, c)
}

func UserIDFromContext(ctx context.Context) string   { return CallerFromContext(ctx).UserID }
func RoleFromContext(ctx context.Context) string     { return CallerFromContext(ctx).Role }
func AccessIDFromContext(ctx context.Context) string { return CallerFromContext(ctx).AccessID }

func WithUserID(ctx context.Context, userID string) context.Context {
	c := CallerFromContext(ctx)
	c.UserID = userID
	return WithCaller(ctx, c)
}

func WithRole(ctx context.Context, role string) context.Context {
	c := CallerFromContext(ctx)
	c.Role = role
	return WithCaller(ctx, c)
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	c := CallerFromContext(ctx)
	c.AccessID = accessID
	return WithCaller(ctx, c)
}

// AuthenticatedUserID parses the caller id seeded by Auth.
func AuthenticatedUserID(ctx context.Context) (uuid.UUID, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}
