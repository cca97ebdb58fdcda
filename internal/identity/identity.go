// Package identity holds the storefront's current identity and tells
// interested components when it changes.
package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

// Profile is the signed-in user as reported by the identity provider.
type Profile struct {
	ID    uuid.UUID      `json:"id"`
	Email string         `json:"email"`
	Name  string         `json:"name"`
	Role  enums.UserRole `json:"role"`
}

// Identity is either anonymous (zero value) or authenticated.
type Identity struct {
	Token   string
	Profile *Profile
}

// Anonymous is the signed-out identity.
var Anonymous = Identity{}

func (i Identity) Authenticated() bool {
	return i.Token != "" && i.Profile != nil
}

// Listener observes identity transitions.
type Listener func(ctx context.Context, prev, next Identity)

// Provider performs the "who am I" lookup for a stored credential.
type Provider interface {
	Me(ctx context.Context, token string) (*Profile, error)
}

type subscription struct {
	id int
	fn Listener
}

// Context is the explicit holder of the current identity. Listeners run in
// subscription order on the goroutine that caused the transition, never while
// the internal lock is held, so they may read Current or subscribe again.
type Context struct {
	mu        sync.Mutex
	current   Identity
	listeners []subscription
	nextID    int
	logg      *logger.Logger
}

func New(logg *logger.Logger) *Context {
	return &Context{logg: logg}
}

func (c *Context) Current() Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Subscribe registers fn and returns a func that removes it.
func (c *Context) Subscribe(fn Listener) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, sub := range c.listeners {
				if sub.id == id {
					c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (c *Context) SignIn(ctx context.Context, token string, profile Profile) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "credential is required")
	}
	if profile.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "profile id is required")
	}
	p := profile
	c.transition(ctx, Identity{Token: token, Profile: &p})
	return nil
}

func (c *Context) SignOut(ctx context.Context) {
	c.transition(ctx, Anonymous)
}

// Hydrate resolves token into a profile. Any failure is treated as a logout:
// the context reverts to anonymous and the mapped error is returned.
func (c *Context) Hydrate(ctx context.Context, provider Provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		c.SignOut(ctx)
		return nil
	}
	if provider == nil {
		c.SignOut(ctx)
		return pkgerrors.New(pkgerrors.CodeInternal, "identity provider not configured")
	}
	profile, err := provider.Me(ctx, token)
	if err != nil || profile == nil {
		c.SignOut(ctx)
		if err == nil {
			return pkgerrors.New(pkgerrors.CodeUnauthorized, "identity provider returned no profile")
		}
		return mapProviderError(err)
	}
	return c.SignIn(ctx, token, *profile)
}

func (c *Context) transition(ctx context.Context, next Identity) {
	c.mu.Lock()
	prev := c.current
	if sameIdentity(prev, next) {
		c.mu.Unlock()
		return
	}
	c.current = next
	listeners := make([]Listener, 0, len(c.listeners))
	for _, sub := range c.listeners {
		listeners = append(listeners, sub.fn)
	}
	c.mu.Unlock()

	if c.logg != nil {
		logCtx := c.logg.WithField(ctx, "authenticated", next.Authenticated())
		if next.Profile != nil {
			logCtx = c.logg.WithUserID(logCtx, next.Profile.ID.String())
		}
		c.logg.Debug(logCtx, "identity.transition")
	}
	for _, fn := range listeners {
		fn(ctx, prev, next)
	}
}

func sameIdentity(a, b Identity) bool {
	if a.Token != b.Token {
		return false
	}
	if a.Profile == nil || b.Profile == nil {
		return a.Profile == nil && b.Profile == nil
	}
	return *a.Profile == *b.Profile
}

func mapProviderError(err error) error {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeUnauthorized, pkgerrors.CodeForbidden, pkgerrors.CodeNotFound:
		return pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "stored credential is no longer valid")
	case pkgerrors.CodeDependency:
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "identity lookup failed")
}
