package blenddraft

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/identity"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

// ErrIdentityRequired is returned by Save when nobody is signed in. The draft
// is kept and saved automatically after the next sign-in.
var ErrIdentityRequired = pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to save your blend")

type blendCreator interface {
	CreateBlend(ctx context.Context, req blends.CreateBlendRequest) (*blends.BlendDTO, error)
}

type cartAdder interface {
	Add(ctx context.Context, ref cart.LineItemRef) (*cart.LineItemRef, error)
}

type identitySource interface {
	Current() identity.Identity
	Subscribe(fn identity.Listener) func()
}

// ManagerParams wires the draft manager.
type ManagerParams struct {
	Store    Store
	Blends   blendCreator
	Cart     cartAdder
	Identity identitySource
	Logger   *logger.Logger
	// OnAutoSave, when set, receives the outcome of a save resumed by sign-in.
	OnAutoSave func(*blends.BlendDTO, error)
}

// Manager owns the device draft. Mutations are serialized; the wizard is
// driven by one user at a time.
type Manager struct {
	mu         sync.Mutex
	draft      Draft
	deferred   bool
	store      Store
	blends     blendCreator
	cart       cartAdder
	identity   identitySource
	logg       *logger.Logger
	onAutoSave func(*blends.BlendDTO, error)
	stop       func()
}

// NewManager restores any stored draft and starts listening for sign-in.
func NewManager(ctx context.Context, params ManagerParams) (*Manager, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("draft store required")
	}
	if params.Blends == nil {
		return nil, fmt.Errorf("blend repository required")
	}
	if params.Cart == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if params.Identity == nil {
		return nil, fmt.Errorf("identity context required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	m := &Manager{
		draft:      NewDraft(),
		store:      params.Store,
		blends:     params.Blends,
		cart:       params.Cart,
		identity:   params.Identity,
		logg:       params.Logger,
		onAutoSave: params.OnAutoSave,
	}
	stored, err := params.Store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if stored != nil {
		m.draft = stored.Draft
		m.deferred = stored.DeferredSave
	}
	m.stop = params.Identity.Subscribe(m.onIdentityChange)
	return m, nil
}

// Close stops listening for identity changes.
func (m *Manager) Close() {
	if m.stop != nil {
		m.stop()
	}
}

func (m *Manager) Draft() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draft
}

// SavePending reports whether a save is waiting for sign-in.
func (m *Manager) SavePending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deferred
}

// Dispatch applies a wizard action and persists the result once the draft is
// worth keeping. A rejected action leaves the draft untouched.
func (m *Manager) Dispatch(ctx context.Context, action Action) (Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := Reduce(m.draft, action)
	if err != nil {
		return m.draft, err
	}
	m.draft = next
	if next.ShouldPersist() || m.deferred {
		if err := m.store.Save(ctx, Stored{Draft: next, DeferredSave: m.deferred}); err != nil {
			return next, err
		}
	}
	return next, nil
}

// Save commits the draft as a custom blend and adds it to the cart.
func (m *Manager) Save(ctx context.Context) (*blends.BlendDTO, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(ctx)
}

func (m *Manager) saveLocked(ctx context.Context) (*blends.BlendDTO, error) {
	if strings.TrimSpace(m.draft.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "blend name is required")
	}

	if !m.identity.Current().Authenticated() {
		m.deferred = true
		if err := m.store.Save(ctx, Stored{Draft: m.draft, DeferredSave: true}); err != nil {
			return nil, err
		}
		m.logg.Info(ctx, "blenddraft.save_deferred")
		return nil, ErrIdentityRequired
	}

	var blend *blends.BlendDTO
	if m.draft.SavedBlendID == nil {
		created, err := m.blends.CreateBlend(ctx, m.draft.CreateRequest())
		if err != nil {
			return nil, serviceError(err, "save blend")
		}
		blend = created
		id := created.ID
		m.draft.SavedBlendID = &id
		if err := m.store.Save(ctx, Stored{Draft: m.draft}); err != nil {
			m.logg.Error(ctx, "blenddraft.persist_saved_id_failed", err)
		}
	} else {
		blend = &blends.BlendDTO{ID: *m.draft.SavedBlendID, Name: m.draft.Name, Quantity: m.draft.QuantityGrams}
	}

	blendID := *m.draft.SavedBlendID
	if _, err := m.cart.Add(ctx, cart.LineItemRef{CustomBlendID: &blendID, Quantity: 1}); err != nil {
		return nil, serviceError(err, "add blend to cart")
	}

	if err := m.store.Purge(ctx); err != nil {
		return nil, err
	}
	m.draft = NewDraft()
	m.deferred = false
	m.logg.Info(m.logg.WithField(ctx, "custom_blend_id", blendID.String()), "blenddraft.saved")
	return blend, nil
}

// onIdentityChange resumes a deferred save exactly once: the intent is cleared
// before the save runs so a failure never triggers a second automatic attempt.
func (m *Manager) onIdentityChange(ctx context.Context, prev, next identity.Identity) {
	if !next.Authenticated() || prev.Authenticated() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.deferred {
		return
	}
	m.deferred = false
	if err := m.store.Save(ctx, Stored{Draft: m.draft}); err != nil {
		m.logg.Error(ctx, "blenddraft.clear_intent_failed", err)
	}
	blend, err := m.saveLocked(ctx)
	if err != nil {
		m.logg.Error(ctx, "blenddraft.resumed_save_failed", err)
	}
	if m.onAutoSave != nil {
		m.onAutoSave(blend, err)
	}
}

// serviceError keeps validation and missing-reference failures as they are
// and reports everything else as a transient service failure.
func serviceError(err error, op string) error {
	switch pkgerrors.CodeOf(err) {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeUnauthorized:
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
