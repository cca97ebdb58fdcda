package storefront

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/internal/auth"
	"github.com/rtwroastery/roastery-backend/internal/blenddraft"
	"github.com/rtwroastery/roastery-backend/internal/blends"
	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/checkout"
	"github.com/rtwroastery/roastery-backend/internal/identity"
	"github.com/rtwroastery/roastery-backend/pkg/config"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
)

// DeviceModels are the tables of the device database.
var DeviceModels = []any{&models.DeviceDraft{}, &models.GuestCartItem{}, &models.DeviceCredential{}}

// AppParams wires the device session.
type AppParams struct {
	Config     *config.StorefrontConfig
	DB         *gorm.DB
	Logger     *logger.Logger
	HTTPClient *http.Client
	// OnAutoSave reports a blend save resumed by sign-in.
	OnAutoSave func(*blends.BlendDTO, error)
	// OnTransition observes checkout state changes.
	OnTransition func(prev, next checkout.Snapshot)
}

// App is one device session: identity, carts, the blend wizard and checkout.
type App struct {
	Identity *identity.Context
	Client   *Client
	Cart     *SwitchingCart
	Drafts   *blenddraft.Manager
	Checkout *checkout.Orchestrator

	local       *cart.LocalStore
	remote      *RemoteCart
	credentials *CredentialStore
	logg        *logger.Logger
	stopMerge   func()
}

func NewApp(ctx context.Context, params AppParams) (*App, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("storefront config required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("device database required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg := params.Config

	ident := identity.New(params.Logger)
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.HTTPTimeout}
	}
	client, err := NewClient(cfg.APIBaseURL,
		WithHTTPClient(httpClient),
		WithTokenSource(func() string { return ident.Current().Token }),
	)
	if err != nil {
		return nil, err
	}

	local, err := cart.NewLocalStore(params.DB)
	if err != nil {
		return nil, err
	}
	credentials, err := NewCredentialStore(params.DB)
	if err != nil {
		return nil, err
	}
	drafts, err := blenddraft.NewSQLiteStore(params.DB)
	if err != nil {
		return nil, err
	}

	remote := NewRemoteCart(client)
	carts := NewSwitchingCart(ident, remote, local)

	app := &App{
		Identity:    ident,
		Client:      client,
		Cart:        carts,
		local:       local,
		remote:      remote,
		credentials: credentials,
		logg:        params.Logger,
	}
	// Guest lines move to the server cart before a deferred blend save runs.
	app.stopMerge = ident.Subscribe(app.mergeGuestCart)

	manager, err := blenddraft.NewManager(ctx, blenddraft.ManagerParams{
		Store:      drafts,
		Blends:     client,
		Cart:       carts,
		Identity:   ident,
		Logger:     params.Logger,
		OnAutoSave: params.OnAutoSave,
	})
	if err != nil {
		app.stopMerge()
		return nil, err
	}
	app.Drafts = manager

	orch, err := checkout.NewOrchestrator(checkout.Params{
		Cart:         carts,
		Catalog:      client,
		Blends:       client,
		Rates:        client,
		Orders:       client,
		Payments:     client,
		Logger:       params.Logger,
		PollInterval: cfg.Checkout.PollInterval,
		MaxAttempts:  cfg.Checkout.MaxPollAttempts,
		OnTransition: params.OnTransition,
	})
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Checkout = orch
	return app, nil
}

// Start restores the stored credential. A rejected credential is dropped and
// the session continues anonymously.
func (a *App) Start(ctx context.Context) error {
	token, err := a.credentials.Load(ctx)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	err = a.Identity.Hydrate(ctx, a.Client, token)
	if err == nil {
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
		a.logg.Warn(ctx, "storefront.stored_credential_rejected")
		return a.credentials.Clear(ctx)
	}
	return err
}

func (a *App) Login(ctx context.Context, email, password string) (*identity.Profile, error) {
	resp, err := a.Client.Login(ctx, auth.LoginRequest{Email: strings.TrimSpace(email), Password: password})
	if err != nil {
		return nil, err
	}
	return a.signIn(ctx, resp)
}

func (a *App) Register(ctx context.Context, email, password, name string) (*identity.Profile, error) {
	resp, err := a.Client.Register(ctx, auth.RegisterRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
		Name:     strings.TrimSpace(name),
	})
	if err != nil {
		return nil, err
	}
	return a.signIn(ctx, resp)
}

func (a *App) signIn(ctx context.Context, resp *auth.AuthResponse) (*identity.Profile, error) {
	if resp == nil || resp.User == nil || resp.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "identity provider returned an incomplete response")
	}
	if err := a.credentials.Save(ctx, resp.Token); err != nil {
		return nil, err
	}
	profile := ProfileFromUser(resp.User.ID, resp.User.Email, resp.User.Name, resp.User.Role.String())
	if err := a.Identity.SignIn(ctx, resp.Token, *profile); err != nil {
		return nil, err
	}
	return profile, nil
}

// Logout revokes the server session when possible and always forgets the
// local credential.
func (a *App) Logout(ctx context.Context) error {
	if a.Identity.Current().Authenticated() {
		if err := a.Client.Logout(ctx); err != nil {
			a.logg.Warn(a.logg.WithField(ctx, "error", err.Error()), "storefront.remote_logout_failed")
		}
	}
	if err := a.credentials.Clear(ctx); err != nil {
		return err
	}
	a.Identity.SignOut(ctx)
	return nil
}

func (a *App) Close() {
	if a.Drafts != nil {
		a.Drafts.Close()
	}
	if a.Checkout != nil {
		a.Checkout.Cancel()
	}
	if a.stopMerge != nil {
		a.stopMerge()
	}
}

// mergeGuestCart moves anonymous lines to the server cart on sign-in. Lines
// the server rejects go back to the device cart.
func (a *App) mergeGuestCart(ctx context.Context, prev, next identity.Identity) {
	if !next.Authenticated() || prev.Authenticated() {
		return
	}
	lines, err := a.local.Drain(ctx)
	if err != nil {
		a.logg.Error(ctx, "storefront.guest_cart_drain_failed", err)
		return
	}
	moved := 0
	for _, line := range lines {
		if _, err := a.remote.Add(ctx, line); err != nil {
			a.logg.Error(a.logg.WithField(ctx, "cart_item_id", line.ID.String()), "storefront.guest_cart_merge_failed", err)
			if _, err := a.local.Add(ctx, line); err != nil {
				a.logg.Error(ctx, "storefront.guest_cart_restore_failed", err)
			}
			continue
		}
		moved++
	}
	if moved > 0 {
		a.logg.Info(a.logg.WithField(ctx, "lines", moved), "storefront.guest_cart_merged")
	}
}
