package storefront

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/identity"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
)

// RemoteCart is the server cart of the signed-in user.
type RemoteCart struct {
	client *Client
}

var _ cart.Store = (*RemoteCart)(nil)

func NewRemoteCart(client *Client) *RemoteCart {
	return &RemoteCart{client: client}
}

func (r *RemoteCart) Items(ctx context.Context) ([]cart.LineItemRef, error) {
	var view cart.View
	if err := r.client.do(ctx, call{method: http.MethodGet, path: "/api/v1/cart"}, &view); err != nil {
		return nil, err
	}
	return view.Items, nil
}

func (r *RemoteCart) Add(ctx context.Context, ref cart.LineItemRef) (*cart.LineItemRef, error) {
	req := cart.AddItemRequest{ProductID: ref.ProductID, CustomBlendID: ref.CustomBlendID, Quantity: ref.Quantity}
	var out cart.LineItemRef
	if err := r.client.do(ctx, call{method: http.MethodPost, path: "/api/v1/cart", body: req}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *RemoteCart) Remove(ctx context.Context, itemID uuid.UUID) error {
	return r.client.do(ctx, call{method: http.MethodDelete, path: "/api/v1/cart/" + itemID.String()}, nil)
}

func (r *RemoteCart) Clear(ctx context.Context) error {
	return r.client.do(ctx, call{method: http.MethodDelete, path: "/api/v1/cart"}, nil)
}

// identitySource is the read side of identity.Context.
type identitySource interface {
	Current() identity.Identity
}

// SwitchingCart routes cart calls to the server for signed-in users and to
// the device store otherwise.
type SwitchingCart struct {
	identity identitySource
	remote   cart.Store
	local    cart.Store
}

var _ cart.Store = (*SwitchingCart)(nil)

func NewSwitchingCart(ident identitySource, remote, local cart.Store) *SwitchingCart {
	return &SwitchingCart{identity: ident, remote: remote, local: local}
}

func (s *SwitchingCart) active() cart.Store {
	if s.identity.Current().Authenticated() {
		return s.remote
	}
	return s.local
}

func (s *SwitchingCart) Items(ctx context.Context) ([]cart.LineItemRef, error) {
	return s.active().Items(ctx)
}

func (s *SwitchingCart) Add(ctx context.Context, ref cart.LineItemRef) (*cart.LineItemRef, error) {
	return s.active().Add(ctx, ref)
}

func (s *SwitchingCart) Remove(ctx context.Context, itemID uuid.UUID) error {
	return s.active().Remove(ctx, itemID)
}

func (s *SwitchingCart) Clear(ctx context.Context) error {
	return s.active().Clear(ctx)
}

// ProfileFromUser builds an identity profile from the API user view. Unknown
// roles fall back to customer.
func ProfileFromUser(id uuid.UUID, email, name, role string) *identity.Profile {
	parsed, err := enums.ParseUserRole(role)
	if err != nil {
		parsed = enums.UserRoleCustomer
	}
	return &identity.Profile{ID: id, Email: email, Name: name, Role: parsed}
}
