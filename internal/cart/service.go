package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/pkg/checkout"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/money"
)

// AddItemRequest adds a product or a custom blend to the cart.
type AddItemRequest struct {
	ProductID     *uuid.UUID `json:"product_id,omitempty"`
	CustomBlendID *uuid.UUID `json:"custom_blend_id,omitempty"`
	Quantity      int        `json:"quantity"`
}

// View is the server cart: raw references plus their priced resolution.
type View struct {
	Items    []LineItemRef    `json:"items"`
	Lines    []PricedLineItem `json:"lines"`
	Subtotal decimal.Decimal  `json:"subtotal"`
}

// Service is the server-side cart store for authenticated users.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	Add(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*LineItemRef, error)
	Remove(ctx context.Context, userID, itemID uuid.UUID) error
	Clear(ctx context.Context, userID uuid.UUID) error
}

type cartRepository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CartItem, error)
	FindSameReference(ctx context.Context, userID uuid.UUID, productID, blendID *uuid.UUID) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	Delete(ctx context.Context, userID, itemID uuid.UUID) (bool, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type productLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type blendLookup interface {
	FindByIDsForUser(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CustomBlend, error)
}

// ServiceParams bundles the cart service dependencies.
type ServiceParams struct {
	Repo     cartRepository
	Products productLookup
	Blends   blendLookup
}

type service struct {
	repo     cartRepository
	products productLookup
	blends   blendLookup
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("cart repository is required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product lookup is required")
	}
	if params.Blends == nil {
		return nil, fmt.Errorf("blend lookup is required")
	}
	return &service{repo: params.Repo, products: params.Products, blends: params.Blends}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cart")
	}
	refs := make([]LineItemRef, 0, len(rows))
	for _, row := range rows {
		refs = append(refs, RefFromModel(row))
	}

	catalog, blends, err := LoadIndexes(ctx, userID, refs, s.products, s.blends)
	if err != nil {
		return nil, err
	}
	lines := Resolve(refs, catalog, blends)

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.LineTotal())
	}
	return &View{Items: refs, Lines: lines, Subtotal: money.Round2(subtotal)}, nil
}

func (s *service) Add(ctx context.Context, userID uuid.UUID, req AddItemRequest) (*LineItemRef, error) {
	if err := checkout.ValidateLineReference(req.ProductID, req.CustomBlendID); err != nil {
		return nil, err
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if err := s.ensureReference(ctx, userID, req); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindSameReference(ctx, userID, req.ProductID, req.CustomBlendID)
	switch {
	case err == nil:
		existing.Quantity += quantity
		if err := s.repo.UpdateQuantity(ctx, existing.ID, existing.Quantity); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
		}
		ref := RefFromModel(*existing)
		return &ref, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup cart item")
	}

	item := &models.CartItem{
		UserID:        userID,
		ProductID:     req.ProductID,
		CustomBlendID: req.CustomBlendID,
		Quantity:      quantity,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	ref := RefFromModel(*item)
	return &ref, nil
}

func (s *service) ensureReference(ctx context.Context, userID uuid.UUID, req AddItemRequest) error {
	if req.ProductID != nil {
		rows, err := s.products.FindByIDs(ctx, []uuid.UUID{*req.ProductID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup product")
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		if !rows[0].Available {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available")
		}
		return nil
	}
	rows, err := s.blends.FindByIDsForUser(ctx, userID, []uuid.UUID{*req.CustomBlendID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup custom blend")
	}
	if len(rows) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "custom blend not found")
	}
	return nil
}

func (s *service) Remove(ctx context.Context, userID, itemID uuid.UUID) error {
	found, err := s.repo.Delete(ctx, userID, itemID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return nil
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

// LoadIndexes fetches the catalog and blend indexes needed to resolve refs.
func LoadIndexes(ctx context.Context, userID uuid.UUID, refs []LineItemRef, products productLookup, blends blendLookup) (CatalogIndex, BlendIndex, error) {
	productRows, err := products.FindByIDs(ctx, ProductIDs(refs))
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	blendRows, err := blends.FindByIDsForUser(ctx, userID, BlendIDs(refs))
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load custom blends")
	}
	return CatalogIndexFromModels(productRows), BlendIndexFromModels(blendRows), nil
}

func RefFromModel(item models.CartItem) LineItemRef {
	return LineItemRef{
		ID:            item.ID,
		ProductID:     item.ProductID,
		CustomBlendID: item.CustomBlendID,
		Quantity:      item.Quantity,
	}
}
