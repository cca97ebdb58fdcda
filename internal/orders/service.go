package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/internal/cart"
	"github.com/rtwroastery/roastery-backend/internal/pricing"
	"github.com/rtwroastery/roastery-backend/pkg/checkout"
	"github.com/rtwroastery/roastery-backend/pkg/db"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/logger"
	"github.com/rtwroastery/roastery-backend/pkg/pagination"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

// Service creates order snapshots and runs fulfillment transitions.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*OrderDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error)
	AdminList(ctx context.Context, filters AdminFilters) (*OrderPage, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error)
}

type productLookup interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type blendLookup interface {
	FindByIDsForUser(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]models.CustomBlend, error)
}

type rateLookup interface {
	Find(ctx context.Context, id uuid.UUID) (*models.ShippingRate, error)
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Products productLookup
	Blends   blendLookup
	Rates    rateLookup
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	products productLookup
	blends   blendLookup
	rates    rateLookup
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Products == nil || params.Blends == nil {
		return nil, fmt.Errorf("catalog lookups required")
	}
	if params.Rates == nil {
		return nil, fmt.Errorf("shipping rate lookup required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		products: params.Products,
		blends:   params.Blends,
		rates:    params.Rates,
		logg:     params.Logger,
	}, nil
}

// Create prices the submitted lines against the live catalog and freezes the
// result. A pending unpaid order for the same snapshot is returned instead of
// inserting a duplicate.
func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateOrderRequest) (*OrderDTO, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}
	if err := checkout.ValidateShipping(req.ShippingAddress, req.ShippingRateID); err != nil {
		return nil, err
	}

	refs := make([]cart.LineItemRef, 0, len(req.Items))
	for i, item := range req.Items {
		if err := checkout.ValidateLineReference(item.ProductID, item.CustomBlendID); err != nil {
			return nil, err
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be at least 1", i))
		}
		refs = append(refs, cart.LineItemRef{ProductID: item.ProductID, CustomBlendID: item.CustomBlendID, Quantity: item.Quantity})
	}

	address := normalizeAddress(req.ShippingAddress)
	fingerprint := cart.Fingerprint(refs, address, req.ShippingRateID)
	if req.Fingerprint != "" && req.Fingerprint != fingerprint {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "fingerprint does not match submitted items")
	}

	ctx = s.logg.WithField(ctx, "fingerprint", fingerprint)
	if existing, err := s.repo.FindPendingByFingerprint(ctx, userID, fingerprint); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup pending order")
	} else if existing != nil {
		s.logg.Info(s.logg.WithOrderID(ctx, existing.ID.String()), "orders.reuse_pending")
		dto := FromModel(*existing)
		dto.Reused = true
		return &dto, nil
	}

	catalog, blends, err := cart.LoadIndexes(ctx, userID, refs, s.products, s.blends)
	if err != nil {
		return nil, err
	}
	lines := cart.Resolve(refs, catalog, blends)
	for _, line := range lines {
		if line.Missing {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, line.Name+" is no longer available").
				WithDetails(map[string]any{"product_id": line.ProductID, "custom_blend_id": line.CustomBlendID})
		}
	}

	rate, err := s.rates.Find(ctx, *req.ShippingRateID)
	if err != nil {
		return nil, err
	}
	quote := pricing.Compute(lines, &rate.Rate).Rounded()
	if !req.TotalAmount.IsZero() && !req.TotalAmount.Round(2).Equal(quote.Total) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cart total changed; refresh and retry").
			WithDetails(map[string]string{"expected_total": quote.Total.StringFixed(2)})
	}

	items := make(types.OrderItems, 0, len(lines))
	for _, line := range lines {
		items = append(items, line.OrderItem())
	}
	order := &models.Order{
		UserID:          userID,
		Items:           items,
		SubtotalAmount:  quote.Subtotal,
		ShippingCost:    quote.ShippingCost,
		TotalAmount:     quote.Total,
		ShippingAddress: address,
		ShippingRateID:  req.ShippingRateID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusOpen,
		Fingerprint:     fingerprint,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		if db.IsUniqueViolation(err, "idx_orders_pending_fingerprint") {
			existing, findErr := s.repo.FindPendingByFingerprint(ctx, userID, fingerprint)
			if findErr == nil && existing != nil {
				dto := FromModel(*existing)
				dto.Reused = true
				return &dto, nil
			}
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "orders.created")
	dto := FromModel(*order)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]OrderDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	return toDTOs(rows), nil
}

func (s *service) Get(ctx context.Context, userID, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*order)
	return &dto, nil
}

// AdminList pages through every order, newest first.
func (s *service) AdminList(ctx context.Context, filters AdminFilters) (*OrderPage, error) {
	limit := filters.Limit
	filters.Limit = pagination.Fetch(limit)
	rows, err := s.repo.ListAll(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	rows, next := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &OrderPage{Items: toDTOs(rows), NextCursor: next}, nil
}

// UpdateStatus advances fulfillment one step at a time. Payment confirmation
// owns pending -> processing, so admins can only move an order onward once
// it has been paid.
func (s *service) UpdateStatus(ctx context.Context, orderID uuid.UUID, req UpdateStatusRequest) (*OrderDTO, error) {
	target, err := enums.ParseOrderStatus(strings.TrimSpace(req.Status))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == target {
		dto := FromModel(*order)
		return &dto, nil
	}
	if !CanTransition(order.Status, target) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid status transition").
			WithDetails(map[string]string{"from": order.Status.String(), "to": target.String()})
	}
	if target == enums.OrderStatusProcessing && order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has not been paid")
	}

	updated, err := s.repo.UpdateStatus(ctx, orderID, order.Status, target)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	if !updated {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order changed concurrently")
	}
	order.Status = target
	s.logg.Info(s.logg.WithOrderID(s.logg.WithField(ctx, "status", target), orderID.String()), "orders.status_updated")
	dto := FromModel(*order)
	return &dto, nil
}

var nextStatus = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusPending:    enums.OrderStatusProcessing,
	enums.OrderStatusProcessing: enums.OrderStatusShipped,
	enums.OrderStatusShipped:    enums.OrderStatusDelivered,
}

// CanTransition reports whether to is the single next step after from.
func CanTransition(from, to enums.OrderStatus) bool {
	next, ok := nextStatus[from]
	return ok && next == to
}

func normalizeAddress(a types.ShippingAddress) types.ShippingAddress {
	return types.ShippingAddress{
		Address: strings.TrimSpace(a.Address),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Zip:     strings.TrimSpace(a.Zip),
	}
}

func toDTOs(rows []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out
}
