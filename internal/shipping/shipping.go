// Package shipping serves the flat regional delivery rates.
package shipping

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rtwroastery/roastery-backend/internal/repo"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/money"
)

type RateDTO struct {
	ID          uuid.UUID       `json:"id"`
	Region      string          `json:"region"`
	Rate        decimal.Decimal `json:"rate"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CreateRateRequest struct {
	Region      string `json:"region" validate:"required,notblank"`
	Rate        string `json:"rate" validate:"required,money"`
	Description string `json:"description"`
}

func FromModel(r models.ShippingRate) RateDTO {
	return RateDTO{ID: r.ID, Region: r.Region, Rate: r.Rate, Description: r.Description, CreatedAt: r.CreatedAt}
}

// Repository persists shipping rates.
type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// List returns rates ordered cheapest first.
func (r *Repository) List(ctx context.Context) ([]models.ShippingRate, error) {
	var rows []models.ShippingRate
	err := r.DB(ctx).Order("rate ASC").Order("region ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.ShippingRate, error) {
	var rate models.ShippingRate
	if err := r.FindByID(ctx, &rate, id, "shipping rate"); err != nil {
		return nil, err
	}
	return &rate, nil
}

func (r *Repository) Create(ctx context.Context, rate *models.ShippingRate) error {
	return r.DB(ctx).Create(rate).Error
}

// Service exposes rate reads and admin creation.
type Service interface {
	List(ctx context.Context) ([]RateDTO, error)
	Get(ctx context.Context, id uuid.UUID) (*RateDTO, error)
	Create(ctx context.Context, req CreateRateRequest) (*RateDTO, error)
}

type rateRepository interface {
	List(ctx context.Context) ([]models.ShippingRate, error)
	Find(ctx context.Context, id uuid.UUID) (*models.ShippingRate, error)
	Create(ctx context.Context, rate *models.ShippingRate) error
}

type service struct {
	repo rateRepository
}

func NewService(repo rateRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shipping rate repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context) ([]RateDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shipping rates")
	}
	out := make([]RateDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*RateDTO, error) {
	rate, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*rate)
	return &dto, nil
}

func (s *service) Create(ctx context.Context, req CreateRateRequest) (*RateDTO, error) {
	region := strings.TrimSpace(req.Region)
	if region == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "region is required")
	}
	amount, err := money.Parse(req.Rate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rate")
	}
	if amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rate cannot be negative")
	}
	rate := &models.ShippingRate{Region: region, Rate: amount, Description: strings.TrimSpace(req.Description)}
	if err := s.repo.Create(ctx, rate); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shipping rate")
	}
	dto := FromModel(*rate)
	return &dto, nil
}
