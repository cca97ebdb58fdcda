package blends

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	"github.com/rtwroastery/roastery-backend/pkg/enums"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
	"github.com/rtwroastery/roastery-backend/pkg/types"
)

// Service creates and reads custom blends scoped to their owner.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, req CreateBlendRequest) (*BlendDTO, error)
	List(ctx context.Context, userID uuid.UUID) ([]BlendDTO, error)
	Get(ctx context.Context, userID, blendID uuid.UUID) (*BlendDTO, error)
}

type blendRepository interface {
	Create(ctx context.Context, blend *models.CustomBlend) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.CustomBlend, error)
	FindForUser(ctx context.Context, userID, blendID uuid.UUID) (*models.CustomBlend, error)
}

type service struct {
	repo blendRepository
}

func NewService(repo blendRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("blend repository is required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID, req CreateBlendRequest) (*BlendDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "blend name is required")
	}
	origin, err := enums.ParseOrigin(req.Origin)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	roast, err := enums.ParseRoastLevel(req.RoastLevel)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	grind, err := enums.ParseGrindSize(req.GrindSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	if err := ValidateQuantity(req.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}
	components := req.BlendComponents
	if len(components) == 0 {
		components = types.BlendComponents{origin.String(): 100}
	}
	if err := ValidateComponents(components); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	blend := &models.CustomBlend{
		UserID:          userID,
		Name:            name,
		Origin:          origin,
		RoastLevel:      roast,
		GrindSize:       grind,
		BlendComponents: components,
		QuantityGrams:   req.Quantity,
		Price:           PriceFor(req.Quantity),
	}
	if err := s.repo.Create(ctx, blend); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create custom blend")
	}
	dto := FromModel(*blend)
	return &dto, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]BlendDTO, error) {
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list custom blends")
	}
	out := make([]BlendDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, FromModel(row))
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, userID, blendID uuid.UUID) (*BlendDTO, error) {
	blend, err := s.repo.FindForUser(ctx, userID, blendID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(*blend)
	return &dto, nil
}
