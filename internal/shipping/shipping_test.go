package shipping

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtwroastery/roastery-backend/pkg/db/dbtest"
	"github.com/rtwroastery/roastery-backend/pkg/db/models"
	pkgerrors "github.com/rtwroastery/roastery-backend/pkg/errors"
)

func TestServiceCreateListGet(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t, &models.ShippingRate{})))
	require.NoError(t, err)
	ctx := context.Background()

	express, err := svc.Create(ctx, CreateRateRequest{Region: "US Express", Rate: "12.00"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateRateRequest{Region: "US Standard", Rate: "5", Description: "5-7 days"})
	require.NoError(t, err)

	rates, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, rates, 2)
	assert.Equal(t, "US Standard", rates[0].Region)
	assert.True(t, rates[0].Rate.Equal(decimal.NewFromInt(5)))

	got, err := svc.Get(ctx, express.ID)
	require.NoError(t, err)
	assert.Equal(t, "US Express", got.Region)

	_, err = svc.Get(ctx, uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceCreateValidation(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t, &models.ShippingRate{})))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, CreateRateRequest{Region: "", Rate: "1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, CreateRateRequest{Region: "x", Rate: "-1"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = svc.Create(ctx, CreateRateRequest{Region: "x", Rate: "cheap"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
