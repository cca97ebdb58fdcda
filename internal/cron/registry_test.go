package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedJob string

func (n namedJob) Name() string              { return string(n) }
func (n namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndSkipsNil(t *testing.T) {
	registry, err := NewRegistry(namedJob("payment-reconcile"), nil, namedJob("subscription-delivery"))
	require.NoError(t, err)
	assert.Equal(t, []string{"payment-reconcile", "subscription-delivery"}, registry.Names())

	jobs := registry.Jobs()
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "Jobs must hand out a copy")
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(namedJob("a"), namedJob("a"))
	require.Error(t, err)

	registry, err := NewRegistry()
	require.NoError(t, err)
	require.Error(t, registry.Register(namedJob("  ")))
}

func TestRegistrySelect(t *testing.T) {
	registry, err := NewRegistry(namedJob("a"), namedJob("b"), namedJob("c"))
	require.NoError(t, err)

	all, err := registry.Select()
	require.NoError(t, err)
	assert.Len(t, all, 3)

	picked, err := registry.Select("c", "a")
	require.NoError(t, err)
	require.Len(t, picked, 2)
	assert.Equal(t, "c", picked[0].Name())
	assert.Equal(t, "a", picked[1].Name())

	_, err = registry.Select("nope")
	assert.ErrorContains(t, err, `unknown job "nope"`)
}
