package app

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/config"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/costing"
	"lotcost/internal/domain/documents/sale"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Driver = config.StorageMemory
	return cfg
}

func TestNew_Memory(t *testing.T) {
	ctx := context.Background()
	c, err := New(ctx, memoryConfig(t))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.Pool)
	assert.NotNil(t, c.Idempotency)
	assert.Equal(t, uint64(3), c.Engine.RetryPolicy().MaxRetries)

	org := id.New()
	m := material.NewMaterial(org, "Salt")
	m.SoldDirectly = true
	require.NoError(t, c.Materials.Create(ctx, m))

	_, err = c.Engine.Receive(ctx, costing.ReceiveInput{
		MaterialID: m.ID,
		Quantity:   types.NewQuantity(10),
		CostPrice:  types.MustMoney("2"),
	})
	require.NoError(t, err)

	s := sale.NewSale(org)
	s.AddLine(m.ID, types.NewQuantity(4), types.MustMoney("5"))
	done, err := c.Sales.Complete(ctx, s)
	require.NoError(t, err)
	assert.True(t, types.MustMoney("8").Equal(done.Cost))
	assert.NotEmpty(t, done.Number)

	n, err := testutil.GatherAndCount(c.Registry, "lotcost_consumptions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNew_MetricsDisabled(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Metrics.Enabled = false

	c, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer c.Close()

	families, err := c.Registry.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}

func TestNew_BadMethod(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Costing.DefaultMethod = "lifo-ish"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
}
