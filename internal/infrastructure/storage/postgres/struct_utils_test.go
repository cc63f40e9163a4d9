package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/registers/lots"
)

type auditedLot struct {
	lots.Lot
	Note   string `db:"note"`
	Hidden string `db:"-"`
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[lots.Lot]()
	assert.Equal(t, []string{
		"id", "material_id", "quantity", "remaining", "cost_price", "received_at", "batch_ref", "created_at",
	}, cols)

	embedded := ExtractDBColumns[auditedLot]()
	assert.Contains(t, embedded, "material_id")
	assert.Contains(t, embedded, "note")
	assert.NotContains(t, embedded, "-")

	assert.Contains(t, ExtractDBColumns[material.Material](), "available_quantities")
}

func TestStructToMap(t *testing.T) {
	l := lots.NewLot(id.New(), types.NewQuantity(3), types.MustMoney("2.5"), time.Now())
	v := auditedLot{Lot: *l, Note: "x"}

	m := StructToMap(&v)
	assert.Equal(t, l.ID, m["id"])
	assert.Equal(t, types.NewQuantity(3), m["remaining"])
	assert.Equal(t, "x", m["note"])
	assert.NotContains(t, m, "Hidden")

	values := StructValues(l, []string{"quantity", "material_id"})
	assert.Equal(t, []any{types.NewQuantity(3), l.MaterialID}, values)

	assert.Nil(t, StructToMap(42))
}
