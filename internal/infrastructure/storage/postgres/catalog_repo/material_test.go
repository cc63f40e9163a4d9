package catalog_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
)

func TestMaterialRepo_Queries(t *testing.T) {
	r := NewMaterialRepo(nil)
	materialID := id.New()

	t.Run("plain select does not lock", func(t *testing.T) {
		sql, _, err := r.selectQuery(materialID).ToSql()
		require.NoError(t, err)
		assert.NotContains(t, sql, "FOR UPDATE")
	})

	t.Run("for update", func(t *testing.T) {
		sql, args, err := r.forUpdateQuery(materialID).ToSql()
		require.NoError(t, err)
		assert.Contains(t, sql, "FROM cat_materials WHERE id = $1 FOR UPDATE")
		assert.Contains(t, sql, "available_quantities")
		// squirrel.Eq resolves driver.Valuer, so the ID is bound as its string form.
		assert.Equal(t, []any{materialID.String()}, args)
	})

	t.Run("update aggregates", func(t *testing.T) {
		now := time.Now()
		sql, args, err := r.updateAggregatesQuery(materialID, types.NewQuantity(1600), types.NewQuantity(3), now)
		require.NoError(t, err)
		assert.Equal(t,
			"UPDATE cat_materials SET available_quantities = $1, stock = $2, version = version + 1, updated_at = $3 WHERE id = $4",
			sql)
		assert.Equal(t, []any{types.NewQuantity(1600), types.NewQuantity(3), now, materialID.String()}, args)
	})

	t.Run("insert", func(t *testing.T) {
		m := material.NewMaterial(id.New(), "flour")
		sql, args, err := r.insertQuery(m)
		require.NoError(t, err)
		assert.Contains(t, sql, "INSERT INTO cat_materials (id,organization_id,name,kind")
		assert.Len(t, args, len(r.selectCols))
		assert.Equal(t, m.ID, args[0])
	})
}
