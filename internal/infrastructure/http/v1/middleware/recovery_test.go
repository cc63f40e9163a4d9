package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/registers/lots"
	"lotcost/internal/infrastructure/memory"
)

func TestRecovery_PanicInsideConsumeRendersInternalError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	store := memory.NewStore()
	m := material.NewMaterial(id.New(), "flour")
	require.NoError(t, store.Materials().Create(ctx, m))
	lot := lots.NewLot(m.ID, types.NewQuantity(10), types.MustMoney("1"), m.CreatedAt)
	require.NoError(t, store.Lots().Create(ctx, lot))

	router := gin.New()
	router.Use(Recovery(), Trace(), ErrorHandler())
	router.POST("/consume", func(c *gin.Context) {
		_ = store.TxManager().RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
			if _, err := store.Materials().GetForUpdate(ctx, m.ID); err != nil {
				return err
			}
			if err := store.Lots().Decrement(ctx, lot.ID, types.NewQuantity(4)); err != nil {
				return err
			}
			panic("allocation bug")
		})
	})

	req := httptest.NewRequest(http.MethodPost, "/consume", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperror.CodeInternal, body["code"])
	assert.NotContains(t, w.Body.String(), "allocation bug")
	details, ok := body["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "req-42", details["request_id"])

	active, err := store.Lots().ListActive(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, types.NewQuantity(10), active[0].Remaining)

	// The material lock was released with the rolled back transaction.
	err = store.TxManager().RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := store.Materials().GetForUpdate(ctx, m.ID)
		return err
	})
	assert.NoError(t, err)
}
