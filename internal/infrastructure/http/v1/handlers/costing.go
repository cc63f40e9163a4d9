package handlers

import (
	"github.com/gin-gonic/gin"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/costing"
	"lotcost/internal/infrastructure/http/v1/dto"
)

// CostingHandler serves pricing previews and direct consumption.
type CostingHandler struct {
	*MaterialHandler
	settings costing.Settings
}

// NewCostingHandler creates a costing handler.
func NewCostingHandler(materials *MaterialHandler, settings costing.Settings) *CostingHandler {
	return &CostingHandler{MaterialHandler: materials, settings: settings}
}

// Cost handles GET /materials/:id/cost?quantity=&method=.
func (h *CostingHandler) Cost(c *gin.Context) {
	m, ok := h.material(c)
	if !ok {
		return
	}
	var q dto.CostQuery
	if !h.BindQuery(c, &q) {
		return
	}

	qty, err := types.ParseQuantity(q.Quantity)
	if err != nil {
		h.Error(c, apperror.NewInvalidQuantity(q.Quantity).WithDetail("error", err.Error()))
		return
	}
	method, ok := h.method(c, m.OrganizationID, q.Method)
	if !ok {
		return
	}

	alloc, err := h.engine.Preview(c.Request.Context(), m.ID, qty, method)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewCostResponse(m.ID, alloc))
}

// Consume handles POST /materials/:id/consume. Consumption always uses the
// organization's configured method.
func (h *CostingHandler) Consume(c *gin.Context) {
	m, ok := h.material(c)
	if !ok {
		return
	}
	var req dto.ConsumeRequest
	if !h.BindJSON(c, &req) {
		return
	}
	method := h.settings.MethodFor(m.OrganizationID)

	result, err := h.engine.Consume(c.Request.Context(), m.ID, req.Quantity, method)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// method parses an explicit method or falls back to the organization's.
func (h *CostingHandler) method(c *gin.Context, orgID id.ID, raw string) (costing.Method, bool) {
	if raw == "" {
		return h.settings.MethodFor(orgID), true
	}
	m, err := costing.ParseMethod(raw)
	if err != nil {
		h.Error(c, err)
		return 0, false
	}
	return m, true
}
