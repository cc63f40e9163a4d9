package handlers

import (
	"github.com/gin-gonic/gin"

	"lotcost/internal/core/id"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/costing"
	"lotcost/internal/domain/registers/lots"
	"lotcost/internal/infrastructure/http/v1/dto"
)

// MaterialHandler serves material catalog and lot endpoints.
type MaterialHandler struct {
	*BaseHandler
	materials *material.Service
	engine    *costing.Engine
}

// NewMaterialHandler creates a material handler.
func NewMaterialHandler(base *BaseHandler, materials *material.Service, engine *costing.Engine) *MaterialHandler {
	return &MaterialHandler{BaseHandler: base, materials: materials, engine: engine}
}

// Create handles POST /materials.
func (h *MaterialHandler) Create(c *gin.Context) {
	orgID, ok := h.OrganizationID(c)
	if !ok {
		return
	}
	var req dto.CreateMaterialRequest
	if !h.BindJSON(c, &req) {
		return
	}

	m := req.ToMaterial(orgID)
	if err := h.materials.Create(c.Request.Context(), m); err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, m)
}

// Get handles GET /materials/:id.
func (h *MaterialHandler) Get(c *gin.Context) {
	m, ok := h.material(c)
	if !ok {
		return
	}
	h.OK(c, m)
}

// ListLots handles GET /materials/:id/lots[?all=true].
func (h *MaterialHandler) ListLots(c *gin.Context) {
	m, ok := h.material(c)
	if !ok {
		return
	}

	list, err := h.engine.ListLots(c.Request.Context(), m.ID, c.Query("all") == "true")
	if err != nil {
		h.Error(c, err)
		return
	}
	if list == nil {
		list = []*lots.Lot{}
	}
	h.OK(c, dto.LotsResponse{MaterialID: m.ID, Items: list, Total: lots.TotalRemaining(list)})
}

// Receive handles POST /materials/:id/lots.
func (h *MaterialHandler) Receive(c *gin.Context) {
	m, ok := h.material(c)
	if !ok {
		return
	}
	var req dto.ReceiveLotRequest
	if !h.BindJSON(c, &req) {
		return
	}

	in := costing.ReceiveInput{
		MaterialID: m.ID,
		Quantity:   req.Quantity,
		CostPrice:  req.CostPrice,
		BatchRef:   req.BatchRef,
	}
	if req.ReceivedAt != nil {
		in.ReceivedAt = req.ReceivedAt.UTC()
	}

	lot, err := h.engine.Receive(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, lot)
}

// Resync handles POST /materials/:id/resync.
func (h *MaterialHandler) Resync(c *gin.Context) {
	m, ok := h.material(c)
	if !ok {
		return
	}

	updated, err := h.engine.Resync(c.Request.Context(), m.ID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, updated)
}

// material loads the :id material of the request's organization.
func (h *MaterialHandler) material(c *gin.Context) (*material.Material, bool) {
	orgID, ok := h.OrganizationID(c)
	if !ok {
		return nil, false
	}
	materialID, ok := h.ParamID(c)
	if !ok {
		return nil, false
	}
	return h.load(c, orgID, materialID)
}

func (h *MaterialHandler) load(c *gin.Context, orgID, materialID id.ID) (*material.Material, bool) {
	m, err := h.materials.Get(c.Request.Context(), orgID, materialID)
	if err != nil {
		h.Error(c, err)
		return nil, false
	}
	return m, true
}
