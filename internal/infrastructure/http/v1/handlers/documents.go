package handlers

import (
	"github.com/gin-gonic/gin"

	"lotcost/internal/domain/documents/production"
	"lotcost/internal/domain/documents/sale"
	"lotcost/internal/infrastructure/http/v1/dto"
)

// DocumentHandler completes sales and manufacturing orders.
type DocumentHandler struct {
	*BaseHandler
	sales      *sale.Service
	production *production.Service
}

// NewDocumentHandler creates a document handler.
func NewDocumentHandler(base *BaseHandler, sales *sale.Service, prod *production.Service) *DocumentHandler {
	return &DocumentHandler{BaseHandler: base, sales: sales, production: prod}
}

// CompleteSale handles POST /sales/complete.
func (h *DocumentHandler) CompleteSale(c *gin.Context) {
	orgID, ok := h.OrganizationID(c)
	if !ok {
		return
	}
	var req dto.CompleteSaleRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.sales.Complete(c.Request.Context(), req.ToSale(orgID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}

// CompleteOrder handles POST /production-orders/complete.
func (h *DocumentHandler) CompleteOrder(c *gin.Context) {
	orgID, ok := h.OrganizationID(c)
	if !ok {
		return
	}
	var req dto.CompleteOrderRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.production.Complete(c.Request.Context(), req.ToOrder(orgID))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, result)
}
