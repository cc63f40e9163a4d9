package dto

import (
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/costing"
)

// CostQuery is the query of GET /materials/:id/cost.
type CostQuery struct {
	Quantity string `form:"quantity" binding:"required"`
	Method   string `form:"method"`
}

// CostResponse is a pricing preview.
type CostResponse struct {
	MaterialID  id.ID          `json:"materialId"`
	Method      costing.Method `json:"method"`
	Quantity    types.Quantity `json:"quantity"`
	Cost        types.Money    `json:"cost"`
	AverageCost types.Money    `json:"averageCost"`
	Takes       []costing.Take `json:"takes"`
}

// NewCostResponse converts an allocation.
func NewCostResponse(materialID id.ID, alloc *costing.Allocation) CostResponse {
	return CostResponse{
		MaterialID:  materialID,
		Method:      alloc.Method,
		Quantity:    alloc.Requested,
		Cost:        alloc.Cost,
		AverageCost: alloc.AverageCost,
		Takes:       alloc.Takes,
	}
}

// ConsumeRequest is the body of POST /materials/:id/consume.
// The method is not selectable; the organization's configured one applies.
type ConsumeRequest struct {
	Quantity types.Quantity `json:"quantity"`
}
