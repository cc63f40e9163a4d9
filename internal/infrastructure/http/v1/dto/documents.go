package dto

import (
	"time"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/documents/production"
	"lotcost/internal/domain/documents/sale"
)

// SaleLineRequest is one sold item.
type SaleLineRequest struct {
	MaterialID id.ID          `json:"materialId" binding:"required"`
	Quantity   types.Quantity `json:"quantity"`
	UnitPrice  types.Money    `json:"unitPrice"`
}

// CompleteSaleRequest is the body of POST /sales/complete.
type CompleteSaleRequest struct {
	Number string            `json:"number"`
	Date   *time.Time        `json:"date"`
	Lines  []SaleLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ToSale builds the domain document.
func (r *CompleteSaleRequest) ToSale(organizationID id.ID) *sale.Sale {
	s := sale.NewSale(organizationID)
	s.Number = r.Number
	if r.Date != nil {
		s.Date = r.Date.UTC()
	}
	for _, l := range r.Lines {
		s.AddLine(l.MaterialID, l.Quantity, l.UnitPrice)
	}
	return s
}

// ComponentRequest is one bill-of-materials entry.
type ComponentRequest struct {
	MaterialID      id.ID          `json:"materialId" binding:"required"`
	QuantityPerUnit types.Quantity `json:"quantityPerUnit"`
}

// CompleteOrderRequest is the body of POST /production-orders/complete.
type CompleteOrderRequest struct {
	Number     string             `json:"number"`
	Date       *time.Time         `json:"date"`
	ProductID  id.ID              `json:"productId" binding:"required"`
	Quantity   types.Quantity     `json:"quantity"`
	Components []ComponentRequest `json:"components" binding:"required,min=1,dive"`
}

// ToOrder builds the domain document.
func (r *CompleteOrderRequest) ToOrder(organizationID id.ID) *production.Order {
	o := production.NewOrder(organizationID, r.ProductID, r.Quantity)
	o.Number = r.Number
	if r.Date != nil {
		o.Date = r.Date.UTC()
	}
	for _, c := range r.Components {
		o.AddComponent(c.MaterialID, c.QuantityPerUnit)
	}
	return o
}
