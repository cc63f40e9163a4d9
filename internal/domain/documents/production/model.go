// Package production completes manufacturing orders: components are consumed
// and the finished good is credited with a lot at their cost.
package production

import (
	"context"
	"fmt"
	"time"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/costing"
	"lotcost/internal/domain/registers/lots"
)

// Order is a manufacturing order ready for completion.
type Order struct {
	ID             id.ID          `json:"id"`
	Number         string         `json:"number"`
	OrganizationID id.ID          `json:"organizationId"`
	ProductID      id.ID          `json:"productId"`
	Quantity       types.Quantity `json:"quantity"`
	Date           time.Time      `json:"date"`
	Components     []Component    `json:"components"`
}

// Component is one bill-of-materials entry.
type Component struct {
	MaterialID      id.ID          `json:"materialId"`
	QuantityPerUnit types.Quantity `json:"quantityPerUnit"`
}

// NewOrder creates an order producing quantity units of the product.
func NewOrder(organizationID, productID id.ID, quantity types.Quantity) *Order {
	return &Order{
		ID:             id.New(),
		OrganizationID: organizationID,
		ProductID:      productID,
		Quantity:       quantity,
		Date:           time.Now().UTC(),
	}
}

// AddComponent appends a bill-of-materials entry.
func (o *Order) AddComponent(materialID id.ID, perUnit types.Quantity) {
	o.Components = append(o.Components, Component{MaterialID: materialID, QuantityPerUnit: perUnit})
}

// Validate checks the order before completion.
func (o *Order) Validate(_ context.Context) error {
	if id.IsNil(o.OrganizationID) {
		return apperror.NewValidation("organization is required").
			WithDetail("field", "organizationId")
	}
	if id.IsNil(o.ProductID) {
		return apperror.NewValidation("product is required").
			WithDetail("field", "productId")
	}
	if !o.Quantity.IsPositive() {
		return apperror.NewInvalidQuantity(o.Quantity.String()).
			WithDetail("field", "quantity")
	}
	if len(o.Components) == 0 {
		return apperror.NewValidation("order has no components").
			WithDetail("field", "components")
	}

	for i, c := range o.Components {
		field := fmt.Sprintf("components[%d]", i)
		if id.IsNil(c.MaterialID) {
			return apperror.NewValidation("material is required").
				WithDetail("field", field+".materialId")
		}
		if c.MaterialID == o.ProductID {
			return apperror.NewValidation("product cannot be its own component").
				WithDetail("field", field+".materialId")
		}
		if !c.QuantityPerUnit.IsPositive() {
			return apperror.NewInvalidQuantity(c.QuantityPerUnit.String()).
				WithDetail("field", field+".quantityPerUnit")
		}
		// The requirement is truncated to the quantity scale.
		if required := c.QuantityPerUnit.Mul(o.Quantity); !required.IsPositive() {
			return apperror.NewInvalidQuantity(required.String()).
				WithDetail("field", field+".quantityPerUnit").
				WithDetail("reason", "requirement rounds to zero")
		}
	}
	return nil
}

// Requirements returns the total quantity needed per component material.
func (o *Order) Requirements() map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity, len(o.Components))
	for _, c := range o.Components {
		out[c.MaterialID] += c.QuantityPerUnit.Mul(o.Quantity)
	}
	return out
}

// Completion is the outcome of completing an order.
type Completion struct {
	OrderID      id.ID                  `json:"orderId"`
	Number       string                 `json:"number"`
	Method       costing.Method         `json:"method"`
	Consumptions []*costing.Consumption `json:"consumptions"`
	TotalCost    types.Money            `json:"totalCost"`
	UnitCost     types.Money            `json:"unitCost"`
	Lot          *lots.Lot              `json:"lot"`
}
