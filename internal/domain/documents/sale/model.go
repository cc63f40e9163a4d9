// Package sale completes sales: raw materials sold directly are consumed
// from their lots, the rest only count towards revenue.
package sale

import (
	"context"
	"fmt"
	"time"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/costing"
)

// Sale is a completed checkout.
type Sale struct {
	ID             id.ID     `json:"id"`
	Number         string    `json:"number"`
	OrganizationID id.ID     `json:"organizationId"`
	Date           time.Time `json:"date"`
	Lines          []Line    `json:"lines"`
}

// Line is one sold item.
type Line struct {
	LineNo     int            `json:"lineNo"`
	MaterialID id.ID          `json:"materialId"`
	Quantity   types.Quantity `json:"quantity"`
	UnitPrice  types.Money    `json:"unitPrice"`
}

// NewSale creates an empty sale dated now.
func NewSale(organizationID id.ID) *Sale {
	return &Sale{
		ID:             id.New(),
		OrganizationID: organizationID,
		Date:           time.Now().UTC(),
		Lines:          make([]Line, 0),
	}
}

// AddLine appends a line.
func (s *Sale) AddLine(materialID id.ID, quantity types.Quantity, unitPrice types.Money) {
	s.Lines = append(s.Lines, Line{
		LineNo:     len(s.Lines) + 1,
		MaterialID: materialID,
		Quantity:   quantity,
		UnitPrice:  unitPrice,
	})
}

// Revenue is the sum of quantity × unit price over all lines.
func (s *Sale) Revenue() types.Money {
	total := types.ZeroMoney()
	for _, l := range s.Lines {
		total = total.Add(types.CostOf(l.Quantity, l.UnitPrice))
	}
	return total
}

// Validate checks the sale before completion.
func (s *Sale) Validate(_ context.Context) error {
	if id.IsNil(s.OrganizationID) {
		return apperror.NewValidation("organization is required").
			WithDetail("field", "organizationId")
	}
	if len(s.Lines) == 0 {
		return apperror.NewValidation("sale has no lines").
			WithDetail("field", "lines")
	}

	for i, l := range s.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		if id.IsNil(l.MaterialID) {
			return apperror.NewValidation("material is required").
				WithDetail("field", field+".materialId")
		}
		if !l.Quantity.IsPositive() {
			return apperror.NewInvalidQuantity(l.Quantity.String()).
				WithDetail("field", field+".quantity")
		}
		if l.UnitPrice.IsNegative() {
			return apperror.NewValidation("unit price cannot be negative").
				WithDetail("field", field+".unitPrice")
		}
	}
	return nil
}

// quantities sums line quantities per material.
func (s *Sale) quantities() map[id.ID]types.Quantity {
	out := make(map[id.ID]types.Quantity, len(s.Lines))
	for _, l := range s.Lines {
		out[l.MaterialID] += l.Quantity
	}
	return out
}

// Completion is the outcome of completing a sale.
type Completion struct {
	SaleID  id.ID          `json:"saleId"`
	Number  string         `json:"number"`
	Method  costing.Method `json:"method"`
	Revenue types.Money    `json:"revenue"`

	// Cost is the sum of consumption costs.
	Cost         types.Money            `json:"cost"`
	Consumptions []*costing.Consumption `json:"consumptions"`

	// Skipped lists materials that were sold without consuming lots.
	Skipped []id.ID `json:"skipped"`
}
