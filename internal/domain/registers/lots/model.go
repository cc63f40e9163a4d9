// Package lots provides the lot register: purchase lots of a material with
// their own remaining quantity and cost price.
package lots

import (
	"context"
	"strings"
	"time"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
)

// Lot is one receipt of a material.
// A lot with Remaining > 0 is active; a lot with Remaining == 0 is exhausted.
type Lot struct {
	ID         id.ID `db:"id" json:"id"`
	MaterialID id.ID `db:"material_id" json:"materialId"`

	// Quantity is the originally received amount, kept for reference.
	Quantity  types.Quantity `db:"quantity" json:"quantity"`
	Remaining types.Quantity `db:"remaining" json:"remaining"`

	// CostPrice is the cost per base unit.
	CostPrice types.Money `db:"cost_price" json:"costPrice"`

	ReceivedAt time.Time `db:"received_at" json:"receivedAt"`
	BatchRef   *string   `db:"batch_ref" json:"batchRef,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// NewLot creates a full (unconsumed) lot.
func NewLot(materialID id.ID, qty types.Quantity, costPrice types.Money, receivedAt time.Time) *Lot {
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}
	return &Lot{
		ID:         id.New(),
		MaterialID: materialID,
		Quantity:   qty,
		Remaining:  qty,
		CostPrice:  costPrice,
		ReceivedAt: receivedAt.UTC(),
		CreatedAt:  time.Now().UTC(),
	}
}

// WithBatchRef sets the free-form batch reference.
func (l *Lot) WithBatchRef(ref string) *Lot {
	if ref = strings.TrimSpace(ref); ref != "" {
		l.BatchRef = &ref
	}
	return l
}

// IsActive reports whether the lot still has stock.
func (l *Lot) IsActive() bool { return l.Remaining.IsPositive() }

// Value returns Remaining x CostPrice.
func (l *Lot) Value() types.Money { return types.CostOf(l.Remaining, l.CostPrice) }

// Validate checks lot invariants before insert.
func (l *Lot) Validate(_ context.Context) error {
	if id.IsNil(l.MaterialID) {
		return apperror.NewValidation("material is required").WithDetail("field", "materialId")
	}
	if !l.Quantity.IsPositive() {
		return apperror.NewInvalidQuantity(l.Quantity.String()).WithDetail("field", "quantity")
	}
	if l.Remaining.IsNegative() || l.Remaining > l.Quantity {
		return apperror.NewValidation("remaining must be between 0 and quantity").
			WithDetail("field", "remaining")
	}
	if l.CostPrice.IsNegative() {
		return apperror.NewValidation("cost price cannot be negative").WithDetail("field", "costPrice")
	}
	return nil
}

// TotalRemaining sums Remaining over the given lots.
func TotalRemaining(list []*Lot) types.Quantity {
	var total types.Quantity
	for _, l := range list {
		total += l.Remaining
	}
	return total
}
