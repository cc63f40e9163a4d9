// Package material provides the Material catalog: products tracked by
// base-unit inventory and consumed by sales or manufacturing.
package material

import (
	"context"
	"strings"
	"time"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
)

// Kind defines the role of the item in the costing flow.
type Kind string

const (
	KindRawMaterial  Kind = "raw_material"
	KindFinishedGood Kind = "finished_good"
)

// Material is the aggregate that owns a set of purchase lots.
// AvailableQuantities and Stock are caches of the lot set and are written only
// by the stock synchronizer.
type Material struct {
	ID             id.ID  `db:"id" json:"id"`
	OrganizationID id.ID  `db:"organization_id" json:"organizationId"`
	Name           string `db:"name" json:"name"`
	Kind           Kind   `db:"kind" json:"kind"`

	// SoldDirectly marks raw materials that a sale consumes line by line.
	SoldDirectly bool `db:"sold_directly" json:"soldDirectly"`

	// UnitCost is advisory (display only); consumption cost comes from lots.
	UnitCost types.Money `db:"unit_cost" json:"unitCost"`

	// MeasurementUnit/MeasurementValue define a pack: e.g. "g" / 1000.
	MeasurementUnit  *string         `db:"measurement_unit" json:"measurementUnit,omitempty"`
	MeasurementValue *types.Quantity `db:"measurement_value" json:"measurementValue,omitempty"`

	AvailableQuantities types.Quantity `db:"available_quantities" json:"availableQuantities"`
	Stock               types.Quantity `db:"stock" json:"stock"`

	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewMaterial creates a raw material with zero stock.
func NewMaterial(organizationID id.ID, name string) *Material {
	now := time.Now().UTC()
	return &Material{
		ID:             id.New(),
		OrganizationID: organizationID,
		Name:           name,
		Kind:           KindRawMaterial,
		UnitCost:       types.ZeroMoney(),
		Version:        1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// WithPack sets the pack definition (unit name and base units per pack).
func (m *Material) WithPack(unit string, value types.Quantity) *Material {
	m.MeasurementUnit = &unit
	m.MeasurementValue = &value
	return m
}

// PackSize returns base units per pack when a positive measurement is defined.
func (m *Material) PackSize() (types.Quantity, bool) {
	if m.MeasurementValue == nil || !m.MeasurementValue.IsPositive() {
		return 0, false
	}
	return *m.MeasurementValue, true
}

// ComputeAggregates derives availableQuantities and stock from the sum of lot remainders.
// A negative sum is clamped to zero.
func (m *Material) ComputeAggregates(totalRemaining types.Quantity) (available, stock types.Quantity) {
	available = max(totalRemaining, 0)
	if pack, ok := m.PackSize(); ok {
		return available, types.NewQuantity(available.WholeUnitsOf(pack))
	}
	return available, available
}

// IsDirectSaleRawMaterial reports whether a sale line of this material consumes lots.
func (m *Material) IsDirectSaleRawMaterial() bool {
	return m.Kind == KindRawMaterial && m.SoldDirectly
}

// Validate checks the authored fields. Aggregates are not validated: they are derived.
func (m *Material) Validate(ctx context.Context) error {
	if strings.TrimSpace(m.Name) == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}

	switch m.Kind {
	case KindRawMaterial, KindFinishedGood:
	default:
		return apperror.NewValidation("invalid material kind").
			WithDetail("field", "kind").
			WithDetail("value", string(m.Kind))
	}

	if m.UnitCost.IsNegative() {
		return apperror.NewValidation("unit cost cannot be negative").
			WithDetail("field", "unitCost")
	}

	if m.MeasurementValue != nil && m.MeasurementValue.IsNegative() {
		return apperror.NewValidation("measurement value cannot be negative").
			WithDetail("field", "measurementValue")
	}

	if m.MeasurementUnit != nil && *m.MeasurementUnit != "" && m.MeasurementValue == nil {
		return apperror.NewValidation("measurement unit requires a measurement value").
			WithDetail("field", "measurementValue")
	}

	return nil
}
