package dto

import (
	"time"

	"lotcost/internal/core/id"
	"lotcost/internal/core/types"
	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/registers/lots"
)

// CreateMaterialRequest is the body of POST /materials.
type CreateMaterialRequest struct {
	Name             string          `json:"name" binding:"required"`
	Kind             string          `json:"kind"`
	SoldDirectly     bool            `json:"soldDirectly"`
	UnitCost         *types.Money    `json:"unitCost"`
	MeasurementUnit  *string         `json:"measurementUnit"`
	MeasurementValue *types.Quantity `json:"measurementValue"`
}

// ToMaterial builds the domain entity for the organization.
func (r *CreateMaterialRequest) ToMaterial(organizationID id.ID) *material.Material {
	m := material.NewMaterial(organizationID, r.Name)
	if r.Kind != "" {
		m.Kind = material.Kind(r.Kind)
	}
	m.SoldDirectly = r.SoldDirectly
	if r.UnitCost != nil {
		m.UnitCost = *r.UnitCost
	}
	m.MeasurementUnit = r.MeasurementUnit
	m.MeasurementValue = r.MeasurementValue
	return m
}

// ReceiveLotRequest is the body of POST /materials/:id/lots.
type ReceiveLotRequest struct {
	Quantity   types.Quantity `json:"quantity"`
	CostPrice  types.Money    `json:"costPrice"`
	ReceivedAt *time.Time     `json:"receivedAt"`
	BatchRef   string         `json:"batchRef"`
}

// LotsResponse lists lots of a material.
type LotsResponse struct {
	MaterialID id.ID          `json:"materialId"`
	Items      []*lots.Lot    `json:"items"`
	Total      types.Quantity `json:"totalRemaining"`
}
