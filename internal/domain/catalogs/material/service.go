package material

import (
	"context"
	"fmt"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
	"lotcost/internal/core/tx"
	"lotcost/pkg/logger"
)

// Service provides catalog operations on materials.
// Stock aggregates are not written here; see costing.Engine.
type Service struct {
	repo      Repository
	txManager tx.Manager
}

// NewService creates a material service.
func NewService(repo Repository, txManager tx.Manager) *Service {
	return &Service{repo: repo, txManager: txManager}
}

// Create validates and stores a new material with zero stock.
func (s *Service) Create(ctx context.Context, m *Material) error {
	if err := m.Validate(ctx); err != nil {
		return err
	}
	m.AvailableQuantities = 0
	m.Stock = 0

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, m); err != nil {
			return fmt.Errorf("create material: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "material created", "id", m.ID, "name", m.Name, "kind", m.Kind)
	return nil
}

// Get returns the material if it belongs to the organization.
// A material of another organization is reported as not found.
func (s *Service) Get(ctx context.Context, organizationID, materialID id.ID) (*Material, error) {
	m, err := s.repo.GetByID(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if m.OrganizationID != organizationID {
		return nil, apperror.NewMaterialNotFound(materialID)
	}
	return m, nil
}
