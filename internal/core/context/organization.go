// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"lotcost/internal/core/id"
)

type organizationKey struct{}

// WithOrganization records the organization the current operation acts for.
// The costing method is resolved from it once per operation.
func WithOrganization(ctx context.Context, orgID id.ID) context.Context {
	return context.WithValue(ctx, organizationKey{}, orgID)
}

// GetOrganizationID returns the organization from context and whether it was set.
func GetOrganizationID(ctx context.Context) (id.ID, bool) {
	v, ok := ctx.Value(organizationKey{}).(id.ID)
	return v, ok
}
