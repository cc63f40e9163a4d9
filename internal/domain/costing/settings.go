package costing

import (
	"fmt"

	"lotcost/internal/core/id"
)

// Settings resolves the costing method of an organization.
// The engine never reads it; callers resolve the method once per operation
// and pass it explicitly.
type Settings struct {
	Default   Method
	Overrides map[id.ID]Method
}

// NewSettings builds Settings from configuration strings.
func NewSettings(defaultMethod string, overrides map[string]string) (Settings, error) {
	def, err := ParseMethod(defaultMethod)
	if err != nil {
		return Settings{}, fmt.Errorf("default costing method: %w", err)
	}

	s := Settings{Default: def, Overrides: make(map[id.ID]Method, len(overrides))}
	for org, raw := range overrides {
		orgID, err := id.Parse(org)
		if err != nil {
			return Settings{}, fmt.Errorf("costing override organization %q: %w", org, err)
		}
		m, err := ParseMethod(raw)
		if err != nil {
			return Settings{}, fmt.Errorf("costing override for %s: %w", org, err)
		}
		s.Overrides[orgID] = m
	}
	return s, nil
}

// MethodFor returns the organization's method, falling back to the default.
func (s Settings) MethodFor(organizationID id.ID) Method {
	if m, ok := s.Overrides[organizationID]; ok {
		return m
	}
	if s.Default.IsValid() {
		return s.Default
	}
	return FIFO
}
