// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"lotcost/internal/core/id"
)

// IDResponse is returned after creating an entity.
type IDResponse struct {
	ID string `json:"id"`
}

// SuccessResponse is a generic acknowledgement.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse documents the error body rendered by the error middleware.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ParseID parses a path or body identifier.
func ParseID(raw string) (id.ID, error) {
	return id.Parse(raw)
}
