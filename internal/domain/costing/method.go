// Package costing implements cost estimation, lot consumption and stock
// resynchronization for materials tracked by purchase lots.
package costing

import (
	"fmt"
	"strings"

	"lotcost/internal/core/apperror"
)

// Method selects the cost flow assumption. The zero value is invalid.
type Method uint8

const (
	methodInvalid Method = iota
	FIFO
	LIFO
	WAC
)

// Methods lists every valid method.
var Methods = []Method{FIFO, LIFO, WAC}

func (m Method) String() string {
	switch m {
	case FIFO:
		return "fifo"
	case LIFO:
		return "lifo"
	case WAC:
		return "wac"
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// IsValid reports whether m is one of FIFO, LIFO or WAC.
func (m Method) IsValid() bool {
	switch m {
	case FIFO, LIFO, WAC:
		return true
	}
	return false
}

// ParseMethod parses "fifo", "lifo" or "wac" (case-insensitive).
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fifo":
		return FIFO, nil
	case "lifo":
		return LIFO, nil
	case "wac":
		return WAC, nil
	}
	return methodInvalid, errInvalidMethod(s)
}

func errInvalidMethod(v any) *apperror.AppError {
	return apperror.NewValidation("costing method must be one of fifo, lifo, wac").
		WithDetail("field", "method").
		WithDetail("value", fmt.Sprint(v))
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	if !m.IsValid() {
		return nil, errInvalidMethod(uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Order is the sequence in which lots are depleted.
type Order uint8

const (
	OldestFirst Order = iota + 1
	NewestFirst
)

// DepletionOrder returns the lot order used to decrement stock.
// WAC only affects valuation; its lots are depleted oldest first.
func (m Method) DepletionOrder() Order {
	switch m {
	case FIFO, WAC:
		return OldestFirst
	case LIFO:
		return NewestFirst
	}
	panic(fmt.Sprintf("costing: depletion order of %s", m))
}
