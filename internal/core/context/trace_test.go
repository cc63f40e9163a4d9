package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrace(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, GetTrace(ctx))
	assert.Empty(t, GetRequestID(ctx))

	a, b := NewTraceContext(), NewTraceContext()
	assert.NotEqual(t, a.RequestID, b.RequestID)
	assert.Len(t, a.SpanID, 16)

	ctx = WithTrace(ctx, a)
	assert.Same(t, a, GetTrace(ctx))
	assert.Equal(t, a.RequestID, GetRequestID(ctx))
}
