package costing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lotcost/internal/core/apperror"
	"lotcost/internal/core/id"
)

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in   string
		want Method
	}{
		{"fifo", FIFO},
		{"LIFO", LIFO},
		{" wac ", WAC},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "fif0", "average"} {
		_, err := ParseMethod(bad)
		assert.True(t, apperror.HasCode(err, apperror.CodeValidation), bad)
	}
}

func TestMethodZeroValueIsInvalid(t *testing.T) {
	var m Method
	assert.False(t, m.IsValid())
	assert.Panics(t, func() { m.DepletionOrder() })

	_, err := json.Marshal(struct{ M Method }{m})
	assert.Error(t, err)
}

func TestMethodText(t *testing.T) {
	var v struct {
		Method Method `json:"method"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"method":"lifo"}`), &v))
	assert.Equal(t, LIFO, v.Method)

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"method":"lifo"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"method":"newest"}`), &v))
}

func TestDepletionOrder(t *testing.T) {
	assert.Equal(t, OldestFirst, FIFO.DepletionOrder())
	assert.Equal(t, NewestFirst, LIFO.DepletionOrder())
	assert.Equal(t, OldestFirst, WAC.DepletionOrder())
}

func TestSettings(t *testing.T) {
	org := id.New()
	s, err := NewSettings("fifo", map[string]string{org.String(): "wac"})
	require.NoError(t, err)

	assert.Equal(t, WAC, s.MethodFor(org))
	assert.Equal(t, FIFO, s.MethodFor(id.New()))

	_, err = NewSettings("bogus", nil)
	assert.Error(t, err)

	_, err = NewSettings("lifo", map[string]string{"not-a-uuid": "wac"})
	assert.Error(t, err)

	_, err = NewSettings("lifo", map[string]string{org.String(): "avg"})
	assert.Error(t, err)
}
