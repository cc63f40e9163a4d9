package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want Quantity
	}{
		{"1", 10_000},
		{"0.5", 5_000},
		{"-2.25", -22_500},
		{"+3.00019", 30_001},
		{".1", 1_000},
		{"1e2", 1_000_000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantity(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseQuantity("")
	assert.Error(t, err)
	_, err = ParseQuantity("abc")
	assert.Error(t, err)
}

func TestQuantity_ExactSum(t *testing.T) {
	a, _ := ParseQuantity("0.1")
	b, _ := ParseQuantity("0.2")
	c, _ := ParseQuantity("0.3")
	assert.Equal(t, c, a+b)
}

func TestQuantity_JSON(t *testing.T) {
	var payload struct {
		Qty Quantity `json:"qty"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"qty":"12.5"}`), &payload))
	assert.Equal(t, NewQuantityFromFloat64(12.5), payload.Qty)

	require.NoError(t, json.Unmarshal([]byte(`{"qty":7}`), &payload))
	assert.Equal(t, NewQuantity(7), payload.Qty)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":7.0000}`, string(out))
}

func TestQuantity_WholeUnitsOf(t *testing.T) {
	assert.Equal(t, int64(3), NewQuantity(1600).WholeUnitsOf(NewQuantity(500)))
	assert.Equal(t, int64(0), NewQuantity(499).WholeUnitsOf(NewQuantity(500)))
	assert.Equal(t, int64(0), NewQuantity(10).WholeUnitsOf(0))
	assert.Equal(t, int64(0), Quantity(-5).WholeUnitsOf(NewQuantity(1)))
}

func TestCostOf(t *testing.T) {
	qty, _ := ParseQuantity("2.5")
	assert.True(t, MustMoney("38.75").Equal(CostOf(qty, MustMoney("15.50"))))
}

func TestQuantity_Mul(t *testing.T) {
	perUnit, _ := ParseQuantity("0.25")
	assert.Equal(t, NewQuantity(3), perUnit.Mul(NewQuantity(12)))
}
