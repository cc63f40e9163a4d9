package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedUnique(t *testing.T) {
	a := MustParse("00000000-0000-0000-0000-000000000001")
	b := MustParse("00000000-0000-0000-0000-000000000002")
	c := MustParse("00000000-0000-0000-0000-000000000003")

	assert.Equal(t, []ID{a, b, c}, SortedUnique([]ID{c, a, b, a, c}))
	assert.Empty(t, SortedUnique(nil))
}

func TestNew_TimeOrdered(t *testing.T) {
	first := New()
	second := New()
	assert.Equal(t, -1, Compare(first, second))
	assert.False(t, IsNil(first))
}
