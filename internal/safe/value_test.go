package safe

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint64ToInt64(t *testing.T) {
	v, clamped := Uint64ToInt64(9000000)
	assert.Equal(t, int64(9000000), v)
	assert.False(t, clamped)

	v, clamped = Uint64ToInt64(math.MaxInt64)
	assert.Equal(t, int64(math.MaxInt64), v)
	assert.False(t, clamped)

	v, clamped = Uint64ToInt64(math.MaxInt64 + 1)
	assert.Equal(t, int64(math.MaxInt64), v)
	assert.True(t, clamped)
}
