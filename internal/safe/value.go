// Package safe provides overflow-aware numeric conversions. Slot and
// block numbers arrive from the backend as UInt64 but are used as int64
// in chain arithmetic.
package safe

import (
	"math"
)

// Uint64ToInt64 converts an uint64 to int64, clamping to math.MaxInt64
// on overflow. Returns the converted value and whether clamping occurred.
func Uint64ToInt64(val uint64) (int64, bool) {
	if val > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(val), false
}
