/*
Package checked implements the offset arithmetic of the script
decoder and jump resolution, with overflow checks.
*/
package checked

import (
	"math"
)

// AddUint32 returns a + b
// with an integer overflow check.
func AddUint32(a, b uint32) (sum uint32, ok bool) {
	if math.MaxUint32-a < b {
		return 0, false
	}
	return a + b, true
}

// AddInt32 returns a + b
// with an integer overflow check.
func AddInt32(a, b int32) (sum int32, ok bool) {
	if (b > 0 && a > math.MaxInt32-b) ||
		(b < 0 && a < math.MinInt32-b) {
		return 0, false
	}
	return a + b, true
}
