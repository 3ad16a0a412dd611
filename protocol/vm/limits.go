package vm

// Limits bounds the resources a single engine may consume. Exceeding
// any of them faults the engine.
type Limits struct {
	// MaxShift is the largest shift SHL and SHR accept.
	MaxShift int

	// MaxStackSize bounds the reference count after a collection,
	// and the number of items a struct clone may copy.
	MaxStackSize int

	// MaxItemSize is the largest byte string or buffer, in bytes.
	MaxItemSize int

	// MaxIntegerSize is the largest integer operand or result,
	// in bytes of two's complement encoding.
	MaxIntegerSize int

	// MaxArraySize bounds the number of items in an array, struct
	// or map.
	MaxArraySize int

	MaxInvocationStackSize int
	MaxTryNestingDepth     int

	// MaxComparableSize bounds the items visited by one EQUAL.
	MaxComparableSize int
}

func DefaultLimits() Limits {
	return Limits{
		MaxShift:               256,
		MaxStackSize:           2 * 1024,
		MaxItemSize:            1024 * 1024,
		MaxIntegerSize:         32,
		MaxArraySize:           1024,
		MaxInvocationStackSize: 1024,
		MaxTryNestingDepth:     16,
		MaxComparableSize:      65536,
	}
}
