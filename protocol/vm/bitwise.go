package vm

import (
	"math/big"
)

func opInvert(vm *ExecutionEngine) error {
	x, err := vm.popInt()
	if err != nil {
		return err
	}
	return vm.pushInt(x.Not(x))
}

func opAnd(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) { return a.And(a, b), nil })
}

func opOr(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) { return a.Or(a, b), nil })
}

func opXor(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) { return a.Xor(a, b), nil })
}

// EQUAL compares any two items; structs compare element-wise.
func opEqual(vm *ExecutionEngine) error {
	b, err := vm.pop()
	if err != nil {
		return err
	}
	a, err := vm.pop()
	if err != nil {
		return err
	}
	eq, err := EqualWithin(a, b, vm.limits.MaxComparableSize)
	if err != nil {
		return err
	}
	vm.push(Boolean(eq))
	return nil
}
