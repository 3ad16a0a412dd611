package vm

import (
	"math/big"

	"scriptvm/errors"
)

var bigOne = big.NewInt(1)

func bigInt(n int) *big.Int { return big.NewInt(int64(n)) }

// unaryInt pops an integer and pushes f of it.
func (vm *ExecutionEngine) unaryInt(f func(*big.Int) *big.Int) error {
	x, err := vm.popInt()
	if err != nil {
		return err
	}
	return vm.pushInt(f(x))
}

// binaryInt pops b then a and pushes f(a, b). f may modify a.
func (vm *ExecutionEngine) binaryInt(f func(a, b *big.Int) (*big.Int, error)) error {
	b, err := vm.popInt()
	if err != nil {
		return err
	}
	a, err := vm.popInt()
	if err != nil {
		return err
	}
	r, err := f(a, b)
	if err != nil {
		return err
	}
	return vm.pushInt(r)
}

// compareInt pops b then a and pushes f(a.Cmp(b)).
func (vm *ExecutionEngine) compareInt(f func(cmp int) bool) error {
	b, err := vm.popInt()
	if err != nil {
		return err
	}
	a, err := vm.popInt()
	if err != nil {
		return err
	}
	vm.push(Boolean(f(a.Cmp(b))))
	return nil
}

func opInc(vm *ExecutionEngine) error {
	return vm.unaryInt(func(x *big.Int) *big.Int { return x.Add(x, bigOne) })
}

func opDec(vm *ExecutionEngine) error {
	return vm.unaryInt(func(x *big.Int) *big.Int { return x.Sub(x, bigOne) })
}

func opSign(vm *ExecutionEngine) error {
	return vm.unaryInt(func(x *big.Int) *big.Int { return big.NewInt(int64(x.Sign())) })
}

func opNegate(vm *ExecutionEngine) error {
	return vm.unaryInt(func(x *big.Int) *big.Int { return x.Neg(x) })
}

func opAbs(vm *ExecutionEngine) error {
	return vm.unaryInt(func(x *big.Int) *big.Int { return x.Abs(x) })
}

func opNot(vm *ExecutionEngine) error {
	ok, err := vm.popBool()
	if err != nil {
		return err
	}
	vm.push(Boolean(!ok))
	return nil
}

func opNz(vm *ExecutionEngine) error {
	x, err := vm.popInt()
	if err != nil {
		return err
	}
	vm.push(Boolean(x.Sign() != 0))
	return nil
}

func opAdd(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) { return a.Add(a, b), nil })
}

func opSub(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) { return a.Sub(a, b), nil })
}

func opMul(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) { return a.Mul(a, b), nil })
}

// DIV truncates toward zero.
func opDiv(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, ErrDivZero
		}
		return a.Quo(a, b), nil
	})
}

// MOD takes the sign of the dividend.
func opMod(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if b.Sign() == 0 {
			return nil, ErrDivZero
		}
		return a.Rem(a, b), nil
	})
}

func (vm *ExecutionEngine) shift(left bool) error {
	n, err := vm.popInt()
	if err != nil {
		return err
	}
	if n.Sign() < 0 || n.Cmp(bigInt(vm.limits.MaxShift)) > 0 {
		return errors.WithDetailf(ErrBadValue, "shift %s outside [0, %d]", n, vm.limits.MaxShift)
	}
	x, err := vm.popInt()
	if err != nil {
		return err
	}
	if left {
		return vm.pushInt(x.Lsh(x, uint(n.Uint64())))
	}
	return vm.pushInt(x.Rsh(x, uint(n.Uint64())))
}

func opShl(vm *ExecutionEngine) error { return vm.shift(true) }
func opShr(vm *ExecutionEngine) error { return vm.shift(false) }

func opBoolAnd(vm *ExecutionEngine) error {
	b, err := vm.popBool()
	if err != nil {
		return err
	}
	a, err := vm.popBool()
	if err != nil {
		return err
	}
	vm.push(Boolean(a && b))
	return nil
}

func opBoolOr(vm *ExecutionEngine) error {
	b, err := vm.popBool()
	if err != nil {
		return err
	}
	a, err := vm.popBool()
	if err != nil {
		return err
	}
	vm.push(Boolean(a || b))
	return nil
}

func opNumEqual(vm *ExecutionEngine) error {
	return vm.compareInt(func(c int) bool { return c == 0 })
}

func opNumNotEqual(vm *ExecutionEngine) error {
	return vm.compareInt(func(c int) bool { return c != 0 })
}

func opLessThan(vm *ExecutionEngine) error {
	return vm.compareInt(func(c int) bool { return c < 0 })
}

func opGreaterThan(vm *ExecutionEngine) error {
	return vm.compareInt(func(c int) bool { return c > 0 })
}

func opLessThanOrEqual(vm *ExecutionEngine) error {
	return vm.compareInt(func(c int) bool { return c <= 0 })
}

func opGreaterThanOrEqual(vm *ExecutionEngine) error {
	return vm.compareInt(func(c int) bool { return c >= 0 })
}

func opMin(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if a.Cmp(b) <= 0 {
			return a, nil
		}
		return b, nil
	})
}

func opMax(vm *ExecutionEngine) error {
	return vm.binaryInt(func(a, b *big.Int) (*big.Int, error) {
		if a.Cmp(b) >= 0 {
			return a, nil
		}
		return b, nil
	})
}

// WITHIN pops b, a and x, and pushes a <= x < b.
func opWithin(vm *ExecutionEngine) error {
	b, err := vm.popInt()
	if err != nil {
		return err
	}
	a, err := vm.popInt()
	if err != nil {
		return err
	}
	x, err := vm.popInt()
	if err != nil {
		return err
	}
	vm.push(Boolean(a.Cmp(x) <= 0 && x.Cmp(b) < 0))
	return nil
}
