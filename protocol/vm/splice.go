package vm

import (
	"scriptvm/errors"
)

func opCat(vm *ExecutionEngine) error {
	b, err := vm.popBytes()
	if err != nil {
		return err
	}
	a, err := vm.popBytes()
	if err != nil {
		return err
	}
	if len(a)+len(b) > vm.limits.MaxItemSize {
		return errors.WithDetailf(ErrItemTooLarge, "%d bytes", len(a)+len(b))
	}
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return vm.pushBytes(out)
}

// SUBSTR pops count, index and a byte string, and pushes count
// bytes starting at index. The range must lie within the string.
func opSubstr(vm *ExecutionEngine) error {
	count, err := vm.popIndex()
	if err != nil {
		return err
	}
	index, err := vm.popIndex()
	if err != nil {
		return err
	}
	s, err := vm.popBytes()
	if err != nil {
		return err
	}
	if index > len(s) || count > len(s)-index {
		return errors.WithDetailf(ErrBadIndex, "substring [%d, %d+%d) of %d bytes", index, index, count, len(s))
	}
	return vm.pushBytes(append([]byte(nil), s[index:index+count]...))
}

func opLeft(vm *ExecutionEngine) error {
	count, err := vm.popIndex()
	if err != nil {
		return err
	}
	s, err := vm.popBytes()
	if err != nil {
		return err
	}
	if count > len(s) {
		return errors.WithDetailf(ErrBadIndex, "left %d of %d bytes", count, len(s))
	}
	return vm.pushBytes(append([]byte(nil), s[:count]...))
}

func opRight(vm *ExecutionEngine) error {
	count, err := vm.popIndex()
	if err != nil {
		return err
	}
	s, err := vm.popBytes()
	if err != nil {
		return err
	}
	if count > len(s) {
		return errors.WithDetailf(ErrBadIndex, "right %d of %d bytes", count, len(s))
	}
	return vm.pushBytes(append([]byte(nil), s[len(s)-count:]...))
}

func opSize(vm *ExecutionEngine) error {
	s, err := vm.popBytes()
	if err != nil {
		return err
	}
	vm.push(NewInt64(int64(len(s))))
	return nil
}
