package vm

import (
	"scriptvm/errors"
)

func (vm *ExecutionEngine) altStack() (*EvaluationStack, error) {
	alt := vm.CurrentContext().AltStack
	if alt.Len() == 0 {
		return nil, ErrAltStackUnderflow
	}
	return alt, nil
}

func opDupFromAltStack(vm *ExecutionEngine) error {
	alt, err := vm.altStack()
	if err != nil {
		return err
	}
	item, err := alt.Peek(0)
	if err != nil {
		return err
	}
	vm.push(item)
	return nil
}

func opToAltStack(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	vm.CurrentContext().AltStack.Push(item)
	return nil
}

func opFromAltStack(vm *ExecutionEngine) error {
	alt, err := vm.altStack()
	if err != nil {
		return err
	}
	item, err := alt.Pop()
	if err != nil {
		return err
	}
	vm.push(item)
	return nil
}

func opXDrop(vm *ExecutionEngine) error {
	n, err := vm.popIndex()
	if err != nil {
		return err
	}
	_, err = vm.CurrentContext().EvaluationStack.Remove(n)
	return err
}

func opXSwap(vm *ExecutionEngine) error {
	n, err := vm.popIndex()
	if err != nil {
		return err
	}
	return vm.CurrentContext().EvaluationStack.Swap(0, n)
}

func opXTuck(vm *ExecutionEngine) error {
	n, err := vm.popIndex()
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.WithDetail(ErrBadIndex, "XTUCK 0")
	}
	top, err := vm.peek(0)
	if err != nil {
		return err
	}
	return vm.CurrentContext().EvaluationStack.Insert(n, top)
}

func opDepth(vm *ExecutionEngine) error {
	vm.push(NewInt64(int64(vm.CurrentContext().EvaluationStack.Len())))
	return nil
}

func opDrop(vm *ExecutionEngine) error {
	_, err := vm.pop()
	return err
}

func opDup(vm *ExecutionEngine) error {
	return vm.pick(0)
}

func opNip(vm *ExecutionEngine) error {
	_, err := vm.CurrentContext().EvaluationStack.Remove(1)
	return err
}

func opOver(vm *ExecutionEngine) error {
	return vm.pick(1)
}

func opPick(vm *ExecutionEngine) error {
	n, err := vm.popIndex()
	if err != nil {
		return err
	}
	return vm.pick(n)
}

func (vm *ExecutionEngine) pick(n int) error {
	item, err := vm.peek(n)
	if err != nil {
		return err
	}
	vm.push(item)
	return nil
}

func opRoll(vm *ExecutionEngine) error {
	n, err := vm.popIndex()
	if err != nil {
		return err
	}
	if n == 0 {
		return nil
	}
	return vm.roll(n)
}

func (vm *ExecutionEngine) roll(n int) error {
	item, err := vm.CurrentContext().EvaluationStack.Remove(n)
	if err != nil {
		return err
	}
	vm.push(item)
	return nil
}

func opRot(vm *ExecutionEngine) error {
	return vm.roll(2)
}

func opSwap(vm *ExecutionEngine) error {
	return vm.CurrentContext().EvaluationStack.Swap(0, 1)
}

func opTuck(vm *ExecutionEngine) error {
	top, err := vm.peek(0)
	if err != nil {
		return err
	}
	if vm.CurrentContext().EvaluationStack.Len() < 2 {
		return errors.WithDetail(ErrStackUnderflow, "TUCK needs 2 items")
	}
	return vm.CurrentContext().EvaluationStack.Insert(2, top)
}
