package vm

import (
	"fmt"

	"scriptvm/errors"
)

// TryState is the phase of a try region.
type TryState uint8

const (
	TryStateTry TryState = iota
	TryStateCatch
	TryStateFinally
)

func (s TryState) String() string {
	switch s {
	case TryStateTry:
		return "Try"
	case TryStateCatch:
		return "Catch"
	case TryStateFinally:
		return "Finally"
	}
	return fmt.Sprintf("TryState(%d)", uint8(s))
}

// ExceptionHandlingContext records one active try region.
// A pointer of -1 is absent.
type ExceptionHandlingContext struct {
	CatchPointer   int
	FinallyPointer int

	// EndPointer is where execution resumes after the finally
	// block, set by ENDTRY.
	EndPointer int

	State TryState
}

func (e *ExceptionHandlingContext) HasCatch() bool   { return e.CatchPointer >= 0 }
func (e *ExceptionHandlingContext) HasFinally() bool { return e.FinallyPointer >= 0 }

// TRY catch(int16) finally(int16); an offset of zero is absent.
func opTry(vm *ExecutionEngine) error {
	ctx := vm.CurrentContext()
	catchOffset := vm.inst.int16Operand(0)
	finallyOffset := vm.inst.int16Operand(2)
	if catchOffset == 0 && finallyOffset == 0 {
		return errors.WithDetail(ErrBadTry, "try without catch or finally")
	}
	if ctx.tryDepth() >= vm.limits.MaxTryNestingDepth {
		return errors.WithDetailf(ErrTryNesting, "depth %d", ctx.tryDepth())
	}
	h := &ExceptionHandlingContext{CatchPointer: -1, FinallyPointer: -1, EndPointer: -1}
	if catchOffset != 0 {
		target, err := vm.target(catchOffset)
		if err != nil {
			return err
		}
		h.CatchPointer = target
	}
	if finallyOffset != 0 {
		target, err := vm.target(finallyOffset)
		if err != nil {
			return err
		}
		h.FinallyPointer = target
	}
	ctx.TryStack = append(ctx.TryStack, h)
	return nil
}

// ENDTRY leaves the try or catch block, running the finally
// block first if there is one.
func opEndTry(vm *ExecutionEngine) error {
	ctx := vm.CurrentContext()
	h := ctx.currentTry()
	if h == nil {
		return errors.WithDetail(ErrBadTry, "ENDTRY outside try")
	}
	if h.State == TryStateFinally {
		return errors.WithDetail(ErrBadTry, "ENDTRY in finally block")
	}
	end, err := vm.target(vm.inst.int16Operand(0))
	if err != nil {
		return err
	}
	if h.HasFinally() {
		h.State = TryStateFinally
		h.EndPointer = end
		return vm.jumpTo(h.FinallyPointer)
	}
	ctx.TryStack = ctx.TryStack[:len(ctx.TryStack)-1]
	return vm.jumpTo(end)
}

// ENDFINALLY resumes after the try region, or continues unwinding
// if an exception is still uncaught.
func opEndFinally(vm *ExecutionEngine) error {
	ctx := vm.CurrentContext()
	h := ctx.currentTry()
	if h == nil || h.State != TryStateFinally {
		return errors.WithDetail(ErrBadTry, "ENDFINALLY outside finally")
	}
	ctx.TryStack = ctx.TryStack[:len(ctx.TryStack)-1]
	if vm.uncaught == nil {
		return vm.jumpTo(h.EndPointer)
	}
	return vm.handleException()
}

func opThrow(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	return vm.throw(item)
}

func opThrowIfNot(vm *ExecutionEngine) error {
	ok, err := vm.popBool()
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return vm.throw(ByteString("THROWIFNOT"))
}

// throw records item as the pending exception and unwinds to the
// nearest handler.
func (vm *ExecutionEngine) throw(item StackItem) error {
	vm.setUncaught(item)
	return vm.handleException()
}

func (vm *ExecutionEngine) setUncaught(item StackItem) {
	if vm.uncaught != nil {
		vm.refs.RemoveStackReference(vm.uncaught)
	}
	vm.uncaught = item
	if item != nil {
		vm.refs.AddStackReference(item, 1)
	}
}

// handleException searches the try stacks from the innermost frame
// outward. A catch block in a try region takes the exception; a
// finally block runs first if the region has no usable catch. Frames
// above the handling one are unloaded. With no handler the engine
// faults and the invocation stack is left intact.
func (vm *ExecutionEngine) handleException() error {
	for depth := len(vm.invocation) - 1; depth >= 0; depth-- {
		ctx := vm.invocation[depth]
		for len(ctx.TryStack) > 0 {
			h := ctx.currentTry()
			if h.State == TryStateFinally || (h.State == TryStateCatch && !h.HasFinally()) {
				ctx.TryStack = ctx.TryStack[:len(ctx.TryStack)-1]
				continue
			}
			for len(vm.invocation)-1 > depth {
				vm.unloadContext(vm.popContext())
			}
			if h.State == TryStateTry && h.HasCatch() {
				h.State = TryStateCatch
				ctx.EvaluationStack.Push(vm.uncaught)
				vm.setUncaught(nil)
				return vm.jumpTo(h.CatchPointer)
			}
			h.State = TryStateFinally
			return vm.jumpTo(h.FinallyPointer)
		}
	}
	return errors.WithDetailf(ErrUnhandledException, "%s", vm.uncaught)
}
