package vm

import (
	"scriptvm/errors"
)

func opNop(vm *ExecutionEngine) error {
	return nil
}

func opJmp(vm *ExecutionEngine) error {
	return vm.jumpIf(true)
}

func opJmpIf(vm *ExecutionEngine) error {
	ok, err := vm.popBool()
	if err != nil {
		return err
	}
	return vm.jumpIf(ok)
}

func opJmpIfNot(vm *ExecutionEngine) error {
	ok, err := vm.popBool()
	if err != nil {
		return err
	}
	return vm.jumpIf(!ok)
}

// jumpIf validates the int16 jump offset and takes it if cond holds.
// A bad target faults even when the branch is not taken.
func (vm *ExecutionEngine) jumpIf(cond bool) error {
	target, err := vm.target(vm.inst.int16Operand(0))
	if err != nil {
		return err
	}
	if !cond {
		return nil
	}
	return vm.jumpTo(target)
}

func opCall(vm *ExecutionEngine) error {
	target, err := vm.target(vm.inst.int16Operand(0))
	if err != nil {
		return err
	}
	return vm.callInternal(target, -1, -1)
}

// CALL_I rvcount(1) pcount(1) offset(int16)
func opCallI(vm *ExecutionEngine) error {
	target, err := vm.target(vm.inst.int16Operand(2))
	if err != nil {
		return err
	}
	return vm.callInternal(target, int(vm.data[0]), int(vm.data[1]))
}

// CALLA calls the Pointer on top of the stack.
func opCallA(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	p, ok := item.(Pointer)
	if !ok {
		return errors.WithDetailf(ErrInvalidType, "CALLA on %s", item.Type())
	}
	if p.script != vm.CurrentContext().Script {
		return errors.WithDetail(ErrBadJump, "pointer into another script")
	}
	return vm.callInternal(p.pos, -1, -1)
}

// callInternal calls pos in the current script. The callee shares
// the caller's static fields and receives the top pcount items of
// the caller's stack, or all of them if pcount is -1.
func (vm *ExecutionEngine) callInternal(pos, rvcount, pcount int) error {
	ctx := vm.CurrentContext()
	if pos < 0 || pos > ctx.Script.Len() {
		return errors.WithDetailf(ErrBadJump, "call target %d", pos)
	}
	if pcount > ctx.EvaluationStack.Len() {
		return errors.WithDetailf(ErrStackUnderflow, "call with %d parameters and depth %d", pcount, ctx.EvaluationStack.Len())
	}
	callee := ctx.clone(vm.refs)
	callee.IP = pos
	callee.RVCount = rvcount
	if err := vm.loadContext(callee); err != nil {
		return err
	}
	return vm.passArguments(ctx, callee, pcount)
}

func (vm *ExecutionEngine) passArguments(from, to *ExecutionContext, pcount int) error {
	if pcount == -1 {
		pcount = from.EvaluationStack.Len()
	}
	return from.EvaluationStack.MoveTo(to.EvaluationStack, pcount)
}

// RET copies RVCount items to the caller, or to the result stack
// when the entry context returns, and unloads the context.
func opRet(vm *ExecutionEngine) error {
	ctx := vm.CurrentContext()
	if len(ctx.TryStack) > 0 {
		return errors.WithDetail(ErrBadTry, "RET inside try region")
	}
	rv := ctx.RVCount
	if rv == -1 {
		rv = ctx.EvaluationStack.Len()
	}
	if rv > ctx.EvaluationStack.Len() {
		return errors.WithDetailf(ErrBadReturnCount, "return %d items with depth %d", rv, ctx.EvaluationStack.Len())
	}
	vm.popContext()
	dst := vm.results
	if caller := vm.CurrentContext(); caller != nil {
		dst = caller.EvaluationStack
	}
	if err := ctx.EvaluationStack.CopyTo(dst, rv); err != nil {
		return err
	}
	vm.unloadContext(ctx)
	vm.isJumping = true
	if len(vm.invocation) == 0 {
		vm.halt()
	}
	return nil
}

// APPCALL hash(20). A zero hash pops the hash from the stack.
func opAppCall(vm *ExecutionEngine) error {
	hash, err := vm.operandHash(vm.data)
	if err != nil {
		return err
	}
	return vm.callExternal(hash, -1, -1, false)
}

// TAILCALL hash(20) replaces the current context with the called
// script, which returns directly to the current context's caller.
func opTailCall(vm *ExecutionEngine) error {
	hash, err := vm.operandHash(vm.data)
	if err != nil {
		return err
	}
	return vm.callExternal(hash, vm.CurrentContext().RVCount, -1, true)
}

// CALL_E rvcount(1) pcount(1) hash(20)
func opCallE(vm *ExecutionEngine) error {
	hash, err := vm.operandHash(vm.data[2:])
	if err != nil {
		return err
	}
	return vm.callExternal(hash, int(vm.data[0]), int(vm.data[1]), false)
}

// CALL_ED rvcount(1) pcount(1), with the hash popped from the stack.
func opCallED(vm *ExecutionEngine) error {
	hash, err := vm.popHash()
	if err != nil {
		return err
	}
	return vm.callExternal(hash, int(vm.data[0]), int(vm.data[1]), false)
}

func opCallET(vm *ExecutionEngine) error {
	hash, err := vm.operandHash(vm.data[2:])
	if err != nil {
		return err
	}
	return vm.callExternal(hash, int(vm.data[0]), int(vm.data[1]), true)
}

func opCallEDT(vm *ExecutionEngine) error {
	hash, err := vm.popHash()
	if err != nil {
		return err
	}
	return vm.callExternal(hash, int(vm.data[0]), int(vm.data[1]), true)
}

// operandHash returns the 20-byte hash operand, popping the hash
// from the stack instead if the operand is zero.
func (vm *ExecutionEngine) operandHash(b []byte) (Hash160, error) {
	var hash Hash160
	copy(hash[:], b)
	if !hash.IsZero() {
		return hash, nil
	}
	return vm.popHash()
}

func (vm *ExecutionEngine) popHash() (Hash160, error) {
	var hash Hash160
	b, err := vm.popBytes()
	if err != nil {
		return hash, err
	}
	if len(b) != len(hash) {
		return hash, errors.WithDetailf(ErrBadValue, "script hash of %d bytes", len(b))
	}
	copy(hash[:], b)
	return hash, nil
}

// callExternal loads the script with the given hash from the script
// table. A tail call unloads the current context first; the callee
// must return as many items as the current context would have.
func (vm *ExecutionEngine) callExternal(hash Hash160, rvcount, pcount int, tail bool) error {
	ctx := vm.CurrentContext()
	if pcount > ctx.EvaluationStack.Len() {
		return errors.WithDetailf(ErrStackUnderflow, "call with %d parameters and depth %d", pcount, ctx.EvaluationStack.Len())
	}
	if tail {
		if len(ctx.TryStack) > 0 {
			return errors.WithDetail(ErrBadTry, "tail call inside try region")
		}
		if rvcount != ctx.RVCount {
			return errors.WithDetailf(ErrBadReturnCount, "tail call returns %d items, caller expects %d", rvcount, ctx.RVCount)
		}
	}
	script, err := vm.loadFromTable(hash)
	if err != nil {
		return err
	}
	callee := newContext(script, rvcount, vm.refs)
	if tail {
		vm.popContext()
		callee.CallingScriptHash = ctx.CallingScriptHash
	} else {
		callee.CallingScriptHash = ctx.Script.Hash()
	}
	if err := vm.loadContext(callee); err != nil {
		return err
	}
	if err := vm.passArguments(ctx, callee, pcount); err != nil {
		return err
	}
	if tail {
		vm.unloadContext(ctx)
	}
	return nil
}
