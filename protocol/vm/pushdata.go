package vm

import (
	"encoding/binary"
)

// PUSHBYTES1-75 and PUSHDATA1/2/4 push their operand.
func opPushdata(vm *ExecutionEngine) error {
	return vm.pushBytes(append([]byte(nil), vm.data...))
}

// PUSH0, PUSHM1 and PUSH1-16 push the integer named by the opcode.
func opPushSmallInt(vm *ExecutionEngine) error {
	var n int64
	switch op := vm.inst.Op; {
	case op == OP_PUSH0:
		n = 0
	case op == OP_PUSHM1:
		n = -1
	default:
		n = int64(op-OP_PUSH1) + 1
	}
	vm.push(NewInt64(n))
	return nil
}

func opPushNull(vm *ExecutionEngine) error {
	vm.push(Null{})
	return nil
}

// PUSHA pushes a Pointer to the instruction at a relative int32 offset.
func opPushA(vm *ExecutionEngine) error {
	offset := int(int32(binary.LittleEndian.Uint32(vm.data)))
	target, err := vm.target(offset)
	if err != nil {
		return err
	}
	vm.push(NewPointer(vm.CurrentContext().Script, target))
	return nil
}
