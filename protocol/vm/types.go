package vm

import (
	"scriptvm/errors"
)

func opIsNull(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	_, ok := item.(Null)
	vm.push(Boolean(ok))
	return nil
}

func (vm *ExecutionEngine) typeOperand() (ItemType, error) {
	t := ItemType(vm.data[0])
	if t == AnyType || !t.Valid() {
		return 0, errors.WithDetailf(ErrBadValue, "type operand 0x%02x", vm.data[0])
	}
	return t, nil
}

func opIsType(vm *ExecutionEngine) error {
	t, err := vm.typeOperand()
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	vm.push(Boolean(item.Type() == t))
	return nil
}

func opConvert(vm *ExecutionEngine) error {
	t, err := vm.typeOperand()
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	c, err := vm.ConvertTo(item, t)
	if err != nil {
		return err
	}
	vm.push(c)
	return nil
}

// ConvertTo converts item to the given type under the engine's
// limits. Converting to the item's own type returns it unchanged.
// Null converts only to AnyType. New containers are tracked by the
// engine's reference counter.
func (vm *ExecutionEngine) ConvertTo(item StackItem, t ItemType) (StackItem, error) {
	if item.Type() == t {
		return item, nil
	}
	if _, ok := item.(Null); ok {
		return nil, errors.WithDetailf(ErrInvalidType, "cannot convert Null to %s", t)
	}
	switch t {
	case BooleanType:
		return Boolean(item.Bool()), nil
	case IntegerType:
		if !item.Type().isPrimitive() && item.Type() != BufferType {
			break
		}
		x, err := vm.toInt(item)
		if err != nil {
			return nil, err
		}
		return &Integer{value: x}, nil
	case ByteStringType:
		if !item.Type().isPrimitive() && item.Type() != BufferType {
			break
		}
		b, err := item.Bytes()
		if err != nil {
			return nil, err
		}
		return ByteString(append([]byte(nil), b...)), nil
	case BufferType:
		if !item.Type().isPrimitive() {
			break
		}
		b, err := item.Bytes()
		if err != nil {
			return nil, err
		}
		if len(b) > vm.limits.MaxItemSize {
			return nil, errors.WithDetailf(ErrItemTooLarge, "buffer of %d bytes", len(b))
		}
		return NewBuffer(vm.refs, append([]byte(nil), b...)), nil
	case ArrayType, StructType:
		a, ok := arrayOf(item)
		if !ok {
			break
		}
		items, err := vm.cloneItems(a.Items())
		if err != nil {
			return nil, err
		}
		if t == StructType {
			return NewStruct(vm.refs, items), nil
		}
		return NewArray(vm.refs, items), nil
	}
	return nil, errors.WithDetailf(ErrInvalidType, "cannot convert %s to %s", item.Type(), t)
}
