package vm

import (
	"scriptvm/errors"
)

func opArraySize(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	var n int
	switch c := item.(type) {
	case *Array:
		n = c.Len()
	case *Struct:
		n = c.Len()
	case *Map:
		n = c.Len()
	default:
		b, err := item.Bytes()
		if err != nil {
			return err
		}
		n = len(b)
	}
	vm.push(NewInt64(int64(n)))
	return nil
}

// PACK pops n and then n items, and pushes them as an array whose
// first element is the item that was on top.
func opPack(vm *ExecutionEngine) error {
	n, err := vm.popIndex()
	if err != nil {
		return err
	}
	if n > vm.limits.MaxArraySize {
		return errors.WithDetailf(ErrArrayTooLarge, "pack %d items", n)
	}
	if n > vm.CurrentContext().EvaluationStack.Len() {
		return errors.WithDetailf(ErrStackUnderflow, "pack %d items", n)
	}
	items := make([]StackItem, 0, n)
	for i := 0; i < n; i++ {
		item, err := vm.pop()
		if err != nil {
			return err
		}
		item, err = vm.cloneIfStruct(item)
		if err != nil {
			return err
		}
		items = append(items, item)
	}
	vm.push(NewArray(vm.refs, items))
	return nil
}

// UNPACK is the inverse of PACK. A map unpacks to value, key pairs
// with the first key on top.
func opUnpack(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	switch c := item.(type) {
	case *Array:
		vm.pushAll(c.Items())
		vm.push(NewInt64(int64(c.Len())))
	case *Struct:
		vm.pushAll(c.Items())
		vm.push(NewInt64(int64(c.Len())))
	case *Map:
		keys, values := c.Keys(), c.Values()
		for i := len(keys) - 1; i >= 0; i-- {
			vm.push(values[i])
			vm.push(keys[i])
		}
		vm.push(NewInt64(int64(c.Len())))
	default:
		return errors.WithDetailf(ErrInvalidType, "UNPACK on %s", item.Type())
	}
	return nil
}

func (vm *ExecutionEngine) pushAll(items []StackItem) {
	for i := len(items) - 1; i >= 0; i-- {
		vm.push(items[i])
	}
}

// arrayOf returns the Array underlying an Array or Struct item.
func arrayOf(item StackItem) (*Array, bool) {
	switch c := item.(type) {
	case *Array:
		return c, true
	case *Struct:
		return &c.Array, true
	}
	return nil, false
}

func indexOf(key StackItem, vm *ExecutionEngine) (int, error) {
	x, err := vm.toInt(key)
	if err != nil {
		return 0, err
	}
	if x.Sign() < 0 || !x.IsInt64() || x.Int64() > 1<<31-1 {
		return 0, errors.WithDetailf(ErrBadIndex, "index %s", x)
	}
	return int(x.Int64()), nil
}

func opPickItem(vm *ExecutionEngine) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	if a, ok := arrayOf(item); ok {
		i, err := indexOf(key, vm)
		if err != nil {
			return err
		}
		v, err := a.Item(i)
		if err != nil {
			return err
		}
		vm.push(v)
		return nil
	}
	switch c := item.(type) {
	case *Map:
		v, ok, err := c.Get(key)
		if err != nil {
			return err
		}
		if !ok {
			return errors.WithDetailf(ErrBadIndex, "key %s not found", key)
		}
		vm.push(v)
		return nil
	case ByteString, *Buffer, Boolean, *Integer:
		i, err := indexOf(key, vm)
		if err != nil {
			return err
		}
		b, _ := item.Bytes()
		if i >= len(b) {
			return errors.WithDetailf(ErrBadIndex, "index %d of %d bytes", i, len(b))
		}
		vm.push(NewInt64(int64(b[i])))
		return nil
	}
	return errors.WithDetailf(ErrInvalidType, "PICKITEM on %s", item.Type())
}

func opSetItem(vm *ExecutionEngine) error {
	value, err := vm.pop()
	if err != nil {
		return err
	}
	value, err = vm.cloneIfStruct(value)
	if err != nil {
		return err
	}
	key, err := vm.pop()
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	if a, ok := arrayOf(item); ok {
		i, err := indexOf(key, vm)
		if err != nil {
			return err
		}
		return a.Set(i, value)
	}
	switch c := item.(type) {
	case *Map:
		_, exists, err := c.Get(key)
		if err != nil {
			return err
		}
		if !exists && c.Len() >= vm.limits.MaxArraySize {
			return errors.WithDetailf(ErrArrayTooLarge, "map of %d entries", c.Len())
		}
		return c.Put(key, value)
	case *Buffer:
		i, err := indexOf(key, vm)
		if err != nil {
			return err
		}
		if i >= c.Len() {
			return errors.WithDetailf(ErrBadIndex, "index %d of %d bytes", i, c.Len())
		}
		x, err := vm.toInt(value)
		if err != nil {
			return err
		}
		if !x.IsInt64() || x.Int64() < -128 || x.Int64() > 255 {
			return errors.WithDetailf(ErrBadValue, "byte value %s", x)
		}
		c.data[i] = byte(x.Int64())
		return nil
	}
	return errors.WithDetailf(ErrInvalidType, "SETITEM on %s", item.Type())
}

// newSequence implements NEWARRAY and NEWSTRUCT: a count makes a
// sequence of that many Nulls, an Array or Struct is converted.
func (vm *ExecutionEngine) newSequence(asStruct bool) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	var items []StackItem
	if a, ok := arrayOf(item); ok {
		if (item.Type() == StructType) == asStruct {
			vm.push(item)
			return nil
		}
		items, err = vm.cloneItems(a.Items())
		if err != nil {
			return err
		}
	} else {
		n, err := indexOf(item, vm)
		if err != nil {
			return err
		}
		if n > vm.limits.MaxArraySize {
			return errors.WithDetailf(ErrArrayTooLarge, "%d items", n)
		}
		items = make([]StackItem, n)
		for i := range items {
			items[i] = Null{}
		}
	}
	if asStruct {
		vm.push(NewStruct(vm.refs, items))
	} else {
		vm.push(NewArray(vm.refs, items))
	}
	return nil
}

// cloneItems copies items, cloning every Struct among them.
func (vm *ExecutionEngine) cloneItems(items []StackItem) ([]StackItem, error) {
	out := make([]StackItem, len(items))
	for i, item := range items {
		c, err := vm.cloneIfStruct(item)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func opNewArray(vm *ExecutionEngine) error  { return vm.newSequence(false) }
func opNewStruct(vm *ExecutionEngine) error { return vm.newSequence(true) }

func opNewMap(vm *ExecutionEngine) error {
	vm.push(NewMap(vm.refs))
	return nil
}

func opAppend(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	item, err = vm.cloneIfStruct(item)
	if err != nil {
		return err
	}
	target, err := vm.pop()
	if err != nil {
		return err
	}
	a, ok := arrayOf(target)
	if !ok {
		return errors.WithDetailf(ErrInvalidType, "APPEND to %s", target.Type())
	}
	if a.Len() >= vm.limits.MaxArraySize {
		return errors.WithDetailf(ErrArrayTooLarge, "append to %d items", a.Len())
	}
	a.Append(item)
	return nil
}

func opReverse(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	if a, ok := arrayOf(item); ok {
		a.Reverse()
		return nil
	}
	if b, ok := item.(*Buffer); ok {
		for i, j := 0, len(b.data)-1; i < j; i, j = i+1, j-1 {
			b.data[i], b.data[j] = b.data[j], b.data[i]
		}
		return nil
	}
	return errors.WithDetailf(ErrInvalidType, "REVERSE on %s", item.Type())
}

func opRemove(vm *ExecutionEngine) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	if a, ok := arrayOf(item); ok {
		i, err := indexOf(key, vm)
		if err != nil {
			return err
		}
		return a.RemoveAt(i)
	}
	if m, ok := item.(*Map); ok {
		_, err := m.Remove(key)
		return err
	}
	return errors.WithDetailf(ErrInvalidType, "REMOVE from %s", item.Type())
}

func opHasKey(vm *ExecutionEngine) error {
	key, err := vm.pop()
	if err != nil {
		return err
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	if a, ok := arrayOf(item); ok {
		i, err := indexOf(key, vm)
		if err != nil {
			return err
		}
		vm.push(Boolean(i < a.Len()))
		return nil
	}
	switch c := item.(type) {
	case *Map:
		_, ok, err := c.Get(key)
		if err != nil {
			return err
		}
		vm.push(Boolean(ok))
		return nil
	case ByteString, *Buffer:
		i, err := indexOf(key, vm)
		if err != nil {
			return err
		}
		b, _ := item.Bytes()
		vm.push(Boolean(i < len(b)))
		return nil
	}
	return errors.WithDetailf(ErrInvalidType, "HASKEY on %s", item.Type())
}

func opKeys(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	m, ok := item.(*Map)
	if !ok {
		return errors.WithDetailf(ErrInvalidType, "KEYS on %s", item.Type())
	}
	vm.push(NewArray(vm.refs, append([]StackItem(nil), m.Keys()...)))
	return nil
}

func opValues(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	var values []StackItem
	if a, ok := arrayOf(item); ok {
		values = a.Items()
	} else if m, ok := item.(*Map); ok {
		values = m.Values()
	} else {
		return errors.WithDetailf(ErrInvalidType, "VALUES on %s", item.Type())
	}
	items, err := vm.cloneItems(values)
	if err != nil {
		return err
	}
	vm.push(NewArray(vm.refs, items))
	return nil
}

func opClearItems(vm *ExecutionEngine) error {
	item, err := vm.pop()
	if err != nil {
		return err
	}
	if a, ok := arrayOf(item); ok {
		a.Clear()
		return nil
	}
	if m, ok := item.(*Map); ok {
		m.Clear()
		return nil
	}
	return errors.WithDetailf(ErrInvalidType, "CLEARITEMS on %s", item.Type())
}

func opNewBuffer(vm *ExecutionEngine) error {
	n, err := vm.popIndex()
	if err != nil {
		return err
	}
	if n > vm.limits.MaxItemSize {
		return errors.WithDetailf(ErrItemTooLarge, "buffer of %d bytes", n)
	}
	vm.push(NewBuffer(vm.refs, make([]byte, n)))
	return nil
}
