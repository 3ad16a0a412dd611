package vm

import (
	"scriptvm/errors"
)

// Slot is a fixed-size array of variables: the static fields of a
// script, or the locals or arguments of a call. Each cell holds a
// stack reference.
type Slot struct {
	rc    ReferenceCounter
	items []StackItem
}

// NewSlot returns a slot of n cells, each holding Null.
func NewSlot(rc ReferenceCounter, n int) *Slot {
	s := &Slot{rc: rc, items: make([]StackItem, n)}
	for i := range s.items {
		s.items[i] = Null{}
	}
	rc.AddStackReference(Null{}, n)
	return s
}

// newSlotItems returns a slot holding items.
func newSlotItems(rc ReferenceCounter, items []StackItem) *Slot {
	for _, item := range items {
		rc.AddStackReference(item, 1)
	}
	return &Slot{rc: rc, items: items}
}

func (s *Slot) Len() int { return len(s.items) }

func (s *Slot) Get(i int) (StackItem, error) {
	if i < 0 || i >= len(s.items) {
		return nil, errors.WithDetailf(ErrBadSlot, "index %d out of range [0, %d)", i, len(s.items))
	}
	return s.items[i], nil
}

func (s *Slot) Set(i int, item StackItem) error {
	if i < 0 || i >= len(s.items) {
		return errors.WithDetailf(ErrBadSlot, "index %d out of range [0, %d)", i, len(s.items))
	}
	old := s.items[i]
	s.items[i] = item
	s.rc.AddStackReference(item, 1)
	s.rc.RemoveStackReference(old)
	return nil
}

// ClearReferences releases every cell. The slot is empty afterwards.
func (s *Slot) ClearReferences() {
	for _, item := range s.items {
		s.rc.RemoveStackReference(item)
	}
	s.items = nil
}

// Items returns a copy of the cells.
func (s *Slot) Items() []StackItem {
	return append([]StackItem(nil), s.items...)
}

func opInitSSlot(vm *ExecutionEngine) error {
	ctx := vm.CurrentContext()
	if ctx.StaticFields != nil {
		return errors.WithDetail(ErrBadSlot, "static fields already initialized")
	}
	n := int(vm.data[0])
	if n == 0 {
		return errors.WithDetail(ErrBadSlot, "zero static fields")
	}
	ctx.StaticFields = NewSlot(vm.refs, n)
	return nil
}

func opInitSlot(vm *ExecutionEngine) error {
	ctx := vm.CurrentContext()
	if ctx.LocalVariables != nil || ctx.Arguments != nil {
		return errors.WithDetail(ErrBadSlot, "slots already initialized")
	}
	nlocals, nargs := int(vm.data[0]), int(vm.data[1])
	if nlocals == 0 && nargs == 0 {
		return errors.WithDetail(ErrBadSlot, "zero locals and arguments")
	}
	if nlocals > 0 {
		ctx.LocalVariables = NewSlot(vm.refs, nlocals)
	}
	if nargs > 0 {
		args := make([]StackItem, nargs)
		for i := range args {
			item, err := vm.pop()
			if err != nil {
				return err
			}
			args[i] = item
		}
		ctx.Arguments = newSlotItems(vm.refs, args)
	}
	return nil
}

func loadField(vm *ExecutionEngine, slot *Slot) error {
	if slot == nil {
		return errors.WithDetail(ErrBadSlot, "slot not initialized")
	}
	item, err := slot.Get(int(vm.data[0]))
	if err != nil {
		return err
	}
	vm.push(item)
	return nil
}

func storeField(vm *ExecutionEngine, slot *Slot) error {
	if slot == nil {
		return errors.WithDetail(ErrBadSlot, "slot not initialized")
	}
	item, err := vm.pop()
	if err != nil {
		return err
	}
	return slot.Set(int(vm.data[0]), item)
}

func opLdSFld(vm *ExecutionEngine) error { return loadField(vm, vm.CurrentContext().StaticFields) }
func opStSFld(vm *ExecutionEngine) error { return storeField(vm, vm.CurrentContext().StaticFields) }
func opLdLoc(vm *ExecutionEngine) error  { return loadField(vm, vm.CurrentContext().LocalVariables) }
func opStLoc(vm *ExecutionEngine) error  { return storeField(vm, vm.CurrentContext().LocalVariables) }
func opLdArg(vm *ExecutionEngine) error  { return loadField(vm, vm.CurrentContext().Arguments) }
func opStArg(vm *ExecutionEngine) error  { return storeField(vm, vm.CurrentContext().Arguments) }
