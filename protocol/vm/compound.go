package vm

import (
	"fmt"
	"math/big"

	"scriptvm/errors"
)

// maxMapKeySize bounds the byte length of a Map key.
const maxMapKeySize = 64

// refHandle binds a compound item to the reference counter
// tracking it. The zero handle is untracked.
type refHandle struct {
	rc ReferenceCounter
	id refID
}

func (h *refHandle) handle() *refHandle { return h }

// compound is implemented by the items the reference counter
// tracks: Array, Struct, Map and Buffer.
type compound interface {
	StackItem
	handle() *refHandle
	subItems() []StackItem
	cleanup()
}

// newTracked registers a freshly built compound with rc,
// recording a reference for each item it already holds.
func newTracked(rc ReferenceCounter, c compound) {
	if rc == nil {
		return
	}
	rc.AddZeroReferred(c)
	for _, sub := range c.subItems() {
		rc.AddReference(sub, c)
	}
}

// Array is an ordered, mutable container shared by reference.
type Array struct {
	refHandle
	items []StackItem
}

// NewArray returns an Array holding items. If rc is nil the array
// is untracked until it is first referenced from a tracked stack or
// container.
func NewArray(rc ReferenceCounter, items []StackItem) *Array {
	a := &Array{items: items}
	newTracked(rc, a)
	return a
}

func (a *Array) Type() ItemType { return ArrayType }
func (a *Array) Bool() bool     { return true }

func (a *Array) Bytes() ([]byte, error) {
	return nil, errors.WithDetailf(ErrInvalidType, "%s has no byte representation", a.Type())
}

func (a *Array) Int() (*big.Int, error) {
	return nil, errors.WithDetailf(ErrInvalidType, "%s is not an integer", a.Type())
}

func (a *Array) Equals(other StackItem) bool {
	o, ok := other.(*Array)
	return ok && o == a
}

func (a *Array) String() string {
	return fmt.Sprintf("Array[%d]", len(a.items))
}

func (a *Array) Len() int { return len(a.items) }

// Items returns the backing slice. Callers must not modify it.
func (a *Array) Items() []StackItem { return a.items }

func (a *Array) Item(i int) (StackItem, error) {
	if i < 0 || i >= len(a.items) {
		return nil, errors.WithDetailf(ErrBadIndex, "index %d out of range [0, %d)", i, len(a.items))
	}
	return a.items[i], nil
}

func (a *Array) Append(item StackItem) {
	a.items = append(a.items, item)
	if a.rc != nil {
		a.rc.AddReference(item, a)
	}
}

func (a *Array) Set(i int, item StackItem) error {
	if i < 0 || i >= len(a.items) {
		return errors.WithDetailf(ErrBadIndex, "index %d out of range [0, %d)", i, len(a.items))
	}
	old := a.items[i]
	a.items[i] = item
	if a.rc != nil {
		a.rc.AddReference(item, a)
		a.rc.RemoveReference(old, a)
	}
	return nil
}

func (a *Array) RemoveAt(i int) error {
	if i < 0 || i >= len(a.items) {
		return errors.WithDetailf(ErrBadIndex, "index %d out of range [0, %d)", i, len(a.items))
	}
	old := a.items[i]
	a.items = append(a.items[:i], a.items[i+1:]...)
	if a.rc != nil {
		a.rc.RemoveReference(old, a)
	}
	return nil
}

func (a *Array) Clear() {
	items := a.items
	a.items = nil
	if a.rc != nil {
		for _, item := range items {
			a.rc.RemoveReference(item, a)
		}
	}
}

func (a *Array) Reverse() {
	for i, j := 0, len(a.items)-1; i < j; i, j = i+1, j-1 {
		a.items[i], a.items[j] = a.items[j], a.items[i]
	}
}

func (a *Array) subItems() []StackItem { return a.items }
func (a *Array) cleanup()              { a.items = nil }

// Struct is an Array with value semantics: it is cloned whenever
// it is stored into a container, and compares element-wise.
type Struct struct {
	Array
}

func NewStruct(rc ReferenceCounter, items []StackItem) *Struct {
	s := &Struct{Array{items: items}}
	newTracked(rc, s)
	return s
}

func (s *Struct) Type() ItemType { return StructType }

func (s *Struct) String() string {
	return fmt.Sprintf("Struct[%d]", len(s.items))
}

// Equals compares s with other element-wise. It gives up, reporting
// false, after DefaultLimits().MaxComparableSize pairs; use EqualWithin
// to compare under other limits.
func (s *Struct) Equals(other StackItem) bool {
	eq, err := EqualWithin(s, other, DefaultLimits().MaxComparableSize)
	return err == nil && eq
}

// Clone returns a deep copy of s tracked by the same counter. Nested
// structs are copied, other items are shared. At most limit items are
// visited in total.
func (s *Struct) Clone(limit int) (*Struct, error) {
	result := NewStruct(s.rc, nil)
	type pair struct{ dst, src *Struct }
	queue := []pair{{result, s}}
	count := limit - 1
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, item := range p.src.items {
			count--
			if count < 0 {
				return nil, errors.WithDetailf(ErrItemTooLarge, "struct clone exceeds %d items", limit)
			}
			if sub, ok := item.(*Struct); ok {
				c := NewStruct(s.rc, nil)
				p.dst.Append(c)
				queue = append(queue, pair{c, sub})
				continue
			}
			p.dst.Append(item)
		}
	}
	return result, nil
}

// EqualWithin reports whether a and b are equal as EQUAL decides.
// Structs are compared iteratively, and comparing more than limit
// pairs returns ErrItemTooLarge.
func EqualWithin(a, b StackItem, limit int) (bool, error) {
	type pair struct{ a, b StackItem }
	pending := []pair{{a, b}}
	count := limit
	for len(pending) > 0 {
		p := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		count--
		if count < 0 {
			return false, errors.WithDetailf(ErrItemTooLarge, "comparison exceeds %d items", limit)
		}
		sa, aok := p.a.(*Struct)
		sb, bok := p.b.(*Struct)
		if aok != bok {
			return false, nil
		}
		if !aok {
			if !p.a.Equals(p.b) {
				return false, nil
			}
			continue
		}
		if sa == sb {
			continue
		}
		if len(sa.items) != len(sb.items) {
			return false, nil
		}
		for i := len(sa.items) - 1; i >= 0; i-- {
			pending = append(pending, pair{sa.items[i], sb.items[i]})
		}
	}
	return true, nil
}

// Map is an insertion-ordered dictionary keyed by primitive items.
type Map struct {
	refHandle
	keys   []StackItem
	values []StackItem
	index  map[string]int
}

func NewMap(rc ReferenceCounter) *Map {
	m := &Map{index: make(map[string]int)}
	newTracked(rc, m)
	return m
}

// mapKey returns the lookup key for k, or an error if k may not
// be used as a Map key. Keys of different types never collide.
func mapKey(k StackItem) (string, error) {
	if !k.Type().isPrimitive() {
		return "", errors.WithDetailf(ErrBadMapKey, "%s cannot be a map key", k.Type())
	}
	b, err := k.Bytes()
	if err != nil {
		return "", err
	}
	if len(b) > maxMapKeySize {
		return "", errors.WithDetailf(ErrBadMapKey, "key of %d bytes exceeds %d", len(b), maxMapKeySize)
	}
	return string(append([]byte{byte(k.Type())}, b...)), nil
}

func (m *Map) Type() ItemType { return MapType }
func (m *Map) Bool() bool     { return true }

func (m *Map) Bytes() ([]byte, error) {
	return nil, errors.WithDetail(ErrInvalidType, "Map has no byte representation")
}

func (m *Map) Int() (*big.Int, error) {
	return nil, errors.WithDetail(ErrInvalidType, "Map is not an integer")
}

func (m *Map) Equals(other StackItem) bool {
	o, ok := other.(*Map)
	return ok && o == m
}

func (m *Map) String() string {
	return fmt.Sprintf("Map[%d]", len(m.keys))
}

func (m *Map) Len() int { return len(m.keys) }

// Keys and Values return the backing slices in insertion order.
// Callers must not modify them.
func (m *Map) Keys() []StackItem   { return m.keys }
func (m *Map) Values() []StackItem { return m.values }

func (m *Map) Get(k StackItem) (StackItem, bool, error) {
	key, err := mapKey(k)
	if err != nil {
		return nil, false, err
	}
	i, ok := m.index[key]
	if !ok {
		return nil, false, nil
	}
	return m.values[i], true, nil
}

// Put stores v under k, replacing any previous value.
func (m *Map) Put(k, v StackItem) error {
	key, err := mapKey(k)
	if err != nil {
		return err
	}
	if i, ok := m.index[key]; ok {
		old := m.values[i]
		m.values[i] = v
		if m.rc != nil {
			m.rc.AddReference(v, m)
			m.rc.RemoveReference(old, m)
		}
		return nil
	}
	m.index[key] = len(m.keys)
	m.keys = append(m.keys, k)
	m.values = append(m.values, v)
	if m.rc != nil {
		m.rc.AddReference(k, m)
		m.rc.AddReference(v, m)
	}
	return nil
}

// Remove deletes k and reports whether it was present.
func (m *Map) Remove(k StackItem) (bool, error) {
	key, err := mapKey(k)
	if err != nil {
		return false, err
	}
	i, ok := m.index[key]
	if !ok {
		return false, nil
	}
	oldKey, oldValue := m.keys[i], m.values[i]
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
	m.values = append(m.values[:i], m.values[i+1:]...)
	delete(m.index, key)
	for j := i; j < len(m.keys); j++ {
		kj, _ := mapKey(m.keys[j])
		m.index[kj] = j
	}
	if m.rc != nil {
		m.rc.RemoveReference(oldKey, m)
		m.rc.RemoveReference(oldValue, m)
	}
	return true, nil
}

func (m *Map) Clear() {
	keys, values := m.keys, m.values
	m.keys, m.values = nil, nil
	m.index = make(map[string]int)
	if m.rc != nil {
		for i := range keys {
			m.rc.RemoveReference(keys[i], m)
			m.rc.RemoveReference(values[i], m)
		}
	}
}

func (m *Map) subItems() []StackItem {
	items := make([]StackItem, 0, 2*len(m.keys))
	for i := range m.keys {
		items = append(items, m.keys[i], m.values[i])
	}
	return items
}

func (m *Map) cleanup() {
	m.keys, m.values = nil, nil
	m.index = make(map[string]int)
}

// Buffer is a mutable byte sequence with reference identity.
type Buffer struct {
	refHandle
	data []byte
}

func NewBuffer(rc ReferenceCounter, data []byte) *Buffer {
	b := &Buffer{data: data}
	newTracked(rc, b)
	return b
}

func (b *Buffer) Type() ItemType { return BufferType }
func (b *Buffer) Bool() bool     { return anyNonZero(b.data) }

// Bytes returns the backing storage; writes through it are visible
// to every holder of b.
func (b *Buffer) Bytes() ([]byte, error) { return b.data, nil }
func (b *Buffer) Int() (*big.Int, error) { return AsBigInt(b.data), nil }

func (b *Buffer) Equals(other StackItem) bool {
	o, ok := other.(*Buffer)
	return ok && o == b
}

func (b *Buffer) String() string {
	return fmt.Sprintf("Buffer[%d]", len(b.data))
}

func (b *Buffer) Len() int { return len(b.data) }

func (b *Buffer) subItems() []StackItem { return nil }
func (b *Buffer) cleanup()              { b.data = nil }
