package interop

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"scriptvm/errors"
	"scriptvm/protocol/vm"
)

// maxNestedLevels bounds the CBOR nesting Deserialize accepts. Each
// container level takes two CBOR levels.
const maxNestedLevels = 1024

// node is the wire form of a stack item. Map entries are stored in
// Items as alternating keys and values.
type node struct {
	_     struct{} `cbor:",toarray"`
	Type  uint8
	Bytes []byte
	Items []node
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("interop: CBOR enc mode: %v", err))
	}
	decMode, err = cbor.DecOptions{MaxNestedLevels: maxNestedLevels}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("interop: CBOR dec mode: %v", err))
	}
}

// Serialize encodes item and everything beneath it as canonical
// CBOR. Pointers, interop interfaces and cyclic containers cannot
// be serialized. At most limits.MaxStackSize items are visited and
// the encoding may not exceed limits.MaxItemSize.
func Serialize(item vm.StackItem, limits vm.Limits) ([]byte, error) {
	s := serializer{
		path:  make(map[vm.StackItem]bool),
		count: limits.MaxStackSize,
	}
	n, err := s.node(item)
	if err != nil {
		return nil, err
	}
	data, err := encMode.Marshal(n)
	if err != nil {
		return nil, errors.Wrap(err, "encoding item")
	}
	if len(data) > limits.MaxItemSize {
		return nil, errors.WithDetailf(vm.ErrItemTooLarge, "serialized item of %d bytes", len(data))
	}
	return data, nil
}

type serializer struct {
	path  map[vm.StackItem]bool
	count int
}

func (s *serializer) node(item vm.StackItem) (node, error) {
	s.count--
	if s.count < 0 {
		return node{}, errors.WithDetail(vm.ErrItemTooLarge, "too many items to serialize")
	}
	n := node{Type: uint8(item.Type())}
	switch x := item.(type) {
	case vm.Null:
		return n, nil
	case *vm.Array:
		return s.sequence(n, x, x.Items())
	case *vm.Struct:
		return s.sequence(n, x, x.Items())
	case *vm.Map:
		entries := make([]vm.StackItem, 0, 2*x.Len())
		for i, k := range x.Keys() {
			entries = append(entries, k, x.Values()[i])
		}
		return s.sequence(n, x, entries)
	case vm.Boolean, *vm.Integer, vm.ByteString, *vm.Buffer:
		b, err := item.Bytes()
		if err != nil {
			return node{}, err
		}
		n.Bytes = append([]byte{}, b...)
		return n, nil
	}
	return node{}, errors.WithDetailf(vm.ErrBadValue, "cannot serialize %s", item.Type())
}

func (s *serializer) sequence(n node, c vm.StackItem, items []vm.StackItem) (node, error) {
	if s.path[c] {
		return node{}, errors.WithDetail(vm.ErrBadValue, "cannot serialize a cyclic container")
	}
	s.path[c] = true
	defer delete(s.path, c)
	n.Items = make([]node, 0, len(items))
	for _, item := range items {
		sub, err := s.node(item)
		if err != nil {
			return node{}, err
		}
		n.Items = append(n.Items, sub)
	}
	return n, nil
}

// Deserialize decodes the output of Serialize. Containers are
// tracked by rc, or untracked if rc is nil.
func Deserialize(data []byte, rc vm.ReferenceCounter, limits vm.Limits) (vm.StackItem, error) {
	var n node
	if err := decMode.Unmarshal(data, &n); err != nil {
		return nil, errors.WithDetail(vm.ErrBadValue, err.Error())
	}
	d := deserializer{rc: rc, limits: limits, count: limits.MaxStackSize}
	return d.item(n)
}

type deserializer struct {
	rc     vm.ReferenceCounter
	limits vm.Limits
	count  int
}

func (d *deserializer) item(n node) (vm.StackItem, error) {
	d.count--
	if d.count < 0 {
		return nil, errors.WithDetail(vm.ErrItemTooLarge, "too many items to deserialize")
	}
	t := vm.ItemType(n.Type)
	switch t {
	case vm.AnyType:
		return vm.Null{}, nil
	case vm.BooleanType:
		if len(n.Bytes) > 1 {
			return nil, errors.WithDetailf(vm.ErrBadValue, "boolean of %d bytes", len(n.Bytes))
		}
		return vm.Boolean(len(n.Bytes) == 1 && n.Bytes[0] != 0), nil
	case vm.IntegerType:
		if len(n.Bytes) > d.limits.MaxIntegerSize {
			return nil, errors.WithDetailf(vm.ErrIntegerTooLarge, "%d-byte integer", len(n.Bytes))
		}
		return vm.NewInteger(vm.AsBigInt(n.Bytes)), nil
	case vm.ByteStringType, vm.BufferType:
		if len(n.Bytes) > d.limits.MaxItemSize {
			return nil, errors.WithDetailf(vm.ErrItemTooLarge, "%d bytes", len(n.Bytes))
		}
		b := append([]byte{}, n.Bytes...)
		if t == vm.BufferType {
			return vm.NewBuffer(d.rc, b), nil
		}
		return vm.ByteString(b), nil
	case vm.ArrayType, vm.StructType:
		if len(n.Items) > d.limits.MaxArraySize {
			return nil, errors.WithDetailf(vm.ErrArrayTooLarge, "%d items", len(n.Items))
		}
		items, err := d.items(n.Items)
		if err != nil {
			return nil, err
		}
		if t == vm.StructType {
			return vm.NewStruct(d.rc, items), nil
		}
		return vm.NewArray(d.rc, items), nil
	case vm.MapType:
		if len(n.Items)%2 != 0 {
			return nil, errors.WithDetail(vm.ErrBadValue, "map with a key but no value")
		}
		if len(n.Items)/2 > d.limits.MaxArraySize {
			return nil, errors.WithDetailf(vm.ErrArrayTooLarge, "map of %d entries", len(n.Items)/2)
		}
		entries, err := d.items(n.Items)
		if err != nil {
			return nil, err
		}
		m := vm.NewMap(d.rc)
		for i := 0; i < len(entries); i += 2 {
			if err := m.Put(entries[i], entries[i+1]); err != nil {
				return nil, err
			}
		}
		return m, nil
	}
	return nil, errors.WithDetailf(vm.ErrBadValue, "cannot deserialize %s", t)
}

func (d *deserializer) items(nodes []node) ([]vm.StackItem, error) {
	items := make([]vm.StackItem, 0, len(nodes))
	for _, n := range nodes {
		item, err := d.item(n)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}
