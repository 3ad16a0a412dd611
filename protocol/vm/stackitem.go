package vm

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"

	"scriptvm/errors"
)

// ItemType tags each StackItem variant. The values are the
// operands accepted by ISTYPE and CONVERT.
type ItemType uint8

const (
	AnyType              ItemType = 0x00
	PointerType          ItemType = 0x10
	BooleanType          ItemType = 0x20
	IntegerType          ItemType = 0x21
	ByteStringType       ItemType = 0x28
	BufferType           ItemType = 0x30
	ArrayType            ItemType = 0x40
	StructType           ItemType = 0x41
	MapType              ItemType = 0x48
	InteropInterfaceType ItemType = 0x60
)

var itemTypeNames = map[ItemType]string{
	AnyType:              "Any",
	PointerType:          "Pointer",
	BooleanType:          "Boolean",
	IntegerType:          "Integer",
	ByteStringType:       "ByteString",
	BufferType:           "Buffer",
	ArrayType:            "Array",
	StructType:           "Struct",
	MapType:              "Map",
	InteropInterfaceType: "InteropInterface",
}

func (t ItemType) String() string {
	if s, ok := itemTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("ItemType(0x%02x)", uint8(t))
}

// Valid reports whether t names a StackItem variant.
func (t ItemType) Valid() bool {
	_, ok := itemTypeNames[t]
	return ok
}

func (t ItemType) isPrimitive() bool {
	return t == BooleanType || t == IntegerType || t == ByteStringType
}

// StackItem is a value on an evaluation stack, in a slot, or inside
// a compound item.
type StackItem interface {
	Type() ItemType

	// Bool coerces the item to a condition.
	Bool() bool

	// Bytes returns the byte representation of a primitive or
	// Buffer. Null, Pointer, InteropInterface and the containers
	// have none.
	Bytes() ([]byte, error)

	// Int coerces the item to an integer. The caller enforces
	// the integer size limit.
	Int() (*big.Int, error)

	Equals(StackItem) bool
	String() string
}

// Null is the absence of a value.
type Null struct{}

func (Null) Type() ItemType { return AnyType }
func (Null) Bool() bool     { return false }
func (Null) String() string { return "Null" }

func (Null) Bytes() ([]byte, error) {
	return nil, errors.WithDetail(ErrInvalidType, "Null has no byte representation")
}

func (Null) Int() (*big.Int, error) {
	return nil, errors.WithDetail(ErrInvalidType, "Null is not an integer")
}

func (Null) Equals(other StackItem) bool {
	_, ok := other.(Null)
	return ok
}

// Boolean is a truth value. Its byte form is {1} or empty.
type Boolean bool

func (b Boolean) Type() ItemType { return BooleanType }
func (b Boolean) Bool() bool     { return bool(b) }

func (b Boolean) Bytes() ([]byte, error) {
	if b {
		return []byte{1}, nil
	}
	return []byte{}, nil
}

func (b Boolean) Int() (*big.Int, error) {
	if b {
		return big.NewInt(1), nil
	}
	return new(big.Int), nil
}

func (b Boolean) Equals(other StackItem) bool {
	return primitiveEqual(b, other)
}

func (b Boolean) String() string {
	if b {
		return "true"
	}
	return "false"
}

// Integer is an arbitrary-precision signed integer.
type Integer struct {
	value *big.Int
}

// NewInteger returns an Integer holding a copy of x.
func NewInteger(x *big.Int) *Integer {
	return &Integer{value: new(big.Int).Set(x)}
}

func NewInt64(x int64) *Integer {
	return &Integer{value: big.NewInt(x)}
}

func (i *Integer) Type() ItemType { return IntegerType }
func (i *Integer) Bool() bool     { return i.value.Sign() != 0 }

func (i *Integer) Bytes() ([]byte, error) {
	return BigIntBytes(i.value), nil
}

func (i *Integer) Int() (*big.Int, error) {
	return new(big.Int).Set(i.value), nil
}

func (i *Integer) Equals(other StackItem) bool {
	if o, ok := other.(*Integer); ok {
		return i.value.Cmp(o.value) == 0
	}
	return primitiveEqual(i, other)
}

func (i *Integer) String() string { return i.value.String() }

// ByteString is an immutable byte sequence.
type ByteString []byte

func (s ByteString) Type() ItemType         { return ByteStringType }
func (s ByteString) Bool() bool             { return anyNonZero(s) }
func (s ByteString) Bytes() ([]byte, error) { return s, nil }
func (s ByteString) Int() (*big.Int, error) { return AsBigInt(s), nil }

func (s ByteString) Equals(other StackItem) bool {
	return primitiveEqual(s, other)
}

func (s ByteString) String() string {
	return "0x" + hex.EncodeToString(s)
}

// Pointer is a position in a script, produced by PUSHA and
// consumed by CALLA.
type Pointer struct {
	script *Script
	pos    int
}

func NewPointer(script *Script, pos int) Pointer {
	return Pointer{script: script, pos: pos}
}

func (p Pointer) Script() *Script { return p.script }
func (p Pointer) Position() int   { return p.pos }

func (p Pointer) Type() ItemType { return PointerType }
func (p Pointer) Bool() bool     { return true }

func (p Pointer) Bytes() ([]byte, error) {
	return nil, errors.WithDetail(ErrInvalidType, "Pointer has no byte representation")
}

func (p Pointer) Int() (*big.Int, error) {
	return nil, errors.WithDetail(ErrInvalidType, "Pointer is not an integer")
}

func (p Pointer) Equals(other StackItem) bool {
	o, ok := other.(Pointer)
	return ok && o.script == p.script && o.pos == p.pos
}

func (p Pointer) String() string {
	return fmt.Sprintf("Pointer(%d)", p.pos)
}

// InteropInterface wraps an opaque host value.
type InteropInterface struct {
	Value interface{}
}

func NewInteropInterface(v interface{}) *InteropInterface {
	return &InteropInterface{Value: v}
}

func (i *InteropInterface) Type() ItemType { return InteropInterfaceType }
func (i *InteropInterface) Bool() bool     { return true }

func (i *InteropInterface) Bytes() ([]byte, error) {
	return nil, errors.WithDetail(ErrInvalidType, "InteropInterface has no byte representation")
}

func (i *InteropInterface) Int() (*big.Int, error) {
	return nil, errors.WithDetail(ErrInvalidType, "InteropInterface is not an integer")
}

func (i *InteropInterface) Equals(other StackItem) bool {
	o, ok := other.(*InteropInterface)
	return ok && o == i
}

func (i *InteropInterface) String() string {
	return fmt.Sprintf("InteropInterface(%T)", i.Value)
}

// primitiveEqual compares a primitive against any item by byte
// representation. Only primitives compare equal this way.
func primitiveEqual(a, b StackItem) bool {
	if !b.Type().isPrimitive() {
		return false
	}
	ab, _ := a.Bytes()
	bb, _ := b.Bytes()
	return bytes.Equal(ab, bb)
}

func anyNonZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return true
		}
	}
	return false
}

// BigIntBytes returns the minimal big-endian two's complement
// encoding of x. Zero encodes as the empty slice.
func BigIntBytes(x *big.Int) []byte {
	switch x.Sign() {
	case 0:
		return []byte{}
	case 1:
		b := x.Bytes()
		if b[0]&0x80 != 0 {
			b = append([]byte{0}, b...)
		}
		return b
	}
	// For negative x, -x-1 is non-negative and its bitwise
	// complement is the two's complement of x.
	m := new(big.Int).Neg(x)
	m.Sub(m, big.NewInt(1))
	b := m.Bytes()
	for i := range b {
		b[i] = ^b[i]
	}
	if len(b) == 0 || b[0]&0x80 == 0 {
		b = append([]byte{0xff}, b...)
	}
	return b
}

// AsBigInt decodes a big-endian two's complement byte string.
func AsBigInt(b []byte) *big.Int {
	if len(b) == 0 {
		return new(big.Int)
	}
	if b[0]&0x80 == 0 {
		return new(big.Int).SetBytes(b)
	}
	c := make([]byte, len(b))
	for i := range b {
		c[i] = ^b[i]
	}
	x := new(big.Int).SetBytes(c)
	x.Add(x, big.NewInt(1))
	return x.Neg(x)
}
