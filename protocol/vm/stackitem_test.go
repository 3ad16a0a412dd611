package vm

import (
	"bytes"
	"math/big"
	"testing"

	"scriptvm/errors"
)

func TestBigIntBytes(t *testing.T) {
	cases := []struct {
		n    int64
		want []byte
	}{
		{0, []byte{}},
		{1, []byte{0x01}},
		{-1, []byte{0xff}},
		{127, []byte{0x7f}},
		{128, []byte{0x00, 0x80}},
		{-128, []byte{0x80}},
		{-129, []byte{0xff, 0x7f}},
		{255, []byte{0x00, 0xff}},
		{256, []byte{0x01, 0x00}},
		{-256, []byte{0xff, 0x00}},
		{32767, []byte{0x7f, 0xff}},
		{-32768, []byte{0x80, 0x00}},
	}
	for _, c := range cases {
		got := BigIntBytes(big.NewInt(c.n))
		if !bytes.Equal(got, c.want) {
			t.Errorf("BigIntBytes(%d) = %x want %x", c.n, got, c.want)
		}
		if back := AsBigInt(c.want); back.Int64() != c.n {
			t.Errorf("AsBigInt(%x) = %s want %d", c.want, back, c.n)
		}
	}

	// non-minimal encodings decode to the same value
	if got := AsBigInt([]byte{0x00, 0x00, 0x01}); got.Int64() != 1 {
		t.Errorf("AsBigInt(000001) = %s want 1", got)
	}
	if got := AsBigInt([]byte{0xff, 0xff}); got.Int64() != -1 {
		t.Errorf("AsBigInt(ffff) = %s want -1", got)
	}
}

func TestBool(t *testing.T) {
	rc := NewReferenceCounter(TarjanCounter)
	cases := []struct {
		item StackItem
		want bool
	}{
		{Null{}, false},
		{Boolean(true), true},
		{Boolean(false), false},
		{NewInt64(0), false},
		{NewInt64(-3), true},
		{ByteString(nil), false},
		{ByteString{}, false},
		{ByteString{0, 0}, false},
		{ByteString{0, 1}, true},
		{NewBuffer(rc, []byte{0}), false},
		{NewBuffer(rc, []byte{0, 2}), true},
		{NewArray(rc, nil), true},
		{NewStruct(rc, nil), true},
		{NewMap(rc), true},
		{NewPointer(NewScript(nil), 0), true},
		{NewInteropInterface(nil), true},
	}
	for _, c := range cases {
		if got := c.item.Bool(); got != c.want {
			t.Errorf("%s.Bool() = %v want %v", c.item, got, c.want)
		}
	}
}

func TestEquals(t *testing.T) {
	rc := NewReferenceCounter(TarjanCounter)
	arr := NewArray(rc, nil)
	m := NewMap(rc)
	buf := NewBuffer(rc, []byte{1})
	script := NewScript([]byte{byte(OP_NOP)})
	iface := NewInteropInterface(7)

	cases := []struct {
		a, b StackItem
		want bool
	}{
		{Null{}, Null{}, true},
		{Null{}, ByteString{}, false},
		{NewInt64(1), NewInt64(1), true},
		{NewInt64(1), ByteString{1}, true},
		{NewInt64(1), Boolean(true), true},
		{NewInt64(0), ByteString{}, true},
		{NewInt64(0), Boolean(false), true},
		{ByteString{0}, NewInt64(0), false},
		{ByteString("ab"), ByteString("ab"), true},
		{ByteString{1}, buf, false},
		{buf, buf, true},
		{buf, NewBuffer(rc, []byte{1}), false},
		{arr, arr, true},
		{arr, NewArray(rc, nil), false},
		{m, m, true},
		{m, NewMap(rc), false},
		{NewStruct(rc, []StackItem{NewInt64(1)}), NewStruct(rc, []StackItem{NewInt64(1)}), true},
		{NewStruct(rc, []StackItem{NewInt64(1)}), NewStruct(rc, []StackItem{NewInt64(2)}), false},
		{NewStruct(rc, []StackItem{NewInt64(1)}), NewArray(rc, []StackItem{NewInt64(1)}), false},
		{NewStruct(rc, []StackItem{arr}), NewStruct(rc, []StackItem{arr}), true},
		{NewStruct(rc, []StackItem{arr}), NewStruct(rc, []StackItem{NewArray(rc, nil)}), false},
		{NewPointer(script, 1), NewPointer(script, 1), true},
		{NewPointer(script, 1), NewPointer(script, 0), false},
		{iface, iface, true},
		{iface, NewInteropInterface(7), false},
	}
	for _, c := range cases {
		if got := c.a.Equals(c.b); got != c.want {
			t.Errorf("%s.Equals(%s) = %v want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestEqualWithinLimit(t *testing.T) {
	a := NewStruct(nil, nil)
	b := NewStruct(nil, nil)
	for i := 0; i < 10; i++ {
		a.Append(NewInt64(int64(i)))
		b.Append(NewInt64(int64(i)))
	}
	if eq, err := EqualWithin(a, b, 11); err != nil || !eq {
		t.Errorf("EqualWithin(limit 11) = %v, %v want true, nil", eq, err)
	}
	if _, err := EqualWithin(a, b, 10); errors.Root(err) != ErrItemTooLarge {
		t.Errorf("EqualWithin(limit 10) error = %v want %v", err, ErrItemTooLarge)
	}

	n := DefaultLimits().MaxComparableSize
	big1 := NewStruct(nil, nil)
	big2 := NewStruct(nil, nil)
	for i := 0; i < n; i++ {
		big1.Append(Null{})
		big2.Append(Null{})
	}
	if big1.Equals(big2) {
		t.Errorf("Equals past the default comparable size = true want false")
	}
	if eq, err := EqualWithin(big1, big2, n+1); err != nil || !eq {
		t.Errorf("EqualWithin(limit %d) = %v, %v want true, nil", n+1, eq, err)
	}
}

func TestNullConversions(t *testing.T) {
	if _, err := (Null{}).Bytes(); errors.Root(err) != ErrInvalidType {
		t.Errorf("Null.Bytes() error = %v want %v", err, ErrInvalidType)
	}
	if _, err := (Null{}).Int(); errors.Root(err) != ErrInvalidType {
		t.Errorf("Null.Int() error = %v want %v", err, ErrInvalidType)
	}
	if _, err := NewArray(nil, nil).Bytes(); errors.Root(err) != ErrInvalidType {
		t.Errorf("Array.Bytes() error = %v want %v", err, ErrInvalidType)
	}
}

func TestMapKeys(t *testing.T) {
	m := NewMap(nil)
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(m.Put(ByteString("a"), NewInt64(1)))
	must(m.Put(NewInt64(1), NewInt64(2)))
	must(m.Put(Boolean(true), NewInt64(3)))
	must(m.Put(ByteString("a"), NewInt64(4)))

	if m.Len() != 3 {
		t.Fatalf("Len() = %d want 3", m.Len())
	}
	v, ok, err := m.Get(ByteString("a"))
	if err != nil || !ok || !v.Equals(NewInt64(4)) {
		t.Errorf("Get(a) = %v, %v, %v want 4", v, ok, err)
	}
	// keys of different types do not collide
	v, ok, _ = m.Get(NewInt64(1))
	if !ok || !v.Equals(NewInt64(2)) {
		t.Errorf("Get(1) = %v, %v want 2", v, ok)
	}
	if _, ok, _ := m.Get(ByteString{1}); ok {
		t.Error("Get(0x01) found the Integer key")
	}

	removed, err := m.Remove(NewInt64(1))
	if err != nil || !removed {
		t.Fatalf("Remove(1) = %v, %v", removed, err)
	}
	v, ok, _ = m.Get(Boolean(true))
	if !ok || !v.Equals(NewInt64(3)) {
		t.Errorf("after remove, Get(true) = %v, %v want 3", v, ok)
	}
	if got := m.Keys(); len(got) != 2 || !got[0].Equals(ByteString("a")) || !got[1].Equals(Boolean(true)) {
		t.Errorf("Keys() = %v", got)
	}

	if err := m.Put(NewArray(nil, nil), Null{}); errors.Root(err) != ErrBadMapKey {
		t.Errorf("Put(Array) error = %v want %v", err, ErrBadMapKey)
	}
	if err := m.Put(ByteString(make([]byte, 65)), Null{}); errors.Root(err) != ErrBadMapKey {
		t.Errorf("Put(65 bytes) error = %v want %v", err, ErrBadMapKey)
	}
	if err := m.Put(ByteString(make([]byte, 64)), Null{}); err != nil {
		t.Errorf("Put(64 bytes) error = %v", err)
	}
}
