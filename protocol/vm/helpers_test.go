package vm

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"scriptvm/errors"
)

// run assembles src, loads it as the entry script and executes it.
func run(t testing.TB, src string, opts ...Option) *ExecutionEngine {
	t.Helper()
	prog, err := Assemble(src)
	if err != nil {
		t.Fatalf("assembling %q: %v", src, err)
	}
	vm := New(opts...)
	vm.LoadScript(prog, -1)
	vm.Execute()
	return vm
}

// sameItem compares items structurally, including their types.
func sameItem(a, b StackItem) bool {
	if a.Type() != b.Type() {
		return false
	}
	switch x := a.(type) {
	case *Array:
		return sameItems(x.Items(), b.(*Array).Items())
	case *Struct:
		return sameItems(x.Items(), b.(*Struct).Items())
	case *Map:
		y := b.(*Map)
		return sameItems(x.Keys(), y.Keys()) && sameItems(x.Values(), y.Values())
	case *Buffer:
		xb, _ := x.Bytes()
		yb, _ := b.Bytes()
		return bytes.Equal(xb, yb)
	}
	return a.Equals(b)
}

func sameItems(a, b []StackItem) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !sameItem(a[i], b[i]) {
			return false
		}
	}
	return true
}

func itemsString(items []StackItem) string {
	s := make([]string, len(items))
	for i, item := range items {
		s[i] = describe(item)
	}
	return "[" + strings.Join(s, " ") + "]"
}

func describe(item StackItem) string {
	switch x := item.(type) {
	case *Array:
		return "Array" + itemsString(x.Items())
	case *Struct:
		return "Struct" + itemsString(x.Items())
	case *Buffer:
		b, _ := x.Bytes()
		return fmt.Sprintf("Buffer(%x)", b)
	}
	return fmt.Sprintf("%s(%s)", item.Type(), item)
}

type opCase struct {
	src  string
	opts []Option
	want []StackItem
	err  error
}

// runCases runs each case and checks the result stack, bottom
// first, or the root of the fault error.
func runCases(t *testing.T, cases []opCase) {
	t.Helper()
	for _, c := range cases {
		vm := run(t, c.src, c.opts...)
		if c.err != nil {
			if vm.State() != FaultState {
				t.Errorf("%s: state %s want FAULT", c.src, vm.State())
				continue
			}
			if got := errors.Root(vm.FaultErr()); got != c.err {
				t.Errorf("%s: error %v want %v", c.src, vm.FaultErr(), c.err)
			}
			continue
		}
		if vm.State() != HaltState {
			t.Errorf("%s: state %s (%v) want HALT", c.src, vm.State(), vm.FaultErr())
			continue
		}
		if got := vm.ResultStack().Items(); !sameItems(got, c.want) {
			t.Errorf("%s: results %s want %s", c.src, itemsString(got), itemsString(c.want))
		}
	}
}

func ints(ns ...int64) []StackItem {
	items := make([]StackItem, len(ns))
	for i, n := range ns {
		items[i] = NewInt64(n)
	}
	return items
}

func list(items ...StackItem) []StackItem { return items }

// mapTable is a ScriptTable backed by a map.
type mapTable map[Hash160][]byte

func (m mapTable) GetScript(hash Hash160) ([]byte, error) {
	prog, ok := m[hash]
	if !ok {
		return nil, errors.WithDetailf(ErrScriptNotFound, "%s", hash)
	}
	return prog, nil
}

func (m mapTable) add(t testing.TB, src string) Hash160 {
	t.Helper()
	prog, err := Assemble(src)
	if err != nil {
		t.Fatal(err)
	}
	h := NewScript(prog).Hash()
	m[h] = prog
	return h
}

// funcInterop dispatches SYSCALLs to functions keyed by method name.
type funcInterop map[string]func(*ExecutionEngine) error

func (f funcInterop) Invoke(method uint32, vm *ExecutionEngine) error {
	for name, fn := range f {
		if InteropMethodID(name) == method {
			return fn(vm)
		}
	}
	return errors.WithDetailf(ErrSyscall, "method %08x not registered", method)
}

// echoCrypto accepts a signature equal to its public key.
type echoCrypto struct{}

func (echoCrypto) Hash160(b []byte) (h [20]byte) { copy(h[:], b); return h }
func (echoCrypto) Hash256(b []byte) (h [32]byte) { copy(h[:], b); return h }

func (echoCrypto) VerifySignature(msg, sig, pubkey []byte) bool {
	return len(msg) > 0 && bytes.Equal(sig, pubkey)
}
