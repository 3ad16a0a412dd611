package vm

import (
	"encoding/binary"
	"fmt"
	"strings"
	"testing"

	"scriptvm/errors"
	"scriptvm/testutil"
)

func TestStackSizeLimit(t *testing.T) {
	vm := run(t, strings.Repeat("1 ", 2048))
	if vm.State() != HaltState {
		t.Fatalf("2048 items: state %s (%v) want HALT", vm.State(), vm.FaultErr())
	}
	if got := vm.ResultStack().Len(); got != 2048 {
		t.Errorf("2048 items: %d results", got)
	}

	vm = run(t, strings.Repeat("1 ", 2049))
	if vm.State() != FaultState {
		t.Fatalf("2049 items: state %s want FAULT", vm.State())
	}
	if errors.Root(vm.FaultErr()) != ErrStackOverflow {
		t.Errorf("2049 items: error %v want %v", vm.FaultErr(), ErrStackOverflow)
	}
	if got := vm.ReferenceCounter().Count(); got != 2049 {
		t.Errorf("2049 items: Count() = %d want 2049", got)
	}
}

func TestCyclesAreCollected(t *testing.T) {
	// 3000 self-referencing arrays, each dropped as soon as it is made
	loop := "3000 0 NEWARRAY DUP DUP APPEND DROP DEC DUP JMPIF -8"
	for _, kind := range counterKinds {
		t.Run(kind.String(), func(t *testing.T) {
			vm := run(t, loop, WithReferenceCounter(kind))
			if vm.State() != HaltState {
				t.Fatalf("state %s (%v) want HALT", vm.State(), vm.FaultErr())
			}
			if got := vm.ReferenceCounter().Count(); got != 1 {
				t.Errorf("Count() = %d want 1", got)
			}
			if runs, freed := CollectionStats(vm.ReferenceCounter()); runs == 0 || freed != 3000 {
				t.Errorf("CollectionStats() = %d runs, %d freed; want 3000 freed", runs, freed)
			}
		})
	}
}

func TestInvocationStackLimit(t *testing.T) {
	l := DefaultLimits()
	l.MaxInvocationStackSize = 4
	vm := run(t, "CALL 0", WithLimits(l))
	if errors.Root(vm.FaultErr()) != ErrInvocationStackOverflow {
		t.Fatalf("error %v want %v", vm.FaultErr(), ErrInvocationStackOverflow)
	}
	if got := len(vm.InvocationStack()); got != 4 {
		t.Errorf("invocation depth %d want 4", got)
	}
}

func TestLoadScriptBeyondLimit(t *testing.T) {
	l := DefaultLimits()
	l.MaxInvocationStackSize = 1
	vm := New(WithLimits(l))
	vm.LoadScript([]byte{byte(OP_NOP)}, -1)
	vm.LoadScript([]byte{byte(OP_NOP)}, -1)
	if vm.State() != FaultState || errors.Root(vm.FaultErr()) != ErrInvocationStackOverflow {
		t.Errorf("state %s error %v", vm.State(), vm.FaultErr())
	}
}

func TestControlFlow(t *testing.T) {
	runCases(t, []opCase{
		{src: "JMP 3", want: nil},
		{src: "1 JMPIF 4 2 3", want: ints(3)},
		{src: "0 JMPIF 4 2 3", want: ints(2, 3)},
		{src: "1 JMPIFNOT 4 2 3", want: ints(2, 3)},
		{src: "JMP 100", err: ErrBadJump},
		{src: "JMP -1", err: ErrBadJump},
		{src: "0 JMPIF 100", err: ErrBadJump},
		{src: "NOP NOP 1", want: ints(1)},
	})

	vm := New()
	vm.LoadScript([]byte{0x03, 0x01}, -1)
	if vm.Execute() != FaultState || errors.Root(vm.FaultErr()) != ErrBadScript {
		t.Errorf("truncated PUSHBYTES3: state %s error %v", vm.State(), vm.FaultErr())
	}
}

func TestCalls(t *testing.T) {
	runCases(t, []opCase{
		{src: "CALL 4 RET 5 RET", want: ints(5)},
		{src: "1 CALL_I 1 0 6 RET 2 RET", want: ints(1, 2)},
		{src: "1 CALL_I 1 1 6 RET DROP 2 RET", want: ints(2)},
		// the callee sees only the parameters it was passed
		{src: "1 CALL_I 1 0 6 RET DEPTH RET", want: ints(1, 0)},
		{src: "1 2 CALL_I 0 2 6 RET DROP DROP RET", want: nil},
		{src: "CALL_I 0 1 5 RET RET", err: ErrStackUnderflow},
		{src: "CALL_I 2 0 6 RET 1 RET", err: ErrBadReturnCount},
		{src: "PUSHA 7 CALLA RET 3 RET", want: ints(3)},
		{src: "PUSHA 100", err: ErrBadJump},
		{src: "1 CALLA", err: ErrInvalidType},
		{src: "CALL 100", err: ErrBadJump},
	})
}

func TestCallIsolation(t *testing.T) {
	// INITSLOT in the callee does not touch the caller's locals
	vm := run(t, "INITSLOT 1 0 9 STLOC 0 CALL 6 LDLOC 0 RET INITSLOT 1 0 5 STLOC 0 RET")
	if vm.State() != HaltState {
		t.Fatalf("state %s (%v)", vm.State(), vm.FaultErr())
	}
	if got := vm.ResultStack().Items(); !sameItems(got, ints(9)) {
		t.Errorf("results %s want [9]", itemsString(got))
	}
}

func TestExternalCalls(t *testing.T) {
	table := mapTable{}
	add := table.add(t, "5 6 ADD")
	inc := table.add(t, "1 ADD")
	caller := table.add(t, "SYSCALL 'Test.Caller'")
	unknown := strings.Repeat("ab", 20)

	callerInterop := funcInterop{
		"Test.Caller": func(vm *ExecutionEngine) error {
			h := vm.CurrentContext().CallingScriptHash
			return vm.PushBytes(h[:])
		},
	}
	opts := []Option{WithScriptTable(table), WithInterop(callerInterop)}
	zero := "0x" + strings.Repeat("00", 20)

	runCases(t, []opCase{
		{src: "APPCALL 0x" + add.String() + " 1 ADD", opts: opts, want: ints(12)},
		{src: "0x" + add.String() + " APPCALL " + zero + " 1 ADD", opts: opts, want: ints(12)},
		{src: "TAILCALL 0x" + add.String(), opts: opts, want: ints(11)},
		{src: "41 CALL_E 1 1 0x" + inc.String(), opts: opts, want: ints(42)},
		{src: "41 0x" + inc.String() + " CALL_ED 1 1", opts: opts, want: ints(42)},
		{src: "APPCALL 0x" + unknown, opts: opts, err: ErrScriptNotFound},
		{src: "'short' APPCALL " + zero, opts: opts, err: ErrBadValue},
		{src: "APPCALL 0x" + add.String(), err: ErrScriptNotFound},
		{src: "TRY 6 0 TAILCALL 0x" + add.String(), opts: opts, err: ErrBadTry},
		{src: "CALL_ET 1 0 0x" + add.String(), opts: opts, err: ErrBadReturnCount},
		{src: "INITSSLOT 1 7 STSFLD 0 CALL 6 LDSFLD 0 RET TAILCALL 0x" + add.String(), opts: opts, want: ints(11, 7)},
		{src: "INITSSLOT 1 7 STSFLD 0 41 CALL_I 1 1 8 LDSFLD 0 RET CALL_ET 1 1 0x" + inc.String(), opts: opts, want: ints(42, 7)},
	})

	prog, err := Assemble("APPCALL 0x" + caller.String())
	if err != nil {
		testutil.FatalErr(t, err)
	}
	vm := New(opts...)
	vm.LoadScript(prog, -1)
	if vm.Execute() != HaltState {
		t.Fatalf("state %s (%v)", vm.State(), vm.FaultErr())
	}
	want := NewScript(prog).Hash()
	if got := vm.ResultStack().Items(); !sameItems(got, list(ByteString(want[:]))) {
		t.Errorf("calling script hash %s want %s", itemsString(got), want)
	}
	if n := vm.InvocationCount(caller); n != 1 {
		t.Errorf("InvocationCount() = %d want 1", n)
	}
}

func TestSyscall(t *testing.T) {
	interop := funcInterop{
		"Test.Push": func(vm *ExecutionEngine) error {
			return vm.Push(NewInt64(42))
		},
		"Test.Fail": func(vm *ExecutionEngine) error {
			return errors.WithDetail(ErrBadValue, "refused")
		},
		"Test.Panic": func(vm *ExecutionEngine) error {
			panic("boom")
		},
		"Test.Sum": func(vm *ExecutionEngine) error {
			a, err := vm.Pop()
			if err != nil {
				return err
			}
			b, err := vm.Pop()
			if err != nil {
				return err
			}
			x, _ := a.Int()
			y, _ := b.Int()
			return vm.Push(NewInteger(x.Add(x, y)))
		},
	}
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], InteropMethodID("Test.Push"))
	opts := []Option{WithInterop(interop)}

	runCases(t, []opCase{
		{src: "SYSCALL 'Test.Push'", opts: opts, want: ints(42)},
		{src: fmt.Sprintf("SYSCALL 0x%x", raw[:]), opts: opts, want: ints(42)},
		{src: "2 3 SYSCALL 'Test.Sum'", opts: opts, want: ints(5)},
		{src: "SYSCALL 'Test.Missing'", opts: opts, err: ErrSyscall},
		{src: "SYSCALL 'Test.Fail'", opts: opts, err: ErrBadValue},
		{src: "SYSCALL 'Test.Panic'", opts: opts, err: ErrUnexpected},
		{src: "SYSCALL 'Test.Push'", err: ErrSyscall},
	})
}

func TestInteropMethodID(t *testing.T) {
	if got := InteropMethodID("System.Runtime.Log"); got != 0x9647e7cf {
		t.Errorf("InteropMethodID(System.Runtime.Log) = %08x want 9647e7cf", got)
	}
	if InteropMethodID("a") == InteropMethodID("b") {
		t.Error("distinct names share an id")
	}
}

func TestStepping(t *testing.T) {
	prog, err := Assemble("1 2 ADD")
	if err != nil {
		testutil.FatalErr(t, err)
	}
	vm := New()
	vm.LoadScript(prog, -1)

	var states []State
	for i := 0; i < 4; i++ {
		states = append(states, vm.StepInto())
	}
	want := []State{BreakState, BreakState, BreakState, HaltState}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("StepInto states %v want %v", states, want)
		}
	}
	if got := vm.ResultStack().Items(); !sameItems(got, ints(3)) {
		t.Errorf("results %s want [3]", itemsString(got))
	}
	if vm.StepInto() != HaltState || vm.Steps() != 4 {
		t.Errorf("stepping a halted engine: state %s steps %d", vm.State(), vm.Steps())
	}
}

func TestStepOverAndOut(t *testing.T) {
	prog, err := Assemble("CALL 4 RET 5 6 RET")
	if err != nil {
		testutil.FatalErr(t, err)
	}

	vm := New()
	vm.LoadScript(prog, -1)
	if vm.StepOver() != BreakState {
		t.Fatalf("StepOver: state %s (%v)", vm.State(), vm.FaultErr())
	}
	ctx := vm.CurrentContext()
	if len(vm.InvocationStack()) != 1 || ctx.IP != 3 || ctx.EvaluationStack.Len() != 2 {
		t.Errorf("after StepOver: depth %d ip %d stack %s", len(vm.InvocationStack()), ctx.IP, ctx.EvaluationStack)
	}

	vm = New()
	vm.LoadScript(prog, -1)
	vm.StepInto()
	if len(vm.InvocationStack()) != 2 {
		t.Fatalf("StepInto did not enter the call")
	}
	vm.StepInto()
	if vm.StepOut() != BreakState {
		t.Fatalf("StepOut: state %s (%v)", vm.State(), vm.FaultErr())
	}
	if len(vm.InvocationStack()) != 1 || vm.CurrentContext().IP != 3 {
		t.Errorf("after StepOut: depth %d ip %d", len(vm.InvocationStack()), vm.CurrentContext().IP)
	}
	if vm.Execute() != HaltState {
		t.Errorf("Execute after StepOut: state %s", vm.State())
	}
}

func TestBreakPoints(t *testing.T) {
	prog, err := Assemble("1 2 3")
	if err != nil {
		testutil.FatalErr(t, err)
	}
	hash := NewScript(prog).Hash()

	vm := New()
	vm.LoadScript(prog, -1)
	vm.AddBreakPoint(hash, 2)
	if vm.Execute() != BreakState {
		t.Fatalf("state %s want BREAK", vm.State())
	}
	ctx := vm.CurrentContext()
	if ctx.IP != 2 || ctx.EvaluationStack.Len() != 2 {
		t.Errorf("stopped at ip %d with stack %s", ctx.IP, ctx.EvaluationStack)
	}
	if !vm.RemoveBreakPoint(hash, 2) || vm.RemoveBreakPoint(hash, 2) {
		t.Error("RemoveBreakPoint did not report the breakpoint exactly once")
	}
	if vm.Execute() != HaltState {
		t.Errorf("resumed: state %s want HALT", vm.State())
	}
	if got := vm.ResultStack().Items(); !sameItems(got, ints(1, 2, 3)) {
		t.Errorf("results %s", itemsString(got))
	}
}

func TestTraceOp(t *testing.T) {
	var got []string
	trace := TraceOp(func(op Op, data []byte, vm *ExecutionEngine) {
		got = append(got, op.String())
	})
	var traced error
	onErr := TraceError(func(err error) { traced = err })

	run(t, "1 2 ADD", trace, onErr)
	testutil.ExpectEqual(t, strings.Join(got, " "), "PUSH1 PUSH2 ADD RET", "traced ops")
	if traced != nil {
		t.Errorf("TraceError called with %v", traced)
	}

	run(t, "ADD", onErr)
	if errors.Root(traced) != ErrStackUnderflow {
		t.Errorf("TraceError got %v want %v", traced, ErrStackUnderflow)
	}
}

func TestStateString(t *testing.T) {
	cases := []struct {
		s    State
		want string
	}{
		{NoneState, "NONE"},
		{HaltState, "HALT"},
		{FaultState | BreakState, "FAULT|BREAK"},
	}
	for _, c := range cases {
		if got := c.s.String(); got != c.want {
			t.Errorf("State(%d).String() = %q want %q", c.s, got, c.want)
		}
	}
}

func TestHostStackAccess(t *testing.T) {
	vm := New()
	if err := vm.Push(NewInt64(1)); errors.Root(err) != ErrStackUnderflow {
		t.Errorf("Push with no context: %v", err)
	}
	if _, err := vm.Pop(); errors.Root(err) != ErrStackUnderflow {
		t.Errorf("Pop with no context: %v", err)
	}
	vm.LoadScript(nil, -1)
	if err := vm.PushBytes([]byte("ab")); err != nil {
		t.Fatal(err)
	}
	b, err := vm.PopBytes()
	if err != nil || string(b) != "ab" {
		t.Errorf("PopBytes() = %q, %v", b, err)
	}
	if vm.EntryContext() != vm.CurrentContext() {
		t.Error("single context is not both entry and current")
	}
}
