package vm

import (
	"testing"

	"scriptvm/errors"
)

func TestTryCatchFinally(t *testing.T) {
	runCases(t, []opCase{
		// catch receives the thrown item
		{src: "TRY 8 0 'x' THROW 2 ENDTRY 3", want: list(ByteString("x"), NewInt64(2))},
		// finally runs when the try block completes
		{src: "TRY 0 9 1 ENDTRY 5 2 ENDFINALLY 3", want: ints(1, 2, 3)},
		// catch, then finally, then the code after the region
		{src: "TRY 8 12 'x' THROW 2 ENDTRY 5 3 ENDFINALLY 4", want: list(ByteString("x"), NewInt64(2), NewInt64(3), NewInt64(4))},
		// a rethrow from an inner catch reaches the outer one
		{src: "TRY 14 0 TRY 8 0 'x' THROW THROW 1 ENDTRY 3", want: list(ByteString("x"), NewInt64(1))},
		// the handler in the caller unloads the callee
		{src: "TRY 11 0 CALL 12 ENDTRY 8 DROP 7 ENDTRY 3 RET 'e' THROW", want: ints(7)},
		{src: "1 THROWIFNOT 5", want: ints(5)},
		{src: "TRY 6 0 DROP 1", err: ErrStackUnderflow},
		{src: "TRY 5 0 RET", err: ErrBadTry},
		{src: "TRY 0 0", err: ErrBadTry},
		{src: "TRY 100 0", err: ErrBadJump},
		{src: "ENDTRY 0", err: ErrBadTry},
		{src: "ENDFINALLY", err: ErrBadTry},
		{src: "TRY 0 9 1 ENDTRY 0 ENDTRY 0", err: ErrBadTry},
		{
			src:  "TRY 5 0 TRY 5 0",
			opts: limitsWith(func(l *Limits) { l.MaxTryNestingDepth = 1 }),
			err:  ErrTryNesting,
		},
	})
}

func TestUnhandledException(t *testing.T) {
	cases := []struct {
		src   string
		item  StackItem
		depth int
	}{
		{"'x' THROW", ByteString("x"), 1},
		{"0 THROWIFNOT", ByteString("THROWIFNOT"), 1},
		// the finally block runs, then the exception continues
		{"TRY 0 8 'x' THROW 2 ENDFINALLY", ByteString("x"), 1},
		// the invocation stack is left as it was at the throw
		{"CALL 4 RET 'boom' THROW", ByteString("boom"), 2},
	}
	for _, c := range cases {
		vm := run(t, c.src)
		if vm.State() != FaultState {
			t.Errorf("%s: state %s want FAULT", c.src, vm.State())
			continue
		}
		if errors.Root(vm.FaultErr()) != ErrUnhandledException {
			t.Errorf("%s: error %v want %v", c.src, vm.FaultErr(), ErrUnhandledException)
		}
		if got := vm.UncaughtException(); got == nil || !sameItem(got, c.item) {
			t.Errorf("%s: uncaught %v want %s", c.src, got, c.item)
		}
		if got := len(vm.InvocationStack()); got != c.depth {
			t.Errorf("%s: invocation depth %d want %d", c.src, got, c.depth)
		}
	}
}

func TestFinallyRunsBeforeFault(t *testing.T) {
	vm := run(t, "TRY 0 8 'x' THROW 2 ENDFINALLY")
	if got := vm.CurrentContext().EvaluationStack.Items(); !sameItems(got, ints(2)) {
		t.Errorf("stack at fault %s want [2]", itemsString(got))
	}
}

func TestUncaughtHoldsReference(t *testing.T) {
	vm := run(t, "0 NEWARRAY THROW")
	if errors.Root(vm.FaultErr()) != ErrUnhandledException {
		t.Fatalf("error %v want %v", vm.FaultErr(), ErrUnhandledException)
	}
	rc := vm.ReferenceCounter()
	if got := rc.CheckZeroReferred(); got != 1 {
		t.Errorf("CheckZeroReferred() = %d want 1", got)
	}
	if !Tracked(vm.UncaughtException()) {
		t.Error("uncaught array was collected")
	}
}

func TestCaughtExceptionIsCleared(t *testing.T) {
	vm := run(t, "TRY 8 0 'x' THROW DROP ENDTRY 3")
	if vm.State() != HaltState {
		t.Fatalf("state %s (%v)", vm.State(), vm.FaultErr())
	}
	if vm.UncaughtException() != nil {
		t.Errorf("uncaught %s after the catch", vm.UncaughtException())
	}
}
