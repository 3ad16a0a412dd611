package vm

import "context"

// Option configures an ExecutionEngine.
type Option func(*ExecutionEngine)

func WithLimits(l Limits) Option {
	return func(vm *ExecutionEngine) {
		vm.limits = l
	}
}

// WithScriptTable sets the table APPCALL and its relatives load
// scripts from.
func WithScriptTable(t ScriptTable) Option {
	return func(vm *ExecutionEngine) {
		vm.table = t
	}
}

// WithInterop sets the service SYSCALL invokes.
func WithInterop(s InteropService) Option {
	return func(vm *ExecutionEngine) {
		vm.interop = s
	}
}

func WithCrypto(c Crypto) Option {
	return func(vm *ExecutionEngine) {
		vm.crypto = c
	}
}

func WithReferenceCounter(kind CounterKind) Option {
	return func(vm *ExecutionEngine) {
		vm.counterKind = kind
	}
}

// WithCheckedMessage sets the message CHECKSIG and CHECKMULTISIG
// verify signatures against.
func WithCheckedMessage(msg []byte) Option {
	return func(vm *ExecutionEngine) {
		vm.checkedMessage = msg
	}
}

// WithContext supplies a context whose log fields are attached to
// the engine's log entries. Without it the engine does not log.
func WithContext(ctx context.Context) Option {
	return func(vm *ExecutionEngine) {
		vm.logCtx = ctx
	}
}

// TraceOp installs a callback invoked before each instruction.
func TraceOp(f func(Op, []byte, *ExecutionEngine)) Option {
	return func(vm *ExecutionEngine) {
		vm.traceOp = f
	}
}

// TraceError installs a callback invoked with each error returned
// by an instruction.
func TraceError(f func(error)) Option {
	return func(vm *ExecutionEngine) {
		vm.traceError = f
	}
}
