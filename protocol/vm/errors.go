package vm

import "scriptvm/errors"

var (
	ErrAltStackUnderflow       = errors.New("alt stack underflow")
	ErrArrayTooLarge           = errors.New("array too large")
	ErrBadIndex                = errors.New("bad index")
	ErrBadJump                 = errors.New("jump target out of range")
	ErrBadMapKey               = errors.New("bad map key")
	ErrBadReturnCount          = errors.New("return count exceeds stack depth")
	ErrBadScript               = errors.New("bad script")
	ErrBadSlot                 = errors.New("bad slot")
	ErrBadTry                  = errors.New("bad try")
	ErrBadValue                = errors.New("bad value")
	ErrDivZero                 = errors.New("division by zero")
	ErrIntegerTooLarge         = errors.New("integer too large")
	ErrInvalidType             = errors.New("invalid item type")
	ErrInvocationStackOverflow = errors.New("invocation stack overflow")
	ErrItemTooLarge            = errors.New("item too large")
	ErrNoCheckedMessage        = errors.New("no checked message")
	ErrScriptNotFound          = errors.New("script not found")
	ErrStackOverflow           = errors.New("stack size limit exceeded")
	ErrStackUnderflow          = errors.New("data stack underflow")
	ErrSyscall                 = errors.New("syscall failed")
	ErrTryNesting              = errors.New("try nesting too deep")
	ErrUnexpected              = errors.New("unexpected error")
	ErrUnhandledException      = errors.New("unhandled exception")
	ErrUnknownOpcode           = errors.New("unknown opcode")
)
