package vm

import (
	"context"
	"math/big"
	"strings"

	"scriptvm/crypto"
	"scriptvm/errors"
	"scriptvm/log"
	"scriptvm/math/checked"
	"scriptvm/metrics"
)

// State is the engine's execution state. HALT and FAULT are
// terminal; BREAK is a pause the embedder resumes from.
type State uint8

const (
	NoneState  State = 0
	HaltState  State = 1 << 0
	FaultState State = 1 << 1
	BreakState State = 1 << 2
)

func (s State) HasFlag(f State) bool { return s&f != 0 }

func (s State) String() string {
	if s == NoneState {
		return "NONE"
	}
	var names []string
	for _, f := range []struct {
		flag State
		name string
	}{{HaltState, "HALT"}, {FaultState, "FAULT"}, {BreakState, "BREAK"}} {
		if s.HasFlag(f.flag) {
			names = append(names, f.name)
		}
	}
	return strings.Join(names, "|")
}

type breakPoint struct {
	script Hash160
	ip     int
}

// ExecutionEngine runs scripts. It is not safe for concurrent use;
// distinct engines share nothing but their collaborators.
type ExecutionEngine struct {
	state    State
	faultErr error
	limits   Limits

	counterKind CounterKind
	refs        ReferenceCounter

	invocation []*ExecutionContext
	results    *EvaluationStack
	scripts    map[Hash160]*Script

	table          ScriptTable
	interop        InteropService
	crypto         Crypto
	checkedMessage []byte

	breakpoints       map[breakPoint]bool
	invocationCounter map[Hash160]int

	// uncaught is the exception being propagated, if any. It holds
	// a stack reference while set.
	uncaught StackItem

	// state of the instruction being executed
	inst      Instruction
	data      []byte
	isJumping bool

	steps int

	logCtx     context.Context
	traceOp    func(Op, []byte, *ExecutionEngine)
	traceError func(error)
}

// New returns an engine in the BREAK state with nothing loaded.
func New(opts ...Option) *ExecutionEngine {
	vm := &ExecutionEngine{
		state:             BreakState,
		limits:            DefaultLimits(),
		crypto:            crypto.Default,
		scripts:           make(map[Hash160]*Script),
		breakpoints:       make(map[breakPoint]bool),
		invocationCounter: make(map[Hash160]int),
	}
	for _, o := range opts {
		o(vm)
	}
	vm.refs = NewReferenceCounter(vm.counterKind)
	vm.results = NewEvaluationStack(vm.refs)
	return vm
}

// LoadScript pushes a new context running prog. RET from that
// context copies rvcount items to its caller, or all of them if
// rvcount is -1. Exceeding the invocation depth faults the engine.
func (vm *ExecutionEngine) LoadScript(prog []byte, rvcount int) *ExecutionContext {
	ctx := newContext(vm.script(prog), rvcount, vm.refs)
	if err := vm.loadContext(ctx); err != nil {
		vm.fault(err)
	}
	return ctx
}

// Execute runs until the engine halts, faults or reaches
// a breakpoint.
func (vm *ExecutionEngine) Execute() State {
	if vm.state == BreakState {
		vm.state = NoneState
	}
	for vm.state == NoneState {
		vm.executeNext()
	}
	return vm.state
}

// StepInto executes a single instruction.
func (vm *ExecutionEngine) StepInto() State {
	if vm.state.HasFlag(HaltState | FaultState) {
		return vm.state
	}
	vm.state = NoneState
	vm.executeNext()
	if vm.state == NoneState {
		vm.state = BreakState
	}
	return vm.state
}

// StepOver executes one instruction and, if it was a call, runs
// until the callee returns.
func (vm *ExecutionEngine) StepOver() State {
	if vm.state.HasFlag(HaltState | FaultState) {
		return vm.state
	}
	vm.state = NoneState
	depth := len(vm.invocation)
	vm.executeNext()
	for vm.state == NoneState && len(vm.invocation) > depth {
		vm.executeNext()
	}
	if vm.state == NoneState {
		vm.state = BreakState
	}
	return vm.state
}

// StepOut runs until the current context returns.
func (vm *ExecutionEngine) StepOut() State {
	if vm.state.HasFlag(HaltState | FaultState) {
		return vm.state
	}
	vm.state = NoneState
	depth := len(vm.invocation)
	for vm.state == NoneState && len(vm.invocation) >= depth {
		vm.executeNext()
	}
	if vm.state == NoneState {
		vm.state = BreakState
	}
	return vm.state
}

// AddBreakPoint pauses execution whenever the instruction at ip in
// the script with the given hash is about to run.
func (vm *ExecutionEngine) AddBreakPoint(script Hash160, ip int) {
	vm.breakpoints[breakPoint{script, ip}] = true
}

func (vm *ExecutionEngine) RemoveBreakPoint(script Hash160, ip int) bool {
	bp := breakPoint{script, ip}
	if !vm.breakpoints[bp] {
		return false
	}
	delete(vm.breakpoints, bp)
	return true
}

func (vm *ExecutionEngine) State() State { return vm.state }

// FaultErr is the error that faulted the engine.
func (vm *ExecutionEngine) FaultErr() error { return vm.faultErr }

// UncaughtException is the thrown item that faulted the engine,
// or nil.
func (vm *ExecutionEngine) UncaughtException() StackItem { return vm.uncaught }

// InvocationStack returns the loaded contexts, the current one last.
func (vm *ExecutionEngine) InvocationStack() []*ExecutionContext {
	return append([]*ExecutionContext(nil), vm.invocation...)
}

// ResultStack holds the items returned by the entry context.
func (vm *ExecutionEngine) ResultStack() *EvaluationStack { return vm.results }

// CurrentContext is the context being executed, or nil.
func (vm *ExecutionEngine) CurrentContext() *ExecutionContext {
	if len(vm.invocation) == 0 {
		return nil
	}
	return vm.invocation[len(vm.invocation)-1]
}

// EntryContext is the bottom of the invocation stack, or nil.
func (vm *ExecutionEngine) EntryContext() *ExecutionContext {
	if len(vm.invocation) == 0 {
		return nil
	}
	return vm.invocation[0]
}

func (vm *ExecutionEngine) ReferenceCounter() ReferenceCounter { return vm.refs }

func (vm *ExecutionEngine) Limits() Limits { return vm.limits }

// InvocationCount is the number of times the script with the given
// hash has been loaded by this engine.
func (vm *ExecutionEngine) InvocationCount(hash Hash160) int {
	return vm.invocationCounter[hash]
}

// Steps is the number of instructions executed so far.
func (vm *ExecutionEngine) Steps() int { return vm.steps }

// Push pushes item onto the current evaluation stack. It is meant
// for interop services.
func (vm *ExecutionEngine) Push(item StackItem) error {
	if vm.CurrentContext() == nil {
		return errors.WithDetail(ErrStackUnderflow, "no current context")
	}
	vm.push(item)
	return nil
}

// Pop pops the top of the current evaluation stack.
func (vm *ExecutionEngine) Pop() (StackItem, error) {
	if vm.CurrentContext() == nil {
		return nil, errors.WithDetail(ErrStackUnderflow, "no current context")
	}
	return vm.pop()
}

// PopBytes pops an item and returns its byte representation.
func (vm *ExecutionEngine) PopBytes() ([]byte, error) {
	if vm.CurrentContext() == nil {
		return nil, errors.WithDetail(ErrStackUnderflow, "no current context")
	}
	return vm.popBytes()
}

// PushBytes pushes b as a ByteString, checking the item size limit.
func (vm *ExecutionEngine) PushBytes(b []byte) error {
	if vm.CurrentContext() == nil {
		return errors.WithDetail(ErrStackUnderflow, "no current context")
	}
	return vm.pushBytes(b)
}

func (vm *ExecutionEngine) executeNext() {
	defer func() {
		if r := recover(); r != nil {
			vm.fault(errors.WithDetailf(ErrUnexpected, "%v", r))
		}
	}()

	if len(vm.invocation) == 0 {
		vm.halt()
		return
	}
	if err := vm.step(); err != nil {
		vm.fault(err)
		return
	}
	if vm.state != NoneState {
		return
	}
	limit := vm.limits.MaxStackSize
	if vm.refs.Count() > limit && vm.refs.CheckZeroReferred() > limit {
		vm.fault(errors.WithDetailf(ErrStackOverflow, "%d references exceed %d", vm.refs.Count(), limit))
		return
	}
	if ctx := vm.CurrentContext(); ctx != nil && vm.breakpoints[breakPoint{ctx.Script.Hash(), ctx.IP}] {
		vm.state = BreakState
	}
}

func (vm *ExecutionEngine) step() error {
	ctx := vm.CurrentContext()
	ip := ctx.IP
	inst, err := ctx.CurrentInstruction()
	if err != nil {
		return errors.Wrapf(err, "decoding at %d", ip)
	}
	vm.inst = inst
	vm.data = inst.Data
	vm.isJumping = false
	if vm.traceOp != nil {
		vm.traceOp(inst.Op, inst.Data, vm)
	}
	vm.steps++
	if err := ops[inst.Op].fn(vm); err != nil {
		if vm.traceError != nil {
			vm.traceError(err)
		}
		return errors.Wrapf(err, "%s at %d", inst.Op, ip)
	}
	if !vm.isJumping {
		ctx.IP += int(inst.Len)
	}
	return nil
}

func (vm *ExecutionEngine) halt() {
	vm.state = HaltState
	vm.refs.CheckZeroReferred()
	vm.record(true)
}

func (vm *ExecutionEngine) fault(err error) {
	vm.state = FaultState
	vm.faultErr = err
	vm.record(false)
}

type collectionStatser interface {
	collectionStats() (runs, freed int)
}

func (vm *ExecutionEngine) record(halted bool) {
	metrics.RecordRun(vm.steps, halted, vm.refs.Count())
	if c, ok := vm.refs.(collectionStatser); ok {
		metrics.RecordCollections(c.collectionStats())
	}
	if vm.logCtx == nil {
		return
	}
	keyvals := []interface{}{"state", vm.state, "steps", vm.steps, "refs", vm.refs.Count()}
	if ctx := vm.CurrentContext(); ctx != nil {
		keyvals = append(keyvals, "script", ctx.Script.Hash(), "ip", ctx.IP)
	}
	if vm.faultErr != nil {
		keyvals = append(keyvals, log.KeyError, vm.faultErr)
	}
	if vm.uncaught != nil {
		keyvals = append(keyvals, "exception", vm.uncaught)
	}
	log.Write(vm.logCtx, keyvals...)
}

// script returns the shared Script for prog.
func (vm *ExecutionEngine) script(prog []byte) *Script {
	s := NewScript(prog)
	if cached, ok := vm.scripts[s.Hash()]; ok {
		return cached
	}
	vm.scripts[s.Hash()] = s
	return s
}

func (vm *ExecutionEngine) loadContext(ctx *ExecutionContext) error {
	if len(vm.invocation) >= vm.limits.MaxInvocationStackSize {
		return errors.WithDetailf(ErrInvocationStackOverflow, "depth %d", len(vm.invocation))
	}
	vm.invocation = append(vm.invocation, ctx)
	vm.invocationCounter[ctx.Script.Hash()]++
	return nil
}

func (vm *ExecutionEngine) popContext() *ExecutionContext {
	ctx := vm.invocation[len(vm.invocation)-1]
	vm.invocation = vm.invocation[:len(vm.invocation)-1]
	return ctx
}

// unloadContext releases the references held by a context that has
// been removed from the invocation stack.
func (vm *ExecutionEngine) unloadContext(ctx *ExecutionContext) {
	ctx.EvaluationStack.Clear()
	ctx.AltStack.Clear()
	if ctx.StaticFields != nil && !vm.sharesStatics(ctx.StaticFields) {
		ctx.StaticFields.ClearReferences()
	}
	if ctx.LocalVariables != nil {
		ctx.LocalVariables.ClearReferences()
	}
	if ctx.Arguments != nil {
		ctx.Arguments.ClearReferences()
	}
	ctx.TryStack = nil
}

// sharesStatics reports whether a context still on the invocation
// stack uses statics. CALL clones share their caller's slot.
func (vm *ExecutionEngine) sharesStatics(statics *Slot) bool {
	for _, c := range vm.invocation {
		if c.StaticFields == statics {
			return true
		}
	}
	return false
}

func (vm *ExecutionEngine) loadFromTable(hash Hash160) (*Script, error) {
	if vm.table == nil {
		return nil, errors.WithDetailf(ErrScriptNotFound, "no script table for %s", hash)
	}
	prog, err := vm.table.GetScript(hash)
	if err != nil {
		return nil, err
	}
	return vm.script(prog), nil
}

func (vm *ExecutionEngine) push(item StackItem) {
	vm.CurrentContext().EvaluationStack.Push(item)
}

func (vm *ExecutionEngine) pop() (StackItem, error) {
	return vm.CurrentContext().EvaluationStack.Pop()
}

func (vm *ExecutionEngine) peek(n int) (StackItem, error) {
	return vm.CurrentContext().EvaluationStack.Peek(n)
}

func (vm *ExecutionEngine) popBool() (bool, error) {
	item, err := vm.pop()
	if err != nil {
		return false, err
	}
	return item.Bool(), nil
}

func (vm *ExecutionEngine) popBytes() ([]byte, error) {
	item, err := vm.pop()
	if err != nil {
		return nil, err
	}
	return item.Bytes()
}

func (vm *ExecutionEngine) popInt() (*big.Int, error) {
	item, err := vm.pop()
	if err != nil {
		return nil, err
	}
	return vm.toInt(item)
}

// popIndex pops a non-negative integer that fits in an int32.
func (vm *ExecutionEngine) popIndex() (int, error) {
	x, err := vm.popInt()
	if err != nil {
		return 0, err
	}
	if x.Sign() < 0 || !x.IsInt64() || x.Int64() > 1<<31-1 {
		return 0, errors.WithDetailf(ErrBadIndex, "index %s", x)
	}
	return int(x.Int64()), nil
}

// toInt coerces item to an integer within the size limit.
func (vm *ExecutionEngine) toInt(item StackItem) (*big.Int, error) {
	switch item.(type) {
	case ByteString, *Buffer:
		b, _ := item.Bytes()
		if len(b) > vm.limits.MaxIntegerSize {
			return nil, errors.WithDetailf(ErrIntegerTooLarge, "%d-byte operand", len(b))
		}
	}
	x, err := item.Int()
	if err != nil {
		return nil, err
	}
	if err := vm.checkInt(x); err != nil {
		return nil, err
	}
	return x, nil
}

func (vm *ExecutionEngine) checkInt(x *big.Int) error {
	// the encoding needs at most one byte more than the magnitude
	if (x.BitLen()+8)/8 > vm.limits.MaxIntegerSize {
		if n := len(BigIntBytes(x)); n > vm.limits.MaxIntegerSize {
			return errors.WithDetailf(ErrIntegerTooLarge, "%d-byte integer", n)
		}
	}
	return nil
}

func (vm *ExecutionEngine) pushInt(x *big.Int) error {
	if err := vm.checkInt(x); err != nil {
		return err
	}
	vm.push(&Integer{value: x})
	return nil
}

func (vm *ExecutionEngine) pushBytes(b []byte) error {
	if len(b) > vm.limits.MaxItemSize {
		return errors.WithDetailf(ErrItemTooLarge, "%d bytes", len(b))
	}
	vm.push(ByteString(b))
	return nil
}

// cloneIfStruct returns a clone of item if it is a Struct, so that
// storing it in a container does not alias the original.
func (vm *ExecutionEngine) cloneIfStruct(item StackItem) (StackItem, error) {
	if s, ok := item.(*Struct); ok {
		return s.Clone(vm.limits.MaxStackSize)
	}
	return item, nil
}

// target resolves a jump offset relative to the current instruction.
func (vm *ExecutionEngine) target(offset int) (int, error) {
	ctx := vm.CurrentContext()
	t, ok := checked.AddInt32(int32(ctx.IP), int32(offset))
	if !ok || t < 0 || int(t) > ctx.Script.Len() {
		return 0, errors.WithDetailf(ErrBadJump, "target %d%+d outside script of %d bytes", ctx.IP, offset, ctx.Script.Len())
	}
	return int(t), nil
}

func (vm *ExecutionEngine) jumpTo(pos int) error {
	ctx := vm.CurrentContext()
	if pos < 0 || pos > ctx.Script.Len() {
		return errors.WithDetailf(ErrBadJump, "target %d outside script of %d bytes", pos, ctx.Script.Len())
	}
	ctx.IP = pos
	vm.isJumping = true
	return nil
}
