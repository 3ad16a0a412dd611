package vm

// ExecutionContext is one frame of the invocation stack.
type ExecutionContext struct {
	Script *Script
	IP     int

	// RVCount is the number of items RET copies to the caller;
	// -1 copies the whole evaluation stack.
	RVCount int

	EvaluationStack *EvaluationStack
	AltStack        *EvaluationStack

	// StaticFields is shared with every context cloned from this one.
	StaticFields   *Slot
	LocalVariables *Slot
	Arguments      *Slot

	TryStack []*ExceptionHandlingContext

	// CallingScriptHash is the hash of the script that loaded this
	// context, or zero for a context loaded by the embedder.
	CallingScriptHash Hash160
}

func newContext(script *Script, rvcount int, rc ReferenceCounter) *ExecutionContext {
	return &ExecutionContext{
		Script:          script,
		RVCount:         rvcount,
		EvaluationStack: NewEvaluationStack(rc),
		AltStack:        NewEvaluationStack(rc),
	}
}

// clone returns a context on the same script and static fields with
// empty stacks, for an internal CALL.
func (c *ExecutionContext) clone(rc ReferenceCounter) *ExecutionContext {
	n := newContext(c.Script, -1, rc)
	n.IP = c.IP
	n.StaticFields = c.StaticFields
	n.CallingScriptHash = c.CallingScriptHash
	return n
}

// CurrentInstruction decodes the instruction at IP.
func (c *ExecutionContext) CurrentInstruction() (Instruction, error) {
	return c.Script.Instruction(c.IP)
}

// NextIP is the offset of the instruction after the current one.
func (c *ExecutionContext) NextIP() (int, error) {
	inst, err := c.CurrentInstruction()
	if err != nil {
		return 0, err
	}
	return c.IP + int(inst.Len), nil
}

// NextInstruction decodes the instruction after the current one.
func (c *ExecutionContext) NextInstruction() (Instruction, error) {
	ip, err := c.NextIP()
	if err != nil {
		return Instruction{}, err
	}
	return c.Script.Instruction(ip)
}

func (c *ExecutionContext) tryDepth() int { return len(c.TryStack) }

func (c *ExecutionContext) currentTry() *ExceptionHandlingContext {
	if len(c.TryStack) == 0 {
		return nil
	}
	return c.TryStack[len(c.TryStack)-1]
}
