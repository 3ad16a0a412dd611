package interop

import (
	"context"

	"golang.org/x/crypto/sha3"

	"scriptvm/errors"
	"scriptvm/log"
	"scriptvm/protocol/vm"
)

// Platform is the name System.Runtime.Platform reports.
const Platform = "scriptvm"

// maxLogSize bounds a System.Runtime.Log message, in bytes.
const maxLogSize = 1024

// Default returns a registry holding the standard host functions.
// Messages logged by scripts are written to ctx.
func Default(ctx context.Context) *Registry {
	r := NewRegistry(ctx)
	r.Register("System.Runtime.Platform", platform)
	r.Register("System.Runtime.Log", r.runtimeLog)
	r.Register("System.Runtime.Notify", r.runtimeNotify)
	r.Register("System.Runtime.GetInvocationCounter", getInvocationCounter)
	r.Register("System.ExecutionEngine.GetExecutingScriptHash", getExecutingScriptHash)
	r.Register("System.ExecutionEngine.GetCallingScriptHash", getCallingScriptHash)
	r.Register("System.ExecutionEngine.GetEntryScriptHash", getEntryScriptHash)
	r.Register("System.Crypto.Sha3", sha3Sum)
	r.Register("System.Crypto.Keccak256", keccak256)
	r.Register("System.Binary.Serialize", serialize)
	r.Register("System.Binary.Deserialize", deserialize)
	return r
}

func platform(e *vm.ExecutionEngine) error {
	return e.PushBytes([]byte(Platform))
}

func (r *Registry) runtimeLog(e *vm.ExecutionEngine) error {
	msg, err := e.PopBytes()
	if err != nil {
		return err
	}
	if len(msg) > maxLogSize {
		return errors.WithDetailf(vm.ErrBadValue, "log message of %d bytes", len(msg))
	}
	log.Write(r.ctx, "script", e.CurrentContext().Script.Hash(), "message", string(msg))
	return nil
}

func (r *Registry) runtimeNotify(e *vm.ExecutionEngine) error {
	item, err := e.Pop()
	if err != nil {
		return err
	}
	data, err := Serialize(item, e.Limits())
	if err != nil {
		return err
	}
	r.notify(Notification{Script: e.CurrentContext().Script.Hash(), Data: data})
	return nil
}

func getInvocationCounter(e *vm.ExecutionEngine) error {
	n := e.InvocationCount(e.CurrentContext().Script.Hash())
	return e.Push(vm.NewInt64(int64(n)))
}

func getExecutingScriptHash(e *vm.ExecutionEngine) error {
	h := e.CurrentContext().Script.Hash()
	return e.PushBytes(h[:])
}

func getCallingScriptHash(e *vm.ExecutionEngine) error {
	h := e.CurrentContext().CallingScriptHash
	if h.IsZero() {
		return e.Push(vm.Null{})
	}
	return e.PushBytes(h[:])
}

func getEntryScriptHash(e *vm.ExecutionEngine) error {
	h := e.EntryContext().Script.Hash()
	return e.PushBytes(h[:])
}

func sha3Sum(e *vm.ExecutionEngine) error {
	b, err := e.PopBytes()
	if err != nil {
		return err
	}
	sum := sha3.Sum256(b)
	return e.PushBytes(sum[:])
}

func keccak256(e *vm.ExecutionEngine) error {
	b, err := e.PopBytes()
	if err != nil {
		return err
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	return e.PushBytes(h.Sum(nil))
}

func serialize(e *vm.ExecutionEngine) error {
	item, err := e.Pop()
	if err != nil {
		return err
	}
	data, err := Serialize(item, e.Limits())
	if err != nil {
		return err
	}
	return e.PushBytes(data)
}

func deserialize(e *vm.ExecutionEngine) error {
	data, err := e.PopBytes()
	if err != nil {
		return err
	}
	item, err := Deserialize(data, e.ReferenceCounter(), e.Limits())
	if err != nil {
		return err
	}
	return e.Push(item)
}
