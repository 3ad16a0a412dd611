package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/golang/groupcache/lru"

	"scriptvm/errors"
)

// ScriptTable resolves the scripts called by APPCALL, TAILCALL
// and the CALL_E family. A missing script is reported with an
// error whose root is ErrScriptNotFound.
type ScriptTable interface {
	GetScript(hash Hash160) ([]byte, error)
}

// InteropService runs host functions for SYSCALL. A non-nil error
// faults the engine.
type InteropService interface {
	Invoke(method uint32, vm *ExecutionEngine) error
}

// Crypto provides the hash and signature primitives of the
// crypto opcodes.
type Crypto interface {
	Hash160([]byte) [20]byte
	Hash256([]byte) [32]byte
	VerifySignature(msg, sig, pubkey []byte) bool
}

var methodIDs = struct {
	mu    sync.Mutex
	cache *lru.Cache
}{cache: lru.New(1024)}

// InteropMethodID returns the id SYSCALL uses for the named method:
// the first four bytes of the name's SHA-256, little-endian.
func InteropMethodID(name string) uint32 {
	methodIDs.mu.Lock()
	defer methodIDs.mu.Unlock()
	if id, ok := methodIDs.cache.Get(name); ok {
		return id.(uint32)
	}
	sum := sha256.Sum256([]byte(name))
	id := binary.LittleEndian.Uint32(sum[:4])
	methodIDs.cache.Add(name, id)
	return id
}

// SYSCALL carries either a method name or a 4-byte method id.
func opSyscall(vm *ExecutionEngine) error {
	if vm.interop == nil {
		return errors.WithDetail(ErrSyscall, "no interop service")
	}
	if len(vm.data) == 0 {
		return errors.WithDetail(ErrSyscall, "empty method name")
	}
	var id uint32
	// A 4-byte operand is always a raw id, so 4-byte names cannot be
	// called by name.
	if len(vm.data) == 4 {
		id = binary.LittleEndian.Uint32(vm.data)
	} else {
		id = InteropMethodID(string(vm.data))
	}
	err := vm.interop.Invoke(id, vm)
	return errors.Wrapf(err, "syscall %08x", id)
}
