package vm

import (
	"encoding/hex"
	"sync"

	"scriptvm/crypto"
)

// Hash160 identifies a script by the Hash160 of its full content.
type Hash160 [20]byte

func (h Hash160) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether h is all zero bytes.
func (h Hash160) IsZero() bool {
	return h == Hash160{}
}

// Script is an immutable program with a per-offset instruction cache.
// A Script may be shared by several execution contexts; the cache
// is safe for concurrent use.
type Script struct {
	prog []byte

	mu    sync.Mutex
	insts map[uint32]Instruction

	hashOnce sync.Once
	hash     Hash160
}

// NewScript returns a Script over a copy of prog.
func NewScript(prog []byte) *Script {
	return &Script{
		prog:  append([]byte(nil), prog...),
		insts: make(map[uint32]Instruction),
	}
}

func (s *Script) Bytes() []byte { return s.prog }

func (s *Script) Len() int { return len(s.prog) }

// Hash returns the content hash of the script.
func (s *Script) Hash() Hash160 {
	s.hashOnce.Do(func() {
		s.hash = crypto.Hash160(s.prog)
	})
	return s.hash
}

// Instruction decodes the instruction at pc, reusing an earlier
// decode of the same offset.
func (s *Script) Instruction(pc int) (Instruction, error) {
	if pc < 0 {
		return Instruction{}, ErrBadJump
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst, ok := s.insts[uint32(pc)]; ok {
		return inst, nil
	}
	inst, err := ParseOp(s.prog, uint32(pc))
	if err != nil {
		return Instruction{}, err
	}
	s.insts[uint32(pc)] = inst
	return inst, nil
}
