// Package scripttable provides the stores an engine loads called
// scripts from.
package scripttable

import (
	"sync"

	"scriptvm/errors"
	"scriptvm/protocol/vm"
)

// Memory is a vm.ScriptTable held in memory. It is safe for
// concurrent use.
type Memory struct {
	mu      sync.RWMutex
	scripts map[vm.Hash160][]byte
}

func NewMemory() *Memory {
	return &Memory{scripts: make(map[vm.Hash160][]byte)}
}

// Put stores script and returns its hash.
func (m *Memory) Put(script []byte) vm.Hash160 {
	h := vm.NewScript(script).Hash()
	m.mu.Lock()
	m.scripts[h] = append([]byte(nil), script...)
	m.mu.Unlock()
	return h
}

func (m *Memory) GetScript(hash vm.Hash160) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scripts[hash]
	if !ok {
		return nil, errors.WithDetailf(vm.ErrScriptNotFound, "script %s", hash)
	}
	return s, nil
}
