// Package interop provides the host functions scripts reach
// through SYSCALL.
package interop

import (
	"context"
	"sort"
	"sync"

	"scriptvm/errors"
	"scriptvm/protocol/vm"
)

// ErrNotFound is returned by Invoke for an unregistered method.
var ErrNotFound = errors.New("interop method not found")

// Func is a host function. It reads its arguments from, and pushes
// its results onto, the engine's current evaluation stack.
type Func func(e *vm.ExecutionEngine) error

type method struct {
	name string
	fn   Func
}

// Registry maps SYSCALL method ids to host functions. It implements
// vm.InteropService and may be shared by concurrent engines.
type Registry struct {
	ctx context.Context

	mu            sync.Mutex
	methods       map[uint32]method
	notifications []Notification
}

// NewRegistry returns an empty registry. Host functions that log
// write to ctx.
func NewRegistry(ctx context.Context) *Registry {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Registry{ctx: ctx, methods: make(map[uint32]method)}
}

// Register binds fn to the method id of name and returns the id.
// Registering a second function under the same id panics, as does
// a 4-byte name, which SYSCALL would read as a raw id.
func (r *Registry) Register(name string, fn Func) uint32 {
	if len(name) == 4 {
		panic("interop: 4-byte method name " + name + " is not callable by name")
	}
	id := vm.InteropMethodID(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.methods[id]; ok {
		panic("interop: " + name + " collides with " + m.name)
	}
	r.methods[id] = method{name: name, fn: fn}
	return id
}

// Name returns the name a method id was registered under.
func (r *Registry) Name(id uint32) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.methods[id]
	return m.name, ok
}

// Names lists the registered method names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.methods))
	for _, m := range r.methods {
		names = append(names, m.name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Invoke(id uint32, e *vm.ExecutionEngine) error {
	r.mu.Lock()
	m, ok := r.methods[id]
	r.mu.Unlock()
	if !ok {
		return errors.WithDetailf(ErrNotFound, "method %08x", id)
	}
	return errors.Wrap(m.fn(e), m.name)
}

// Notification is an item a script published with
// System.Runtime.Notify, stored in serialized form so that it
// outlives the engine that produced it.
type Notification struct {
	Script vm.Hash160
	Data   []byte
}

// Item decodes the notification into untracked stack items.
func (n Notification) Item() (vm.StackItem, error) {
	return Deserialize(n.Data, nil, vm.DefaultLimits())
}

func (r *Registry) notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

// Notifications returns the notifications recorded so far.
func (r *Registry) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}
