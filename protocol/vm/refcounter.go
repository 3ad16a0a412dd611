package vm

import (
	"fmt"
	"strings"

	"scriptvm/errors"
)

// ReferenceCounter tracks the references held by stacks, slots and
// compound items, and reclaims compound items that can no longer be
// reached from any stack.
//
// Count is the total number of references recorded, primitives
// included. CheckZeroReferred frees unreachable compound items,
// cycles included, and returns Count afterwards.
//
// Misuse, such as removing a reference that was never added, panics.
type ReferenceCounter interface {
	Count() int
	AddStackReference(item StackItem, n int)
	RemoveStackReference(item StackItem)
	AddReference(child, parent StackItem)
	RemoveReference(child, parent StackItem)
	AddZeroReferred(item StackItem)
	CheckZeroReferred() int
}

// CounterKind selects a ReferenceCounter implementation.
type CounterKind int

const (
	// TarjanCounter examines only the items reachable from those
	// whose stack references dropped to zero, finding dead cycles
	// as strongly connected components.
	TarjanCounter CounterKind = iota

	// MarkSweepCounter marks everything reachable from a stack
	// and frees the rest.
	MarkSweepCounter
)

func (k CounterKind) String() string {
	switch k {
	case TarjanCounter:
		return "tarjan"
	case MarkSweepCounter:
		return "marksweep"
	}
	return fmt.Sprintf("CounterKind(%d)", int(k))
}

// ParseCounterKind is the inverse of CounterKind.String.
func ParseCounterKind(s string) (CounterKind, error) {
	switch strings.ToLower(s) {
	case "tarjan", "":
		return TarjanCounter, nil
	case "marksweep", "mark-sweep":
		return MarkSweepCounter, nil
	}
	return 0, errors.WithDetailf(ErrBadValue, "unknown reference counter %q", s)
}

// NewReferenceCounter returns an empty counter of the given kind.
func NewReferenceCounter(kind CounterKind) ReferenceCounter {
	switch kind {
	case MarkSweepCounter:
		c := new(markSweepCounter)
		c.init(c)
		return c
	default:
		c := new(tarjanCounter)
		c.init(c)
		return c
	}
}

// refID indexes a refGraph entry. Zero is never allocated.
type refID uint32

type parentRef struct {
	id refID
	n  int
}

type refEntry struct {
	item      compound
	stackRefs int
	parents   []parentRef
	queued    bool

	// collection scratch, valid when epoch matches the graph's
	epoch   uint64
	index   int
	lowLink int
	onStack bool
	live    bool
	dead    bool
}

// refGraph is the bookkeeping shared by both counters: a slab of
// entries for the tracked compound items, the parent edges between
// them, and the set of items whose stack references reached zero.
type refGraph struct {
	owner   ReferenceCounter
	count   int
	entries []refEntry
	free    []refID
	zero    []refID
	epoch   uint64

	runs  int
	freed int
}

func (g *refGraph) init(owner ReferenceCounter) {
	g.owner = owner
	g.entries = make([]refEntry, 1)
}

func (g *refGraph) Count() int { return g.count }

// collectionStats reports how many collections did work and how
// many items they freed.
func (g *refGraph) collectionStats() (runs, freed int) {
	return g.runs, g.freed
}

func (g *refGraph) register(c compound) refID {
	var id refID
	if n := len(g.free); n > 0 {
		id = g.free[n-1]
		g.free = g.free[:n-1]
	} else {
		g.entries = append(g.entries, refEntry{})
		id = refID(len(g.entries) - 1)
	}
	g.entries[id] = refEntry{item: c}
	h := c.handle()
	h.rc = g.owner
	h.id = id
	g.enqueue(id)
	return id
}

// attach registers an untracked compound together with every
// untracked compound beneath it, recording their references.
func (g *refGraph) attach(root compound) refID {
	rootID := g.register(root)
	pending := []compound{root}
	for len(pending) > 0 {
		c := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		pid := c.handle().id
		for _, sub := range c.subItems() {
			g.count++
			sc, ok := sub.(compound)
			if !ok {
				continue
			}
			h := sc.handle()
			switch h.rc {
			case nil:
				g.register(sc)
				pending = append(pending, sc)
			case g.owner:
			default:
				panic("vm: item is tracked by another reference counter")
			}
			g.addEdge(h.id, pid)
		}
	}
	return rootID
}

// idOf returns the entry for a compound item, attaching it first
// if it is untracked. ok is false for primitives.
func (g *refGraph) idOf(item StackItem) (id refID, ok bool) {
	c, ok := item.(compound)
	if !ok {
		return 0, false
	}
	h := c.handle()
	switch h.rc {
	case g.owner:
		return h.id, true
	case nil:
		return g.attach(c), true
	}
	panic("vm: item is tracked by another reference counter")
}

// mustID returns the entry for a compound item that is
// already tracked by g.
func (g *refGraph) mustID(item StackItem) (id refID, ok bool) {
	c, ok := item.(compound)
	if !ok {
		return 0, false
	}
	h := c.handle()
	if h.rc != g.owner {
		panic(fmt.Sprintf("vm: %s is not tracked by this reference counter", item))
	}
	return h.id, true
}

func (g *refGraph) enqueue(id refID) {
	e := &g.entries[id]
	if e.queued {
		return
	}
	e.queued = true
	g.zero = append(g.zero, id)
}

func (g *refGraph) clearZero() {
	for _, id := range g.zero {
		g.entries[id].queued = false
	}
	g.zero = g.zero[:0]
}

func (g *refGraph) addEdge(child, parent refID) {
	e := &g.entries[child]
	for i := range e.parents {
		if e.parents[i].id == parent {
			e.parents[i].n++
			return
		}
	}
	e.parents = append(e.parents, parentRef{id: parent, n: 1})
}

func (g *refGraph) removeEdge(child, parent refID) {
	e := &g.entries[child]
	for i := range e.parents {
		if e.parents[i].id != parent {
			continue
		}
		e.parents[i].n--
		if e.parents[i].n == 0 {
			last := len(e.parents) - 1
			e.parents[i] = e.parents[last]
			e.parents = e.parents[:last]
		}
		return
	}
	panic("vm: removing a reference that was never added")
}

func (g *refGraph) AddStackReference(item StackItem, n int) {
	g.count += n
	if id, ok := g.idOf(item); ok {
		g.entries[id].stackRefs += n
	}
}

func (g *refGraph) RemoveStackReference(item StackItem) {
	g.count--
	if g.count < 0 {
		panic("vm: removing a stack reference that was never added")
	}
	id, ok := g.mustID(item)
	if !ok {
		return
	}
	e := &g.entries[id]
	if e.stackRefs <= 0 {
		panic("vm: removing a stack reference that was never added")
	}
	e.stackRefs--
	if e.stackRefs == 0 {
		g.enqueue(id)
	}
}

func (g *refGraph) AddReference(child, parent StackItem) {
	g.count++
	cid, ok := g.idOf(child)
	if !ok {
		return
	}
	pid, _ := g.mustID(parent)
	g.addEdge(cid, pid)
}

func (g *refGraph) RemoveReference(child, parent StackItem) {
	g.count--
	if g.count < 0 {
		panic("vm: removing a reference that was never added")
	}
	cid, ok := g.mustID(child)
	if !ok {
		return
	}
	pid, _ := g.mustID(parent)
	g.removeEdge(cid, pid)
	if g.entries[cid].stackRefs == 0 {
		g.enqueue(cid)
	}
}

func (g *refGraph) AddZeroReferred(item StackItem) {
	c, ok := item.(compound)
	if !ok {
		return
	}
	h := c.handle()
	switch h.rc {
	case nil:
		g.register(c)
	case g.owner:
		g.enqueue(h.id)
	default:
		panic("vm: item is tracked by another reference counter")
	}
}

// release frees the given entries. Every reference they hold is
// dropped from the count, edges to surviving children are removed,
// and the items' storage is released.
func (g *refGraph) release(dead []refID) {
	for _, id := range dead {
		g.entries[id].dead = true
	}
	for _, id := range dead {
		subs := g.entries[id].item.subItems()
		g.count -= len(subs)
		for _, sub := range subs {
			sc, ok := sub.(compound)
			if !ok {
				continue
			}
			cid := sc.handle().id
			if g.entries[cid].dead {
				continue
			}
			g.removeEdge(cid, id)
		}
	}
	for _, id := range dead {
		c := g.entries[id].item
		c.cleanup()
		h := c.handle()
		h.rc = nil
		h.id = 0
		g.entries[id] = refEntry{}
		g.free = append(g.free, id)
	}
	g.freed += len(dead)
}
