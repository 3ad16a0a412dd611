package vm

// tarjanCounter collects only within the region reachable from the
// zero-referred items. An item outside that region has not lost a
// reference since the previous collection, so it is still live.
type tarjanCounter struct {
	refGraph
}

func (c *tarjanCounter) CheckZeroReferred() int {
	g := &c.refGraph
	if len(g.zero) == 0 {
		return g.count
	}
	g.runs++
	g.epoch++
	region := g.region()
	g.clearZero()
	g.release(g.deadComponents(region))
	return g.count
}

// region marks and returns every entry reachable through child
// edges from the zero-referred set.
func (g *refGraph) region() []refID {
	var region []refID
	visit := func(id refID) bool {
		e := &g.entries[id]
		if e.item == nil || e.epoch == g.epoch {
			return false
		}
		e.epoch = g.epoch
		e.index = -1
		e.lowLink = 0
		e.onStack = false
		e.live = false
		e.dead = false
		region = append(region, id)
		return true
	}
	pending := make([]refID, 0, len(g.zero))
	for _, id := range g.zero {
		if visit(id) {
			pending = append(pending, id)
		}
	}
	for len(pending) > 0 {
		id := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		for _, sub := range g.entries[id].item.subItems() {
			sc, ok := sub.(compound)
			if !ok {
				continue
			}
			if sid := sc.handle().id; visit(sid) {
				pending = append(pending, sid)
			}
		}
	}
	return region
}

// deadComponents finds the strongly connected components of the
// region along child-to-parent edges, and returns the members of
// those that cannot reach a stack reference.
//
// Tarjan's algorithm emits a component only after every component
// its members' parents belong to, so each component's liveness
// is decided from components already classified.
func (g *refGraph) deadComponents(region []refID) []refID {
	type frame struct {
		id   refID
		next int
	}
	var (
		index int
		stack []refID
		calls []frame
		dead  []refID
	)
	push := func(id refID) {
		e := &g.entries[id]
		e.index = index
		e.lowLink = index
		index++
		e.onStack = true
		stack = append(stack, id)
		calls = append(calls, frame{id: id})
	}

	for _, root := range region {
		if g.entries[root].index >= 0 {
			continue
		}
		push(root)
		for len(calls) > 0 {
			top := len(calls) - 1
			id := calls[top].id
			e := &g.entries[id]
			if calls[top].next < len(e.parents) {
				pid := e.parents[calls[top].next].id
				calls[top].next++
				pe := &g.entries[pid]
				switch {
				case pe.epoch != g.epoch:
					// outside the region
				case pe.index < 0:
					push(pid)
				case pe.onStack && pe.index < e.lowLink:
					e.lowLink = pe.index
				}
				continue
			}

			calls = calls[:top]
			if top > 0 {
				caller := &g.entries[calls[top-1].id]
				if e.lowLink < caller.lowLink {
					caller.lowLink = e.lowLink
				}
			}
			if e.lowLink != e.index {
				continue
			}

			start := len(stack) - 1
			for stack[start] != id {
				start--
			}
			comp := stack[start:]
			stack = stack[:start]
			live := false
			for _, m := range comp {
				g.entries[m].onStack = false
				if !live && g.entryKeepsAlive(m) {
					live = true
				}
			}
			for _, m := range comp {
				g.entries[m].live = live
			}
			if !live {
				dead = append(dead, comp...)
			}
		}
	}
	return dead
}

// entryKeepsAlive reports whether id is held by a stack, by an item
// outside the region, or by an item already found live.
func (g *refGraph) entryKeepsAlive(id refID) bool {
	e := &g.entries[id]
	if e.stackRefs > 0 {
		return true
	}
	for _, p := range e.parents {
		pe := &g.entries[p.id]
		if pe.epoch != g.epoch || pe.live {
			return true
		}
	}
	return false
}
