package vm

// markSweepCounter marks every item reachable from a stack
// reference and frees the rest.
type markSweepCounter struct {
	refGraph
}

func (c *markSweepCounter) CheckZeroReferred() int {
	g := &c.refGraph
	if len(g.zero) == 0 {
		return g.count
	}
	g.runs++
	g.epoch++
	g.clearZero()

	var pending []refID
	for id := range g.entries {
		e := &g.entries[id]
		if e.item != nil && e.stackRefs > 0 {
			e.epoch = g.epoch
			pending = append(pending, refID(id))
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
			se := &g.entries[sc.handle().id]
			if se.epoch != g.epoch {
				se.epoch = g.epoch
				pending = append(pending, sc.handle().id)
			}
		}
	}

	var dead []refID
	for id := range g.entries {
		e := &g.entries[id]
		if e.item != nil && e.epoch != g.epoch {
			e.dead = false
			dead = append(dead, refID(id))
		}
	}
	g.release(dead)
	return g.count
}
