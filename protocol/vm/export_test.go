package vm

// CollectionStats reports the collection passes run by rc and the
// items they freed.
func CollectionStats(rc ReferenceCounter) (runs, freed int) {
	return rc.(collectionStatser).collectionStats()
}

// Tracked reports whether item is registered with a counter.
func Tracked(item StackItem) bool {
	c, ok := item.(compound)
	return ok && c.handle().rc != nil
}

func OpName(op Op) string {
	return ops[op].name
}
