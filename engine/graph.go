package engine

// latestProviders computes, for every code cell position i in seq, the map
// from each of its required names to the position of the nearest earlier
// cell providing that name. It is shared by BuildGraph (dependency edges
// for the current sequence) and by the scheduler's ordering-change check
// (comparing this map across the prior and next sequences).
func latestProviders(seq CellSequence) []map[string]int {
	result := make([]map[string]int, len(seq))
	latest := map[string]int{}
	for i, cell := range seq {
		if cell.Kind != Code {
			continue
		}
		m := map[string]int{}
		for name := range cell.Requires {
			if j, ok := latest[name]; ok {
				m[name] = j
			}
		}
		result[i] = m
		for name := range cell.Provides {
			latest[name] = i
		}
	}
	return result
}

// BuildGraph builds the dependency graph: position -> set of positions it
// depends on. A name with no provider contributes no edge (the evaluator
// will raise an unresolved-name error at run time).
func BuildGraph(seq CellSequence) map[int]map[int]struct{} {
	providers := latestProviders(seq)
	graph := make(map[int]map[int]struct{}, len(seq))
	for i, byName := range providers {
		for _, j := range byName {
			if j >= i {
				// Edges only ever point earlier by construction (latestProviders
				// never returns a position >= i); a forward or self edge here
				// would mean the invariant has been violated upstream.
				panic(&InternalError{Message: "dependency graph produced a non-earlier edge"})
			}
			if graph[i] == nil {
				graph[i] = map[int]struct{}{}
			}
			graph[i][j] = struct{}{}
		}
	}
	return graph
}
