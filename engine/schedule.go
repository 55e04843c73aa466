package engine

// Schedule runs the four-phase incremental scheduling algorithm: given the
// previous pass's cell sequence P (with RunRecords attached) and the fresh
// sequence N (freshly parsed and analyzed, no RunRecords), it returns N with
// a RunRecord on every code cell, either carried forward from P or freshly
// produced by ce.
//
// P may be nil or empty on the very first pass, in which case every code
// cell is new and therefore rerun.
func Schedule(ce *CellEvaluator, prev CellSequence, next CellSequence) CellSequence {
	changed := detectChanges(prev, next)
	graph := BuildGraph(next)
	rerun := invalidationClosure(changed, graph)

	prevByHash := matchCandidates(prev)

	for i := range next {
		cell := &next[i]
		if cell.Kind != Code {
			continue
		}
		if rerun[i] {
			run := ce.Run(cell.Source)
			cell.Run = &run
			continue
		}
		if j, ok := bestMatch(prevByHash, cell.ContentHash, i); ok {
			cell.Run = prev[j].Run
		} else {
			// Phase 1 found no change but no prior cell to carry forward
			// from; treat defensively as a fresh execution.
			run := ce.Run(cell.Source)
			cell.Run = &run
		}
	}
	return next
}

// detectChanges implements Phase 1: the union of content change, ordering-
// induced change, new-cell, and previously-errored conditions.
func detectChanges(prev CellSequence, next CellSequence) map[int]bool {
	changed := map[int]bool{}

	prevHashes := map[uint64]bool{}
	for _, c := range prev {
		prevHashes[c.ContentHash] = true
	}

	for i, cell := range next {
		if cell.Kind != Code {
			continue
		}
		if !prevHashes[cell.ContentHash] {
			changed[i] = true
		}
	}

	prevProviders := latestProviders(prev)
	nextProviders := latestProviders(next)
	prevByHash := matchCandidates(prev)
	for i, cell := range next {
		if cell.Kind != Code || changed[i] {
			continue
		}
		// The "last run" of this cell is the prior position Phase 4 would
		// carry forward from, so the provider comparison uses the same
		// smallest-delta tie-break as the carry-forward itself.
		j, ok := bestMatch(prevByHash, cell.ContentHash, i)
		if !ok {
			continue
		}
		if !sameProviderNames(nextProviders[i], prevProviders[j], next, prev) {
			changed[i] = true
			continue
		}
		if prev[j].Run != nil && prev[j].Run.Err != nil {
			changed[i] = true
		}
	}

	return changed
}

// sameProviderNames compares a cell's "nearest earlier provider" map across
// two sequences by the provided name's identity (not position, since
// positions differ between P and N): a name's provider is unchanged only if
// the providing cell's content-hash is the same in both sequences.
func sameProviderNames(next map[string]int, prev map[string]int, nextSeq CellSequence, prevSeq CellSequence) bool {
	if len(next) != len(prev) {
		return false
	}
	for name, nj := range next {
		pj, ok := prev[name]
		if !ok {
			return false
		}
		if nextSeq[nj].ContentHash != prevSeq[pj].ContentHash {
			return false
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			return false
		}
	}
	return true
}

// invalidationClosure implements Phase 3: the reflexive-transitive closure
// of changed under "is depended on by", i.e. the set of cells reachable by
// walking dependency edges backwards from any already-invalidated cell.
func invalidationClosure(changed map[int]bool, graph map[int]map[int]struct{}) map[int]bool {
	rerun := map[int]bool{}
	for i := range changed {
		rerun[i] = true
	}
	dependents := map[int][]int{}
	for i, deps := range graph {
		for j := range deps {
			dependents[j] = append(dependents[j], i)
		}
	}
	queue := make([]int, 0, len(rerun))
	for i := range rerun {
		queue = append(queue, i)
	}
	for len(queue) > 0 {
		i := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		for _, dep := range dependents[i] {
			if !rerun[dep] {
				rerun[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return rerun
}

// matchCandidates groups prior code-cell positions by content-hash, for use
// by bestMatch's duplicate-hash tie-break.
func matchCandidates(prev CellSequence) map[uint64][]int {
	m := map[uint64][]int{}
	for j, c := range prev {
		if c.Kind != Code {
			continue
		}
		m[c.ContentHash] = append(m[c.ContentHash], j)
	}
	return m
}

// bestMatch implements the duplicate-content-hash tie-break: match to the
// prior position with the smallest position-delta from i, ties broken by
// earliest-in-P.
func bestMatch(byHash map[uint64][]int, hash uint64, i int) (int, bool) {
	candidates, ok := byHash[hash]
	if !ok || len(candidates) == 0 {
		return 0, false
	}
	best := candidates[0]
	bestDelta := abs(best - i)
	for _, j := range candidates[1:] {
		delta := abs(j - i)
		if delta < bestDelta || (delta == bestDelta && j < best) {
			best = j
			bestDelta = delta
		}
	}
	return best, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
