package engine

import (
	"testing"
)

func analyzeSeq(t *testing.T, seq CellSequence) CellSequence {
	t.Helper()
	for i := range seq {
		if seq[i].Kind != Code {
			continue
		}
		provides, requires, _ := AnalyzeCell(seq[i].Source)
		seq[i].Provides = provides
		seq[i].Requires = requires
	}
	return seq
}

func mustParse(t *testing.T, source string) CellSequence {
	t.Helper()
	seq, err := Parse(source)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	return analyzeSeq(t, seq)
}

// TestScheduleMinimumRerun: editing one cell reruns only that cell;
// unrelated cells keep their counters.
func TestScheduleMinimumRerun(t *testing.T) {
	ce := NewCellEvaluator("minimum_rerun_test")

	first := mustParse(t, "let x = 1\n// %% B\nlet y = x + 1\n// %% C\nlet z = 10\n")
	pass1 := Schedule(ce, nil, first)
	if pass1[0].Run.Counter != 1 || pass1[1].Run.Counter != 2 || pass1[2].Run.Counter != 3 {
		t.Fatalf("expected counters 1,2,3 on first pass, got %d,%d,%d",
			pass1[0].Run.Counter, pass1[1].Run.Counter, pass1[2].Run.Counter)
	}

	second := mustParse(t, "let x = 1\n// %% B\nlet y = x + 2\n// %% C\nlet z = 10\n")
	pass2 := Schedule(ce, pass1, second)

	if pass2[0].Run.Counter != 1 {
		t.Fatalf("expected cell A to keep counter 1, got %d", pass2[0].Run.Counter)
	}
	if pass2[1].Run.Counter != 4 {
		t.Fatalf("expected cell B to rerun with counter 4, got %d", pass2[1].Run.Counter)
	}
	if pass2[2].Run.Counter != 3 {
		t.Fatalf("expected cell C to keep counter 3, got %d", pass2[2].Run.Counter)
	}
}

// TestScheduleTransitiveInvalidation: changing A reruns A and its
// dependent B, but not the independent C.
func TestScheduleTransitiveInvalidation(t *testing.T) {
	ce := NewCellEvaluator("transitive_test")

	first := mustParse(t, "let x = 1\n// %% B\nlet y = x + 1\n// %% C\nlet z = 10\n")
	pass1 := Schedule(ce, nil, first)

	second := mustParse(t, "let x = 2\n// %% B\nlet y = x + 1\n// %% C\nlet z = 10\n")
	pass2 := Schedule(ce, pass1, second)

	if pass2[0].Run.Counter == pass1[0].Run.Counter {
		t.Fatalf("expected cell A to rerun")
	}
	if pass2[1].Run.Counter == pass1[1].Run.Counter {
		t.Fatalf("expected cell B to rerun (depends on A)")
	}
	if pass2[2].Run.Counter != pass1[2].Run.Counter {
		t.Fatalf("expected cell C to NOT rerun, counters were %d and %d", pass1[2].Run.Counter, pass2[2].Run.Counter)
	}
}

// TestScheduleOrderingInducedChange: swapping two providers of the same
// name changes C's latest provider and forces a rerun even though no
// cell's own content changed.
func TestScheduleOrderingInducedChange(t *testing.T) {
	ce := NewCellEvaluator("reorder_test")

	first := mustParse(t, "x = 1\n// %% B\nx = 2\n// %% C\nlog(x)\n")
	// Seed x so the bare reassignment forms are legal at runtime.
	seeded := mustParse(t, "let x = 0\n")
	_ = Schedule(ce, nil, seeded)
	pass1 := Schedule(ce, nil, first)

	swapped := mustParse(t, "x = 2\n// %% B\nx = 1\n// %% C\nlog(x)\n")
	pass2 := Schedule(ce, pass1, swapped)

	if pass2[2].Run.Counter == pass1[2].Run.Counter {
		t.Fatalf("expected C to rerun after its latest provider changed identity")
	}
}

// TestScheduleErrorIsolation: a failing middle cell does not abort the
// pass; later cells still run.
func TestScheduleErrorIsolation(t *testing.T) {
	ce := NewCellEvaluator("error_isolation_test")

	seq := mustParse(t, "let a = 1\n// %% B\nlet b = a.boom\n// %% C\nlet c = 3\n")
	pass := Schedule(ce, nil, seq)

	if pass[0].Run.Err != nil {
		t.Fatalf("expected first cell to succeed, got error %v", pass[0].Run.Err)
	}
	if pass[1].Run.Err == nil {
		t.Fatalf("expected middle cell to error")
	}
	if pass[1].Run.Value != nil {
		t.Fatalf("expected middle cell's value to be nil when erroring")
	}
	if pass[2].Run == nil {
		t.Fatalf("expected third cell to still have run")
	}
}

// TestScheduleErroredCellAlwaysRerun: a cell whose carried-over RunRecord
// has an error is always marked changed even if its own content is
// unchanged.
func TestScheduleErroredCellAlwaysRerun(t *testing.T) {
	ce := NewCellEvaluator("errored_rerun_test")

	seq := mustParse(t, "let a = a_missing\n")
	pass1 := Schedule(ce, nil, seq)
	if pass1[0].Run.Err == nil {
		t.Fatalf("expected first pass to error (a_missing is undefined)")
	}
	counter1 := pass1[0].Run.Counter

	pass2 := Schedule(ce, pass1, mustParse(t, "let a = a_missing\n"))
	if pass2[0].Run.Counter == counter1 {
		t.Fatalf("expected the previously-errored cell to rerun even though its content did not change")
	}
}

// TestScheduleNoChangeReusesRunRecords: running the scheduler twice on an
// identical sequence must not re-invoke the evaluator.
func TestScheduleNoChangeReusesRunRecords(t *testing.T) {
	ce := NewCellEvaluator("no_change_test")
	seq := mustParse(t, "let x = 1\n// %% B\nlet y = x + 1\n")
	pass1 := Schedule(ce, nil, seq)

	pass2 := Schedule(ce, pass1, mustParse(t, "let x = 1\n// %% B\nlet y = x + 1\n"))
	if pass2[0].Run.Counter != pass1[0].Run.Counter || pass2[1].Run.Counter != pass1[1].Run.Counter {
		t.Fatalf("expected identical counters on a no-op rerun, got %d,%d vs %d,%d",
			pass1[0].Run.Counter, pass1[1].Run.Counter, pass2[0].Run.Counter, pass2[1].Run.Counter)
	}
}

// TestScheduleCounterMonotonic: counters form a strictly increasing order
// across passes; carried-forward records keep their old counters.
func TestScheduleCounterMonotonic(t *testing.T) {
	ce := NewCellEvaluator("monotonic_test")
	prev := CellSequence(nil)
	var last int64
	seen := map[int64]bool{}
	for i := 0; i < 4; i++ {
		source := "let x = 1\n// %% B\nlet y = x + 1\n"
		if i%2 == 1 {
			source = "let x = 2\n// %% B\nlet y = x + 1\n"
		}
		next := mustParse(t, source)
		prev = Schedule(ce, prev, next)
		passMax := last
		for _, c := range prev {
			if c.Kind != Code || c.Run == nil {
				continue
			}
			if !seen[c.Run.Counter] {
				// RunRecords carried forward keep old counters; only freshly
				// executed cells must exceed the running maximum.
				if c.Run.Counter <= last {
					t.Fatalf("pass %d: fresh counter %d does not exceed prior maximum %d", i, c.Run.Counter, last)
				}
				seen[c.Run.Counter] = true
			}
			if c.Run.Counter > passMax {
				passMax = c.Run.Counter
			}
		}
		last = passMax
	}
	if last < 2 {
		t.Fatalf("expected the execution counter to have advanced, got %d", last)
	}
}

// TestScheduleOrderEquivalence: two sequences that differ only by
// reordering independent cells (no shared provides/requires edges between
// them) produce equal final namespaces.
func TestScheduleOrderEquivalence(t *testing.T) {
	ce1 := NewCellEvaluator("order_equiv_test_1")
	n1 := mustParse(t, "let a = 1\n// %% B\nlet b = 2\n")
	_ = Schedule(ce1, nil, n1)

	ce2 := NewCellEvaluator("order_equiv_test_2")
	n2 := mustParse(t, "let b = 2\n// %% A\nlet a = 1\n")
	_ = Schedule(ce2, nil, n2)

	snap1 := ce1.env.Snapshot()
	snap2 := ce2.env.Snapshot()
	if len(snap1) != len(snap2) {
		t.Fatalf("expected namespaces of equal size, got %d vs %d", len(snap1), len(snap2))
	}
	for name, v1 := range snap1 {
		v2, ok := snap2[name]
		if !ok {
			t.Fatalf("name %q present in first namespace but missing from second", name)
		}
		if v1.Inspect() != v2.Inspect() {
			t.Fatalf("name %q diverged between orderings: %q vs %q", name, v1.Inspect(), v2.Inspect())
		}
	}
}

// TestDeletedCellBindingStillVisible: deleting a cell does not purge the
// names it bound from the Environment, matching a long-running interpreter
// session.
func TestDeletedCellBindingStillVisible(t *testing.T) {
	ce := NewCellEvaluator("deleted_binding_test")

	seq := mustParse(t, "let x = 5\n")
	_ = Schedule(ce, nil, seq)

	// x is no longer declared by any cell in the new sequence, but it
	// should still resolve when read.
	next := mustParse(t, "log(x)\n")
	pass := Schedule(ce, seq, next)
	if pass[0].Run.Err != nil {
		t.Fatalf("expected x to still be visible after its declaring cell was deleted, got error: %v", pass[0].Run.Err)
	}
}

// TestScheduleDuplicateContentHashTieBreak: matching prefers the smallest
// position-delta, tie-broken by earliest position in the prior sequence.
func TestScheduleDuplicateContentHashTieBreak(t *testing.T) {
	ce := NewCellEvaluator("duplicate_hash_test")

	first := mustParse(t, "let shared = 1\n// %% B\nlet shared = 1\n// %% C\nlet z = 9\n")
	pass1 := Schedule(ce, nil, first)

	// Reorder: C moves to the front; the two structurally-identical "shared"
	// cells stay adjacent. Neither should be marked changed, and each should
	// match to the position-closest prior duplicate.
	second := mustParse(t, "let z = 9\n// %% A\nlet shared = 1\n// %% B\nlet shared = 1\n")
	pass2 := Schedule(ce, pass1, second)

	if pass2[1].Run.Err != nil || pass2[2].Run.Err != nil {
		t.Fatalf("expected both duplicate cells to carry a clean run forward")
	}
}
