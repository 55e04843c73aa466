package engine

import (
	"sort"
	"testing"
)

func keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sameSet(t *testing.T, got map[string]struct{}, want ...string) {
	t.Helper()
	sort.Strings(want)
	gotSorted := keys(got)
	if len(gotSorted) != len(want) {
		t.Fatalf("expected %v, got %v", want, gotSorted)
	}
	for i := range want {
		if gotSorted[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, gotSorted)
		}
	}
}

func TestAnalyzeLetBindingProvides(t *testing.T) {
	provides, requires, err := AnalyzeCell("let x = 1")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides, "x")
	sameSet(t, requires)
}

func TestAnalyzeRequiresFreeName(t *testing.T) {
	provides, requires, err := AnalyzeCell("let y = x + 1")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides, "y")
	sameSet(t, requires, "x")
}

func TestAnalyzeAugmentedAssignmentBothSets(t *testing.T) {
	// x += 1 reads the prior value of x (requires) and rebinds it
	// (provides).
	provides, requires, err := AnalyzeCell("x += 1")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides, "x")
	sameSet(t, requires, "x")
}

func TestAnalyzeMemberMutationRequiresOnly(t *testing.T) {
	// x.a = 1 reads x (to locate the object to mutate) but never rebinds
	// the name x itself; mutation through an attribute is invisible to
	// pure-assignment dependency tracking.
	provides, requires, err := AnalyzeCell("x.a = 1")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides)
	sameSet(t, requires, "x")
}

func TestAnalyzeIndexMutationRequiresOnly(t *testing.T) {
	provides, requires, err := AnalyzeCell("x[0] = 1")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides)
	sameSet(t, requires, "x")
}

func TestAnalyzeLambdaParamsDoNotLeak(t *testing.T) {
	// The lambda parameter a is nested-scope only; it must never appear in
	// the cell's module-level provides, and the free name b used inside the
	// body must still surface in requires.
	provides, requires, err := AnalyzeCell("let f = (a) -> a + b")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides, "f")
	sameSet(t, requires, "b")
}

func TestAnalyzeBlockLocalsDoNotLeak(t *testing.T) {
	provides, requires, err := AnalyzeCell("let r = { let x = 1 x + y }")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides, "r")
	sameSet(t, requires, "y")
}

func TestAnalyzeForLoopBindingsDoNotLeak(t *testing.T) {
	// Vellum's top-level ForExpression evaluates in a discarded enclosed
	// environment, so its loop variable i never becomes a module-scope
	// provide.
	provides, requires, err := AnalyzeCell("let total = for i < 3 with i = 0 { i++ } then i")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides, "total")
	sameSet(t, requires)
}

func TestAnalyzeShorthandObjectEntryRequires(t *testing.T) {
	provides, requires, err := AnalyzeCell("let o = { x }")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides, "o")
	sameSet(t, requires, "x")
}

func TestAnalyzeBuiltinsNeverRequired(t *testing.T) {
	// log is a registered builtin (interpreter.BuiltinNames()); it must
	// never show up in requires regardless of how it's used.
	provides, requires, err := AnalyzeCell("log(1)")
	if err != nil {
		t.Fatalf("unexpected analysis error: %v", err)
	}
	sameSet(t, provides)
	if _, ok := requires["log"]; ok {
		t.Fatalf("expected builtin log to be excluded from requires, got %v", keys(requires))
	}
}

// TestAnalyzeSoundnessProvidesSupersetOfActuallyBound: for a code cell
// that executes without error in a fresh environment preloaded only with
// its requires (bound to sentinel values), provides must be a superset of
// the names actually (re)bound by running it.
func TestAnalyzeSoundnessProvidesSupersetOfActuallyBound(t *testing.T) {
	cases := []struct {
		name string
		seed string
		src  string
	}{
		{name: "simple let chain", src: "let x = 1\nlet y = x + 1\n"},
		{name: "derived from required names", seed: "let a = 0\nlet b = 0\n", src: "let sum = a + b\n"},
		{name: "augmented assignment rebinds its target", seed: "let counter = 0\n", src: "counter += 1\n"},
		{name: "member mutation binds nothing new", seed: "let obj = {}\n", src: "obj.field = 1\n"},
		{name: "shadowed lambda param binds nothing at module scope", seed: "let b = 1\n", src: "let f = (a) -> a + b\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provides, _, err := AnalyzeCell(tc.src)
			if err != nil {
				t.Fatalf("unexpected analysis error: %v", err)
			}

			ce := NewCellEvaluator("soundness_test_" + tc.name)
			if tc.seed != "" {
				seedRec := ce.Run(tc.seed)
				if seedRec.Err != nil {
					t.Fatalf("seed failed: %v", seedRec.Err)
				}
			}

			before := ce.env.Snapshot()
			rec := ce.Run(tc.src)
			if rec.Err != nil {
				t.Fatalf("cell errored when it should run cleanly in isolation: %v", rec.Err)
			}
			after := ce.env.Snapshot()

			for name, afterVal := range after {
				beforeVal, existed := before[name]
				if existed && beforeVal.Inspect() == afterVal.Inspect() {
					continue // unchanged by this cell's execution
				}
				if _, ok := provides[name]; !ok {
					t.Fatalf("name %q was bound/rebound by running the cell but is missing from provides %v", name, keys(provides))
				}
			}
		})
	}
}

func TestAnalyzeCellParseFailureYieldsEmptySets(t *testing.T) {
	provides, requires, err := AnalyzeCell("x = = =")
	if err == nil {
		t.Fatalf("expected a parse error")
	}
	if len(provides) != 0 || len(requires) != 0 {
		t.Fatalf("expected empty provides/requires on parse failure, got provides=%v requires=%v", provides, requires)
	}
}
