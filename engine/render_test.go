package engine

import (
	"strings"
	"testing"

	"vellum/interpreter"
)

func TestToRenderableFallbackText(t *testing.T) {
	ce := NewCellEvaluator("render_fallback_test")
	r := ToRenderable(ce.eval, &interpreter.Integer{Value: 42})
	if r.Kind != RenderText {
		t.Fatalf("expected RenderText fallback, got %v", r.Kind)
	}
	if r.Text != "42" {
		t.Fatalf("expected Inspect() fallback %q, got %q", "42", r.Text)
	}
}

func TestToRenderableMimeForm(t *testing.T) {
	ce := NewCellEvaluator("render_mime_test")
	value := &interpreter.Object{Pairs: map[string]interpreter.Value{
		"__mime__": &interpreter.Object{Pairs: map[string]interpreter.Value{
			"mime":    &interpreter.String{Value: "application/json"},
			"payload": &interpreter.String{Value: `{"a":1}`},
		}},
	}}
	r := ToRenderable(ce.eval, value)
	if r.Kind != RenderJSON {
		t.Fatalf("expected RenderJSON via MIME form, got %v", r.Kind)
	}
	if r.Text != `{"a":1}` {
		t.Fatalf("expected payload passthrough, got %q", r.Text)
	}
}

func TestToRenderableFormatSpecificPriority(t *testing.T) {
	ce := NewCellEvaluator("render_priority_test")
	// An object exposing both __html__ and __svg__ must resolve to HTML,
	// the first match in the fixed format priority order.
	value := &interpreter.Object{Pairs: map[string]interpreter.Value{
		"__html__": &interpreter.String{Value: "<b>hi</b>"},
		"__svg__":  &interpreter.String{Value: "<svg></svg>"},
	}}
	r := ToRenderable(ce.eval, value)
	if r.Kind != RenderHTML || r.Text != "<b>hi</b>" {
		t.Fatalf("expected HTML to win over SVG, got kind=%v text=%q", r.Kind, r.Text)
	}
}

func TestToRenderableTabularArrayOfObjects(t *testing.T) {
	ce := NewCellEvaluator("render_tabular_test")
	rows := &interpreter.Array{Elements: []interpreter.Value{
		&interpreter.Object{Pairs: map[string]interpreter.Value{"a": &interpreter.Integer{Value: 1}}},
		&interpreter.Object{Pairs: map[string]interpreter.Value{"a": &interpreter.Integer{Value: 2}}},
	}}
	r := ToRenderable(ce.eval, rows)
	if r.Kind != RenderHTML {
		t.Fatalf("expected a row set to render as an HTML table, got %v", r.Kind)
	}
	if !strings.Contains(r.Text, "<table>") || !strings.Contains(r.Text, "<th>a</th>") {
		t.Fatalf("expected a <table> with column a, got %q", r.Text)
	}
}

func TestToRenderablePreparedDisplayRecursion(t *testing.T) {
	// A display capability that returns a plain string should resolve
	// straight through to Text via the fallback rule on recursion.
	ce := NewCellEvaluator("render_display_test")
	fn := &interpreter.Builtin{Name: "display", Fn: func(_ *interpreter.Evaluator, _ []interpreter.Value) (interpreter.Value, error) {
		return &interpreter.String{Value: "rendered"}, nil
	}}
	value := &interpreter.Object{Pairs: map[string]interpreter.Value{"__display__": fn}}
	r := ToRenderable(ce.eval, value)
	if r.Kind != RenderText || r.Text != `"rendered"` {
		t.Fatalf("expected the prepared-display result's fallback Inspect(), got kind=%v text=%q", r.Kind, r.Text)
	}
}

func TestToRenderableNilValue(t *testing.T) {
	ce := NewCellEvaluator("render_nil_test")
	r := ToRenderable(ce.eval, nil)
	if r.Kind != RenderText || r.Text != "" {
		t.Fatalf("expected empty Text for a nil value, got kind=%v text=%q", r.Kind, r.Text)
	}
}
