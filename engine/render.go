package engine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"vellum/interpreter"
)

// RenderKind is the tag of the closed Renderable union.
type RenderKind string

const (
	RenderText     RenderKind = "text"
	RenderHTML     RenderKind = "html"
	RenderMarkdown RenderKind = "markdown"
	RenderPNG      RenderKind = "png"
	RenderJPEG     RenderKind = "jpeg"
	RenderSVG      RenderKind = "svg"
	RenderLatex    RenderKind = "latex"
	RenderJSON     RenderKind = "json"
)

// Renderable is the closed tagged union a RunRecord's Value holds. Text,
// Html, Markdown, Svg, Latex and Json carry their payload in Text; Png and
// Jpeg carry it in Bytes.
type Renderable struct {
	Kind  RenderKind
	Text  string
	Bytes []byte
}

func textRenderable(s string) *Renderable { return &Renderable{Kind: RenderText, Text: s} }
func htmlRenderable(s string) *Renderable { return &Renderable{Kind: RenderHTML, Text: s} }

const maxDisplayRecursion = 10

// Reserved Object fields a Vellum value uses to opt into richer display
// than its default Inspect() form. The language itself has no MIME or
// display concept, so these are the notebook engine's own convention,
// chosen to read naturally against Vellum's object-literal syntax.
const (
	capPreparedDisplay = "__display__"
	capMimeForm        = "__mime__"
	capHTML            = "__html__"
	capSVG             = "__svg__"
	capPNG             = "__png__"
	capJPEG            = "__jpeg__"
	capMarkdown        = "__markdown__"
	capLatex           = "__latex__"
	capJSON            = "__json__"
)

// ToRenderable maps an evaluator value to a display artifact, trying each
// resolution rule in order and taking the first that applies. ev is used
// only to invoke a value's prepared-display capability (rule 1) via
// Evaluator.CallNoArgs; it performs no other evaluation.
func ToRenderable(ev *interpreter.Evaluator, value interpreter.Value) *Renderable {
	return toRenderableDepth(ev, value, 0)
}

func toRenderableDepth(ev *interpreter.Evaluator, value interpreter.Value, depth int) *Renderable {
	if value == nil {
		return textRenderable("")
	}
	if depth > maxDisplayRecursion {
		return textRenderable("display recursion exceeded")
	}

	// Rule 1: prepared display.
	if fn, ok := interpreter.ObjectField(value, capPreparedDisplay); ok {
		if result, err := ev.CallNoArgs(fn); err == nil {
			return toRenderableDepth(ev, result, depth+1)
		}
		// Any failure calling the capability falls through to the next rule.
	}

	// Rule 2: MIME form, a {mime: String, payload: String} pair.
	if mimeObj, ok := interpreter.ObjectField(value, capMimeForm); ok {
		if r, ok := mimeFormRenderable(mimeObj); ok {
			return r
		}
	}

	// Rule 3: format-specific representation, in the fixed priority order.
	type capLookup struct {
		key  string
		kind RenderKind
	}
	caps := []capLookup{
		{capHTML, RenderHTML},
		{capSVG, RenderSVG},
		{capPNG, RenderPNG},
		{capJPEG, RenderJPEG},
		{capMarkdown, RenderMarkdown},
		{capLatex, RenderLatex},
		{capJSON, RenderJSON},
	}
	for _, c := range caps {
		if payload, ok := interpreter.ObjectField(value, c.key); ok {
			if r, ok := payloadRenderable(payload, c.kind); ok {
				return r
			}
		}
	}

	// Rule 4: built-in types. Tabular values render as HTML tables.
	if r, ok := tabularRenderable(value); ok {
		return r
	}

	// Rule 5: fallback.
	return textRenderable(value.Inspect())
}

func mimeFormRenderable(mimeObj interpreter.Value) (*Renderable, bool) {
	mimeVal, ok := interpreter.ObjectField(mimeObj, "mime")
	if !ok {
		return nil, false
	}
	payload, ok := interpreter.ObjectField(mimeObj, "payload")
	if !ok {
		return nil, false
	}
	mime, ok := mimeVal.(*interpreter.String)
	if !ok {
		return nil, false
	}
	return payloadRenderable(payload, mimeToKind(mime.Value))
}

func mimeToKind(mime string) RenderKind {
	switch mime {
	case "text/html":
		return RenderHTML
	case "text/markdown":
		return RenderMarkdown
	case "image/png":
		return RenderPNG
	case "image/jpeg":
		return RenderJPEG
	case "image/svg+xml":
		return RenderSVG
	case "application/x-latex", "text/x-latex":
		return RenderLatex
	case "application/json":
		return RenderJSON
	default:
		return RenderText
	}
}

func payloadRenderable(payload interpreter.Value, kind RenderKind) (*Renderable, bool) {
	switch kind {
	case RenderPNG, RenderJPEG:
		s, ok := payload.(*interpreter.String)
		if !ok {
			return nil, false
		}
		return &Renderable{Kind: kind, Bytes: []byte(s.Value)}, true
	default:
		s, ok := payload.(*interpreter.String)
		if !ok {
			return nil, false
		}
		return &Renderable{Kind: kind, Text: s.Value}, true
	}
}

// tabularRenderable recognizes an Array of Objects (a row set, the same
// shape the spreadsheet engine's expandRange produces) and renders it as
// an HTML table. Anything else is not tabular.
func tabularRenderable(value interpreter.Value) (*Renderable, bool) {
	arr, ok := value.(*interpreter.Array)
	if !ok || len(arr.Elements) == 0 {
		return nil, false
	}
	first, ok := arr.Elements[0].(*interpreter.Object)
	if !ok {
		return nil, false
	}
	columns := make([]string, 0, len(first.Pairs))
	for k := range first.Pairs {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	rows := make([]*interpreter.Object, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		obj, ok := el.(*interpreter.Object)
		if !ok {
			return nil, false
		}
		rows = append(rows, obj)
	}

	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, c := range columns {
		fmt.Fprintf(&b, "<th>%s</th>", escapeHTML(c))
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		b.WriteString("<tr>")
		for _, c := range columns {
			cell := ""
			if v, ok := row.Pairs[c]; ok {
				cell = v.Inspect()
			}
			fmt.Fprintf(&b, "<td>%s</td>", escapeHTML(cell))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return htmlRenderable(b.String()), true
}

func escapeHTML(s string) string {
	replacer := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return replacer.Replace(s)
}

// MarshalJSON lets a Renderable be embedded directly in an orchestrator
// status dump without a separate projection type.
func (r *Renderable) MarshalJSON() ([]byte, error) {
	type wire struct {
		Kind  RenderKind `json:"kind"`
		Text  string     `json:"text,omitempty"`
		Bytes []byte     `json:"bytes,omitempty"`
	}
	return json.Marshal(wire{Kind: r.Kind, Text: r.Text, Bytes: r.Bytes})
}
