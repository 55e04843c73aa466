package engine

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"vellum/ast"
	"vellum/lexer"
	"vellum/parser"
)

// markerLead is the cell-boundary marker: Vellum's one-line comment lead
// followed by `%%`. The lexer skips `//` comments, so marker lines are
// invisible to the evaluator and a notebook file is always plain Vellum
// source.
const markerLead = "// %%"

type markerHit struct {
	line     int
	kind     CellKind
	metadata map[string]string
}

// openPoint is an internal cut point within one code segment: the bare-
// prose-boundary pass produces one of these per cell, in source order, then
// slices the raw line array (or, for a bare-prose literal, uses its
// already-decoded value) between consecutive cuts.
type openPoint struct {
	declLine    int // reported as the Cell's LineStart
	contentLine int // first raw source line included (ignored when literal != nil)
	kind        CellKind
	metadata    map[string]string
	literal     *string // non-nil for a bare-prose-literal cut
}

// Parse converts source text into an ordered CellSequence.
//
// Marker scanning is line-oriented and never fails; the source between
// markers is split into segments whose declared kind decides how they are
// handled. Prose segments are taken verbatim (trimmed) and never shown to
// the Vellum parser, since markdown is not Vellum source. Code segments
// are parsed individually so the bare-prose-boundary rule can be applied
// syntactically; a segment that fails to parse degrades to a single Code
// cell holding the whole segment (the evaluator will surface the syntax
// error with proper context on execution), and Parse reports the first
// such failure through its error return purely for the caller to log. The
// returned CellSequence is always usable; with no markers present the
// degraded mode is a single cell holding the whole file.
func Parse(source string) (CellSequence, error) {
	lines := strings.Split(source, "\n")

	type segment struct {
		declLine    int
		contentLine int
		kind        CellKind
		metadata    map[string]string
	}
	segments := []segment{{declLine: 1, contentLine: 1, kind: Code, metadata: map[string]string{}}}
	for _, hit := range scanMarkers(lines) {
		segments = append(segments, segment{
			declLine:    hit.line,
			contentLine: hit.line + 1,
			kind:        hit.kind,
			metadata:    hit.metadata,
		})
	}

	var cells CellSequence
	var firstErr error
	for i, seg := range segments {
		end := len(lines)
		if i+1 < len(segments) {
			end = segments[i+1].declLine - 1
		}
		if seg.kind == Prose {
			src := strings.TrimSpace(joinLines(lines, seg.contentLine, end))
			if src == "" {
				continue
			}
			cells = append(cells, newCell(Prose, src, seg.declLine, seg.metadata))
			continue
		}
		segCells, err := splitCodeSegment(lines, seg.declLine, seg.contentLine, end, seg.metadata)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		cells = append(cells, segCells...)
	}
	return cells, firstErr
}

// splitCodeSegment applies the bare-prose-boundary rule inside one code
// segment: a top-level expression-statement that is nothing but a string
// literal closes the current cell and emits a prose cell spanning the
// literal itself. The distinction from an assigned string is made on the
// segment's AST, never textually.
func splitCodeSegment(lines []string, declLine, contentLine, endLine int, metadata map[string]string) (CellSequence, error) {
	src := joinLines(lines, contentLine, endLine)
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}

	p := parser.New(lexer.New(src))
	program := p.ParseProgram()
	if errs := p.ErrorsDetailed(); len(errs) > 0 {
		return CellSequence{newCell(Code, src, declLine, metadata)}, fmt.Errorf(
			"cell at line %d failed to parse, keeping it whole for the evaluator to report:\n%s",
			declLine, parser.FormatParseErrors(errs, src, ""))
	}

	opens := []openPoint{{declLine: declLine, contentLine: contentLine, kind: Code, metadata: metadata}}
	for _, stmt := range program.Statements {
		es, ok := stmt.(*ast.ExpressionStatement)
		if !ok {
			continue
		}
		lit, ok := es.Expression.(*ast.StringLiteral)
		if !ok {
			continue
		}
		if lit.Token.Line == 0 {
			continue
		}
		abs := contentLine + lit.Token.Line - 1
		content := strings.TrimSpace(lit.Value)
		opens = append(opens, openPoint{declLine: abs, kind: Prose, literal: &content})
		opens = append(opens, openPoint{declLine: abs + 1, contentLine: abs + 1, kind: Code, metadata: map[string]string{}})
	}

	sort.SliceStable(opens, func(i, j int) bool { return opens[i].declLine < opens[j].declLine })

	var cells CellSequence
	for i, op := range opens {
		var cellSrc string
		if op.literal != nil {
			cellSrc = *op.literal
		} else {
			end := endLine
			if i+1 < len(opens) {
				end = opens[i+1].declLine - 1
			}
			cellSrc = joinLines(lines, op.contentLine, end)
		}
		if strings.TrimSpace(cellSrc) == "" {
			continue
		}
		cells = append(cells, newCell(op.kind, cellSrc, op.declLine, op.metadata))
	}
	return cells, nil
}

func joinLines(lines []string, startLine, endLineInclusive int) string {
	if startLine < 1 {
		startLine = 1
	}
	if endLineInclusive > len(lines) {
		endLineInclusive = len(lines)
	}
	if startLine > endLineInclusive {
		return ""
	}
	return strings.Join(lines[startLine-1:endLineInclusive], "\n")
}

func scanMarkers(lines []string) []markerHit {
	var hits []markerHit
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if !strings.HasPrefix(trimmed, markerLead) {
			continue
		}
		rest := strings.TrimSpace(trimmed[len(markerLead):])
		kind, metadata := parseMarkerLine(rest)
		hits = append(hits, markerHit{line: i + 1, kind: kind, metadata: metadata})
	}
	return hits
}

// parseMarkerLine parses the `title [kind] key=value key="value"` form
// following a marker lead already stripped from rest.
func parseMarkerLine(rest string) (CellKind, map[string]string) {
	metadata := map[string]string{}
	kind := Code
	var titleParts []string

	for _, field := range tokenizeMarkerFields(rest) {
		if strings.HasPrefix(field, "[") && strings.HasSuffix(field, "]") && len(field) >= 2 {
			switch strings.ToLower(strings.Trim(field, "[]")) {
			case "markdown", "md":
				kind = Prose
			}
			continue
		}
		if eq := strings.IndexByte(field, '='); eq > 0 && isIdent(field[:eq]) {
			metadata[field[:eq]] = unquote(field[eq+1:])
			continue
		}
		titleParts = append(titleParts, field)
	}

	if title := strings.Join(titleParts, " "); title != "" {
		metadata["title"] = title
	}
	return kind, metadata
}

// tokenizeMarkerFields splits on whitespace but keeps single/double-quoted
// spans (which may contain spaces) intact.
func tokenizeMarkerFields(s string) []string {
	var fields []string
	var buf strings.Builder
	var inQuote byte

	flush := func() {
		if buf.Len() > 0 {
			fields = append(fields, buf.String())
			buf.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote != 0:
			buf.WriteByte(c)
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
			buf.WriteByte(c)
		case c == ' ' || c == '\t':
			flush()
		default:
			buf.WriteByte(c)
		}
	}
	flush()
	return fields
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if i > 0 && unicode.IsDigit(r) {
			continue
		}
		return false
	}
	return true
}
