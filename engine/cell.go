// Package engine implements the literate-notebook incremental execution
// core: parsing a percent-delimited source file into cells, inferring
// per-cell dependencies, scheduling the minimum rerun set against a prior
// pass, driving the persistent Vellum environment, and converting results
// into renderable display artifacts.
package engine

import (
	"github.com/dchest/siphash"
)

// CellKind distinguishes executable cells from prose.
type CellKind string

const (
	Code  CellKind = "code"
	Prose CellKind = "prose"
)

// siphash key is fixed for the process lifetime: content hashes are only
// ever compared for equality within one run of the engine, never persisted
// or compared across processes, so a random per-process key would work
// just as well; a fixed key keeps hashes reproducible across engine unit
// tests.
const (
	contentHashK0 = 0x6c69746572617465 // "literate"
	contentHashK1 = 0x6e6f7465626f6f6b // "notebook"
)

func contentHash(source string) uint64 {
	return siphash.Hash(contentHashK0, contentHashK1, []byte(source))
}

// Cell is an immutable description of one unit of the source file, plus
// whatever RunRecord the scheduler has most recently attached to it. A
// freshly parsed Cell has a nil RunRecord; the scheduler fills it in by
// copy-forward or by execution.
type Cell struct {
	Kind        CellKind
	Source      string
	LineStart   int
	Metadata    map[string]string
	ContentHash uint64

	// Provides/Requires are populated for Code cells only (C3); nil for
	// Prose cells. A Code cell whose source failed to parse gets empty,
	// non-nil sets.
	Provides map[string]struct{}
	Requires map[string]struct{}

	Run *RunRecord
}

// newCell stores the source exactly as given and computes the content hash;
// it does not run the analyzer (see analyze.go).
func newCell(kind CellKind, source string, lineStart int, metadata map[string]string) Cell {
	if metadata == nil {
		metadata = map[string]string{}
	}
	return Cell{
		Kind:        kind,
		Source:      source,
		LineStart:   lineStart,
		Metadata:    metadata,
		ContentHash: contentHash(source),
	}
}

// CellSequence is an ordered, dense, 1-based (by position index+1) list of
// cells produced by one parse pass.
type CellSequence []Cell

// RunRecord is the result of one execution of a code cell.
type RunRecord struct {
	Counter int64
	Stdout  string
	Stderr  string
	Value   *Renderable
	Err     *ExecutionError
}

// ExecutionErrorKind classifies why a cell's execution failed.
type ExecutionErrorKind string

const (
	SyntaxErrorKind  ExecutionErrorKind = "SyntaxError"
	NameErrorKind    ExecutionErrorKind = "NameError"
	RuntimeErrorKind ExecutionErrorKind = "RuntimeError"
	TimeoutKind      ExecutionErrorKind = "Timeout"
	OtherErrorKind   ExecutionErrorKind = "Other"
)

// ExecutionError is attached to a RunRecord when a cell's execution fails.
// Context is a pre-formatted excerpt (interpreter.FormatRuntimeError or
// parser.FormatParseErrors output) pointing at the offending line.
type ExecutionError struct {
	Kind    ExecutionErrorKind
	Message string
	Context string
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
