package engine

import (
	"bytes"
	"io"
	"os"
	"strings"
	"sync"

	"vellum/ast"
	"vellum/interpreter"
	"vellum/lexer"
	"vellum/parser"
)

// CellEvaluator is the engine's sole gateway into the Vellum interpreter. It
// owns one persistent environment and counter, shared across every cell
// execution for the life of a notebook session, and serializes access so
// stdout/stderr capture (which swaps process-global file descriptors) never
// overlaps two concurrent runs.
type CellEvaluator struct {
	mu       sync.Mutex
	env      *interpreter.Environment
	eval     *interpreter.Evaluator
	counter  int64
	filename string
}

// stdioMu serializes stdout/stderr capture across every CellEvaluator
// instance, since the swapped descriptors are process-global.
var stdioMu sync.Mutex

// NewCellEvaluator builds a fresh persistent environment, equivalent to a
// never-yet-executed notebook session.
func NewCellEvaluator(filename string) *CellEvaluator {
	if filename == "" {
		filename = "<notebook>"
	}
	return &CellEvaluator{
		env:      interpreter.NewBaseEnvironment(),
		eval:     interpreter.NewEvaluatorWithSourceAndFilename("", filename),
		filename: filename,
	}
}

// Reset discards the namespace and resets the execution counter to zero, as
// if the evaluator had just been constructed.
func (ce *CellEvaluator) Reset() {
	ce.mu.Lock()
	defer ce.mu.Unlock()
	ce.env = interpreter.NewBaseEnvironment()
	ce.eval = interpreter.NewEvaluatorWithSourceAndFilename("", ce.filename)
	ce.counter = 0
}

// Run executes one fragment of source against the persistent namespace and
// returns a complete RunRecord: stdout/stderr captured in full, a value only
// when the fragment's last syntactic unit is an expression, and a populated
// Err when parsing or evaluation failed. Run never panics and never lets an
// interpreter error escape as a Go error: every outcome is represented in
// the returned record, per the evaluator contract cells are scheduled
// against.
func (ce *CellEvaluator) Run(source string) RunRecord {
	ce.mu.Lock()
	defer ce.mu.Unlock()

	ce.counter++
	record := RunRecord{Counter: ce.counter}

	l := lexer.New(source)
	p := parser.New(l)
	program := p.ParseProgram()

	if errs := p.ErrorsDetailed(); len(errs) > 0 {
		record.Err = &ExecutionError{
			Kind:    SyntaxErrorKind,
			Message: errs[0].Message,
			Context: parser.FormatParseErrors(errs, source, ce.filename),
		}
		return record
	}

	stdioMu.Lock()
	restore := captureStdio()
	value, _, err := ce.eval.Eval(program, ce.env)
	record.Stdout, record.Stderr = restore()
	stdioMu.Unlock()

	if err != nil {
		record.Err = &ExecutionError{
			Kind:    classifyError(err),
			Message: err.Error(),
			Context: interpreter.FormatRuntimeError(err, source, ce.filename),
		}
		return record
	}

	if lastIsExpression(program) && value != nil {
		record.Value = ToRenderable(ce.eval, value)
	}
	return record
}

func lastIsExpression(program *ast.Program) bool {
	if len(program.Statements) == 0 {
		return false
	}
	_, ok := program.Statements[len(program.Statements)-1].(*ast.ExpressionStatement)
	return ok
}

func classifyError(err error) ExecutionErrorKind {
	switch e := err.(type) {
	case *interpreter.RuntimeError:
		if strings.HasPrefix(e.Message, "undefined identifier") {
			return NameErrorKind
		}
		return RuntimeErrorKind
	case *interpreter.RecoverableError:
		if e.Kind == "canceled" {
			return TimeoutKind
		}
		return RuntimeErrorKind
	default:
		return OtherErrorKind
	}
}

// captureStdio redirects process-wide os.Stdout/os.Stderr into two
// independent pipes for the duration of one evaluation, each drained by its
// own goroutine into its own buffer so the two streams never interleave into
// one combined record. restore must be called exactly once, after the
// evaluation that triggered the redirect has returned, and yields the
// captured text for each stream.
func captureStdio() (restore func() (string, string)) {
	prevOut, prevErr := os.Stdout, os.Stderr

	outR, outW, outErr := os.Pipe()
	errR, errW, errErr := os.Pipe()
	if outErr != nil || errErr != nil {
		// Piping is unavailable (e.g. exotic sandboxing); evaluate without
		// capture rather than fail the pass outright.
		for _, f := range []*os.File{outR, outW, errR, errW} {
			if f != nil {
				_ = f.Close()
			}
		}
		return func() (string, string) { return "", "" }
	}

	os.Stdout = outW
	os.Stderr = errW

	var out, errb bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&out, outR)
	}()
	go func() {
		defer wg.Done()
		_, _ = io.Copy(&errb, errR)
	}()

	return func() (string, string) {
		_ = outW.Close()
		_ = errW.Close()
		wg.Wait()
		_ = outR.Close()
		_ = errR.Close()
		os.Stdout = prevOut
		os.Stderr = prevErr
		return out.String(), errb.String()
	}
}
