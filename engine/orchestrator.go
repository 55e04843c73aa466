package engine

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
)

// OrchestratorConfig collects the explicit knobs of one notebook session.
type OrchestratorConfig struct {
	// Path is the notebook source file the orchestrator reads on each pass.
	Path string
	// Debounce is forwarded to NewWatcherDebounce when Watch is used; zero
	// means DefaultDebounce.
	Debounce time.Duration
	// Filename is passed to the evaluator for error-context formatting;
	// defaults to Path.
	Filename string
	// Exit is invoked on an InternalError instead of os.Exit(1) directly,
	// so tests can observe the abort without killing the test binary.
	Exit func(code int)
	// Log receives one line per pass and per recovered error condition; a
	// nil Log defaults to the standard logger.
	Log *log.Logger
}

// Orchestrator owns the current CellSequence and Environment exclusively
// and drives one parse/analyze/schedule/render pass at a time.
type Orchestrator struct {
	cfg OrchestratorConfig
	ce  *CellEvaluator

	lastSequence CellSequence
	lastContent  string
	haveRead     bool

	logger *log.Logger
}

// NewOrchestrator constructs an Orchestrator with a fresh Environment, as if
// no pass has ever run.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	if cfg.Filename == "" {
		cfg.Filename = cfg.Path
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Exit == nil {
		cfg.Exit = os.Exit
	}
	logger := cfg.Log
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		ce:     NewCellEvaluator(cfg.Filename),
		logger: logger,
	}
}

// LastSequence returns the CellSequence produced by the most recent pass
// (nil before the first pass).
func (o *Orchestrator) LastSequence() CellSequence { return o.lastSequence }

// Reset discards the Environment and the remembered prior sequence, so the
// next pass behaves as a from-scratch first run.
func (o *Orchestrator) Reset() {
	o.ce.Reset()
	o.lastSequence = nil
	o.lastContent = ""
	o.haveRead = false
}

// RunPass runs one full pass: read the file, parse, analyze, schedule, and
// swap in the resulting sequence. It returns the resulting CellSequence, or
// an error when the read failed (the pass is skipped and lastSequence is
// left untouched). An InternalError panicking out of the scheduler is
// recovered, logged, and handed to cfg.Exit rather than allowed to crash
// the calling goroutine uncontrolled.
func (o *Orchestrator) RunPass() (result CellSequence, passErr error) {
	passID := uuid.NewString()

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(*InternalError)
			if !ok {
				panic(r)
			}
			o.logger.Printf("pass %s: internal error: %v", passID, ie)
			o.cfg.Exit(1)
			passErr = ie
		}
	}()

	content, err := os.ReadFile(o.cfg.Path)
	if err != nil {
		o.logger.Printf("pass %s: io error reading %s: %v", passID, o.cfg.Path, err)
		return o.lastSequence, fmt.Errorf("io error: %w", err)
	}

	if o.haveRead && string(content) == o.lastContent {
		return o.lastSequence, nil
	}
	o.lastContent = string(content)
	o.haveRead = true

	next, parseErr := Parse(o.lastContent)
	if parseErr != nil {
		o.logger.Printf("pass %s: parse error (degraded single-cell mode): %v", passID, parseErr)
	}

	for i := range next {
		if next[i].Kind != Code {
			continue
		}
		provides, requires, analyzeErr := AnalyzeCell(next[i].Source)
		if analyzeErr != nil {
			o.logger.Printf("pass %s: analysis error at line %d: %v", passID, next[i].LineStart, analyzeErr)
		}
		next[i].Provides = provides
		next[i].Requires = requires
	}

	result = Schedule(o.ce, o.lastSequence, next)
	o.lastSequence = result
	o.logger.Printf("pass %s: %d cells, %d code cells with run records", passID, len(result), countRuns(result))
	return result, nil
}

func countRuns(seq CellSequence) int {
	n := 0
	for _, c := range seq {
		if c.Kind == Code && c.Run != nil {
			n++
		}
	}
	return n
}

// Watch starts a Watcher over cfg.Path and runs passes forever as changes
// are reported, one at a time; passes never overlap.
// It blocks until stop is closed; callers typically run it in its own
// goroutine. An initial pass is run immediately, before the first change
// notification, so the notebook reflects the file's state at Watch's call
// time.
func (o *Orchestrator) Watch(stop <-chan struct{}) error {
	if _, err := o.RunPass(); err != nil {
		o.logger.Printf("initial pass failed: %v", err)
	}

	w, err := NewWatcherDebounce(o.cfg.Path, o.cfg.Debounce)
	if err != nil {
		return fmt.Errorf("watcher failure: %w", err)
	}
	w.Start()
	defer w.Stop()

	for {
		select {
		case <-stop:
			return nil
		case <-w.Changed:
			if _, err := o.RunPass(); err != nil {
				o.logger.Printf("pass failed: %v", err)
			}
		}
	}
}
