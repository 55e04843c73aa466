package engine

// InternalError marks an invariant violation inside the engine itself
// (never a user-facing notebook error; see ExecutionError for those).
// Orchestrator callers recover a panicking pass, log the diagnostic, and
// call OrchestratorConfig.Exit(1) (os.Exit by default) rather than attempt
// to continue against corrupted state.
type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return "internal error: " + e.Message
}
