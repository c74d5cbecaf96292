package analyzer

import "fmt"

// AnalysisErrorKind enumerates the ways the Analyzer itself can fail.
// AIFailure never reaches this type — it is swallowed locally and
// degrades to an empty suggestion list (spec §7).
type AnalysisErrorKind string

const (
	PatternFailure  AnalysisErrorKind = "pattern_failure"
	LinterFailure   AnalysisErrorKind = "linter_failure"
	ForcedFailure   AnalysisErrorKind = "forced_failure"
)

// AnalysisError wraps a detector-stage failure that should propagate
// to the Worker and cause redelivery/DLQ routing.
type AnalysisError struct {
	Kind  AnalysisErrorKind
	Cause error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed (%s): %v", e.Kind, e.Cause)
}

func (e *AnalysisError) Unwrap() error { return e.Cause }
