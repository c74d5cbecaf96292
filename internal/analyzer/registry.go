package analyzer

import (
	"codereviewsvc/internal/analyzer/detect/async"
	"codereviewsvc/internal/analyzer/detect/javalang"
	"codereviewsvc/internal/analyzer/detect/lint"
	"codereviewsvc/internal/analyzer/detect/pattern"
	"codereviewsvc/internal/analyzer/detect/pythonlang"
)

// defaultDetectors returns the fixed, ordered detector list from
// spec §4.5.3. Every entry self-gates on language internally, so the
// same list runs for every file; language-inapplicable stages simply
// contribute no issues.
func defaultDetectors() []Detector {
	return []Detector{
		pattern.New(),
		javalang.New(),
		pythonlang.New(),
		async.NewConcurrency(),
		async.NewSemantic(),
		async.NewAuth(),
		lint.New(),
	}
}
