// Package async implements the JS/TS-only detector stages: async and
// concurrency detectors (stage 3, gated on async markers), semantic
// detectors (stage 4), and auth-specific detectors (stage 5).
package async

import (
	"regexp"
	"strings"

	"codereviewsvc/internal/analyzer/lang"
	"codereviewsvc/pkg/review"
)

var asyncMarkerPattern = regexp.MustCompile(`\basync\b|\bawait\b|\.then\s*\(|\bPromise\b|setTimeout|setInterval`)

// ConcurrencyDetector is stage 3: triggered only if the file exhibits
// async markers at all.
type ConcurrencyDetector struct{}

func NewConcurrency() *ConcurrencyDetector { return &ConcurrencyDetector{} }

func (d *ConcurrencyDetector) Name() string { return "async-concurrency" }

var (
	thenWithoutCatch = regexp.MustCompile(`\.then\s*\([^)]*\)\s*;?\s*$`)
	catchPresent     = regexp.MustCompile(`\.catch\s*\(`)
	setIntervalDecl  = regexp.MustCompile(`setInterval\s*\(`)
	clearIntervalUse = regexp.MustCompile(`clearInterval\s*\(`)
	asyncFnMissAwait = regexp.MustCompile(`async\s+function\s*\w*\s*\([^)]*\)\s*\{`)
)

func (d *ConcurrencyDetector) Detect(content []byte, fileName string, l lang.Language) []review.Issue {
	if !lang.IsJSFamily(l) {
		return nil
	}
	src := string(content)
	if !asyncMarkerPattern.MatchString(src) {
		return nil
	}
	lines := strings.Split(src, "\n")

	var issues []review.Issue
	if !catchPresent.MatchString(src) {
		for i, line := range lines {
			if thenWithoutCatch.MatchString(line) {
				issues = append(issues, review.Issue{
					Line:     i + 1,
					Message:  "promise chain has no .catch; a rejection will be unhandled",
					Severity: review.SeverityHigh,
					RuleID:   "unhandled-promise-rejection",
					Category: review.CategoryConcurrency,
				})
			}
		}
	}

	if setIntervalDecl.MatchString(src) && !clearIntervalUse.MatchString(src) {
		issues = append(issues, review.Issue{
			Line:     firstMatchLine(lines, setIntervalDecl),
			Message:  "setInterval is never paired with a clearInterval, leaking the timer",
			Severity: review.SeverityMedium,
			RuleID:   "interval-without-clear",
			Category: review.CategoryMemoryLeak,
		})
	}

	return issues
}

func firstMatchLine(lines []string, p *regexp.Regexp) int {
	for i, l := range lines {
		if p.MatchString(l) {
			return i + 1
		}
	}
	return 1
}
