package async

import (
	"regexp"
	"strings"

	"codereviewsvc/internal/analyzer/lang"
	"codereviewsvc/pkg/review"
)

// AuthDetector is stage 5: auth-specific detectors gated on keyword
// markers for a waiter queue and refresh-flag patterns.
type AuthDetector struct{}

func NewAuth() *AuthDetector { return &AuthDetector{} }

func (d *AuthDetector) Name() string { return "async-auth" }

var (
	waiterQueuePattern = regexp.MustCompile(`\b(waiters|pending\w*|subscribers|listeners)\b`)
	drainPattern       = regexp.MustCompile(`\.forEach\s*\(|\.length\s*=\s*0|\.splice\s*\(\s*0\b|while\s*\(\s*\w+\.length`)
	thenKeyword        = regexp.MustCompile(`\.then\s*\(|\bresolve\s*\(`)
	catchKeyword       = regexp.MustCompile(`\.catch\s*\(|\bcatch\s*\(|\breject\s*\(`)
	refreshFlagPattern = regexp.MustCompile(`\b(is)?[Rr]efreshing\w*\b`)
	jitterPattern      = regexp.MustCompile(`(?i)jitter|stagger|Math\.random\(\)\s*\*`)
)

func (d *AuthDetector) Detect(content []byte, fileName string, l lang.Language) []review.Issue {
	if !lang.IsJSFamily(l) {
		return nil
	}
	src := string(content)
	lines := strings.Split(src, "\n")
	var issues []review.Issue

	if waiterQueuePattern.MatchString(src) {
		if issue, ok := checkPromiseLiveness(lines); ok {
			issues = append(issues, issue)
		}
		if issue, ok := checkThunderingHerd(src, lines); ok {
			issues = append(issues, issue)
		}
	}

	if refreshFlagPattern.MatchString(src) {
		if issue, ok := checkRefreshFlagHazard(src, lines); ok {
			issues = append(issues, issue)
		}
	}

	return issues
}

// checkPromiseLiveness requires both the success and error paths to
// drain the waiter queue; if only the success path does, this is
// lost-requests-on-error.
func checkPromiseLiveness(lines []string) (review.Issue, bool) {
	sawSuccessDrain := false
	sawErrorDrain := false
	successLine := 0

	for i, line := range lines {
		if !drainPattern.MatchString(line) {
			continue
		}
		ctx, ctxLine := nearestContext(lines, i)
		switch ctx {
		case "success":
			sawSuccessDrain = true
			if successLine == 0 {
				successLine = ctxLine
			}
		case "error":
			sawErrorDrain = true
		}
	}

	if sawSuccessDrain && !sawErrorDrain {
		return review.Issue{
			Line:     successLine,
			Message:  "waiter queue is drained on the success path but not on the error path; rejected requests are lost",
			Severity: review.SeverityHigh,
			RuleID:   "lost-requests-on-error",
			Category: review.CategoryReliability,
		}, true
	}
	return review.Issue{}, false
}

// nearestContext scans backward from line idx for the closest of
// .then(/resolve( ("success") or .catch(/catch(/reject( ("error").
func nearestContext(lines []string, idx int) (string, int) {
	window := 15
	start := idx - window
	if start < 0 {
		start = 0
	}
	for i := idx; i >= start; i-- {
		if catchKeyword.MatchString(lines[i]) {
			return "error", i + 1
		}
		if thenKeyword.MatchString(lines[i]) {
			return "success", i + 1
		}
	}
	return "", 0
}

func checkThunderingHerd(src string, lines []string) (review.Issue, bool) {
	for i, line := range lines {
		if (strings.Contains(line, ".forEach(") || strings.Contains(line, ".map(")) && waiterQueuePattern.MatchString(line) {
			if !jitterPattern.MatchString(src) {
				return review.Issue{
					Line:     i + 1,
					Message:  "waiter queue is flushed with unbounded parallelism and no staggering/jitter, risking a thundering herd",
					Severity: review.SeverityMedium,
					RuleID:   "thundering-herd",
					Category: review.CategoryConcurrency,
				}, true
			}
		}
	}
	return review.Issue{}, false
}

func checkRefreshFlagHazard(src string, lines []string) (review.Issue, bool) {
	m := refreshFlagPattern.FindString(src)
	if m == "" {
		return review.Issue{}, false
	}
	setTrue := regexp.MustCompile(regexp.QuoteMeta(m) + `\s*=\s*true\b`)
	setFalse := regexp.MustCompile(regexp.QuoteMeta(m) + `\s*=\s*false\b`)
	trueCount := len(setTrue.FindAllString(src, -1))
	falseCount := len(setFalse.FindAllString(src, -1))

	if trueCount != falseCount {
		return review.Issue{
			Line:     firstMatchLine(lines, setTrue),
			Message:  "refresh flag is set true/false an unequal number of times, leaving the state machine able to get stuck",
			Severity: review.SeverityHigh,
			RuleID:   "refresh-flag-state-hazard",
			Category: review.CategoryConcurrency,
		}, true
	}
	if !strings.Contains(src, "finally") {
		return review.Issue{
			Line:     firstMatchLine(lines, setTrue),
			Message:  "refresh flag reset has no finally-scoped cleanup guarantee",
			Severity: review.SeverityMedium,
			RuleID:   "refresh-flag-no-cleanup-guarantee",
			Category: review.CategoryConcurrency,
		}, true
	}
	return review.Issue{}, false
}
