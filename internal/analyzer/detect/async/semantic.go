package async

import (
	"regexp"
	"strings"

	"codereviewsvc/internal/analyzer/lang"
	"codereviewsvc/pkg/review"
)

// SemanticDetector is stage 4: higher-order patterns over the whole
// file rather than single lines.
type SemanticDetector struct{}

func NewSemantic() *SemanticDetector { return &SemanticDetector{} }

func (d *SemanticDetector) Name() string { return "async-semantic" }

var (
	eventHandlerPattern  = regexp.MustCompile(`\.on\s*\(\s*["']\w+["']\s*,\s*(async\s*)?\([^)]*\)\s*=>\s*\{`)
	retryPattern         = regexp.MustCompile(`(?i)\bretry\b|\battempt(s)?\s*\+\+`)
	delayPattern         = regexp.MustCompile(`setTimeout|sleep\s*\(|backoff`)
	queuePushPattern     = regexp.MustCompile(`\b(\w*[Qq]ueue\w*)\.push\s*\(`)
	queueBoundPattern    = regexp.MustCompile(`(\w*[Qq]ueue\w*)\.length\s*[<>]=?\s*\d+`)
	sigintPattern        = regexp.MustCompile(`process\.on\s*\(\s*["']SIGTERM["']|process\.on\s*\(\s*["']SIGINT["']`)
	sharedStatePattern   = regexp.MustCompile(`^\s*(let|var)\s+(\w+)\s*=`)
	callbackNestPattern  = regexp.MustCompile(`function\s*\([^)]*\)\s*\{`)
	mathRandomInRetry    = regexp.MustCompile(`Math\.random\(\)`)
	dateNowIntervalMath  = regexp.MustCompile(`Date\.now\s*\(\s*\)\s*-`)
	cacheMapNoEviction   = regexp.MustCompile(`new\s+Map\s*\(\s*\)`)
	evictionPattern      = regexp.MustCompile(`\.delete\s*\(|maxSize|evict|LRU`)
	counterIncrement     = regexp.MustCompile(`(\w+)\s*\+\+|(\w+)\s*\+=\s*1\b`)
	globalMutableInHttp  = regexp.MustCompile(`app\.(get|post|put|delete)\s*\(`)
)

func (d *SemanticDetector) Detect(content []byte, fileName string, l lang.Language) []review.Issue {
	if !lang.IsJSFamily(l) {
		return nil
	}
	src := string(content)
	lines := strings.Split(src, "\n")
	var issues []review.Issue

	for i, line := range lines {
		if eventHandlerPattern.MatchString(line) && !nearbyHasTryCatch(lines, i) {
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "event handler has no surrounding try/catch protection",
				Severity: review.SeverityMedium, RuleID: "unprotected-event-handler", Category: review.CategoryReliability,
			})
		}
	}

	if retryPattern.MatchString(src) && !delayPattern.MatchString(src) {
		issues = append(issues, review.Issue{
			Line: firstMatchLine(lines, retryPattern), Message: "retry loop has no delay or exponential backoff policy",
			Severity: review.SeverityHigh, RuleID: "retry-without-backoff", Category: review.CategoryReliability,
		})
	}

	if queuePushPattern.MatchString(src) && !queueBoundPattern.MatchString(src) {
		issues = append(issues, review.Issue{
			Line: firstMatchLine(lines, queuePushPattern), Message: "queue is pushed to without any bound check, allowing unbounded growth",
			Severity: review.SeverityHigh, RuleID: "unbounded-queue-growth", Category: review.CategoryMemoryLeak,
		})
	}

	if strings.Contains(src, "app.listen") && !sigintPattern.MatchString(src) {
		issues = append(issues, review.Issue{
			Line: 1, Message: "server starts listening but never registers a SIGTERM/SIGINT handler for graceful shutdown",
			Severity: review.SeverityMedium, RuleID: "missing-graceful-shutdown", Category: review.CategoryReliability,
		})
	}

	if sharedMutableUnderAsync(lines) {
		issues = append(issues, review.Issue{
			Line: 1, Message: "module-level mutable variable is written from inside an async function, risking a data race across concurrent invocations",
			Severity: review.SeverityMedium, RuleID: "shared-mutable-state-async", Category: review.CategoryConcurrency,
		})
	}

	if maxCallbackNestDepth(lines) >= 4 {
		issues = append(issues, review.Issue{
			Line: 1, Message: "callback nesting depth reaches 4 or more, hurting readability and error handling",
			Severity: review.SeverityLow, RuleID: "deep-callback-nesting", Category: review.CategoryDesign,
		})
	}

	if mathRandomInRetry.MatchString(src) && retryPattern.MatchString(src) && strings.Contains(strings.ToLower(src), "test") {
		issues = append(issues, review.Issue{
			Line: firstMatchLine(lines, mathRandomInRetry), Message: "non-deterministic RNG used inside a retry/test context makes behavior non-reproducible",
			Severity: review.SeverityLow, RuleID: "nondeterministic-rng-in-retry", Category: review.CategoryTestability,
		})
	}

	if strings.Contains(src, "rateLimit") && strings.Contains(src, "Date.now()") && !strings.Contains(src, "token") {
		issues = append(issues, review.Issue{
			Line: 1, Message: "fixed-window rate limiter allows bursts at window boundaries; consider a sliding window or token bucket",
			Severity: review.SeverityLow, RuleID: "fixed-window-rate-limiter", Category: review.CategoryDesign,
		})
	}

	if dateNowIntervalMath.MatchString(src) {
		issues = append(issues, review.Issue{
			Line: firstMatchLine(lines, dateNowIntervalMath), Message: "interval math uses Date.now() instead of a monotonic clock and can go backwards on system clock adjustment",
			Severity: review.SeverityLow, RuleID: "non-monotonic-interval-math", Category: review.CategoryReliability,
		})
	}

	if cacheMapNoEviction.MatchString(src) && strings.Contains(strings.ToLower(src), "cache") && !evictionPattern.MatchString(src) {
		issues = append(issues, review.Issue{
			Line: firstMatchLine(lines, cacheMapNoEviction), Message: "cache map has no eviction policy and will grow without bound",
			Severity: review.SeverityMedium, RuleID: "cache-without-eviction", Category: review.CategoryMemoryLeak,
		})
	}

	if hasNonAtomicCounterInConcurrentContext(src) {
		issues = append(issues, review.Issue{
			Line: 1, Message: "counter is incremented from concurrent async callbacks without synchronization",
			Severity: review.SeverityMedium, RuleID: "non-atomic-counter-mutation", Category: review.CategoryConcurrency,
		})
	}

	if globalMutableInHttp.MatchString(src) && sharedStatePattern.FindStringIndex(src) != nil {
		issues = append(issues, review.Issue{
			Line: firstMatchLine(lines, globalMutableInHttp), Message: "request handler reads/writes module-level mutable state shared across all requests",
			Severity: review.SeverityMedium, RuleID: "global-mutable-state-in-handler", Category: review.CategoryConcurrency,
		})
	}

	if strings.Contains(src, "async") && queuePushPattern.MatchString(src) && !strings.Contains(src, "semaphore") && !strings.Contains(src, "p-limit") && !strings.Contains(src, "concurrency") {
		issues = append(issues, review.Issue{
			Line: 1, Message: "queue consumer has no backpressure mechanism limiting concurrent in-flight work",
			Severity: review.SeverityLow, RuleID: "missing-backpressure", Category: review.CategoryReliability,
		})
	}

	return issues
}

func nearbyHasTryCatch(lines []string, idx int) bool {
	start := idx
	end := idx + 8
	if end > len(lines) {
		end = len(lines)
	}
	for i := start; i < end; i++ {
		if strings.Contains(lines[i], "try") || strings.Contains(lines[i], "catch") {
			return true
		}
	}
	return false
}

func sharedMutableUnderAsync(lines []string) bool {
	var moduleVars []string
	depth := 0
	for _, l := range lines {
		if depth == 0 {
			if m := sharedStatePattern.FindStringSubmatch(l); m != nil {
				moduleVars = append(moduleVars, m[2])
			}
		}
		depth += strings.Count(l, "{") - strings.Count(l, "}")
	}
	if len(moduleVars) == 0 {
		return false
	}
	inAsync := false
	asyncDepth := 0
	curDepth := 0
	for _, l := range lines {
		curDepth += strings.Count(l, "{") - strings.Count(l, "}")
		if strings.Contains(l, "async ") && strings.Contains(l, "{") {
			inAsync = true
			asyncDepth = curDepth
		}
		if inAsync {
			for _, v := range moduleVars {
				if regexp.MustCompile(`\b` + v + `\s*(\+\+|--|=[^=])`).MatchString(l) {
					return true
				}
			}
		}
		if inAsync && curDepth < asyncDepth {
			inAsync = false
		}
	}
	return false
}

func maxCallbackNestDepth(lines []string) int {
	depth, max := 0, 0
	for _, l := range lines {
		if callbackNestPattern.MatchString(l) {
			depth++
			if depth > max {
				max = depth
			}
		}
		closes := strings.Count(l, "}")
		for i := 0; i < closes && depth > 0; i++ {
			depth--
		}
	}
	return max
}

func hasNonAtomicCounterInConcurrentContext(src string) bool {
	if !strings.Contains(src, "async") && !strings.Contains(src, ".then(") {
		return false
	}
	return counterIncrement.MatchString(src)
}
