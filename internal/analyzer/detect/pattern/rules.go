package pattern

import (
	"regexp"

	"codereviewsvc/pkg/review"
)

// rule is a single compiled pattern check. loopGated rules only fire
// where the shared LoopScan reports loopDepth > 0 for that line.
type rule struct {
	id        string
	message   string
	severity  review.Severity
	category  review.IssueCategory
	pattern   *regexp.Regexp
	loopGated bool
}

var rules = []rule{
	{
		id:       "command-injection",
		message:  "shell command built from untrusted input; use an argv-based exec call instead of a shell string",
		severity: review.SeverityCritical,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`\b(exec|execSync|spawn)\s*\(\s*` + "`" + `[^` + "`" + `]*\$\{|os\.system\s*\(.*\+`),
	},
	{
		id:       "sql-injection",
		message:  "SQL query built by string concatenation or interpolation instead of a parameterized statement",
		severity: review.SeverityCritical,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`(?i)(select|insert|update|delete)\b[^;]*(\+\s*\w+|\$\{|%s)`),
	},
	{
		id:       "dom-sink-injection",
		message:  "untrusted value assigned to a DOM sink (innerHTML) without sanitization",
		severity: review.SeverityHigh,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`\.innerHTML\s*=\s*[^'"]`),
	},
	{
		id:       "hardcoded-credential",
		message:  "credential-like literal hardcoded in source",
		severity: review.SeverityHigh,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`(?i)\b(password|secret|api[_-]?key|token)\s*[:=]\s*["'][^"']{6,}["']`),
	},
	{
		id:       "weak-digest",
		message:  "weak digest algorithm used in a security-sensitive context",
		severity: review.SeverityMedium,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`(?i)(md5|sha1)\s*\([^)]*(password|secret|token)`),
	},
	{
		id:       "open-redirect",
		message:  "redirect target taken directly from request input without an allowlist check",
		severity: review.SeverityMedium,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`(?i)\bredirect\s*\(\s*(req\.|request\.)`),
	},
	{
		id:       "insecure-rng",
		message:  "Math.random used to generate a security-sensitive identifier",
		severity: review.SeverityMedium,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`(?i)(token|session|id)\s*=.*Math\.random`),
	},
	{
		id:       "empty-exception-handler",
		message:  "exception swallowed by an empty catch block",
		severity: review.SeverityMedium,
		category: review.CategoryReliability,
		pattern:  regexp.MustCompile(`catch\s*\([^)]*\)\s*\{\s*\}`),
	},
	{
		id:       "path-traversal",
		message:  "file path built from untrusted input without normalization, enabling directory traversal",
		severity: review.SeverityHigh,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`(?i)(readFile|readFileSync|open)\s*\(\s*[^)]*\+\s*(req\.|request\.|params\.)`),
	},
	{
		id:       "prototype-pollution",
		message:  "direct assignment to __proto__ can pollute the object prototype",
		severity: review.SeverityHigh,
		category: review.CategorySecurity,
		pattern:  regexp.MustCompile(`__proto__\s*[\[.]`),
	},
	{
		id:        "n-plus-one-query",
		message:   "database call issued inside a loop; batch the query instead",
		severity:  review.SeverityHigh,
		category:  review.CategoryPerformance,
		pattern:   regexp.MustCompile(`(?i)\b(query|find|findOne|select|execute)\s*\(`),
		loopGated: true,
	},
	{
		id:       "sync-blocking-io",
		message:  "synchronous blocking I/O call on a path that should stay non-blocking",
		severity: review.SeverityMedium,
		category: review.CategoryPerformance,
		pattern:  regexp.MustCompile(`\b\w+Sync\s*\(`),
	},
	{
		id:        "string-concat-in-loop",
		message:   "string concatenation inside a loop is quadratic; accumulate into a buffer or array instead",
		severity:  review.SeverityLow,
		category:  review.CategoryPerformance,
		pattern:   regexp.MustCompile(`\w+\s*\+=\s*["'\x60]|\w+\s*=\s*\w+\s*\+\s*["'\x60]`),
		loopGated: true,
	},
	{
		id:        "regex-construction-in-loop",
		message:   "regular expression compiled on every loop iteration instead of hoisted outside the loop",
		severity:  review.SeverityMedium,
		category:  review.CategoryPerformance,
		pattern:   regexp.MustCompile(`new RegExp\s*\(`),
		loopGated: true,
	},
	{
		id:       "loose-equality",
		message:  "loose equality operator used where strict equality is expected",
		severity: review.SeverityLow,
		category: review.CategoryStyle,
		pattern:  regexp.MustCompile(`[^=!<>]==[^=]|[^=!]!=[^=]`),
	},
	{
		id:       "missing-input-validation",
		message:  "request input used directly without an accompanying validation call",
		severity: review.SeverityLow,
		category: review.CategoryReliability,
		pattern:  regexp.MustCompile(`(?i)(req\.body|req\.query|req\.params)\.\w+`),
	},
}
