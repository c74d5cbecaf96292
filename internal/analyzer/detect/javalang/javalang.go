// Package javalang implements the Java-specific detector stage: a
// handful of per-line predicates plus whole-file predicates that need
// to see the entire source before they can fire.
package javalang

import (
	"regexp"
	"strings"

	"codereviewsvc/internal/analyzer/lang"
	"codereviewsvc/pkg/review"
)

type Detector struct{}

func New() *Detector { return &Detector{} }

func (d *Detector) Name() string { return "javalang" }

var (
	xmlFactoryPattern  = regexp.MustCompile(`DocumentBuilderFactory\.newInstance\(\)`)
	disableDTDPattern  = regexp.MustCompile(`setFeature\s*\(\s*"http://apache\.org/xml/features/disallow-doctype-decl"\s*,\s*true\s*\)`)
	httpURLPattern     = regexp.MustCompile(`http://`)
	httpsURLPattern    = regexp.MustCompile(`https://`)
	serializablePatt   = regexp.MustCompile(`implements\s+Serializable`)
	readObjectPatt     = regexp.MustCompile(`readObject\s*\(`)
	stringFormatSQL    = regexp.MustCompile(`(?i)String\.format\s*\(\s*".*(select|insert|update|delete)`)
)

func (d *Detector) Detect(content []byte, fileName string, l lang.Language) []review.Issue {
	if l != lang.Java {
		return nil
	}
	src := string(content)
	lines := strings.Split(src, "\n")

	var issues []review.Issue
	for i, line := range lines {
		if stringFormatSQL.MatchString(line) {
			issues = append(issues, review.Issue{
				Line:     i + 1,
				Message:  "SQL statement built with String.format instead of a PreparedStatement",
				Severity: review.SeverityCritical,
				RuleID:   "java-sql-string-format",
				Category: review.CategorySecurity,
			})
		}
		if serializablePatt.MatchString(line) {
			issues = append(issues, review.Issue{
				Line:     i + 1,
				Message:  "class implements Serializable; verify readObject/writeObject do not expose unsafe deserialization",
				Severity: review.SeverityLow,
				RuleID:   "java-serializable",
				Category: review.CategoryReliability,
			})
		}
	}

	if xmlFactoryPattern.MatchString(src) && !disableDTDPattern.MatchString(src) {
		issues = append(issues, review.Issue{
			Line:     lineOf(lines, xmlFactoryPattern),
			Message:  "DocumentBuilderFactory does not disable DOCTYPE declarations; vulnerable to XXE",
			Severity: review.SeverityCritical,
			RuleID:   "java-xxe",
			Category: review.CategorySecurity,
		})
	}

	if readObjectPatt.MatchString(src) {
		issues = append(issues, review.Issue{
			Line:     lineOf(lines, readObjectPatt),
			Message:  "custom readObject implementation should validate invariants before use to avoid unsafe deserialization",
			Severity: review.SeverityMedium,
			RuleID:   "java-unsafe-deserialization",
			Category: review.CategorySecurity,
		})
	}

	if httpURLPattern.MatchString(src) && !httpsURLPattern.MatchString(src) {
		issues = append(issues, review.Issue{
			Line:     lineOf(lines, httpURLPattern),
			Message:  "file references plain http:// endpoints and never https://",
			Severity: review.SeverityMedium,
			RuleID:   "java-no-https",
			Category: review.CategorySecurity,
		})
	}

	return issues
}

func lineOf(lines []string, p *regexp.Regexp) int {
	for i, l := range lines {
		if p.MatchString(l) {
			return i + 1
		}
	}
	return 1
}
