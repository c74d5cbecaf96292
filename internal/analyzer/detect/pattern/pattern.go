package pattern

import (
	"strings"

	"codereviewsvc/internal/analyzer/lang"
	"codereviewsvc/pkg/review"
)

// Detector is the generic, language-agnostic stage-1 detector: one
// pass over the file's lines, a shared loop-depth scan, then every
// compiled rule checked against every line (subject to loop gating).
type Detector struct{}

func New() *Detector { return &Detector{} }

func (d *Detector) Name() string { return "pattern" }

func (d *Detector) Detect(content []byte, fileName string, _ lang.Language) []review.Issue {
	lines := strings.Split(string(content), "\n")
	scan := ScanLoops(lines)

	issues := append([]review.Issue{}, scan.Issues...)
	for i, line := range lines {
		depth := scan.DepthAtLine[i]
		for _, r := range rules {
			if r.loopGated && depth == 0 {
				continue
			}
			if r.pattern.MatchString(line) {
				issues = append(issues, review.Issue{
					Line:     i + 1,
					Message:  r.message,
					Severity: r.severity,
					RuleID:   r.id,
					Category: r.category,
				})
			}
		}
	}
	return issues
}
