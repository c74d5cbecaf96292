// Package pythonlang implements the Python-specific detector stage.
package pythonlang

import (
	"regexp"
	"strings"

	"codereviewsvc/internal/analyzer/lang"
	"codereviewsvc/pkg/review"
)

type Detector struct{}

func New() *Detector { return &Detector{} }

func (d *Detector) Name() string { return "pythonlang" }

var (
	evalExecPattern      = regexp.MustCompile(`\b(eval|exec)\s*\(`)
	pickleLoadsPattern   = regexp.MustCompile(`pickle\.loads?\s*\(`)
	yamlLoadCallPattern  = regexp.MustCompile(`yaml\.load\s*\([^)]*\)`)
	yamlLoaderArgPattern = regexp.MustCompile(`Loader=`)
	subprocessShellPatt  = regexp.MustCompile(`subprocess\.\w+\([^)]*shell\s*=\s*True`)
	bareExceptPattern    = regexp.MustCompile(`^\s*except\s*:\s*$`)
	mutableDefaultPatt   = regexp.MustCompile(`def\s+\w+\([^)]*=\s*(\[\]|\{\})`)
	assertForAuthPatt    = regexp.MustCompile(`\bassert\s+.*(is_admin|authenticated|permission)`)
	noHTTPSPattern       = regexp.MustCompile(`http://`)
	httpsPattern         = regexp.MustCompile(`https://`)
)

// yamlUnsafe reports whether line contains a yaml.load(...) call that
// does not pass a Loader= argument.
func yamlUnsafe(line string) bool {
	call := yamlLoadCallPattern.FindString(line)
	return call != "" && !yamlLoaderArgPattern.MatchString(call)
}

func (d *Detector) Detect(content []byte, fileName string, l lang.Language) []review.Issue {
	if l != lang.Python {
		return nil
	}
	src := string(content)
	lines := strings.Split(src, "\n")

	var issues []review.Issue
	for i, line := range lines {
		switch {
		case evalExecPattern.MatchString(line):
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "eval/exec on potentially untrusted input is a code-execution risk",
				Severity: review.SeverityCritical, RuleID: "py-eval-exec", Category: review.CategorySecurity,
			})
		case pickleLoadsPattern.MatchString(line):
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "pickle.loads on untrusted data allows arbitrary code execution during deserialization",
				Severity: review.SeverityCritical, RuleID: "py-unsafe-pickle", Category: review.CategorySecurity,
			})
		case yamlUnsafe(line):
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "yaml.load without a safe Loader can execute arbitrary Python tags",
				Severity: review.SeverityHigh, RuleID: "py-unsafe-yaml", Category: review.CategorySecurity,
			})
		case subprocessShellPatt.MatchString(line):
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "subprocess call with shell=True on dynamic input risks command injection",
				Severity: review.SeverityCritical, RuleID: "py-subprocess-shell", Category: review.CategorySecurity,
			})
		case bareExceptPattern.MatchString(line):
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "bare except swallows all exceptions including KeyboardInterrupt/SystemExit",
				Severity: review.SeverityMedium, RuleID: "py-bare-except", Category: review.CategoryReliability,
			})
		case mutableDefaultPatt.MatchString(line):
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "mutable default argument is shared across calls and can leak state",
				Severity: review.SeverityMedium, RuleID: "py-mutable-default-arg", Category: review.CategoryReliability,
			})
		case assertForAuthPatt.MatchString(line):
			issues = append(issues, review.Issue{
				Line: i + 1, Message: "assert used for an authorization check is stripped when Python runs with -O",
				Severity: review.SeverityHigh, RuleID: "py-assert-for-auth", Category: review.CategorySecurity,
			})
		}
	}

	if noHTTPSPattern.MatchString(src) && !httpsPattern.MatchString(src) {
		for i, line := range lines {
			if noHTTPSPattern.MatchString(line) {
				issues = append(issues, review.Issue{
					Line: i + 1, Message: "file references plain http:// endpoints and never https://",
					Severity: review.SeverityMedium, RuleID: "py-no-https", Category: review.CategorySecurity,
				})
				break
			}
		}
	}

	return issues
}
