// Package pattern implements the generic, line-oriented detector
// stage: precompiled regex rules scanned once per line, plus a
// loop-depth tracker shared by every loop-gated rule.
package pattern

import (
	"regexp"
	"strings"

	"codereviewsvc/pkg/review"
)

var loopHeadPattern = regexp.MustCompile(`\b(for|while)\s*\(|\.(forEach|map|filter|reduce)\s*\(`)
var whileTruePattern = regexp.MustCompile(`\bwhile\s*\(\s*true\s*\)`)
var breakPattern = regexp.MustCompile(`\bbreak\b`)

type loopFrame struct {
	exitDepth   int // cumulative brace depth at which this loop's body closes
	isWhileTrue bool
	hasBreak    bool
	line        int
}

// LoopScan is the shared loop-depth view every loop-gated rule reads
// from: per-line loop depth, plus any infinite-loop issues discovered
// along the way.
type LoopScan struct {
	DepthAtLine []int
	Issues      []review.Issue
}

// ScanLoops walks lines once, maintaining a net-brace-balance stack of
// loop frames. A loop head is recognized by a for/while keyword or a
// method-chain iterator (.forEach/.map/.filter/.reduce); the loop is
// considered exited once cumulative brace depth falls back below the
// depth recorded when its body was entered. A while(true) loop that
// closes without ever containing a break line is reported as
// infinite-loop at the loop's head line.
func ScanLoops(lines []string) LoopScan {
	var stack []loopFrame
	depth := 0
	result := LoopScan{DepthAtLine: make([]int, len(lines))}

	for i, line := range lines {
		depth += strings.Count(line, "{") - strings.Count(line, "}")

		if loopHeadPattern.MatchString(line) {
			stack = append(stack, loopFrame{
				exitDepth:   depth,
				isWhileTrue: whileTruePattern.MatchString(line),
				line:        i + 1,
			})
		} else if breakPattern.MatchString(line) && len(stack) > 0 {
			stack[len(stack)-1].hasBreak = true
		}

		result.DepthAtLine[i] = len(stack)

		for len(stack) > 0 && depth < stack[len(stack)-1].exitDepth {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.isWhileTrue && !top.hasBreak {
				result.Issues = append(result.Issues, review.Issue{
					Line:     top.line,
					Message:  "while(true) loop has no break and will never terminate",
					Severity: review.SeverityCritical,
					RuleID:   "infinite-loop",
					Category: review.CategoryReliability,
				})
			}
		}
	}
	return result
}
