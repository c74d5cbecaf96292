// Package analyzer implements the multi-stage static analysis
// pipeline: a fixed, ordered list of detectors composed behind one
// pure entry point.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"codereviewsvc/pkg/review"
)

// Config parameterizes one Analyzer instance; it is read once at
// construction and never mutated.
type Config struct {
	EnableAI         bool
	AIMinLines       int
	AIMaxLines       int
	AIRequestTimeout time.Duration
	AllowForceFail   bool
}

// Analyzer composes the fixed detector registry with the optional AI
// detector and runs them over one file at a time.
type Analyzer struct {
	detectors  []Detector
	aiDetector AsyncDetector
	cfg        Config
}

// New constructs an Analyzer. aiDetector may be nil, in which case no
// AI suggestions are ever produced regardless of cfg.EnableAI.
func New(cfg Config, aiDetector AsyncDetector) *Analyzer {
	return &Analyzer{
		detectors:  defaultDetectors(),
		aiDetector: aiDetector,
		cfg:        cfg,
	}
}

const forceFailFileName = "force_fail.js"

// Analyze runs every detector stage in fixed order and assembles the
// Report. It is the only non-AI failure path: AllowForceFail plus the
// magic file name force_fail.js deterministically raises
// ForcedFailure, a testing escape hatch for exercising the Worker's
// retry/DLQ path end to end.
func (a *Analyzer) Analyze(ctx context.Context, content []byte, fileName string) (*review.Report, error) {
	start := time.Now()

	if a.cfg.AllowForceFail && fileName == forceFailFileName {
		return nil, &AnalysisError{Kind: ForcedFailure, Cause: fmt.Errorf("forced failure requested for %s", fileName)}
	}

	language := DetectLanguage(fileName, content)
	lineCount := strings.Count(string(content), "\n") + 1

	report := &review.Report{FileName: fileName}
	for _, d := range a.detectors {
		for _, issue := range d.Detect(content, fileName, language) {
			report.AppendToBucket(bucketFor(issue.Category), []review.Issue{issue})
		}
	}

	report.AISuggestions = a.runAIDetector(ctx, content, fileName, lineCount)

	elapsed := time.Since(start)
	report.Metrics = review.Metrics{
		LinesAnalyzed:    lineCount,
		IssuesFound:      report.TotalIssues(),
		ProcessingTimeMs: elapsed.Milliseconds(),
		ReviewTimeText:   elapsed.Round(time.Millisecond).String(),
	}
	report.QualityGrade = qualityGrade(qualityScore(report))

	return report, nil
}

// runAIDetector isolates the one detector stage allowed to fail
// silently. It never returns an error; a nil or empty result simply
// means no suggestions are attached to the Report.
func (a *Analyzer) runAIDetector(ctx context.Context, content []byte, fileName string, lineCount int) []review.AISuggestion {
	if !a.cfg.EnableAI || a.aiDetector == nil {
		return nil
	}

	aiCtx := ctx
	if a.cfg.AIRequestTimeout > 0 {
		var cancel context.CancelFunc
		aiCtx, cancel = context.WithTimeout(ctx, a.cfg.AIRequestTimeout)
		defer cancel()
	}
	return a.aiDetector.DetectAsync(aiCtx, content, fileName, lineCount)
}
