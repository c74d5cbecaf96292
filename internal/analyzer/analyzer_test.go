package analyzer

import (
	"context"
	"errors"
	"testing"

	"codereviewsvc/pkg/review"
)

func TestAnalyzeForceFailRaisesAnalysisError(t *testing.T) {
	a := New(Config{AllowForceFail: true}, nil)
	_, err := a.Analyze(context.Background(), []byte("x"), "force_fail.js")
	if err == nil {
		t.Fatal("expected an error")
	}
	var ae *AnalysisError
	if !errors.As(err, &ae) {
		t.Fatalf("expected *AnalysisError, got %T", err)
	}
	if ae.Kind != ForcedFailure {
		t.Errorf("expected ForcedFailure, got %s", ae.Kind)
	}
}

func TestAnalyzeForceFailRequiresBothConfigAndFileName(t *testing.T) {
	a := New(Config{AllowForceFail: false}, nil)
	_, err := a.Analyze(context.Background(), []byte("x"), "force_fail.js")
	if err != nil {
		t.Fatalf("did not expect force-fail without AllowForceFail: %v", err)
	}
}

func TestAnalyzeCleanFileProducesAGrade(t *testing.T) {
	a := New(Config{}, nil)
	report, err := a.Analyze(context.Background(), []byte("const x = 1;\nconsole.log('hi');\n"), "clean.ts")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.QualityGrade != "A" && report.QualityGrade != "B" {
		t.Errorf("expected a clean file to score well, got grade %s (issues: %+v)", report.QualityGrade, report.TotalIssues())
	}
}

func TestAnalyzeRoutesSecurityIssueIntoSecurityBucket(t *testing.T) {
	a := New(Config{}, nil)
	src := "exec(`rm -rf ${userInput}`);"
	report, err := a.Analyze(context.Background(), []byte(src), "run.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Security) == 0 {
		t.Fatal("expected at least one security issue")
	}
}

func TestAnalyzeMetricsLinesAnalyzed(t *testing.T) {
	a := New(Config{}, nil)
	report, err := a.Analyze(context.Background(), []byte("a\nb\nc"), "f.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Metrics.LinesAnalyzed != 3 {
		t.Errorf("expected 3 lines analyzed, got %d", report.Metrics.LinesAnalyzed)
	}
}

func TestAnalyzeWithAIDisabledSkipsProvider(t *testing.T) {
	calls := 0
	a := New(Config{EnableAI: false}, fakeAsyncDetector{onCall: func() { calls++ }})
	_, err := a.Analyze(context.Background(), []byte("x"), "f.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 0 {
		t.Fatal("expected AI detector not to be called when disabled")
	}
}

type fakeAsyncDetector struct {
	onCall func()
}

func (f fakeAsyncDetector) Name() string { return "fake" }

func (f fakeAsyncDetector) DetectAsync(ctx context.Context, content []byte, fileName string, lineCount int) []review.AISuggestion {
	if f.onCall != nil {
		f.onCall()
	}
	return nil
}

func TestBucketForRoutingTable(t *testing.T) {
	cases := map[review.IssueCategory]string{
		review.CategoryConcurrency:    "security",
		review.CategoryReliability:    "security",
		review.CategoryMemoryLeak:     "performance",
		review.CategoryObservability:  "performance",
		review.CategoryTestability:    "performance",
		review.CategoryDesign:         "style",
		review.CategorySecurity:       "security",
		review.CategoryPerformance:    "performance",
		review.CategoryStyle:          "style",
	}
	for cat, want := range cases {
		if got := bucketFor(cat); got != want {
			t.Errorf("bucketFor(%s) = %s, want %s", cat, got, want)
		}
	}
}

func TestQualityGradeBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{100, "A"}, {90, "A"}, {89.9, "B"}, {80, "B"}, {79.9, "C"},
		{70, "C"}, {69.9, "D"}, {60, "D"}, {59.9, "F"}, {0, "F"},
	}
	for _, c := range cases {
		if got := qualityGrade(c.score); got != c.want {
			t.Errorf("qualityGrade(%v) = %s, want %s", c.score, got, c.want)
		}
	}
}
