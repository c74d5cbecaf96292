package analyzer

import (
	"context"

	"codereviewsvc/pkg/review"
)

// Detector is the uniform synchronous detector shape: a pure function
// over file content and name, producing a list of issues. New
// detectors are added by registering them in a fixed ordered list
// rather than through inheritance.
type Detector interface {
	Name() string
	Detect(content []byte, fileName string, lang Language) []review.Issue
}

// AsyncDetector is the one asynchronous variant, used by the AI
// detector, which must never fail the surrounding analysis.
type AsyncDetector interface {
	Name() string
	DetectAsync(ctx context.Context, content []byte, fileName string, lineCount int) []review.AISuggestion
}

// DetectorFunc adapts a plain function to the Detector interface.
type DetectorFunc struct {
	DetectorName string
	Fn           func(content []byte, fileName string, lang Language) []review.Issue
}

func (d DetectorFunc) Name() string { return d.DetectorName }

func (d DetectorFunc) Detect(content []byte, fileName string, lang Language) []review.Issue {
	return d.Fn(content, fileName, lang)
}
