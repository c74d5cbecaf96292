// Package ai implements the AI detector: stage 7, optional, and the
// one detector stage that is allowed to fail without failing the
// surrounding analysis.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	aiprovider "codereviewsvc/internal/ai"
	"codereviewsvc/pkg/review"
)

type Detector struct {
	provider aiprovider.Provider
	enabled  bool
	minLines int
	maxLines int
}

func New(provider aiprovider.Provider, enabled bool, minLines, maxLines int) *Detector {
	return &Detector{provider: provider, enabled: enabled, minLines: minLines, maxLines: maxLines}
}

func (d *Detector) Name() string { return "ai" }

// DetectAsync makes one request to the configured provider and
// returns schema-validated suggestions. Any failure — disabled
// config, line-count gate, provider error, malformed JSON, or an
// individual suggestion failing validation — degrades to an empty or
// partial list rather than propagating an error.
func (d *Detector) DetectAsync(ctx context.Context, content []byte, fileName string, lineCount int) []review.AISuggestion {
	if !d.enabled || d.provider == nil {
		return nil
	}
	if lineCount < d.minLines || lineCount > d.maxLines {
		return nil
	}

	raw, err := d.provider.Complete(ctx, buildPrompt(fileName, content))
	if err != nil {
		slog.Warn("ai detector request failed, degrading to no suggestions", "file", fileName, "error", err)
		return nil
	}

	suggestions, err := parseSuggestions(raw)
	if err != nil {
		slog.Warn("ai detector response was structurally invalid, degrading to no suggestions", "file", fileName, "error", err)
		return nil
	}
	return suggestions
}

func buildPrompt(fileName string, content []byte) string {
	return fmt.Sprintf(`You are reviewing the file %q. Respond with ONLY a JSON object of the
shape {"suggestions": [{"line": int, "severity": "critical|high|medium|low",
"category": "security|performance|logic|style|reliability", "issue_title": string,
"explanation": string, "suggested_fix": string}]}.

File content:
%s`, fileName, content)
}

type suggestionPayload struct {
	Suggestions []review.AISuggestion `json:"suggestions"`
}

// parseSuggestions extracts and schema-validates the suggestions
// array; invalid entries are dropped with a warning rather than
// failing the whole parse.
func parseSuggestions(raw string) ([]review.AISuggestion, error) {
	var payload suggestionPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("decoding ai payload: %w", err)
	}

	valid := make([]review.AISuggestion, 0, len(payload.Suggestions))
	for _, s := range payload.Suggestions {
		if !s.Valid() {
			slog.Warn("dropping ai suggestion that failed schema validation", "title", s.Title)
			continue
		}
		valid = append(valid, s)
	}
	return valid, nil
}
