// Package ai abstracts the remote AI capability the AI detector calls
// into: one request, one timeout, one JSON-or-error response.
package ai

import "context"

// Provider is the uniform shape every vendor integration implements.
// Complete sends a single prompt and returns the raw model response
// text; the caller (detect/ai) is responsible for parsing and
// validating the JSON payload it expects to find inside.
type Provider interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config selects and parameterizes a Provider. Only the fields the
// selected Provider needs are read; the rest are ignored.
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	TimeoutMs int
}
