// Package mock is a test double for ai.Provider, used by detect/ai's
// tests in place of a real network call.
package mock

import "context"

type Provider struct {
	Response string
	Err      error
	Calls    int
}

func (p *Provider) Name() string { return "mock" }

func (p *Provider) Complete(_ context.Context, _ string) (string, error) {
	p.Calls++
	if p.Err != nil {
		return "", p.Err
	}
	return p.Response, nil
}
