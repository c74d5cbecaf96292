// Package vllm implements the ai.Provider contract against a
// self-hosted vLLM instance exposing the OpenAI-compatible completions
// endpoint.
package vllm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

func New(baseURL, model string, timeoutMs int) *Provider {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Provider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
	}
}

func (p *Provider) Name() string { return "vllm" }

type completionRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

func (p *Provider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(completionRequest{Model: p.model, Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshaling vllm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building vllm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling vllm: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vllm returned status %d", resp.StatusCode)
	}

	var out completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding vllm response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("vllm response had no choices")
	}
	return out.Choices[0].Text, nil
}
