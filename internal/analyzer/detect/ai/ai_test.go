package ai

import (
	"context"
	"errors"
	"testing"

	"codereviewsvc/internal/ai/mock"
)

func TestDetectAsyncDisabledReturnsNil(t *testing.T) {
	m := &mock.Provider{Response: `{"suggestions":[]}`}
	d := New(m, false, 1, 1000)
	out := d.DetectAsync(context.Background(), []byte("x"), "f.js", 10)
	if out != nil {
		t.Fatalf("expected nil when disabled, got %v", out)
	}
	if m.Calls != 0 {
		t.Fatal("provider should not be called when disabled")
	}
}

func TestDetectAsyncOutsideLineBoundsSkipsProvider(t *testing.T) {
	m := &mock.Provider{Response: `{"suggestions":[]}`}
	d := New(m, true, 10, 20)
	out := d.DetectAsync(context.Background(), []byte("x"), "f.js", 5)
	if out != nil {
		t.Fatalf("expected nil outside line bounds, got %v", out)
	}
	if m.Calls != 0 {
		t.Fatal("provider should not be called outside line bounds")
	}
}

func TestDetectAsyncDropsInvalidSuggestions(t *testing.T) {
	m := &mock.Provider{Response: `{"suggestions":[
		{"line":1,"severity":"high","category":"security","issue_title":"x","explanation":"y","suggested_fix":"z"},
		{"line":0,"severity":"high","category":"security","issue_title":"bad-line","explanation":"y","suggested_fix":"z"},
		{"line":2,"severity":"unknown","category":"security","issue_title":"bad-severity","explanation":"y","suggested_fix":"z"}
	]}`}
	d := New(m, true, 1, 1000)
	out := d.DetectAsync(context.Background(), []byte("x\ny"), "f.js", 2)
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 valid suggestion, got %d: %v", len(out), out)
	}
	if out[0].Title != "x" {
		t.Errorf("unexpected surviving suggestion: %+v", out[0])
	}
}

func TestDetectAsyncProviderErrorDegradesToNil(t *testing.T) {
	m := &mock.Provider{Err: errors.New("network down")}
	d := New(m, true, 1, 1000)
	out := d.DetectAsync(context.Background(), []byte("x"), "f.js", 1)
	if out != nil {
		t.Fatalf("expected nil on provider error, got %v", out)
	}
}

func TestDetectAsyncMalformedJSONDegradesToNil(t *testing.T) {
	m := &mock.Provider{Response: "not json"}
	d := New(m, true, 1, 1000)
	out := d.DetectAsync(context.Background(), []byte("x"), "f.js", 1)
	if out != nil {
		t.Fatalf("expected nil on malformed payload, got %v", out)
	}
}
