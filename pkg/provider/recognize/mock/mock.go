// Package mock provides an in-memory [recognize.Provider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/wrenhold/soniclink/pkg/provider/recognize"
)

// Compile-time interface assertion.
var _ recognize.Provider = (*Provider)(nil)

// Provider is a scriptable recognition backend. It records every request and
// returns the configured text, or Err when set.
type Provider struct {
	// Text is returned as the transcript of every request.
	Text string

	// Err, when non-nil, is returned by Recognize.
	Err error

	mu       sync.Mutex
	requests []recognize.Request
}

// New creates a Provider that transcribes everything as text.
func New(text string) *Provider {
	return &Provider{Text: text}
}

// Recognize implements [recognize.Provider].
func (p *Provider) Recognize(ctx context.Context, req recognize.Request) (recognize.Result, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.Err != nil {
		return recognize.Result{}, p.Err
	}
	if err := ctx.Err(); err != nil {
		return recognize.Result{}, err
	}
	return recognize.Result{Text: p.Text, Language: req.Language}, nil
}

// Requests returns a copy of all requests seen so far.
func (p *Provider) Requests() []recognize.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]recognize.Request, len(p.requests))
	copy(out, p.requests)
	return out
}
