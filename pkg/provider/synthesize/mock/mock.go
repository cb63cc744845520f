// Package mock provides an in-memory [synthesize.Provider] for tests.
package mock

import (
	"context"
	"sync"

	"github.com/wrenhold/soniclink/pkg/provider/synthesize"
)

// Compile-time interface assertion.
var _ synthesize.Provider = (*Provider)(nil)

// Provider is a scriptable synthesis backend. Every request yields the
// configured chunks in order, or Err when set.
type Provider struct {
	// Chunks are the PCM chunks emitted per request.
	Chunks [][]byte

	// Err, when non-nil, is returned by Synthesize before any chunk.
	Err error

	// Rate is the reported sample rate. Defaults to 16000 via New.
	Rate int

	mu       sync.Mutex
	requests []synthesize.Request
}

// New creates a Provider that emits chunks at 16 kHz for every request.
func New(chunks ...[]byte) *Provider {
	return &Provider{Chunks: chunks, Rate: 16000}
}

// Synthesize implements [synthesize.Provider].
func (p *Provider) Synthesize(ctx context.Context, req synthesize.Request) (<-chan []byte, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if p.Err != nil {
		return nil, p.Err
	}

	out := make(chan []byte, len(p.Chunks))
	go func() {
		defer close(out)
		for _, chunk := range p.Chunks {
			select {
			case out <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// SampleRate implements [synthesize.Provider].
func (p *Provider) SampleRate() int { return p.Rate }

// Requests returns a copy of all requests seen so far.
func (p *Provider) Requests() []synthesize.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]synthesize.Request, len(p.requests))
	copy(out, p.requests)
	return out
}
