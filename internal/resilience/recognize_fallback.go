package resilience

import (
	"context"

	"github.com/wrenhold/soniclink/pkg/provider/recognize"
)

// RecognizeFallback implements [recognize.Provider] with automatic failover
// across multiple recognition backends. Each backend has its own breaker.
type RecognizeFallback struct {
	group *FallbackGroup[recognize.Provider]
}

// Compile-time interface assertion.
var _ recognize.Provider = (*RecognizeFallback)(nil)

// NewRecognizeFallback creates a [RecognizeFallback] with primary as the
// preferred backend.
func NewRecognizeFallback(primary recognize.Provider, primaryName string, cfg BreakerConfig) *RecognizeFallback {
	return &RecognizeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition backend.
func (f *RecognizeFallback) AddFallback(name string, provider recognize.Provider) {
	f.group.Add(name, provider)
}

// Recognize transcribes the utterance using the first healthy backend.
func (f *RecognizeFallback) Recognize(ctx context.Context, req recognize.Request) (recognize.Result, error) {
	return ExecuteWithResult(f.group, func(p recognize.Provider) (recognize.Result, error) {
		return p.Recognize(ctx, req)
	})
}
