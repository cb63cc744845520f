package resilience

import (
	"context"

	"github.com/wrenhold/soniclink/pkg/provider/synthesize"
)

// SynthesizeFallback implements [synthesize.Provider] with automatic failover
// across multiple synthesis backends. Only the initial stream setup is
// covered by failover; mid-stream errors are the caller's responsibility.
type SynthesizeFallback struct {
	group *FallbackGroup[synthesize.Provider]
}

// Compile-time interface assertion.
var _ synthesize.Provider = (*SynthesizeFallback)(nil)

// NewSynthesizeFallback creates a [SynthesizeFallback] with primary as the
// preferred backend.
func NewSynthesizeFallback(primary synthesize.Provider, primaryName string, cfg BreakerConfig) *SynthesizeFallback {
	return &SynthesizeFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional synthesis backend. Fallbacks should
// share the primary's output sample rate or the playback queue will need a
// restart to follow the switch.
func (f *SynthesizeFallback) AddFallback(name string, provider synthesize.Provider) {
	f.group.Add(name, provider)
}

// Synthesize opens an audio stream for text using the first healthy backend.
func (f *SynthesizeFallback) Synthesize(ctx context.Context, req synthesize.Request) (<-chan []byte, error) {
	return ExecuteWithResult(f.group, func(p synthesize.Provider) (<-chan []byte, error) {
		return p.Synthesize(ctx, req)
	})
}

// SampleRate reports the output sample rate of the primary backend.
func (f *SynthesizeFallback) SampleRate() int {
	return f.group.Primary().SampleRate()
}
