// Package synthesize defines the Provider interface for text-to-speech
// backends.
//
// A synthesis provider turns one piece of response text into a stream of raw
// PCM chunks. Chunks arrive as the backend produces them so playback can start
// before the full clip exists; concatenated in order they form the complete
// clip. Implementations must be safe for concurrent use.
package synthesize

import "context"

// Request describes one synthesis job.
type Request struct {
	// Text is the content to speak.
	Text string

	// Voice identifies the provider-specific voice to use. An empty string
	// selects the provider's default voice.
	Voice string

	// Language is the BCP-47 language tag of the text. Providers that infer
	// the language from the text may ignore it.
	Language string
}

// Provider is the abstraction over any text-to-speech backend.
type Provider interface {
	// Synthesize starts a synthesis job and returns a channel of raw PCM16
	// mono chunks at [Provider.SampleRate]. The channel is closed when the
	// clip is complete or ctx is cancelled. A synthesis failure after the
	// stream has started surfaces as early channel closure.
	Synthesize(ctx context.Context, req Request) (<-chan []byte, error)

	// SampleRate is the sample rate in Hz of the PCM emitted by Synthesize.
	SampleRate() int
}
