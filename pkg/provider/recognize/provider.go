// Package recognize defines the Provider interface for speech-recognition
// backends.
//
// A recognition provider accepts one finalized utterance of raw PCM audio and
// returns its transcript. Unlike a streaming transcription session, the unit
// of work here is a complete utterance: the segmentation layer has already
// decided where speech starts and ends, so providers only need a
// request/response call. Implementations must be safe for concurrent use;
// multiple utterances may be in flight at once.
package recognize

import "context"

// Request carries one utterance to be transcribed.
type Request struct {
	// PCM is little-endian mono 16-bit PCM audio.
	PCM []byte

	// SampleRate is the audio sample rate in Hz. Common value: 16000.
	SampleRate int

	// Language is the BCP-47 language tag hint for recognition (e.g. "en-US",
	// "de-DE"). An empty string lets the provider auto-detect, if supported.
	Language string
}

// Result is the transcript of one utterance.
type Result struct {
	// Text is the transcribed speech content.
	Text string

	// Language is the language the provider detected or was told to use.
	Language string
}

// Provider is the abstraction over any speech-recognition backend.
type Provider interface {
	// Recognize transcribes a single utterance. It blocks until the backend
	// responds or ctx is done.
	Recognize(ctx context.Context, req Request) (Result, error)
}
