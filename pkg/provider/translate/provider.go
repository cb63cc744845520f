// Package translate defines the Provider interface for text translation
// backends used between recognition and synthesis.
package translate

import "context"

// Request describes one translation job.
type Request struct {
	// Text is the transcript to translate.
	Text string

	// SourceLanguage is the BCP-47 tag of the input text. Empty means the
	// backend should detect it.
	SourceLanguage string

	// TargetLanguage is the BCP-47 tag to translate into. Required.
	TargetLanguage string
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate returns the text rendered in the target language. It blocks
	// until the backend responds or ctx is done.
	Translate(ctx context.Context, req Request) (string, error)
}
