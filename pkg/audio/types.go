// Package audio defines the frame type and PCM helpers shared by every stage
// of the soniclink pipeline.
//
// All audio in the pipeline is little-endian 16-bit signed PCM, mono. A
// [Frame] is the atomic unit of transport: captured from the SCO input
// device, cleaned by the DSP chain, accumulated by the voice segmenter, and
// finally handed to the recognition backend. Frames carry no identity beyond
// their position in the stream.
package audio

import "time"

// Frame is a single fixed-size chunk of mono PCM16 audio flowing through the
// capture pipeline.
type Frame struct {
	// Data is little-endian int16 PCM. Always an even number of bytes.
	Data []byte

	// SampleRate in Hz (8000 or 16000 depending on the SCO codec).
	SampleRate int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the playback duration of the frame's PCM payload.
func (f Frame) Duration() time.Duration {
	return PCMDuration(len(f.Data), f.SampleRate)
}

// PCMDuration returns the playback duration of n bytes of mono PCM16 at the
// given sample rate. Returns zero for a non-positive rate.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / 2
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
