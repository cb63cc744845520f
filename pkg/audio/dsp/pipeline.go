// Package dsp implements the in-line noise-filtering chain applied to every
// captured frame before any consumer sees the audio.
//
// The chain has a fixed stage order — high-pass, low-pass, noise gate,
// spectral subtraction — and each stage is individually toggleable. Disabling
// a stage turns it into a pass-through; it never changes the relative order
// of the remaining stages. Every stage mutates only its own scalar state, and
// a [Chain] is owned by exactly one capture session, so no locking is needed
// on the hot path. Filtering must complete well under one frame period
// (sub-5 ms) to avoid backpressure on the hardware buffer.
package dsp

import "github.com/wrenhold/soniclink/pkg/audio"

// Stage is a single filter in the chain. Process consumes one frame of mono
// PCM16 bytes and returns the filtered frame; it may mutate and return the
// input slice. Implementations keep their own state between calls and are not
// safe for concurrent use.
type Stage interface {
	// Name identifies the stage in logs.
	Name() string

	// Process filters a single frame of little-endian mono PCM16.
	Process(pcm []byte) []byte

	// Reset clears accumulated filter state (previous samples, learned noise
	// floor) so the stage behaves as freshly constructed.
	Reset()
}

// Config selects which stages are active and tunes their parameters.
// The zero value disables everything; use [DefaultConfig] for the standard
// voice-cleanup chain.
type Config struct {
	// HighPass removes low-frequency rumble (wind, handling noise) below
	// HighPassCutoffHz.
	HighPass bool

	// LowPass removes high-frequency hiss above LowPassCutoffHz.
	LowPass bool

	// NoiseGate attenuates frames whose RMS falls below a threshold learned
	// during the calibration window.
	NoiseGate bool

	// SpectralSubtraction enables frequency-domain noise estimation and
	// subtraction. Computationally the most expensive stage; off by default.
	SpectralSubtraction bool

	// HighPassCutoffHz is the high-pass corner frequency. Default 80.
	HighPassCutoffHz float64

	// LowPassCutoffHz is the low-pass corner frequency. Default 8000.
	LowPassCutoffHz float64

	// GateThreshold overrides the learned noise-gate threshold when > 0.
	// When zero, the gate calibrates itself from the first two seconds of
	// input and uses 1.5 × the measured floor.
	GateThreshold float64
}

// DefaultConfig returns the standard chain configuration: high-pass, low-pass
// and noise gate enabled, spectral subtraction off.
func DefaultConfig() Config {
	return Config{
		HighPass:         true,
		LowPass:          true,
		NoiseGate:        true,
		HighPassCutoffHz: DefaultHighPassCutoff,
		LowPassCutoffHz:  DefaultLowPassCutoff,
	}
}

// Chain applies the configured stages to each frame in fixed order.
// Not safe for concurrent use; create one Chain per capture session.
type Chain struct {
	stages []chainEntry
}

type chainEntry struct {
	stage   Stage
	enabled bool
}

// NewChain builds the filter chain for the given sample rate. All four stages
// are always constructed so that a disabled stage can be observed in
// [Chain.Stages]; only enabled stages process audio.
func NewChain(cfg Config, sampleRate int) *Chain {
	hpCutoff := cfg.HighPassCutoffHz
	if hpCutoff <= 0 {
		hpCutoff = DefaultHighPassCutoff
	}
	lpCutoff := cfg.LowPassCutoffHz
	if lpCutoff <= 0 {
		lpCutoff = DefaultLowPassCutoff
	}

	return &Chain{
		stages: []chainEntry{
			{NewHighPass(sampleRate, hpCutoff), cfg.HighPass},
			{NewLowPass(sampleRate, lpCutoff), cfg.LowPass},
			{NewNoiseGate(sampleRate, cfg.GateThreshold), cfg.NoiseGate},
			{NewSpectralSubtractor(sampleRate), cfg.SpectralSubtraction},
		},
	}
}

// Process threads pcm through every enabled stage in order and returns the
// cleaned frame. The input slice may be mutated.
func (c *Chain) Process(pcm []byte) []byte {
	for _, e := range c.stages {
		if !e.enabled {
			continue
		}
		pcm = e.stage.Process(pcm)
	}
	return pcm
}

// ProcessFrame filters frame.Data in place and returns the frame.
func (c *Chain) ProcessFrame(frame audio.Frame) audio.Frame {
	frame.Data = c.Process(frame.Data)
	return frame
}

// Reset clears the state of every stage, enabled or not.
func (c *Chain) Reset() {
	for _, e := range c.stages {
		e.stage.Reset()
	}
}

// Stages returns the names of the enabled stages in processing order.
func (c *Chain) Stages() []string {
	var names []string
	for _, e := range c.stages {
		if e.enabled {
			names = append(names, e.stage.Name())
		}
	}
	return names
}
