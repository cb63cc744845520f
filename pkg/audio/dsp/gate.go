package dsp

import (
	"log/slog"
	"math"

	"github.com/wrenhold/soniclink/pkg/audio"
)

// Compile-time interface assertion.
var _ Stage = (*NoiseGate)(nil)

const (
	// calibrationWindow is how much audio the gate listens to before it
	// starts attenuating, expressed in samples per second of input.
	calibrationSeconds = 2

	// thresholdFactor scales the measured noise floor into the gate
	// threshold.
	thresholdFactor = 1.5
)

// NoiseGate attenuates frames whose RMS energy falls below a learned
// threshold. During the first two seconds of a session it only measures: the
// running RMS of the incoming signal becomes the noise floor and the
// threshold is set to 1.5 × that floor. After calibration, sub-threshold
// frames are faded with a quadratic curve instead of hard-muted, which avoids
// audible clicking at the gate boundary; frames at or above the threshold
// pass unmodified.
type NoiseGate struct {
	sampleRate int

	// fixedThreshold, when > 0, skips calibration entirely.
	fixedThreshold float64

	threshold   float64
	calibrated  bool
	sumSquares  float64
	sampleCount int
}

// NewNoiseGate creates a noise gate for the given sample rate. A positive
// fixedThreshold (raw int16 RMS units) disables self-calibration.
func NewNoiseGate(sampleRate int, fixedThreshold float64) *NoiseGate {
	g := &NoiseGate{sampleRate: sampleRate, fixedThreshold: fixedThreshold}
	if fixedThreshold > 0 {
		g.threshold = fixedThreshold
		g.calibrated = true
	}
	return g
}

// Name implements [Stage].
func (g *NoiseGate) Name() string { return "noisegate" }

// Threshold returns the active gate threshold in raw int16 RMS units, or zero
// while still calibrating.
func (g *NoiseGate) Threshold() float64 {
	if !g.calibrated {
		return 0
	}
	return g.threshold
}

// Process implements [Stage]. Frames seen during the calibration window pass
// through unmodified while contributing to the floor estimate.
func (g *NoiseGate) Process(pcm []byte) []byte {
	if !g.calibrated {
		g.observe(pcm)
		return pcm
	}

	rms := audio.RMS(pcm)
	if rms >= g.threshold || g.threshold == 0 {
		return pcm
	}

	// Quadratic fade: attenuation deepens smoothly as the frame energy drops
	// further below the threshold.
	ratio := rms / g.threshold
	gain := ratio * ratio

	samples := len(pcm) / 2
	for i := 0; i < samples; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		out := clampSample(s * gain)
		pcm[i*2] = byte(out)
		pcm[i*2+1] = byte(out >> 8)
	}
	return pcm
}

// observe accumulates calibration statistics and fixes the threshold once the
// window is complete.
func (g *NoiseGate) observe(pcm []byte) {
	samples := len(pcm) / 2
	for i := 0; i < samples; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		g.sumSquares += s * s
	}
	g.sampleCount += samples

	if g.sampleCount >= g.sampleRate*calibrationSeconds {
		floor := 0.0
		if g.sampleCount > 0 {
			floor = math.Sqrt(g.sumSquares / float64(g.sampleCount))
		}
		g.threshold = floor * thresholdFactor
		g.calibrated = true
		slog.Debug("noise gate calibrated",
			"floor", floor,
			"threshold", g.threshold,
		)
	}
}

// Reset implements [Stage]. A gate with a fixed threshold stays calibrated.
func (g *NoiseGate) Reset() {
	g.sumSquares = 0
	g.sampleCount = 0
	if g.fixedThreshold > 0 {
		g.threshold = g.fixedThreshold
		g.calibrated = true
		return
	}
	g.threshold = 0
	g.calibrated = false
}
