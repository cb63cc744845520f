package dsp

import "math"

const (
	// DefaultHighPassCutoff removes rumble below typical voice fundamentals.
	DefaultHighPassCutoff = 80.0

	// DefaultLowPassCutoff removes hiss above the useful voice band.
	DefaultLowPassCutoff = 8000.0
)

// Compile-time interface assertions.
var (
	_ Stage = (*HighPass)(nil)
	_ Stage = (*LowPass)(nil)
)

// HighPass is a first-order IIR high-pass filter:
//
//	y[n] = a * (y[n-1] + x[n] - x[n-1])
//
// with a = rc / (rc + dt), rc = 1/(2π·cutoff). It keeps one previous
// input/output pair of state.
type HighPass struct {
	alpha   float64
	prevIn  float64
	prevOut float64
	primed  bool
}

// NewHighPass creates a high-pass stage for the given sample rate and cutoff
// frequency in Hz.
func NewHighPass(sampleRate int, cutoffHz float64) *HighPass {
	return &HighPass{alpha: highPassAlpha(sampleRate, cutoffHz)}
}

func highPassAlpha(sampleRate int, cutoffHz float64) float64 {
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(sampleRate)
	return rc / (rc + dt)
}

// Name implements [Stage].
func (h *HighPass) Name() string { return "highpass" }

// Process implements [Stage]. Filters the frame in place.
func (h *HighPass) Process(pcm []byte) []byte {
	samples := len(pcm) / 2
	for i := 0; i < samples; i++ {
		x := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		if !h.primed {
			// First sample of the session: start transparent to avoid a
			// step transient.
			h.prevIn, h.prevOut = x, 0
			h.primed = true
		}
		y := h.alpha * (h.prevOut + x - h.prevIn)
		h.prevIn = x
		h.prevOut = y
		s := clampSample(y)
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return pcm
}

// Reset implements [Stage].
func (h *HighPass) Reset() {
	h.prevIn, h.prevOut, h.primed = 0, 0, false
}

// LowPass is a first-order IIR low-pass filter:
//
//	y[n] = y[n-1] + a * (x[n] - y[n-1])
//
// with a = dt / (rc + dt), rc = 1/(2π·cutoff).
type LowPass struct {
	alpha   float64
	prevOut float64
}

// NewLowPass creates a low-pass stage for the given sample rate and cutoff
// frequency in Hz.
func NewLowPass(sampleRate int, cutoffHz float64) *LowPass {
	rc := 1 / (2 * math.Pi * cutoffHz)
	dt := 1 / float64(sampleRate)
	return &LowPass{alpha: dt / (rc + dt)}
}

// Name implements [Stage].
func (l *LowPass) Name() string { return "lowpass" }

// Process implements [Stage]. Filters the frame in place.
func (l *LowPass) Process(pcm []byte) []byte {
	samples := len(pcm) / 2
	for i := 0; i < samples; i++ {
		x := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		l.prevOut += l.alpha * (x - l.prevOut)
		s := clampSample(l.prevOut)
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return pcm
}

// Reset implements [Stage].
func (l *LowPass) Reset() { l.prevOut = 0 }

// clampSample hard-clips a filtered float sample to the int16 range.
func clampSample(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
