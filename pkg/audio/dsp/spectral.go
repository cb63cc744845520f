package dsp

import (
	"math"
	"math/cmplx"
)

// Compile-time interface assertion.
var _ Stage = (*SpectralSubtractor)(nil)

const (
	// overSubtraction is the spectral subtraction aggressiveness factor.
	overSubtraction = 1.8

	// spectralFloor keeps a small fraction of the original magnitude so the
	// residual does not sound hollow ("musical noise").
	spectralFloor = 0.02
)

// SpectralSubtractor removes stationary background noise in the frequency
// domain. During the same two-second window the noise gate uses for
// calibration, it averages the magnitude spectrum of the incoming frames into
// a noise estimate. Afterwards each frame is transformed, the scaled noise
// magnitude is subtracted per bin, the result is floored at a fraction of the
// original magnitude, and the frame is transformed back.
//
// This is the most expensive stage in the chain and is disabled by default.
type SpectralSubtractor struct {
	sampleRate int

	noiseMag   []float64
	noiseCount int
	calibrated bool
	observed   int
}

// NewSpectralSubtractor creates a spectral subtraction stage for the given
// sample rate.
func NewSpectralSubtractor(sampleRate int) *SpectralSubtractor {
	return &SpectralSubtractor{sampleRate: sampleRate}
}

// Name implements [Stage].
func (s *SpectralSubtractor) Name() string { return "spectral" }

// Process implements [Stage]. Frames seen during the calibration window pass
// through unmodified while contributing to the noise spectrum estimate.
func (s *SpectralSubtractor) Process(pcm []byte) []byte {
	samples := len(pcm) / 2
	if samples == 0 {
		return pcm
	}

	n := nextPow2(samples)
	buf := make([]complex128, n)
	for i := 0; i < samples; i++ {
		buf[i] = complex(float64(int16(pcm[i*2])|int16(pcm[i*2+1])<<8), 0)
	}
	fft(buf, false)

	if !s.calibrated {
		s.learn(buf, samples)
		return pcm
	}
	if len(s.noiseMag) != len(buf) {
		// Frame size changed since calibration; pass through rather than
		// subtract a mismatched spectrum.
		return pcm
	}

	for i, c := range buf {
		mag := cmplx.Abs(c)
		phase := cmplx.Phase(c)
		cleaned := mag - overSubtraction*s.noiseMag[i]
		if floor := spectralFloor * mag; cleaned < floor {
			cleaned = floor
		}
		buf[i] = cmplx.Rect(cleaned, phase)
	}
	fft(buf, true)

	for i := 0; i < samples; i++ {
		out := clampSample(real(buf[i]))
		pcm[i*2] = byte(out)
		pcm[i*2+1] = byte(out >> 8)
	}
	return pcm
}

// learn folds one frame's magnitude spectrum into the running noise average.
// samples is the frame's real sample count, before zero-padding to the FFT
// length, so the calibration window tracks actual audio time.
func (s *SpectralSubtractor) learn(buf []complex128, samples int) {
	if len(s.noiseMag) != len(buf) {
		s.noiseMag = make([]float64, len(buf))
		s.noiseCount = 0
	}
	s.noiseCount++
	inv := 1 / float64(s.noiseCount)
	for i, c := range buf {
		s.noiseMag[i] += (cmplx.Abs(c) - s.noiseMag[i]) * inv
	}

	s.observed += samples
	if s.observed >= s.sampleRate*calibrationSeconds {
		s.calibrated = true
	}
}

// Reset implements [Stage].
func (s *SpectralSubtractor) Reset() {
	s.noiseMag = nil
	s.noiseCount = 0
	s.calibrated = false
	s.observed = 0
}

// nextPow2 returns the smallest power of two ≥ n.
func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// fft computes an in-place radix-2 Cooley-Tukey transform. len(buf) must be a
// power of two. When inverse is true the result is scaled by 1/N so that a
// forward/inverse round trip reproduces the input.
func fft(buf []complex128, inverse bool) {
	n := len(buf)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}

	sign := -1.0
	if inverse {
		sign = 1.0
	}
	for length := 2; length <= n; length <<= 1 {
		angle := sign * 2 * math.Pi / float64(length)
		wl := cmplx.Rect(1, angle)
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			half := length / 2
			for k := 0; k < half; k++ {
				u := buf[start+k]
				v := buf[start+k+half] * w
				buf[start+k] = u + v
				buf[start+k+half] = u - v
				w *= wl
			}
		}
	}

	if inverse {
		scale := complex(1/float64(n), 0)
		for i := range buf {
			buf[i] *= scale
		}
	}
}
