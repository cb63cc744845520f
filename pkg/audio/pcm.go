package audio

import "math"

// BytesToInt16 converts little-endian bytes to a slice of int16 PCM samples.
// A trailing odd byte is ignored.
func BytesToInt16(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// Int16ToBytes converts a slice of int16 PCM samples to little-endian bytes.
func Int16ToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// ClampInt16 hard-clips v to the int16 range. Values beyond the range are
// pinned to the nearest bound rather than wrapped.
func ClampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// RMS computes the root-mean-square amplitude of little-endian PCM16 data in
// raw int16 units. Returns zero for empty input.
func RMS(pcm []byte) float64 {
	samples := len(pcm) / 2
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < samples; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(samples))
}

// ApplyGain multiplies every sample in pcm by gain in place, hard-clipping to
// the int16 range. This is the single place in the pipeline where integer
// overflow must be defended against. A gain of 1 is a no-op.
func ApplyGain(pcm []byte, gain float64) {
	if gain == 1 {
		return
	}
	samples := len(pcm) / 2
	for i := 0; i < samples; i++ {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		out := ClampInt16(s * gain)
		pcm[i*2] = byte(out)
		pcm[i*2+1] = byte(out >> 8)
	}
}
