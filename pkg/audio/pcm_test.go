package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/wrenhold/soniclink/pkg/audio"
)

func TestInt16RoundTrip(t *testing.T) {
	t.Parallel()

	in := []int16{0, 1, -1, 127, -128, 32767, -32768, 12345, -23456}
	b := audio.Int16ToBytes(in)
	out := audio.BytesToInt16(b)

	if len(out) != len(in) {
		t.Fatalf("length = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample[%d] = %d, want %d", i, out[i], in[i])
		}
	}
}

func TestBytesToInt16_OddTrailingByte(t *testing.T) {
	t.Parallel()

	out := audio.BytesToInt16([]byte{0x34, 0x12, 0xff})
	if len(out) != 1 {
		t.Fatalf("len = %d, want 1", len(out))
	}
	if out[0] != 0x1234 {
		t.Errorf("sample = %#x, want 0x1234", out[0])
	}
}

func TestApplyGain_NeverWraps(t *testing.T) {
	t.Parallel()

	// Sweep the sample range at several gains, including extremes, and assert
	// the output always stays inside the int16 range (hard clip, no wrap).
	gains := []float64{0, 0.5, 1, 1.5, 2, 5, 10}
	samples := []int16{math.MinInt16, -30000, -1, 0, 1, 12345, 30000, math.MaxInt16}

	for _, g := range gains {
		pcm := audio.Int16ToBytes(samples)
		audio.ApplyGain(pcm, g)
		out := audio.BytesToInt16(pcm)
		for i, s := range out {
			want := float64(samples[i]) * g
			if want > math.MaxInt16 {
				want = math.MaxInt16
			}
			if want < math.MinInt16 {
				want = math.MinInt16
			}
			if float64(s) < math.MinInt16 || float64(s) > math.MaxInt16 {
				t.Fatalf("gain %v sample %d out of range: %d", g, samples[i], s)
			}
			if math.Abs(float64(s)-want) > 1 {
				t.Errorf("gain %v sample %d = %d, want ≈%v", g, samples[i], s, want)
			}
		}
	}
}

func TestApplyGain_Clips(t *testing.T) {
	t.Parallel()

	pcm := audio.Int16ToBytes([]int16{30000, -30000})
	audio.ApplyGain(pcm, 2)
	out := audio.BytesToInt16(pcm)

	if out[0] != math.MaxInt16 {
		t.Errorf("positive overflow = %d, want %d", out[0], math.MaxInt16)
	}
	if out[1] != math.MinInt16 {
		t.Errorf("negative overflow = %d, want %d", out[1], math.MinInt16)
	}
}

func TestRMS(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples []int16
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", []int16{0, 0, 0, 0}, 0},
		{"constant", []int16{1000, 1000, 1000, 1000}, 1000},
		{"alternating", []int16{1000, -1000, 1000, -1000}, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := audio.RMS(audio.Int16ToBytes(tt.samples))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("RMS = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPCMDuration(t *testing.T) {
	t.Parallel()

	// 16000 samples of mono PCM16 at 16 kHz is exactly one second.
	if d := audio.PCMDuration(32000, 16000); d != time.Second {
		t.Errorf("duration = %v, want 1s", d)
	}
	if d := audio.PCMDuration(100, 0); d != 0 {
		t.Errorf("zero rate duration = %v, want 0", d)
	}
}

func TestResampleMono16(t *testing.T) {
	t.Parallel()

	t.Run("same rate is identity", func(t *testing.T) {
		in := audio.Int16ToBytes([]int16{1, 2, 3, 4})
		out := audio.ResampleMono16(in, 16000, 16000)
		if &out[0] != &in[0] {
			t.Error("expected input returned unchanged")
		}
	})

	t.Run("downsample halves sample count", func(t *testing.T) {
		in := make([]int16, 320)
		for i := range in {
			in[i] = int16(i)
		}
		out := audio.ResampleMono16(audio.Int16ToBytes(in), 16000, 8000)
		if len(out)/2 != 160 {
			t.Errorf("output samples = %d, want 160", len(out)/2)
		}
	})

	t.Run("upsample preserves constant signal", func(t *testing.T) {
		in := []int16{500, 500, 500, 500}
		out := audio.BytesToInt16(audio.ResampleMono16(audio.Int16ToBytes(in), 8000, 16000))
		if len(out) != 8 {
			t.Fatalf("output samples = %d, want 8", len(out))
		}
		for i, s := range out {
			if s != 500 {
				t.Errorf("sample[%d] = %d, want 500", i, s)
			}
		}
	})
}
