package dsp_test

import (
	"math"
	"testing"

	"github.com/wrenhold/soniclink/pkg/audio"
	"github.com/wrenhold/soniclink/pkg/audio/dsp"
)

const testRate = 16000

// frameOf returns a PCM16 frame of n samples all set to v.
func frameOf(n int, v int16) []byte {
	samples := make([]int16, n)
	for i := range samples {
		samples[i] = v
	}
	return audio.Int16ToBytes(samples)
}

// alternatingFrame returns n samples of ±v, which has an exact RMS of v.
func alternatingFrame(n int, v int16) []byte {
	samples := make([]int16, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = v
		} else {
			samples[i] = -v
		}
	}
	return audio.Int16ToBytes(samples)
}

// sineFrame returns n samples of a sine wave at freq Hz with the given
// amplitude, continuing from sample offset phase.
func sineFrame(n, phase int, freq, amplitude float64) []byte {
	samples := make([]int16, n)
	for i := range samples {
		t := float64(phase+i) / testRate
		samples[i] = int16(amplitude * math.Sin(2*math.Pi*freq*t))
	}
	return audio.Int16ToBytes(samples)
}

func TestChain_DisablingNeverReorders(t *testing.T) {
	t.Parallel()

	full := []string{"highpass", "lowpass", "noisegate", "spectral"}

	// Every subset of toggles must produce a subsequence of the full order.
	for mask := 0; mask < 16; mask++ {
		cfg := dsp.Config{
			HighPass:            mask&1 != 0,
			LowPass:             mask&2 != 0,
			NoiseGate:           mask&4 != 0,
			SpectralSubtraction: mask&8 != 0,
		}
		chain := dsp.NewChain(cfg, testRate)
		got := chain.Stages()

		// Verify got is a subsequence of full.
		j := 0
		for _, name := range got {
			for j < len(full) && full[j] != name {
				j++
			}
			if j == len(full) {
				t.Fatalf("mask %04b: stage %q out of order in %v", mask, name, got)
			}
			j++
		}
	}
}

func TestChain_DisabledStageIsPassthrough(t *testing.T) {
	t.Parallel()

	chain := dsp.NewChain(dsp.Config{}, testRate)
	in := sineFrame(320, 0, 440, 8000)
	want := make([]byte, len(in))
	copy(want, in)

	out := chain.Process(in)
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("byte %d modified by empty chain", i)
		}
	}
}

func TestHighPass_RemovesDC(t *testing.T) {
	t.Parallel()

	hp := dsp.NewHighPass(testRate, 80)

	// A constant (0 Hz) signal should decay towards zero.
	var out []byte
	for i := 0; i < 50; i++ {
		out = hp.Process(frameOf(320, 10000))
	}
	if rms := audio.RMS(out); rms > 500 {
		t.Errorf("DC residual RMS = %v, want < 500", rms)
	}
}

func TestHighPass_PassesVoiceBand(t *testing.T) {
	t.Parallel()

	hp := dsp.NewHighPass(testRate, 80)

	// 1 kHz is far above the 80 Hz corner and should pass nearly unattenuated.
	var out []byte
	phase := 0
	for i := 0; i < 20; i++ {
		out = hp.Process(sineFrame(320, phase, 1000, 10000))
		phase += 320
	}
	inRMS := 10000 / math.Sqrt2
	if rms := audio.RMS(out); rms < 0.8*inRMS {
		t.Errorf("1 kHz RMS after high-pass = %v, want ≥ %v", rms, 0.8*inRMS)
	}
}

func TestLowPass_PassesDCAndAttenuatesHiss(t *testing.T) {
	t.Parallel()

	lp := dsp.NewLowPass(testRate, 2000)

	// DC passes.
	var out []byte
	for i := 0; i < 50; i++ {
		out = lp.Process(frameOf(320, 10000))
	}
	if rms := audio.RMS(out); rms < 9000 {
		t.Errorf("DC RMS after low-pass = %v, want ≥ 9000", rms)
	}

	// A tone well above the corner is attenuated. At 16 kHz the highest
	// representable tone is the ±v alternation at Nyquist (8 kHz).
	lp.Reset()
	for i := 0; i < 50; i++ {
		out = lp.Process(alternatingFrame(320, 10000))
	}
	if rms := audio.RMS(out); rms > 5000 {
		t.Errorf("Nyquist RMS after low-pass = %v, want < 5000", rms)
	}
}

func TestNoiseGate_CalibratesToMeasuredFloor(t *testing.T) {
	t.Parallel()

	gate := dsp.NewNoiseGate(testRate, 0)

	// ±400 alternation has an exact RMS of 400. Exactly two seconds of
	// calibration input: 100 frames of 20 ms.
	const floor = 400
	for i := 0; i < 100; i++ {
		gate.Process(alternatingFrame(320, floor))
	}

	want := 1.5 * floor
	if got := gate.Threshold(); math.Abs(got-want) > 1e-6 {
		t.Fatalf("threshold = %v, want %v", got, want)
	}

	// Calibration frames must pass through unmodified.
	out := gate.Process(alternatingFrame(320, 10000))
	if rms := audio.RMS(out); rms < 9000 {
		t.Errorf("loud frame attenuated after calibration: RMS %v", rms)
	}
}

func TestNoiseGate_QuadraticFade(t *testing.T) {
	t.Parallel()

	// Fixed threshold skips calibration.
	gate := dsp.NewNoiseGate(testRate, 1000)

	// A frame at half the threshold gets gain (0.5)² = 0.25.
	out := gate.Process(alternatingFrame(320, 500))
	got := audio.RMS(out)
	want := 500 * 0.25
	if math.Abs(got-want) > 2 {
		t.Errorf("faded RMS = %v, want ≈%v", got, want)
	}

	// A frame above the threshold passes unmodified.
	out = gate.Process(alternatingFrame(320, 2000))
	if rms := audio.RMS(out); math.Abs(rms-2000) > 1e-6 {
		t.Errorf("loud RMS = %v, want 2000", rms)
	}
}

func TestNoiseGate_Reset(t *testing.T) {
	t.Parallel()

	gate := dsp.NewNoiseGate(testRate, 0)
	for i := 0; i < 100; i++ {
		gate.Process(alternatingFrame(320, 400))
	}
	if gate.Threshold() == 0 {
		t.Fatal("gate did not calibrate")
	}

	gate.Reset()
	if gate.Threshold() != 0 {
		t.Error("threshold survived Reset")
	}
}

func TestSpectralSubtractor_ReducesStationaryNoise(t *testing.T) {
	t.Parallel()

	ss := dsp.NewSpectralSubtractor(testRate)

	// A stationary tone works as "noise" for the estimator. 512-sample frames
	// avoid zero-padding so the learned spectrum matches playback exactly.
	noise := func(phase int) []byte { return sineFrame(512, phase, 1250, 3000) }

	phase := 0
	for !spectralCalibrated(ss, noise(phase)) {
		phase += 512
		if phase > testRate*10 {
			t.Fatal("spectral stage never finished calibrating")
		}
	}

	out := ss.Process(noise(phase))
	if got := audio.RMS(out); got > 1000 {
		t.Errorf("stationary noise RMS after subtraction = %v, want < 1000", got)
	}
}

func TestSpectralSubtractor_CalibrationCountsRealSamples(t *testing.T) {
	t.Parallel()

	ss := dsp.NewSpectralSubtractor(testRate)

	// 320-sample frames are zero-padded to a 512-point FFT; the calibration
	// clock must still advance by 320 real samples per frame, so two seconds
	// of audio takes 100 frames.
	frames := 0
	phase := 0
	for !spectralCalibrated(ss, sineFrame(320, phase, 1250, 3000)) {
		frames++
		phase += 320
		if frames > testRate {
			t.Fatal("spectral stage never finished calibrating")
		}
	}
	if want := 2 * testRate / 320; frames != want {
		t.Errorf("calibration took %d frames, want %d (two seconds of audio)", frames, want)
	}
}

// spectralCalibrated feeds one frame and reports whether the stage has left
// the calibration window, detected by the frame passing through unmodified.
func spectralCalibrated(ss *dsp.SpectralSubtractor, frame []byte) bool {
	before := make([]byte, len(frame))
	copy(before, frame)
	out := ss.Process(frame)
	for i := range before {
		if out[i] != before[i] {
			return true
		}
	}
	return false
}
