// Package capture produces the continuous stream of fixed-size PCM16 mono
// frames that feeds the soniclink pipeline.
//
// A [Source] owns a blocking read loop on its own goroutine. Each successful
// read is gain-amplified (hard-clipped, never wrapped) and delivered on the
// frame channel. The loop tolerates occasional short reads and transient
// device errors; only a run of consecutive failures terminates the stream.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wrenhold/soniclink/pkg/audio"
)

const (
	// DefaultFrameSize is the read buffer size in bytes: 20 ms of mono PCM16
	// at 16 kHz.
	DefaultFrameSize = 640

	// maxConsecutiveErrors is how many failed reads in a row the loop
	// tolerates before giving up on the device.
	maxConsecutiveErrors = 10
)

// ErrAlreadyRunning is returned by [Source.Start] when a capture loop is
// already active.
var ErrAlreadyRunning = errors.New("capture: source already running")

// Option configures a [Source] during construction.
type Option func(*Source)

// WithSampleRate sets the capture sample rate in Hz. Default 16000.
func WithSampleRate(rate int) Option {
	return func(s *Source) {
		if rate > 0 {
			s.sampleRate = rate
		}
	}
}

// WithFrameSize sets the read buffer size in bytes. Default [DefaultFrameSize].
func WithFrameSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.frameSize = n
		}
	}
}

// WithBuffer sets the frame channel capacity. Default 8 frames.
func WithBuffer(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.chanCap = n
		}
	}
}

// WithDropHook installs fn, called once for each device read that produced
// no frame (transient error or a read reduced to zero by the torn-sample
// trim). Used for drop accounting.
func WithDropHook(fn func()) Option {
	return func(s *Source) {
		s.dropHook = fn
	}
}

// Source reads fixed-size frames from an [InputDevice] and delivers them on
// [Source.Frames]. All exported methods are safe for concurrent use.
type Source struct {
	device     InputDevice
	sampleRate int
	frameSize  int
	chanCap    int
	dropHook   func()

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
	out     chan audio.Frame
}

// New creates a Source reading from device. The device is not opened until
// [Source.Start].
func New(device InputDevice, opts ...Option) *Source {
	s := &Source{
		device:     device,
		sampleRate: 16000,
		frameSize:  DefaultFrameSize,
		chanCap:    8,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start opens the device and begins the read loop with the given linear gain
// (≥ 0; 1 means no amplification). It fails fast if the device cannot be
// initialised and performs no partial setup. Returns [ErrAlreadyRunning] if a
// loop is already active.
func (s *Source) Start(gain float64) error {
	if gain < 0 {
		return fmt.Errorf("capture: gain must be >= 0, got %v", gain)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	if err := s.device.Open(s.sampleRate, s.frameSize); err != nil {
		return fmt.Errorf("capture: open device: %w", err)
	}

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.out = make(chan audio.Frame, s.chanCap)

	go s.readLoop(gain, s.stop, s.done, s.out)
	return nil
}

// Frames returns the channel of captured frames for the current session. The
// channel is closed when the loop terminates. Returns nil before the first
// Start.
func (s *Source) Frames() <-chan audio.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.out
}

// Stop cancels the read loop and releases the device handle. It is safe to
// call multiple times and without a prior successful Start.
func (s *Source) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	// Closing the device unblocks any in-flight Read.
	_ = s.device.Close()
	<-done
}

// readLoop is the blocking capture loop. It runs on its own goroutine until
// stop is closed or the device fails persistently.
func (s *Source) readLoop(gain float64, stop, done chan struct{}, out chan audio.Frame) {
	defer close(done)
	defer close(out)

	buf := make([]byte, s.frameSize)
	var elapsed time.Duration
	framePeriod := audio.PCMDuration(s.frameSize, s.sampleRate)
	consecutiveErrs := 0

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := s.device.Read(buf)
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			consecutiveErrs++
			if consecutiveErrs >= maxConsecutiveErrors {
				slog.Error("capture: device failed persistently, stopping", "err", err)
				return
			}
			slog.Debug("capture: transient read error", "err", err)
			s.noteDrop()
			continue
		}
		consecutiveErrs = 0

		// Occasional short or empty reads are tolerated, never fatal.
		if n == 0 {
			continue
		}
		// Drop a trailing odd byte rather than emit a torn sample.
		n -= n % 2
		if n == 0 {
			s.noteDrop()
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])
		if gain != 1 {
			audio.ApplyGain(data, gain)
		}

		frame := audio.Frame{
			Data:       data,
			SampleRate: s.sampleRate,
			Timestamp:  elapsed,
		}
		elapsed += framePeriod

		select {
		case out <- frame:
		case <-stop:
			return
		}
	}
}

// noteDrop reports one discarded read to the drop hook, if installed.
func (s *Source) noteDrop() {
	if s.dropHook != nil {
		s.dropHook()
	}
}
