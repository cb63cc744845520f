// Package segment turns the continuous filtered-frame stream into discrete
// utterances using energy-based voice-activity detection.
//
// A [Segmenter] accumulates frames while speech is active and flushes the
// buffer as one contiguous utterance when the speaker goes silent (endpoint
// flush) or when the utterance hits the maximum duration (force flush). Flush
// conditions are evaluated on a fixed polling cadence by the segmenter's own
// goroutine; the capture loop only appends. Utterances shorter than the
// configured minimum are never forwarded — a deliberate false-positive guard
// against door slams and coughs.
package segment

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wrenhold/soniclink/pkg/audio"
)

// ErrAlreadyRunning is returned by [Segmenter.Start] when the flush-check
// loop is already active.
var ErrAlreadyRunning = errors.New("segment: segmenter already running")

// Flush reasons reported on [Utterance.Reason].
const (
	// ReasonEndpoint means the speaker went quiet past the silence timeout.
	ReasonEndpoint = "endpoint"

	// ReasonForced means the utterance hit the maximum duration.
	ReasonForced = "forced"

	// ReasonStop means Stop flushed a partially accumulated utterance.
	ReasonStop = "stop"
)

// Utterance is one contiguous speech segment, finalized and ready for the
// recognition backend.
type Utterance struct {
	// PCM is the concatenated little-endian mono PCM16 audio.
	PCM []byte

	// SampleRate in Hz of the PCM data.
	SampleRate int

	// Language is the session language hint (BCP-47 tag) for recognition.
	Language string

	// SpeechStart is when energy first exceeded the threshold.
	SpeechStart time.Time

	// LastSpeech is when energy last exceeded the threshold.
	LastSpeech time.Time

	// Duration is the audio duration of the PCM payload.
	Duration time.Duration

	// Reason records which flush condition finalized the utterance: one of
	// [ReasonEndpoint], [ReasonForced], [ReasonStop].
	Reason string
}

// Handler receives finalized utterances. The segmenter calls it synchronously
// from its flush goroutine; implementations that do slow work (network calls)
// should hand off to their own goroutine.
type Handler func(Utterance)

// Config tunes the voice-activity state machine. Zero fields take the
// defaults listed on each field.
type Config struct {
	// SilenceThreshold is the RMS energy (raw int16 units) above which a
	// frame counts as speech. Default 500.
	SilenceThreshold float64

	// SilenceTimeout is how long energy must stay below the threshold before
	// an utterance is considered finished. Default 800 ms.
	SilenceTimeout time.Duration

	// MinSpeechDuration is the minimum speech span for an utterance to be
	// forwarded. Default 500 ms.
	MinSpeechDuration time.Duration

	// MaxUtteranceDuration force-flushes an utterance regardless of silence.
	// Default 15 s.
	MaxUtteranceDuration time.Duration

	// MinFlushDuration is the minimum accumulated audio needed for Stop to
	// flush a partially accumulated utterance instead of discarding it.
	// Default 300 ms.
	MinFlushDuration time.Duration

	// PollInterval is the flush-check cadence. Default 50 ms.
	PollInterval time.Duration

	// Language is the session language hint attached to every utterance.
	Language string
}

func (c *Config) applyDefaults() {
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 500
	}
	if c.SilenceTimeout <= 0 {
		c.SilenceTimeout = 800 * time.Millisecond
	}
	if c.MinSpeechDuration <= 0 {
		c.MinSpeechDuration = 500 * time.Millisecond
	}
	if c.MaxUtteranceDuration <= 0 {
		c.MaxUtteranceDuration = 15 * time.Second
	}
	if c.MinFlushDuration <= 0 {
		c.MinFlushDuration = 300 * time.Millisecond
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
}

// Segmenter is the stateful frame accumulator. At most one utterance is open
// at a time. All exported methods are safe for concurrent use; the
// accumulation buffer shared between [Segmenter.Feed] (capture loop) and the
// flush-check goroutine is guarded by a mutex.
type Segmenter struct {
	cfg     Config
	handler Handler

	mu          sync.Mutex
	running     bool
	isSpeaking  bool
	speechStart time.Time
	lastSpeech  time.Time
	buf         bytes.Buffer
	sampleRate  int
	stop        chan struct{}
	done        chan struct{}
}

// New creates a Segmenter that delivers finalized utterances to handler.
func New(cfg Config, handler Handler) *Segmenter {
	cfg.applyDefaults()
	return &Segmenter{cfg: cfg, handler: handler}
}

// Start launches the periodic flush-check goroutine.
func (s *Segmenter) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.flushLoop(s.stop, s.done)
	return nil
}

// Feed consumes one filtered frame. Frames are appended to the accumulation
// buffer only while an utterance is open; the frame whose energy first
// crosses the threshold opens it.
func (s *Segmenter) Feed(frame audio.Frame) {
	rms := audio.RMS(frame.Data)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if rms > s.cfg.SilenceThreshold {
		if !s.isSpeaking {
			s.isSpeaking = true
			s.speechStart = now
			s.buf.Reset()
			s.sampleRate = frame.SampleRate
		}
		s.lastSpeech = now
	}

	// Trailing silence inside an open utterance is kept: it is part of the
	// natural speech rhythm and recognition backends expect it.
	if s.isSpeaking {
		s.buf.Write(frame.Data)
	}
}

// Stop halts the flush-check loop. Partially accumulated speech is flushed if
// it exceeds the minimum audible length, otherwise discarded silently. Safe
// to call multiple times and without a prior Start.
func (s *Segmenter) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done

	s.mu.Lock()
	var utt *Utterance
	if s.isSpeaking {
		if audio.PCMDuration(s.buf.Len(), s.sampleRate) >= s.cfg.MinFlushDuration {
			utt = s.takeUtteranceLocked(ReasonStop)
		} else {
			s.resetLocked()
		}
	}
	s.mu.Unlock()

	if utt != nil {
		s.handler(*utt)
	}
}

// flushLoop evaluates the flush conditions on the polling cadence.
func (s *Segmenter) flushLoop(stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		if utt := s.checkFlush(time.Now()); utt != nil {
			s.handler(*utt)
		}
	}
}

// checkFlush applies the endpoint and force-flush conditions and returns the
// finalized utterance, or nil when nothing is due.
func (s *Segmenter) checkFlush(now time.Time) *Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isSpeaking {
		return nil
	}

	sinceStart := now.Sub(s.speechStart)
	sinceSpeech := now.Sub(s.lastSpeech)

	// Force flush: the utterance hit its maximum duration, silence or not.
	if sinceStart >= s.cfg.MaxUtteranceDuration {
		slog.Debug("segment: force flush", "duration", sinceStart)
		return s.takeUtteranceLocked(ReasonForced)
	}

	// Endpoint flush: the speaker has gone quiet for long enough.
	if sinceSpeech >= s.cfg.SilenceTimeout && sinceStart >= s.cfg.MinSpeechDuration {
		// False-positive guard: a short energy blip followed by silence can
		// satisfy the timing conditions without containing real speech.
		if s.lastSpeech.Sub(s.speechStart) < s.cfg.MinSpeechDuration {
			slog.Debug("segment: discarding sub-minimum utterance",
				"speech_span", s.lastSpeech.Sub(s.speechStart))
			s.resetLocked()
			return nil
		}
		slog.Debug("segment: endpoint flush",
			"duration", sinceStart, "silence", sinceSpeech)
		return s.takeUtteranceLocked(ReasonEndpoint)
	}

	return nil
}

// takeUtteranceLocked finalizes the open utterance and resets the state
// machine. Must be called with s.mu held.
func (s *Segmenter) takeUtteranceLocked(reason string) *Utterance {
	pcm := make([]byte, s.buf.Len())
	copy(pcm, s.buf.Bytes())

	utt := &Utterance{
		PCM:         pcm,
		SampleRate:  s.sampleRate,
		Language:    s.cfg.Language,
		SpeechStart: s.speechStart,
		LastSpeech:  s.lastSpeech,
		Duration:    audio.PCMDuration(len(pcm), s.sampleRate),
		Reason:      reason,
	}
	s.resetLocked()
	return utt
}

// resetLocked clears the accumulation state. Must be called with s.mu held.
func (s *Segmenter) resetLocked() {
	s.buf.Reset()
	s.isSpeaking = false
	s.speechStart = time.Time{}
	s.lastSpeech = time.Time{}
}
