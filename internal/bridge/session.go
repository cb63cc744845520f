// Package bridge wires the whole voice pipeline into one supervised session:
// SCO link up, capture, filtering, utterance segmentation, recognition,
// optional translation and wake-word gating, synthesis, and gapless playback.
//
// A [Session] owns the goroutines between capture and playback. Frames flow
// from the capture source through the filter chain into the segmenter; each
// flushed utterance is handed to a single worker that calls the remote
// backends in order and enqueues the resulting audio. Exactly one worker
// processes utterances so replies play in the order they were spoken.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wrenhold/soniclink/internal/observe"
	"github.com/wrenhold/soniclink/internal/segment"
	"github.com/wrenhold/soniclink/internal/transcript"
	"github.com/wrenhold/soniclink/internal/wakeword"
	"github.com/wrenhold/soniclink/pkg/audio"
	"github.com/wrenhold/soniclink/pkg/audio/capture"
	"github.com/wrenhold/soniclink/pkg/audio/dsp"
	"github.com/wrenhold/soniclink/pkg/audio/playback"
	"github.com/wrenhold/soniclink/pkg/audio/sco"
	"github.com/wrenhold/soniclink/pkg/provider/recognize"
	"github.com/wrenhold/soniclink/pkg/provider/synthesize"
	"github.com/wrenhold/soniclink/pkg/provider/translate"
)

const (
	// defaultProviderTimeout bounds one utterance's worth of backend calls.
	defaultProviderTimeout = 30 * time.Second

	// defaultBacklog is the utterance queue depth between the segmenter and
	// the worker. Utterances arriving while the backlog is full are dropped;
	// speech is perishable and a stale reply is worse than none.
	defaultBacklog = 8

	// recognitionRate is the minimum sample rate sent to recognition
	// backends. Narrowband captures are upsampled to it.
	recognitionRate = 16000
)

// ErrAlreadyRunning is returned by [Session.Start] when the session is live.
var ErrAlreadyRunning = errors.New("bridge: session already running")

// ExchangeLog persists completed exchanges. *transcript.Log implements it; a
// nil log disables persistence.
type ExchangeLog interface {
	Append(ctx context.Context, sessionID string, e transcript.Exchange) error
}

// Config holds the per-session tuning values.
type Config struct {
	// SessionID labels log entries and the persistent exchange log. Empty
	// generates a timestamp-based ID on Start.
	SessionID string

	// Language is the BCP-47 tag of the captured speech.
	Language string

	// TargetLanguage, when non-empty, routes every transcript through the
	// translation backend before synthesis.
	TargetLanguage string

	// Voice is the synthesis voice identifier. Empty uses the backend default.
	Voice string

	// CaptureGain is the linear gain applied by the capture source. Zero
	// means 1 (no amplification).
	CaptureGain float64

	// RouteToBluetooth plays replies over the SCO link instead of the
	// default output route.
	RouteToBluetooth bool

	// Segmenter tunes the utterance boundary detection.
	Segmenter segment.Config

	// ProviderTimeout bounds the backend calls for one utterance. Default 30s.
	ProviderTimeout time.Duration

	// Backlog is the utterance queue depth. Default 8.
	Backlog int

	// RecognitionName, TranslationName, and SynthesisName label the backends
	// in logs and metrics.
	RecognitionName string
	TranslationName string
	SynthesisName   string
}

func (c *Config) applyDefaults() {
	if c.SessionID == "" {
		c.SessionID = fmt.Sprintf("session-%d", time.Now().Unix())
	}
	if c.CaptureGain <= 0 {
		c.CaptureGain = 1
	}
	if c.ProviderTimeout <= 0 {
		c.ProviderTimeout = defaultProviderTimeout
	}
	if c.Backlog <= 0 {
		c.Backlog = defaultBacklog
	}
	if c.Segmenter.Language == "" {
		c.Segmenter.Language = c.Language
	}
}

// Deps are the session's collaborators. Source, Queue, Recognize, and
// Synthesize are required; the rest are optional.
type Deps struct {
	// Link manages the SCO audio link. Nil skips link management entirely and
	// captures on whatever route the platform provides.
	Link *sco.Manager

	// Source produces the capture frame stream.
	Source *capture.Source

	// Filters is the DSP chain applied to every frame. Nil passes frames
	// through unfiltered.
	Filters *dsp.Chain

	// Queue plays the synthesized replies.
	Queue *playback.Queue

	// Recognize transcribes utterances.
	Recognize recognize.Provider

	// Translate renders transcripts in the target language. Nil (or an empty
	// Config.TargetLanguage) skips translation.
	Translate translate.Provider

	// Synthesize turns reply text into audio.
	Synthesize synthesize.Provider

	// Wake gates utterances on a wake phrase. Nil or a detector with no
	// phrases processes every utterance.
	Wake *wakeword.Detector

	// History is the in-memory exchange buffer. Nil disables it.
	History *transcript.History

	// Log is the persistent exchange log. Nil disables it.
	Log ExchangeLog

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// Session runs the capture-to-playback pipeline. All exported methods are
// safe for concurrent use.
type Session struct {
	cfg  Config
	deps Deps

	mu      sync.Mutex
	running bool
	seg     *segment.Segmenter
	utterCh chan segment.Utterance
	group   *errgroup.Group
}

// New validates deps and creates a stopped Session.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Source == nil {
		return nil, fmt.Errorf("bridge: capture source is required")
	}
	if deps.Queue == nil {
		return nil, fmt.Errorf("bridge: playback queue is required")
	}
	if deps.Recognize == nil {
		return nil, fmt.Errorf("bridge: recognition provider is required")
	}
	if deps.Synthesize == nil {
		return nil, fmt.Errorf("bridge: synthesis provider is required")
	}
	if cfg.TargetLanguage != "" && deps.Translate == nil {
		return nil, fmt.Errorf("bridge: target language %q set but no translation provider", cfg.TargetLanguage)
	}
	if deps.Wake == nil {
		deps.Wake = wakeword.New(nil)
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.DefaultMetrics()
	}
	cfg.applyDefaults()
	return &Session{cfg: cfg, deps: deps}, nil
}

// Start brings the SCO link up, starts capture and segmentation, and launches
// the pipeline goroutines. A link timeout is non-fatal: capture proceeds on
// the platform's default route. Returns [ErrAlreadyRunning] when live.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	if s.deps.Link != nil {
		if err := s.deps.Link.Connect(ctx); err != nil {
			if !errors.Is(err, sco.ErrTimeout) {
				s.setStopped()
				return fmt.Errorf("bridge: connect link: %w", err)
			}
			slog.Warn("bridge: sco link timed out, capturing on default route",
				"session", s.cfg.SessionID)
		}
	}

	utterCh := make(chan segment.Utterance, s.cfg.Backlog)
	seg := segment.New(s.cfg.Segmenter, func(u segment.Utterance) {
		select {
		case utterCh <- u:
		default:
			slog.Warn("bridge: utterance backlog full, dropping",
				"session", s.cfg.SessionID, "duration", u.Duration)
			s.deps.Metrics.RecordUtterance(context.Background(), "discarded", 0)
		}
	})
	if err := seg.Start(); err != nil {
		s.teardownLink()
		s.setStopped()
		return fmt.Errorf("bridge: start segmenter: %w", err)
	}

	if err := s.deps.Source.Start(s.cfg.CaptureGain); err != nil {
		seg.Stop()
		s.teardownLink()
		s.setStopped()
		return fmt.Errorf("bridge: start capture: %w", err)
	}

	group, gctx := errgroup.WithContext(ctx)
	frames := s.deps.Source.Frames()
	group.Go(func() error {
		s.pump(gctx, frames, seg)
		return nil
	})
	group.Go(func() error {
		for u := range utterCh {
			s.processUtterance(gctx, u)
		}
		return nil
	})

	s.mu.Lock()
	s.seg = seg
	s.utterCh = utterCh
	s.group = group
	s.mu.Unlock()

	s.deps.Metrics.ActiveSessions.Add(ctx, 1)
	slog.Info("bridge: session started",
		"session", s.cfg.SessionID,
		"language", s.cfg.Language,
		"target_language", s.cfg.TargetLanguage,
		"recognition", s.cfg.RecognitionName,
		"synthesis", s.cfg.SynthesisName)
	return nil
}

// Stop drains the pipeline in order: capture stops first, the segmenter
// flushes any partial utterance, the worker finishes the backlog, then
// playback halts and the link is torn down. Idempotent; the session can be
// started again afterwards.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	seg := s.seg
	utterCh := s.utterCh
	group := s.group
	s.seg, s.utterCh, s.group = nil, nil, nil
	s.mu.Unlock()

	s.deps.Source.Stop()
	if seg != nil {
		seg.Stop()
	}
	if utterCh != nil {
		close(utterCh)
	}
	if group != nil {
		// Bounded by ProviderTimeout on each remaining utterance.
		_ = group.Wait()
	}

	s.deps.Queue.Stop()
	s.teardownLink()

	s.deps.Metrics.ActiveSessions.Add(context.Background(), -1)
	slog.Info("bridge: session stopped", "session", s.cfg.SessionID)
}

// Running reports whether the session is live.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Session) setStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Session) teardownLink() {
	if s.deps.Link != nil {
		s.deps.Link.Teardown()
	}
}

// pump moves frames from capture through the filter chain into the segmenter
// until the frame channel closes.
func (s *Session) pump(ctx context.Context, frames <-chan audio.Frame, seg *segment.Segmenter) {
	for frame := range frames {
		if s.deps.Filters != nil {
			frame = s.deps.Filters.ProcessFrame(frame)
		}
		seg.Feed(frame)
		s.deps.Metrics.FramesCaptured.Add(ctx, 1)
	}
}

// processUtterance runs one utterance through recognition, wake-word gating,
// translation, and synthesis, then enqueues the reply. Failures are logged
// and the utterance is abandoned; the pipeline itself never stops over a
// backend error.
func (s *Session) processUtterance(ctx context.Context, u segment.Utterance) {
	s.deps.Metrics.RecordUtterance(ctx, u.Reason, u.Duration.Seconds())

	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	text, ok := s.recognizeUtterance(ctx, u)
	if !ok {
		return
	}

	wakePhrase := ""
	if s.deps.Wake.Enabled() {
		match, hit := s.deps.Wake.Detect(text)
		if !hit {
			slog.Debug("bridge: no wake phrase, ignoring utterance",
				"session", s.cfg.SessionID)
			return
		}
		s.deps.Metrics.WakeWordHits.Add(ctx, 1)
		wakePhrase = match.Phrase
		if match.Remainder == "" {
			slog.Debug("bridge: bare wake phrase, nothing to process",
				"session", s.cfg.SessionID)
			return
		}
		text = match.Remainder
	}

	spoken, translated := s.translateText(ctx, text)

	s.synthesizeReply(ctx, spoken)

	s.record(ctx, transcript.Exchange{
		Recognized:     text,
		Translated:     translated,
		Spoken:         spoken,
		Language:       s.cfg.Language,
		TargetLanguage: s.cfg.TargetLanguage,
		WakePhrase:     wakePhrase,
		Timestamp:      u.LastSpeech,
		Duration:       u.Duration,
	})
}

// recognizeUtterance transcribes one utterance. An empty transcript (noise
// that slipped past the segmenter) is discarded.
func (s *Session) recognizeUtterance(ctx context.Context, u segment.Utterance) (string, bool) {
	pcm, rate := u.PCM, u.SampleRate
	if rate > 0 && rate < recognitionRate {
		// Narrowband SCO links capture at 8 kHz; recognition backends expect
		// wideband input.
		pcm = audio.ResampleMono16(pcm, rate, recognitionRate)
		rate = recognitionRate
	}

	start := time.Now()
	res, err := s.deps.Recognize.Recognize(ctx, recognize.Request{
		PCM:        pcm,
		SampleRate: rate,
		Language:   u.Language,
	})
	s.deps.Metrics.RecognitionDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.deps.Metrics.RecordProviderError(ctx, s.cfg.RecognitionName, "recognition")
		slog.Warn("bridge: recognition failed",
			"session", s.cfg.SessionID, "err", err)
		return "", false
	}
	s.deps.Metrics.RecordProviderRequest(ctx, s.cfg.RecognitionName, "recognition", "ok")

	text := strings.TrimSpace(res.Text)
	if text == "" {
		slog.Debug("bridge: empty transcript, discarding",
			"session", s.cfg.SessionID, "duration", u.Duration)
		return "", false
	}
	return text, true
}

// translateText renders text in the target language. On failure (or with
// translation disabled) the original text is spoken unchanged.
func (s *Session) translateText(ctx context.Context, text string) (spoken, translated string) {
	if s.deps.Translate == nil || s.cfg.TargetLanguage == "" {
		return text, ""
	}

	start := time.Now()
	out, err := s.deps.Translate.Translate(ctx, translate.Request{
		Text:           text,
		SourceLanguage: s.cfg.Language,
		TargetLanguage: s.cfg.TargetLanguage,
	})
	s.deps.Metrics.TranslationDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		s.deps.Metrics.RecordProviderError(ctx, s.cfg.TranslationName, "translation")
		slog.Warn("bridge: translation failed, speaking original",
			"session", s.cfg.SessionID, "err", err)
		return text, ""
	}
	s.deps.Metrics.RecordProviderRequest(ctx, s.cfg.TranslationName, "translation", "ok")
	return out, out
}

// synthesizeReply streams the reply audio. Every chunk the backend delivers
// becomes its own playback item so the first words play while the backend is
// still rendering the rest; the gapless queue makes the seams inaudible.
func (s *Session) synthesizeReply(ctx context.Context, text string) {
	lang := s.cfg.TargetLanguage
	if lang == "" {
		lang = s.cfg.Language
	}

	start := time.Now()
	ch, err := s.deps.Synthesize.Synthesize(ctx, synthesize.Request{
		Text:     text,
		Voice:    s.cfg.Voice,
		Language: lang,
	})
	if err != nil {
		s.deps.Metrics.RecordProviderError(ctx, s.cfg.SynthesisName, "synthesis")
		slog.Warn("bridge: synthesis failed",
			"session", s.cfg.SessionID, "err", err)
		return
	}

	rate := s.deps.Synthesize.SampleRate()
	for chunk := range ch {
		if len(chunk) == 0 {
			continue
		}
		s.deps.Metrics.PlaybackQueueDepth.Add(ctx, 1)
		s.deps.Queue.Enqueue(playback.Item{
			PCM:              chunk,
			SampleRate:       rate,
			RouteToBluetooth: s.cfg.RouteToBluetooth,
			OnComplete: func(err error) {
				s.deps.Metrics.PlaybackQueueDepth.Add(context.Background(), -1)
				if err != nil && !errors.Is(err, playback.ErrStopped) {
					slog.Warn("bridge: playback failed",
						"session", s.cfg.SessionID, "err", err)
				}
			},
		})
	}
	s.deps.Metrics.SynthesisDuration.Record(ctx, time.Since(start).Seconds())
	s.deps.Metrics.RecordProviderRequest(ctx, s.cfg.SynthesisName, "synthesis", "ok")
}

// record adds the exchange to the in-memory history and the persistent log.
func (s *Session) record(ctx context.Context, e transcript.Exchange) {
	if s.deps.History != nil {
		s.deps.History.Add(e)
	}
	if s.deps.Log != nil {
		if err := s.deps.Log.Append(ctx, s.cfg.SessionID, e); err != nil {
			slog.Warn("bridge: exchange log append failed",
				"session", s.cfg.SessionID, "err", err)
		}
	}
}
