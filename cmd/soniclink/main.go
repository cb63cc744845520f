// Command soniclink runs the headset voice bridge: it captures speech over
// the Bluetooth SCO link, cleans and segments it, sends utterances to the
// configured recognition / translation / synthesis backends, and plays the
// replies back gaplessly.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wrenhold/soniclink/internal/bridge"
	"github.com/wrenhold/soniclink/internal/config"
	"github.com/wrenhold/soniclink/internal/health"
	"github.com/wrenhold/soniclink/internal/observe"
	"github.com/wrenhold/soniclink/internal/resilience"
	"github.com/wrenhold/soniclink/internal/segment"
	"github.com/wrenhold/soniclink/internal/transcript"
	"github.com/wrenhold/soniclink/internal/wakeword"
	"github.com/wrenhold/soniclink/pkg/audio/capture"
	"github.com/wrenhold/soniclink/pkg/audio/dsp"
	"github.com/wrenhold/soniclink/pkg/audio/playback"
	"github.com/wrenhold/soniclink/pkg/audio/sco"
	"github.com/wrenhold/soniclink/pkg/provider/recognize"
	oairecognize "github.com/wrenhold/soniclink/pkg/provider/recognize/openai"
	"github.com/wrenhold/soniclink/pkg/provider/synthesize"
	"github.com/wrenhold/soniclink/pkg/provider/synthesize/elevenlabs"
	"github.com/wrenhold/soniclink/pkg/provider/translate"
	"github.com/wrenhold/soniclink/pkg/provider/translate/anyllm"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	inputPath := flag.String("input", "-", "PCM16 input: a file path or - for stdin")
	outputPath := flag.String("output", "-", "PCM16 output: a file path or - for stdout")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "soniclink: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "soniclink: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	// The level lives in a LevelVar so the config watcher can adjust verbosity
	// without restarting the pipeline.
	level := &slog.LevelVar{}
	level.Set(slogLevel(cfg.Server.LogLevel))
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("soniclink starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "soniclink",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Audio devices and SCO link ────────────────────────────────────────────
	sampleRate := cfg.Audio.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	frameSize := cfg.Audio.FrameSize
	if frameSize == 0 {
		frameSize = 640
	}

	var scoOpts []sco.Option
	if cfg.Audio.SCO.PollInterval > 0 {
		scoOpts = append(scoOpts, sco.WithPollInterval(cfg.Audio.SCO.PollInterval))
	}
	if cfg.Audio.SCO.MaxAttempts > 0 {
		scoOpts = append(scoOpts, sco.WithMaxAttempts(cfg.Audio.SCO.MaxAttempts))
	}
	link := sco.NewManager(passthroughLink{}, scoOpts...)

	metrics := observe.DefaultMetrics()
	source := capture.New(newFileInput(*inputPath),
		capture.WithSampleRate(sampleRate),
		capture.WithFrameSize(frameSize),
		capture.WithDropHook(func() {
			metrics.FramesDropped.Add(context.Background(), 1)
		}),
	)
	queue := playback.New(newFileOutput(*outputPath))
	filters := dsp.NewChain(filterConfig(cfg.Filters), sampleRate)

	// ── Transcript storage ────────────────────────────────────────────────────
	historySize := cfg.Transcript.HistorySize
	if historySize == 0 {
		historySize = 100
	}
	history := transcript.NewHistory(historySize, 24*time.Hour)

	var exchangeLog bridge.ExchangeLog
	checkers := []health.Checker{health.LinkChecker(link)}
	if dsn := cfg.Transcript.PostgresDSN; dsn != "" {
		pgLog, err := transcript.NewLog(ctx, dsn)
		if err != nil {
			slog.Error("failed to open transcript log", "err", err)
			return 1
		}
		defer pgLog.Close()
		exchangeLog = pgLog
		checkers = append(checkers, health.PingChecker("transcript-log", pgLog.Ping))
		slog.Info("transcript log connected")
	}

	// ── Session ───────────────────────────────────────────────────────────────
	printStartupSummary(cfg)

	session, err := bridge.New(bridge.Config{
		Language:         cfg.Session.Language,
		TargetLanguage:   cfg.Session.TargetLanguage,
		Voice:            cfg.Session.Voice,
		CaptureGain:      cfg.Audio.CaptureGainOrDefault(),
		RouteToBluetooth: cfg.Audio.RouteToBluetoothOrDefault(),
		Segmenter: segment.Config{
			SilenceThreshold:     cfg.Segmenter.SilenceThreshold,
			SilenceTimeout:       cfg.Segmenter.SilenceTimeout,
			MinSpeechDuration:    cfg.Segmenter.MinSpeechDuration,
			MaxUtteranceDuration: cfg.Segmenter.MaxUtteranceDuration,
			Language:             cfg.Session.Language,
		},
		RecognitionName: cfg.Providers.Recognition.Name,
		TranslationName: cfg.Providers.Translation.Name,
		SynthesisName:   cfg.Providers.Synthesis.Name,
	}, bridge.Deps{
		Link:       link,
		Source:     source,
		Filters:    filters,
		Queue:      queue,
		Recognize:  providers.recognize,
		Translate:  providers.translate,
		Synthesize: providers.synthesize,
		Wake:       wakeword.New(cfg.Session.WakeWords),
		History:    history,
		Log:        exchangeLog,
		Metrics:    metrics,
	})
	if err != nil {
		slog.Error("failed to build session", "err", err)
		return 1
	}

	if err := session.Start(ctx); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}

	// ── Admin endpoint ────────────────────────────────────────────────────────
	var adminSrv *http.Server
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		health.New(checkers...).Register(mux)
		mux.Handle("/metrics", promhttp.Handler())

		adminSrv = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           observe.Middleware(metrics)(mux),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			slog.Info("admin endpoint listening", "addr", cfg.Server.ListenAddr)
			if err := adminSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("admin endpoint error", "err", err)
			}
		}()
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.GainChanged || d.FiltersChanged || d.SegmenterChanged || d.SessionChanged {
			slog.Info("pipeline tuning changed; applies to the next session")
		}
		if d.RequiresRestart {
			slog.Warn("config change requires a restart to take effect")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("bridge ready — press Ctrl+C to shut down")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	session.Stop()

	if adminSrv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := adminSrv.Shutdown(shCtx); err != nil {
			slog.Warn("admin endpoint shutdown error", "err", err)
		}
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// translationBackends lists the any-llm provider names accepted for the
// translation stage. They all share the APIKey + BaseURL construction pattern.
var translationBackends = []string{
	"openai", "anthropic", "gemini", "deepseek", "mistral", "groq", "ollama",
}

// registerBuiltinProviders wires the shipped provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the provider
// from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Recognition ───────────────────────────────────────────────────────────

	reg.RegisterRecognition("openai", func(entry config.ProviderEntry) (recognize.Provider, error) {
		var opts []oairecognize.Option
		if entry.Model != "" {
			opts = append(opts, oairecognize.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, oairecognize.WithBaseURL(entry.BaseURL))
		}
		return oairecognize.New(entry.APIKey, opts...)
	})

	// ── Synthesis ─────────────────────────────────────────────────────────────

	reg.RegisterSynthesis("elevenlabs", func(entry config.ProviderEntry) (synthesize.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := optString(entry.Options, "output_format"); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		if voice := optString(entry.Options, "voice_id"); voice != "" {
			opts = append(opts, elevenlabs.WithDefaultVoice(voice))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Translation ───────────────────────────────────────────────────────────
	// All any-llm backends share the same pattern: optional APIKey + BaseURL.

	for _, providerName := range translationBackends {
		reg.RegisterTranslation(providerName, func(entry config.ProviderEntry) (translate.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}
}

// pipelineProviders holds the instantiated backends, each wrapped in a
// circuit breaker so a flapping remote service degrades gracefully instead of
// stalling every utterance.
type pipelineProviders struct {
	recognize  recognize.Provider
	translate  translate.Provider
	synthesize synthesize.Provider
}

// buildProviders instantiates the providers named in cfg using the registry.
// Recognition and synthesis are mandatory; translation is only needed when a
// target language is configured.
func buildProviders(cfg *config.Config, reg *config.Registry) (*pipelineProviders, error) {
	ps := &pipelineProviders{}

	if name := cfg.Providers.Recognition.Name; name != "" {
		p, err := reg.CreateRecognition(cfg.Providers.Recognition)
		if err != nil {
			return nil, fmt.Errorf("create recognition provider %q: %w", name, err)
		}
		ps.recognize = resilience.NewRecognizeFallback(p, name, resilience.BreakerConfig{Name: "recognition"})
		slog.Info("provider created", "kind", "recognition", "name", name)
	}

	if name := cfg.Providers.Synthesis.Name; name != "" {
		p, err := reg.CreateSynthesis(cfg.Providers.Synthesis)
		if err != nil {
			return nil, fmt.Errorf("create synthesis provider %q: %w", name, err)
		}
		ps.synthesize = resilience.NewSynthesizeFallback(p, name, resilience.BreakerConfig{Name: "synthesis"})
		slog.Info("provider created", "kind", "synthesis", "name", name)
	}

	if name := cfg.Providers.Translation.Name; name != "" {
		p, err := reg.CreateTranslation(cfg.Providers.Translation)
		if err != nil {
			return nil, fmt.Errorf("create translation provider %q: %w", name, err)
		}
		ps.translate = resilience.NewTranslateFallback(p, name, resilience.BreakerConfig{Name: "translation"})
		slog.Info("provider created", "kind", "translation", "name", name)
	}

	if ps.recognize == nil {
		return nil, errors.New("providers.recognition must be configured")
	}
	if ps.synthesize == nil {
		return nil, errors.New("providers.synthesis must be configured")
	}
	return ps, nil
}

// filterConfig maps the YAML filter block onto the DSP chain config.
func filterConfig(f config.FiltersConfig) dsp.Config {
	return dsp.Config{
		HighPass:            f.HighPassEnabled(),
		HighPassCutoffHz:    f.HighPassCutoffHz,
		LowPass:             f.LowPassEnabled(),
		LowPassCutoffHz:     f.LowPassCutoffHz,
		NoiseGate:           f.NoiseGateEnabled(),
		GateThreshold:       f.GateThreshold,
		SpectralSubtraction: f.SpectralSubtractionEnabled(),
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║        soniclink — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Recognition", cfg.Providers.Recognition.Name, cfg.Providers.Recognition.Model)
	printProvider("Synthesis", cfg.Providers.Synthesis.Name, cfg.Providers.Synthesis.Model)
	printProvider("Translation", cfg.Providers.Translation.Name, cfg.Providers.Translation.Model)
	printSummaryRow("Language", orPlaceholder(cfg.Session.Language))
	printSummaryRow("Target lang", orPlaceholder(cfg.Session.TargetLanguage))
	printSummaryRow("Wake words", fmt.Sprintf("%d", len(cfg.Session.WakeWords)))
	if cfg.Transcript.PostgresDSN != "" {
		printSummaryRow("Transcripts", "postgres")
	} else {
		printSummaryRow("Transcripts", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		printSummaryRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	printSummaryRow(kind, value)
}

func printSummaryRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}

func orPlaceholder(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
