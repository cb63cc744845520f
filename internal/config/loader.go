package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognition": {"openai"},
	"synthesis":   {"elevenlabs"},
	"translation": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must not be negative", cfg.Audio.FrameSize))
	} else if cfg.Audio.FrameSize%2 != 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be even (16-bit samples)", cfg.Audio.FrameSize))
	}
	if cfg.Audio.CaptureGain < 0 || cfg.Audio.CaptureGain > 10 {
		errs = append(errs, fmt.Errorf("audio.capture_gain %.2f is out of range [0, 10]", cfg.Audio.CaptureGain))
	}
	if cfg.Audio.SCO.PollInterval < 0 {
		errs = append(errs, fmt.Errorf("audio.sco.poll_interval must not be negative"))
	}
	if cfg.Audio.SCO.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("audio.sco.max_attempts must not be negative"))
	}

	// Filters
	if cfg.Filters.HighPassCutoffHz < 0 {
		errs = append(errs, fmt.Errorf("filters.high_pass_cutoff_hz must not be negative"))
	}
	if cfg.Filters.LowPassCutoffHz < 0 {
		errs = append(errs, fmt.Errorf("filters.low_pass_cutoff_hz must not be negative"))
	}
	if hp, lp := cfg.Filters.HighPassCutoffHz, cfg.Filters.LowPassCutoffHz; hp > 0 && lp > 0 && hp >= lp {
		errs = append(errs, fmt.Errorf("filters: high_pass_cutoff_hz %.0f must be below low_pass_cutoff_hz %.0f", hp, lp))
	}
	if cfg.Filters.GateThreshold < 0 {
		errs = append(errs, fmt.Errorf("filters.gate_threshold must not be negative"))
	}

	// Segmenter
	if cfg.Segmenter.SilenceThreshold < 0 {
		errs = append(errs, fmt.Errorf("segmenter.silence_threshold must not be negative"))
	}
	if cfg.Segmenter.SilenceTimeout < 0 {
		errs = append(errs, fmt.Errorf("segmenter.silence_timeout must not be negative"))
	}
	if cfg.Segmenter.MinSpeechDuration < 0 {
		errs = append(errs, fmt.Errorf("segmenter.min_speech_duration must not be negative"))
	}
	if cfg.Segmenter.MaxUtteranceDuration < 0 {
		errs = append(errs, fmt.Errorf("segmenter.max_utterance_duration must not be negative"))
	}
	if mx, mn := cfg.Segmenter.MaxUtteranceDuration, cfg.Segmenter.MinSpeechDuration; mx > 0 && mn > 0 && mx <= mn {
		errs = append(errs, fmt.Errorf("segmenter.max_utterance_duration %v must exceed min_speech_duration %v", mx, mn))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("recognition", cfg.Providers.Recognition.Name)
	validateProviderName("synthesis", cfg.Providers.Synthesis.Name)
	validateProviderName("translation", cfg.Providers.Translation.Name)

	// Session ↔ provider cross-validation
	if cfg.Session.TargetLanguage != "" && cfg.Providers.Translation.Name == "" {
		errs = append(errs, fmt.Errorf("session.target_language %q requires a translation provider but providers.translation is not configured", cfg.Session.TargetLanguage))
	}
	if cfg.Providers.Recognition.Name == "" {
		slog.Warn("no recognition provider configured; utterances will be segmented but never transcribed")
	}
	if cfg.Providers.Synthesis.Name == "" {
		slog.Warn("no synthesis provider configured; responses will be logged but never spoken")
	}
	for i, w := range cfg.Session.WakeWords {
		if w == "" {
			errs = append(errs, fmt.Errorf("session.wake_words[%d] must not be empty", i))
		}
	}

	// Transcript
	if cfg.Transcript.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("transcript.history_size must not be negative"))
	}
	if cfg.Transcript.PostgresDSN == "" {
		slog.Debug("transcript.postgres_dsn is empty; conversation history is in-memory only")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
