package config

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// sets RequiresRestart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// GainChanged is set when audio.capture_gain changed. The new gain
	// applies from the next capture session.
	GainChanged bool
	NewGain     float64

	// FiltersChanged is set when any filter toggle or cutoff changed. The
	// filter chain is rebuilt on the next capture session.
	FiltersChanged bool

	// SegmenterChanged is set when any utterance-boundary timing changed.
	SegmenterChanged bool

	// SessionChanged is set when the language pair, wake words, or voice
	// changed.
	SessionChanged bool

	// RequiresRestart is set when a change cannot be applied to a running
	// pipeline (providers, audio device parameters, SCO tuning, listen
	// address).
	RequiresRestart bool
}

// Changed reports whether the diff contains any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.GainChanged || d.FiltersChanged ||
		d.SegmenterChanged || d.SessionChanged || d.RequiresRestart
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Audio.CaptureGainOrDefault() != new.Audio.CaptureGainOrDefault() {
		d.GainChanged = true
		d.NewGain = new.Audio.CaptureGainOrDefault()
	}

	if filtersDiffer(old.Filters, new.Filters) {
		d.FiltersChanged = true
	}

	if old.Segmenter != new.Segmenter {
		d.SegmenterChanged = true
	}

	if sessionsDiffer(old.Session, new.Session) {
		d.SessionChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr ||
		old.Audio.SampleRate != new.Audio.SampleRate ||
		old.Audio.FrameSize != new.Audio.FrameSize ||
		old.Audio.RouteToBluetoothOrDefault() != new.Audio.RouteToBluetoothOrDefault() ||
		old.Audio.SCO != new.Audio.SCO ||
		providersDiffer(old.Providers, new.Providers) ||
		old.Transcript != new.Transcript {
		d.RequiresRestart = true
	}

	return d
}

// filtersDiffer compares filter configs through their defaulted accessors so
// an explicit `high_pass: true` never reads as a change from an omitted field.
func filtersDiffer(old, new FiltersConfig) bool {
	return old.HighPassEnabled() != new.HighPassEnabled() ||
		old.HighPassCutoffHz != new.HighPassCutoffHz ||
		old.LowPassEnabled() != new.LowPassEnabled() ||
		old.LowPassCutoffHz != new.LowPassCutoffHz ||
		old.NoiseGateEnabled() != new.NoiseGateEnabled() ||
		old.GateThreshold != new.GateThreshold ||
		old.SpectralSubtractionEnabled() != new.SpectralSubtractionEnabled()
}

func sessionsDiffer(old, new SessionConfig) bool {
	if old.Language != new.Language ||
		old.TargetLanguage != new.TargetLanguage ||
		old.Voice != new.Voice {
		return true
	}
	if len(old.WakeWords) != len(new.WakeWords) {
		return true
	}
	for i := range old.WakeWords {
		if old.WakeWords[i] != new.WakeWords[i] {
			return true
		}
	}
	return false
}

func providersDiffer(old, new ProvidersConfig) bool {
	return entryDiffers(old.Recognition, new.Recognition) ||
		entryDiffers(old.Synthesis, new.Synthesis) ||
		entryDiffers(old.Translation, new.Translation)
}

// entryDiffers ignores the free-form Options map; a change confined to
// Options is not detected and needs a manual restart.
func entryDiffers(old, new ProviderEntry) bool {
	return old.Name != new.Name ||
		old.APIKey != new.APIKey ||
		old.BaseURL != new.BaseURL ||
		old.Model != new.Model
}
