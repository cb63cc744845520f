package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	cfg := &Config{}
	cfg.Server.ListenAddr = ":9090"
	cfg.Server.LogLevel = LogInfo
	cfg.Audio.SampleRate = 16000
	cfg.Audio.CaptureGain = 1.5
	cfg.Session.Language = "en-US"
	cfg.Providers.Recognition.Name = "openai"
	return cfg
}

func TestDiff_NoChanges(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	if d := Diff(old, new); d.Changed() {
		t.Errorf("identical configs produced diff: %+v", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Server.LogLevel = LogDebug

	d := Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != LogDebug {
		t.Errorf("log level change not detected: %+v", d)
	}
	if d.RequiresRestart {
		t.Error("log level change should not require restart")
	}
}

func TestDiff_Gain(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Audio.CaptureGain = 2.5

	d := Diff(old, new)
	if !d.GainChanged || d.NewGain != 2.5 {
		t.Errorf("gain change not detected: %+v", d)
	}
	if d.RequiresRestart {
		t.Error("gain change should not require restart")
	}
}

func TestDiff_FilterDefaultsNotAChange(t *testing.T) {
	// Explicit `high_pass: true` must compare equal to the omitted default.
	old := baseConfig()
	new := baseConfig()
	on := true
	new.Filters.HighPass = &on

	if d := Diff(old, new); d.FiltersChanged {
		t.Error("explicit default read as a filter change")
	}
}

func TestDiff_FilterToggle(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	off := false
	new.Filters.NoiseGate = &off

	if d := Diff(old, new); !d.FiltersChanged {
		t.Error("noise gate toggle not detected")
	}
}

func TestDiff_Segmenter(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Segmenter.SilenceTimeout = 600 * time.Millisecond

	if d := Diff(old, new); !d.SegmenterChanged {
		t.Error("segmenter timing change not detected")
	}
}

func TestDiff_WakeWords(t *testing.T) {
	old := baseConfig()
	new := baseConfig()
	new.Session.WakeWords = []string{"hey link"}

	if d := Diff(old, new); !d.SessionChanged {
		t.Error("wake word change not detected")
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	cases := map[string]func(*Config){
		"listen addr":  func(c *Config) { c.Server.ListenAddr = ":8080" },
		"sample rate":  func(c *Config) { c.Audio.SampleRate = 8000 },
		"sco tuning":   func(c *Config) { c.Audio.SCO.MaxAttempts = 20 },
		"provider":     func(c *Config) { c.Providers.Recognition.Model = "gpt-4o-transcribe" },
		"postgres dsn": func(c *Config) { c.Transcript.PostgresDSN = "postgres://localhost/soniclink" },
	}
	for name, mutate := range cases {
		old := baseConfig()
		new := baseConfig()
		mutate(new)
		if d := Diff(old, new); !d.RequiresRestart {
			t.Errorf("%s change should require restart: %+v", name, d)
		}
	}
}
