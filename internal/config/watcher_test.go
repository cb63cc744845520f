package config

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const watcherYAML = `
server:
  listen_addr: ":9090"
  log_level: info
`

const watcherYAMLDebug = `
server:
  listen_addr: ":9090"
  log_level: debug
`

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func TestWatcher_InitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soniclink.yaml")
	writeConfigFile(t, path, watcherYAML)

	w, err := NewWatcher(path, nil, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Errorf("initial log level = %q, want info", got)
	}
}

func TestWatcher_InitialLoadFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soniclink.yaml")
	writeConfigFile(t, path, "server: [not a mapping]")

	if _, err := NewWatcher(path, nil); err == nil {
		t.Fatal("expected error for invalid initial config")
	}
}

func TestWatcher_DetectsChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soniclink.yaml")
	writeConfigFile(t, path, watcherYAML)

	var mu sync.Mutex
	var got *Config
	changed := make(chan struct{})
	onChange := func(old, new *Config) {
		mu.Lock()
		got = new
		mu.Unlock()
		close(changed)
	}

	w, err := NewWatcher(path, onChange, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	// Backdate mtime handling: ensure the rewrite gets a new timestamp.
	time.Sleep(20 * time.Millisecond)
	writeConfigFile(t, path, watcherYAMLDebug)

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("change never detected")
	}

	mu.Lock()
	defer mu.Unlock()
	if got.Server.LogLevel != LogDebug {
		t.Errorf("new log level = %q, want debug", got.Server.LogLevel)
	}
	if w.Current().Server.LogLevel != LogDebug {
		t.Error("Current() not updated after reload")
	}
}

func TestWatcher_KeepsOldConfigOnInvalidRewrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "soniclink.yaml")
	writeConfigFile(t, path, watcherYAML)

	w, err := NewWatcher(path, func(old, new *Config) {
		t.Error("onChange fired for invalid config")
	}, WithInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	defer w.Stop()

	time.Sleep(20 * time.Millisecond)
	writeConfigFile(t, path, "server:\n  log_level: shouting\n")

	// Give the poller a few cycles to notice the rewrite.
	time.Sleep(100 * time.Millisecond)

	if got := w.Current().Server.LogLevel; got != LogInfo {
		t.Errorf("log level = %q, want the previous valid value", got)
	}
}
