// Package mock provides an in-memory [playback.OutputDevice] for tests.
package mock

import (
	"sync"
	"time"

	"github.com/wrenhold/soniclink/pkg/audio/playback"
)

// Compile-time interface assertion.
var _ playback.OutputDevice = (*Device)(nil)

// Write records one device write with its wall-clock time, letting tests
// assert ordering and gaplessness.
type Write struct {
	PCM []byte
	At  time.Time
}

// Device is a recording [playback.OutputDevice]. Set OpenErr or WriteErr to
// inject failures.
type Device struct {
	// OpenErr, when non-nil, is returned by Open.
	OpenErr error

	// WriteErr, when non-nil, is returned by every Write.
	WriteErr error

	mu      sync.Mutex
	opens   int
	closes  int
	open    bool
	rate    int
	routed  bool
	writes  []Write
}

// New creates an idle Device.
func New() *Device {
	return &Device{}
}

// Open implements [playback.OutputDevice].
func (d *Device) Open(sampleRate int, routeToBluetooth bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return d.OpenErr
	}
	d.open = true
	d.opens++
	d.rate = sampleRate
	d.routed = routeToBluetooth
	return nil
}

// Write implements [playback.OutputDevice].
func (d *Device) Write(pcm []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.WriteErr != nil {
		return 0, d.WriteErr
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	d.writes = append(d.writes, Write{PCM: cp, At: time.Now()})
	return len(pcm), nil
}

// Close implements [playback.OutputDevice]. Idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	d.closes++
	return nil
}

// Writes returns a copy of all recorded writes in order.
func (d *Device) Writes() []Write {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Write, len(d.writes))
	copy(out, d.writes)
	return out
}

// Opens reports how many times Open succeeded.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Closes reports how many times Close was called.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Routed reports whether the last Open requested the Bluetooth route.
func (d *Device) Routed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.routed
}
