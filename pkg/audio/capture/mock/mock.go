// Package mock provides an in-memory [capture.InputDevice] for tests.
package mock

import (
	"errors"
	"sync"

	"github.com/wrenhold/soniclink/pkg/audio/capture"
)

// Compile-time interface assertion.
var _ capture.InputDevice = (*Device)(nil)

// ErrClosed is returned by [Device.Read] once the device has been closed.
var ErrClosed = errors.New("mock device: closed")

// Device is a scriptable [capture.InputDevice]. Feed PCM chunks with
// [Device.Push]; each Read returns the next chunk (or blocks until one
// arrives). Set OpenErr to make Open fail fast.
type Device struct {
	// OpenErr, when non-nil, is returned by Open.
	OpenErr error

	mu       sync.Mutex
	chunks   chan []byte
	closed   chan struct{}
	open     bool
	opens    int
	closes   int
	readErrs []error
}

// New creates a Device with room for 64 pending chunks.
func New() *Device {
	return &Device{
		chunks: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

// Push queues one PCM chunk for a future Read.
func (d *Device) Push(pcm []byte) {
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	d.chunks <- cp
}

// FailNextRead queues err to be returned by an upcoming Read before any
// pending chunks are consumed again.
func (d *Device) FailNextRead(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readErrs = append(d.readErrs, err)
}

// Open implements [capture.InputDevice].
func (d *Device) Open(sampleRate, bufSize int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.OpenErr != nil {
		return d.OpenErr
	}
	// Allow reopening after a Close so restart scenarios work.
	select {
	case <-d.closed:
		d.closed = make(chan struct{})
	default:
	}
	d.open = true
	d.opens++
	return nil
}

// Read implements [capture.InputDevice]. It blocks until a chunk is pushed or
// the device is closed.
func (d *Device) Read(buf []byte) (int, error) {
	d.mu.Lock()
	if len(d.readErrs) > 0 {
		err := d.readErrs[0]
		d.readErrs = d.readErrs[1:]
		d.mu.Unlock()
		return 0, err
	}
	closed := d.closed
	d.mu.Unlock()

	select {
	case <-closed:
		return 0, ErrClosed
	case chunk := <-d.chunks:
		n := copy(buf, chunk)
		return n, nil
	}
}

// Close implements [capture.InputDevice]. Idempotent.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.open {
		d.open = false
	}
	d.closes++
	select {
	case <-d.closed:
	default:
		close(d.closed)
	}
	return nil
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
