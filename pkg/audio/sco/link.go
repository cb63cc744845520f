// Package sco owns the Bluetooth SCO audio-link lifecycle. The [Manager]
// establishes and supervises the link before capture can begin, and is the
// single owner of the process-wide audio-routing mode: it acquires the voice
// route on connect and restores the default route on teardown, so no other
// component ever mutates global routing state.
package sco

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the link lifecycle state.
type State int

const (
	// StateOff is the initial state: no link requested.
	StateOff State = iota

	// StateConnecting means a link request is pending and readiness is being
	// polled.
	StateConnecting

	// StateConnected means the SCO link is active and audio is routed to it.
	StateConnected

	// StateTornDown means Teardown ran; the default route has been restored.
	// Connect may be called again from this state.
	StateTornDown
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateOff:
		return "OFF"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateTornDown:
		return "TORN_DOWN"
	default:
		return "UNKNOWN"
	}
}

// ErrTimeout is returned by [Manager.Connect] when the link does not become
// active within the configured number of polling attempts. This is non-fatal:
// capture can proceed on whatever default audio route the platform provides.
var ErrTimeout = errors.New("sco: link connection timed out")

// Link abstracts the platform Bluetooth SCO control surface. Implementations
// wrap the OS audio manager; tests use
// [github.com/wrenhold/soniclink/pkg/audio/sco/mock].
type Link interface {
	// Active reports whether the SCO link is currently up.
	Active() bool

	// Request asks the platform to bring the SCO link up. The link becomes
	// active asynchronously; poll [Link.Active] for readiness.
	Request() error

	// Release drops the SCO link. Must be safe to call when no link is up.
	Release() error

	// RouteVoice switches the device-wide audio routing mode to the SCO
	// voice path.
	RouteVoice() error

	// RestoreRoute restores the default audio routing mode. Must be safe to
	// call even if RouteVoice never ran.
	RestoreRoute() error
}

// Option configures a [Manager] during construction.
type Option func(*Manager)

// WithPollInterval sets the readiness polling interval. Default 500 ms.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithMaxAttempts sets the bounded number of readiness polls. Default 10.
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// Manager supervises the SCO link state machine:
//
//	OFF → CONNECTING → CONNECTED → TORN_DOWN
//
// All exported methods are safe for concurrent use.
type Manager struct {
	link         Link
	pollInterval time.Duration
	maxAttempts  int

	mu      sync.Mutex
	state   State
	routed  bool
	onState func(State) // last-writer-wins state-change callback
}

// NewManager creates a Manager for the given platform link.
func NewManager(link Link, opts ...Option) *Manager {
	m := &Manager{
		link:         link,
		pollInterval: 500 * time.Millisecond,
		maxAttempts:  10,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers cb to be invoked on every state transition. Only
// one callback may be registered at a time; subsequent calls replace the
// previous registration. The callback runs on its own goroutine, never under
// the Manager's lock, so it may block and may call back into the Manager.
func (m *Manager) OnStateChange(cb func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onState = cb
}

// Connect brings the SCO link up. If the link is already active it transitions
// straight to CONNECTED; otherwise it requests the link and polls for
// readiness at the configured interval up to the configured attempt bound.
// On success the voice route is acquired and the connected transition fires.
// On exhausting all attempts it returns [ErrTimeout] and leaves the state OFF.
//
// Connect returns nil immediately when already connected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return nil
	}
	if m.state == StateConnecting {
		m.mu.Unlock()
		return fmt.Errorf("sco: connect already in progress")
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if m.link.Active() {
		return m.finishConnect()
	}

	if err := m.link.Request(); err != nil {
		m.setState(StateOff)
		return fmt.Errorf("sco: request link: %w", err)
	}

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			m.setState(StateOff)
			return fmt.Errorf("sco: connect: %w", ctx.Err())
		case <-ticker.C:
		}

		if m.link.Active() {
			return m.finishConnect()
		}
		slog.Debug("sco: link not ready", "attempt", attempt, "max", m.maxAttempts)
	}

	m.setState(StateOff)
	return ErrTimeout
}

// finishConnect acquires the voice route and fires the connected transition.
func (m *Manager) finishConnect() error {
	if err := m.link.RouteVoice(); err != nil {
		m.setState(StateOff)
		return fmt.Errorf("sco: route voice: %w", err)
	}

	m.mu.Lock()
	m.routed = true
	m.setStateLocked(StateConnected)
	m.mu.Unlock()

	slog.Info("sco: link connected")
	return nil
}

// Teardown releases the link and restores the default audio route
// unconditionally, even if the manager never fully connected. It is
// idempotent; Connect may be called again afterwards.
func (m *Manager) Teardown() {
	m.mu.Lock()
	if m.state == StateTornDown {
		m.mu.Unlock()
		return
	}
	m.routed = false
	m.mu.Unlock()

	if err := m.link.Release(); err != nil {
		slog.Warn("sco: release link", "err", err)
	}
	// Restoring the route must happen even when the link was never up, so a
	// half-finished connect can never leak global audio state.
	if err := m.link.RestoreRoute(); err != nil {
		slog.Warn("sco: restore route", "err", err)
	}

	m.setState(StateTornDown)
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.setStateLocked(s)
	m.mu.Unlock()
}

// setStateLocked transitions the state and fires the callback. Must be called
// with m.mu held. The callback is invoked on a fresh goroutine so it never
// runs under the lock.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.onState != nil {
		cb := m.onState
		go cb(s)
	}
}
