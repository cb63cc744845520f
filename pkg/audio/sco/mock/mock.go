// Package mock provides an in-memory [sco.Link] for tests.
package mock

import (
	"sync"

	"github.com/wrenhold/soniclink/pkg/audio/sco"
)

// Compile-time interface assertion.
var _ sco.Link = (*Link)(nil)

// Link is a scriptable [sco.Link]. By default a Request makes the link active
// after ActivateAfter further Active polls (0 = immediately).
type Link struct {
	// RequestErr, when non-nil, is returned by Request.
	RequestErr error

	// RouteErr, when non-nil, is returned by RouteVoice.
	RouteErr error

	// ActivateAfter is how many Active polls a pending request takes before
	// the link reports active. Negative means the link never comes up.
	ActivateAfter int

	mu        sync.Mutex
	active    bool
	requested bool
	polls     int
	releases  int
	routed    bool
	restores  int
}

// New creates an idle Link.
func New() *Link {
	return &Link{}
}

// SetActive forces the link state, emulating a link that is already up before
// any Request.
func (l *Link) SetActive(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = v
}

// Active implements [sco.Link].
func (l *Link) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return true
	}
	if !l.requested || l.ActivateAfter < 0 {
		return false
	}
	l.polls++
	if l.polls > l.ActivateAfter {
		l.active = true
	}
	return l.active
}

// Request implements [sco.Link].
func (l *Link) Request() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RequestErr != nil {
		return l.RequestErr
	}
	l.requested = true
	l.polls = 0
	return nil
}

// Release implements [sco.Link].
func (l *Link) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
	l.requested = false
	l.releases++
	return nil
}

// RouteVoice implements [sco.Link].
func (l *Link) RouteVoice() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.RouteErr != nil {
		return l.RouteErr
	}
	l.routed = true
	return nil
}

// RestoreRoute implements [sco.Link].
func (l *Link) RestoreRoute() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.routed = false
	l.restores++
	return nil
}

// Routed reports whether the voice route is currently held.
func (l *Link) Routed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.routed
}

// Restores reports how many times RestoreRoute was called.
func (l *Link) Restores() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.restores
}

// Releases reports how many times Release was called.
func (l *Link) Releases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.releases
}
