// Package transcript keeps a record of completed exchanges: what was heard,
// what the recognizer made of it, what the translation said, and what was
// played back. A bounded in-memory [History] serves the live session; an
// optional PostgreSQL [Log] persists exchanges across restarts.
package transcript

import (
	"sync"
	"time"
)

// Exchange is one complete round trip through the pipeline.
type Exchange struct {
	// Recognized is the transcript returned by the recognition backend.
	Recognized string

	// Translated is the translation of Recognized, empty when no target
	// language is configured.
	Translated string

	// Spoken is the text that was sent to synthesis. Usually equal to
	// Translated (or Recognized when translation is off).
	Spoken string

	// Language is the BCP-47 tag of the recognized speech.
	Language string

	// TargetLanguage is the BCP-47 tag of the translation, if any.
	TargetLanguage string

	// WakePhrase is the wake phrase that triggered this exchange, empty when
	// no wake word is configured.
	WakePhrase string

	// Timestamp is when the utterance ended.
	Timestamp time.Time

	// Duration is the length of the spoken utterance.
	Duration time.Duration
}

// History is a bounded in-memory buffer of recent exchanges. It enforces both
// a maximum entry count and a maximum age; entries that exceed either limit
// are evicted on every [History.Add] call.
//
// All methods are safe for concurrent use.
type History struct {
	mu      sync.RWMutex
	entries []Exchange
	maxSize int
	maxAge  time.Duration
}

// NewHistory creates a buffer that retains at most maxSize exchanges and
// evicts exchanges older than maxAge.
func NewHistory(maxSize int, maxAge time.Duration) *History {
	return &History{
		entries: make([]Exchange, 0, maxSize),
		maxSize: maxSize,
		maxAge:  maxAge,
	}
}

// Add appends an exchange and evicts entries that exceed the configured
// maximum size or age.
func (h *History) Add(e Exchange) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, e)
	h.evict()
}

// Recent returns up to maxEntries exchanges within the configured age window,
// in chronological order (oldest first).
func (h *History) Recent(maxEntries int) []Exchange {
	h.mu.RLock()
	defer h.mu.RUnlock()

	cutoff := time.Now().Add(-h.maxAge)
	result := make([]Exchange, 0, maxEntries)

	for i := len(h.entries) - 1; i >= 0 && len(result) < maxEntries; i-- {
		e := h.entries[i]
		if e.Timestamp.Before(cutoff) {
			continue
		}
		result = append(result, e)
	}

	// Reverse to chronological order.
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

// Len returns the number of exchanges currently held.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// evict removes entries that are too old or exceed maxSize.
// Must be called with h.mu held.
//
// Surviving entries are copied to a fresh backing array so evicted entries do
// not pin memory for the lifetime of the session.
func (h *History) evict() {
	cutoff := time.Now().Add(-h.maxAge)

	start := 0
	for start < len(h.entries) && h.entries[start].Timestamp.Before(cutoff) {
		start++
	}

	keep := h.entries[start:]

	if len(keep) > h.maxSize {
		keep = keep[len(keep)-h.maxSize:]
	}

	if start > 0 || len(keep) < len(h.entries) {
		fresh := make([]Exchange, len(keep), h.maxSize)
		copy(fresh, keep)
		h.entries = fresh
	}
}
