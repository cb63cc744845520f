// Package wakeword detects trigger phrases in recognized transcripts.
//
// Recognition backends routinely mangle short trigger phrases ("hey link"
// comes back as "hay link" or "hey lynk"), so exact substring matching is not
// enough. The detector combines Double Metaphone phonetic encoding with
// Jaro-Winkler string similarity: a sliding window over the transcript tokens
// is a hit when its phonetic codes overlap a wake phrase and the Jaro-Winkler
// score clears the phonetic threshold, or, without phonetic overlap, when the
// score clears a stricter fuzzy threshold.
package wakeword

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option is a functional option for configuring a [Detector].
type Option func(*Detector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched window to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when the
// window has no phonetic overlap with the phrase. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(d *Detector) {
		d.fuzzyThreshold = threshold
	}
}

// Match describes a detected wake phrase.
type Match struct {
	// Phrase is the configured wake phrase that matched.
	Phrase string

	// Confidence is the Jaro-Winkler score of the matching window.
	Confidence float64

	// Remainder is the transcript after the matched window, trimmed. This is
	// the part that carries the actual request.
	Remainder string
}

// Detector scans transcripts for configured wake phrases. All methods are
// safe for concurrent use; the Detector is read-only after construction.
type Detector struct {
	phrases           []phrase
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// phrase is a pre-tokenised wake phrase with its phonetic code set.
type phrase struct {
	text   string
	tokens []string
	joined string
	codes  map[string]struct{}
}

// New returns a Detector for the given wake phrases. An empty phrase list
// yields a detector whose Detect never matches; callers treat that as
// "no wake word required".
func New(phrases []string, opts ...Option) *Detector {
	d := &Detector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(d)
	}

	for _, p := range phrases {
		lower := strings.ToLower(strings.TrimSpace(p))
		if lower == "" {
			continue
		}
		tokens := strings.Fields(lower)
		d.phrases = append(d.phrases, phrase{
			text:   p,
			tokens: tokens,
			joined: strings.Join(tokens, " "),
			codes:  codesForTokens(tokens),
		})
	}
	return d
}

// Enabled reports whether any wake phrase is configured.
func (d *Detector) Enabled() bool {
	return len(d.phrases) > 0
}

// Detect scans text for the configured wake phrases and returns the best
// match. The phrase must appear at or near the start of its window; text
// following the matched window is returned as the remainder.
func (d *Detector) Detect(text string) (Match, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" || len(d.phrases) == 0 {
		return Match{}, false
	}
	tokens := strings.Fields(lower)

	var best Match
	var found bool

	for _, p := range d.phrases {
		n := len(p.tokens)
		if n == 0 || n > len(tokens) {
			continue
		}
		for start := 0; start+n <= len(tokens); start++ {
			window := tokens[start : start+n]
			score, ok := d.scoreWindow(window, p)
			if !ok || (found && score <= best.Confidence) {
				continue
			}
			best = Match{
				Phrase:     p.text,
				Confidence: score,
				Remainder:  strings.TrimSpace(strings.Join(tokens[start+n:], " ")),
			}
			found = true
		}
	}

	return best, found
}

// scoreWindow rates one token window against one wake phrase.
func (d *Detector) scoreWindow(window []string, p phrase) (float64, bool) {
	joined := strings.Join(window, " ")
	score := matchr.JaroWinkler(joined, p.joined, false)

	// Concatenated comparison absorbs token-boundary mistakes
	// ("heylink" vs "hey link").
	if s := matchr.JaroWinkler(strings.Join(window, ""), strings.Join(p.tokens, ""), false); s > score {
		score = s
	}

	if codesOverlap(codesForTokens(window), p.codes) {
		return score, score >= d.phoneticThreshold
	}
	return score, score >= d.fuzzyThreshold
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	// Iterate over the smaller set for efficiency.
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
