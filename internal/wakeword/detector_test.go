package wakeword

import (
	"testing"
)

func TestDetect_ExactMatch(t *testing.T) {
	d := New([]string{"hey link"})

	m, ok := d.Detect("Hey Link, what time is it?")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Phrase != "hey link" {
		t.Errorf("phrase = %q, want %q", m.Phrase, "hey link")
	}
	if m.Remainder != "what time is it?" {
		t.Errorf("remainder = %q, want %q", m.Remainder, "what time is it?")
	}
	if m.Confidence < 0.99 {
		t.Errorf("confidence = %f, want ~1.0 for exact match", m.Confidence)
	}
}

func TestDetect_PhoneticVariants(t *testing.T) {
	d := New([]string{"hey link"})

	// Transcription backends commonly return homophones of short trigger
	// phrases. All of these should still wake.
	for _, text := range []string{
		"hay link turn on the lights",
		"hey lynk turn on the lights",
		"heylink turn on the lights",
	} {
		if _, ok := d.Detect(text); !ok {
			t.Errorf("Detect(%q) = no match, want match", text)
		}
	}
}

func TestDetect_MidSentence(t *testing.T) {
	d := New([]string{"hey link"})

	m, ok := d.Detect("um hey link play some music")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Remainder != "play some music" {
		t.Errorf("remainder = %q, want %q", m.Remainder, "play some music")
	}
}

func TestDetect_NoMatch(t *testing.T) {
	d := New([]string{"hey link"})

	for _, text := range []string{
		"what time is it",
		"the weather is nice today",
		"",
	} {
		if m, ok := d.Detect(text); ok {
			t.Errorf("Detect(%q) matched %q, want no match", text, m.Phrase)
		}
	}
}

func TestDetect_MultiplePhrases(t *testing.T) {
	d := New([]string{"hey link", "okay sonic"})

	m, ok := d.Detect("okay sonic what is on my calendar")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Phrase != "okay sonic" {
		t.Errorf("phrase = %q, want %q", m.Phrase, "okay sonic")
	}
}

func TestDetect_EmptyRemainder(t *testing.T) {
	d := New([]string{"hey link"})

	m, ok := d.Detect("hey link")
	if !ok {
		t.Fatal("expected a match")
	}
	if m.Remainder != "" {
		t.Errorf("remainder = %q, want empty", m.Remainder)
	}
}

func TestDetect_FuzzyThresholdRejectsUnrelated(t *testing.T) {
	d := New([]string{"hey link"})

	// "hey blink" shares codes with "hey link" but a strict fuzzy threshold
	// must still reject text with no phonetic or string similarity at all.
	if _, ok := d.Detect("completely unrelated sentence"); ok {
		t.Error("unrelated text matched")
	}
}

func TestDetect_CustomThresholds(t *testing.T) {
	strict := New([]string{"hey link"},
		WithPhoneticThreshold(0.99),
		WithFuzzyThreshold(0.99),
	)

	// With near-exact thresholds only the literal phrase passes.
	if _, ok := strict.Detect("hay lynk do something"); ok {
		t.Error("variant matched despite 0.99 thresholds")
	}
	if _, ok := strict.Detect("hey link do something"); !ok {
		t.Error("exact phrase rejected")
	}
}

func TestEnabled(t *testing.T) {
	if New(nil).Enabled() {
		t.Error("Enabled() = true for empty phrase list")
	}
	if New([]string{"  "}).Enabled() {
		t.Error("Enabled() = true for blank phrase")
	}
	if !New([]string{"hey link"}).Enabled() {
		t.Error("Enabled() = false with a phrase configured")
	}
}

func TestDetect_DisabledNeverMatches(t *testing.T) {
	d := New(nil)
	if _, ok := d.Detect("hey link do something"); ok {
		t.Error("detector with no phrases matched")
	}
}
