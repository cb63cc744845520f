package openai

import (
	"encoding/binary"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestNew_AppliesOptions(t *testing.T) {
	p, err := New("sk-test", WithModel("gpt-4o-transcribe"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(p.model); got != "gpt-4o-transcribe" {
		t.Errorf("model = %q, want gpt-4o-transcribe", got)
	}
}

func TestLanguageCode(t *testing.T) {
	cases := []struct {
		tag  string
		want string
	}{
		{"en-US", "en"},
		{"de-DE", "de"},
		{"ja", "ja"},
		{"PT-BR", "pt"},
		{"", ""},
	}
	for _, c := range cases {
		if got := languageCode(c.tag); got != c.want {
			t.Errorf("languageCode(%q) = %q, want %q", c.tag, got, c.want)
		}
	}
}

func TestEncodeWAV(t *testing.T) {
	pcm := make([]byte, 320)
	wav := encodeWAV(pcm, 16000)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE magic")
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != 1 {
		t.Errorf("channels = %d, want 1", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d, want 16000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d, want 32000", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d, want %d", got, len(pcm))
	}
}
