// Package openai provides a recognition provider backed by the OpenAI audio
// transcription API. It implements the recognize.Provider interface.
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/wrenhold/soniclink/pkg/provider/recognize"
)

const defaultModel = oai.AudioModelWhisper1

// Compile-time interface assertion.
var _ recognize.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	model   oai.AudioModel
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel sets the transcription model (e.g. "whisper-1",
// "gpt-4o-transcribe").
func WithModel(model string) Option {
	return func(c *config) {
		c.model = oai.AudioModel(model)
	}
}

// WithBaseURL overrides the default OpenAI API base URL, e.g. for an
// OpenAI-compatible local inference server.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// Provider implements recognize.Provider using the OpenAI transcription API.
type Provider struct {
	client oai.Client
	model  oai.AudioModel
}

// New constructs a new OpenAI recognition Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Recognize implements recognize.Provider. The utterance is wrapped in a WAV
// container because the transcription endpoint does not accept raw PCM.
func (p *Provider) Recognize(ctx context.Context, req recognize.Request) (recognize.Result, error) {
	if len(req.PCM) == 0 {
		return recognize.Result{}, errors.New("openai: empty utterance")
	}
	if req.SampleRate <= 0 {
		return recognize.Result{}, fmt.Errorf("openai: invalid sample rate %d", req.SampleRate)
	}

	wav := encodeWAV(req.PCM, req.SampleRate)
	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: p.model,
	}

	lang := languageCode(req.Language)
	if lang != "" {
		params.Language = oai.String(lang)
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return recognize.Result{}, fmt.Errorf("openai: transcribe: %w", err)
	}

	return recognize.Result{
		Text:     strings.TrimSpace(resp.Text),
		Language: req.Language,
	}, nil
}

// languageCode reduces a BCP-47 tag to the bare ISO-639-1 code the
// transcription API expects ("en-US" becomes "en").
func languageCode(tag string) string {
	code, _, _ := strings.Cut(tag, "-")
	return strings.ToLower(code)
}

// encodeWAV wraps mono PCM16 audio in a minimal RIFF/WAVE container.
func encodeWAV(pcm []byte, sampleRate int) []byte {
	const (
		headerSize    = 44
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 0, headerSize+len(pcm))
	w := bytes.NewBuffer(buf)

	w.WriteString("RIFF")
	binary.Write(w, binary.LittleEndian, uint32(36+len(pcm)))
	w.WriteString("WAVE")

	w.WriteString("fmt ")
	binary.Write(w, binary.LittleEndian, uint32(16)) // PCM fmt chunk size
	binary.Write(w, binary.LittleEndian, uint16(1))  // PCM format
	binary.Write(w, binary.LittleEndian, uint16(channels))
	binary.Write(w, binary.LittleEndian, uint32(sampleRate))
	binary.Write(w, binary.LittleEndian, uint32(byteRate))
	binary.Write(w, binary.LittleEndian, uint16(blockAlign))
	binary.Write(w, binary.LittleEndian, uint16(bitsPerSample))

	w.WriteString("data")
	binary.Write(w, binary.LittleEndian, uint32(len(pcm)))
	w.Write(pcm)

	return w.Bytes()
}
