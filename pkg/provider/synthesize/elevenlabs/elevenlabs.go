// Package elevenlabs provides an ElevenLabs-backed synthesis provider using
// the ElevenLabs streaming WebSocket API. It implements the
// synthesize.Provider interface.
package elevenlabs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"layeh.com/gopus"

	"github.com/wrenhold/soniclink/pkg/audio"
	"github.com/wrenhold/soniclink/pkg/provider/synthesize"
)

const (
	wsEndpointFmt = "wss://api.elevenlabs.io/v1/text-to-speech/%s/stream-input?model_id=%s&output_format=%s"
	defaultModel  = "eleven_flash_v2_5"
	defaultFormat = "pcm_16000"
	defaultVoice  = "21m00Tcm4TlvDq8ikWAM"

	// opusMaxFrame is the largest Opus frame the decoder may produce:
	// 120 ms at 48 kHz.
	opusMaxFrame = 5760
)

// Compile-time interface assertion.
var _ synthesize.Provider = (*Provider)(nil)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithModel sets the ElevenLabs model ID (e.g. "eleven_flash_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithOutputFormat sets the audio output format. PCM formats ("pcm_16000",
// "pcm_24000") pass through unchanged; Opus formats ("opus_48000_64") are
// decoded to PCM locally, trading CPU for roughly a tenth of the bandwidth on
// slow links.
func WithOutputFormat(format string) Option {
	return func(p *Provider) {
		p.outputFormat = format
	}
}

// WithDefaultVoice sets the voice used when a request does not name one.
func WithDefaultVoice(voiceID string) Option {
	return func(p *Provider) {
		p.defaultVoice = voiceID
	}
}

// Provider implements synthesize.Provider backed by the ElevenLabs streaming
// API.
type Provider struct {
	apiKey       string
	model        string
	outputFormat string
	defaultVoice string
	codec        string
	sampleRate   int
}

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:       apiKey,
		model:        defaultModel,
		outputFormat: defaultFormat,
		defaultVoice: defaultVoice,
	}
	for _, o := range opts {
		o(p)
	}

	codec, rate, err := parseFormat(p.outputFormat)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: %w", err)
	}
	p.codec = codec
	p.sampleRate = rate
	return p, nil
}

// SampleRate implements synthesize.Provider.
func (p *Provider) SampleRate() int { return p.sampleRate }

// parseFormat splits an ElevenLabs output format like "pcm_16000" or
// "opus_48000_64" into its codec and sample rate.
func parseFormat(format string) (codec string, rate int, err error) {
	parts := strings.Split(format, "_")
	if len(parts) < 2 {
		return "", 0, fmt.Errorf("malformed output format %q", format)
	}
	codec = parts[0]
	if codec != "pcm" && codec != "opus" {
		return "", 0, fmt.Errorf("unsupported codec in output format %q", format)
	}
	rate, err = strconv.Atoi(parts[1])
	if err != nil || rate <= 0 {
		return "", 0, fmt.Errorf("bad sample rate in output format %q", format)
	}
	return codec, rate, nil
}

// ---- WebSocket message types ----

// textMessage is the JSON payload sent to ElevenLabs for each text fragment.
type textMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// audioResponse is the JSON message received from ElevenLabs over the
// WebSocket.
type audioResponse struct {
	Audio   string `json:"audio"` // base64-encoded audio chunk
	IsFinal bool   `json:"isFinal"`
	Message string `json:"message,omitempty"`
}

// boiMessage is used for the initial "begin of input" handshake.
type boiMessage struct {
	Text          string         `json:"text"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
	XiAPIKey      string         `json:"xi_api_key"`
	OutputFormat  string         `json:"output_format,omitempty"`
}

// Synthesize opens a WebSocket to ElevenLabs, sends the request text, and
// returns a channel emitting PCM chunks as the backend produces them.
func (p *Provider) Synthesize(ctx context.Context, req synthesize.Request) (<-chan []byte, error) {
	if req.Text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	voice := req.Voice
	if voice == "" {
		voice = p.defaultVoice
	}

	var decoder *gopus.Decoder
	if p.codec == "opus" {
		dec, err := gopus.NewDecoder(p.sampleRate, 1)
		if err != nil {
			return nil, fmt.Errorf("elevenlabs: create opus decoder: %w", err)
		}
		decoder = dec
	}

	wsURL := fmt.Sprintf(wsEndpointFmt, voice, p.model, p.outputFormat)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: dial: %w", err)
	}

	// Authenticate and configure the stream before any text.
	boi := boiMessage{
		Text: " ", // ElevenLabs requires a non-empty first text value
		VoiceSettings: &voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		XiAPIKey:     p.apiKey,
		OutputFormat: p.outputFormat,
	}
	boiBytes, _ := json.Marshal(boi)
	if err := conn.Write(ctx, websocket.MessageText, boiBytes); err != nil {
		conn.Close(websocket.StatusInternalError, "failed to send BOI")
		return nil, fmt.Errorf("elevenlabs: send BOI: %w", err)
	}

	out := make(chan []byte, 64)

	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "done")

		// Single text payload followed by the flush command: the full response
		// text is already known when synthesis starts.
		payload := textMessage{
			Text:          req.Text,
			VoiceSettings: &voiceSettings{Stability: 0.5, SimilarityBoost: 0.75},
		}
		msgBytes, _ := json.Marshal(payload)
		if err := conn.Write(ctx, websocket.MessageText, msgBytes); err != nil {
			return
		}
		flushBytes, _ := json.Marshal(textMessage{Text: ""})
		if err := conn.Write(ctx, websocket.MessageText, flushBytes); err != nil {
			return
		}

		for {
			_, msg, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var resp audioResponse
			if err := json.Unmarshal(msg, &resp); err != nil {
				continue
			}
			if resp.Audio != "" {
				chunk, err := base64.StdEncoding.DecodeString(resp.Audio)
				if err != nil {
					continue
				}
				pcm := chunk
				if decoder != nil {
					pcm, err = decodeOpus(decoder, chunk)
					if err != nil {
						continue
					}
				}
				select {
				case out <- pcm:
				case <-ctx.Done():
					return
				}
			}
			if resp.IsFinal {
				return
			}
		}
	}()

	return out, nil
}

// decodeOpus decodes one Opus packet into little-endian PCM16 bytes.
func decodeOpus(dec *gopus.Decoder, packet []byte) ([]byte, error) {
	pcm, err := dec.Decode(packet, opusMaxFrame, false)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}
	return audio.Int16ToBytes(pcm), nil
}
