package interp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"google.golang.org/genai"

	"github.com/voxroom/voxroom/pkg/audio"
)

// ErrNoAPIKey is returned when the backend is constructed without a
// credential.
var ErrNoAPIKey = errors.New("interp: missing Gemini API key")

// GeminiConfig configures the Gemini-backed translation backend.
type GeminiConfig struct {
	APIKey         string
	LiveModel      string
	TranslateModel string
	TTSModel       string
	Voice          string
}

func (c *GeminiConfig) applyDefaults() {
	if c.LiveModel == "" {
		c.LiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"
	}
	if c.TranslateModel == "" {
		c.TranslateModel = "gemini-2.0-flash-lite"
	}
	if c.TTSModel == "" {
		c.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if c.Voice == "" {
		c.Voice = "Orus"
	}
}

// GeminiBackend implements Backend against the Gemini Live API for the
// streaming session and the generate-content API for one-shot
// translation and speech replay.
type GeminiBackend struct {
	client *genai.Client
	cfg    GeminiConfig
	log    *slog.Logger
}

// NewGeminiBackend creates the backend. It fails fast when no API key
// is available rather than at first connect.
func NewGeminiBackend(ctx context.Context, cfg GeminiConfig, log *slog.Logger) (*GeminiBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNoAPIKey
	}
	cfg.applyDefaults()
	if log == nil {
		log = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiBackend{client: client, cfg: cfg, log: log}, nil
}

// Connect opens a Live API session with audio response modality and
// both transcription channels enabled, then pumps server messages onto
// the event channel until the session closes.
func (g *GeminiBackend) Connect(ctx context.Context, cfg SessionConfig, events chan<- Event) (Conn, error) {
	liveCfg := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.ModalityAudio},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	}

	session, err := g.client.Live.Connect(ctx, g.cfg.LiveModel, liveCfg)
	if err != nil {
		return nil, fmt.Errorf("live connect: %w", err)
	}

	conn := &geminiConn{
		session: session,
		events:  events,
		log:     g.log,
	}
	go conn.receiveLoop()
	return conn, nil
}

// Translate performs a one-shot translation of finalized text.
func (g *GeminiBackend) Translate(ctx context.Context, text, sourceLang, targetLang, contextHint string) (string, error) {
	prompt := BuildTranslatePrompt(text, sourceLang, targetLang, contextHint)
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.TranslateModel, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("translate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

// Synthesize renders text to speech with the session voice, returning
// base64 PCM16 at the playback rate.
func (g *GeminiBackend) Synthesize(ctx context.Context, text string) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: g.cfg.Voice},
			},
		},
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.TTSModel, genai.Text(text), cfg)
	if err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return audio.EncodePCM16(part.InlineData.Data), nil
			}
		}
	}
	return "", fmt.Errorf("synthesize: no audio in response")
}

// geminiConn adapts one live session to the Conn interface.
type geminiConn struct {
	session *genai.Session
	events  chan<- Event
	log     *slog.Logger
	closed  atomic.Bool
}

func (c *geminiConn) SendAudio(base64PCM string, sampleRate int) error {
	if c.closed.Load() {
		return ErrSessionClosed
	}
	data, err := base64.StdEncoding.DecodeString(base64PCM)
	if err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return c.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			Data:     data,
			MIMEType: fmt.Sprintf("audio/pcm;rate=%d", sampleRate),
		},
	})
}

func (c *geminiConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.session.Close()
}

// receiveLoop maps Live API server messages onto the typed event
// surface. It exits when the session ends; an error after a deliberate
// close is not surfaced.
func (c *geminiConn) receiveLoop() {
	for {
		msg, err := c.session.Receive()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.emit(ErrorEvent{Err: err})
			return
		}
		sc := msg.ServerContent
		if sc == nil {
			continue
		}

		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			c.emit(TranscriptEvent{Text: sc.InputTranscription.Text, IsInput: true})
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			c.emit(TranscriptEvent{Text: sc.OutputTranscription.Text, IsInput: false})
		}
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				if part.InlineData != nil && len(part.InlineData.Data) > 0 {
					c.emit(AudioEvent{Base64: audio.EncodePCM16(part.InlineData.Data)})
				}
			}
		}
		if sc.TurnComplete {
			c.emit(TurnCompleteEvent{})
		}
	}
}

func (c *geminiConn) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.log.Warn("event channel full, dropping event", "kind", ev.EventType())
	}
}
