package interp

import "context"

// SessionConfig is the immutable configuration of one backend session.
// There is no in-band reconfigure: changing the language pair or the
// context hint requires tearing the session down and opening a new one.
type SessionConfig struct {
	SourceLanguage    string
	TargetLanguage    string
	SystemInstruction string
}

// Conn is one open bidirectional streaming session. Events flow back on
// the channel supplied to Backend.Connect.
type Conn interface {
	// SendAudio submits one base64-encoded PCM16 frame tagged with its
	// sample rate.
	SendAudio(base64PCM string, sampleRate int) error

	// Close requests a graceful shutdown of the session.
	Close() error
}

// disconnector is an optional Conn capability. Some transports expose a
// harder teardown alongside Close; Stop attempts both and tolerates
// either being absent or failing.
type disconnector interface {
	Disconnect() error
}

// Backend is the speech/translation collaborator: a black-box streaming
// endpoint plus the two one-shot calls used outside the live session.
type Backend interface {
	// Connect opens a streaming session. The adapter delivers all
	// session activity as Events on the supplied channel until the
	// session is closed or fails.
	Connect(ctx context.Context, cfg SessionConfig, events chan<- Event) (Conn, error)

	// Translate performs a one-shot translation of finalized text,
	// independent of any live session.
	Translate(ctx context.Context, text, sourceLang, targetLang, contextHint string) (string, error)

	// Synthesize renders text to speech, returning base64 PCM16 for the
	// playback pipeline.
	Synthesize(ctx context.Context, text string) (string, error)
}
