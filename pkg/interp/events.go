// Package interp owns the live interpretation session: one streaming
// connection to the translation backend per broadcasting participant,
// microphone frame encoding, event routing, and the restart policy for
// language and context changes.
package interp

// Event is the typed event surface from the backend session. Consumers
// receive all session activity over a single channel, each event tagged
// by kind.
type Event interface {
	EventType() string
}

// TranscriptEvent carries one incremental transcript fragment. Input
// fragments transcribe the speaker; output fragments transcribe the
// synthesized translation.
type TranscriptEvent struct {
	Text    string
	IsInput bool
}

func (e TranscriptEvent) EventType() string {
	if e.IsInput {
		return "transcript-input"
	}
	return "transcript-output"
}

// AudioEvent carries one chunk of synthesized speech as base64 PCM16.
type AudioEvent struct {
	Base64 string
}

func (e AudioEvent) EventType() string { return "audio-chunk" }

// TurnCompleteEvent marks the end of one utterance/response cycle.
type TurnCompleteEvent struct{}

func (e TurnCompleteEvent) EventType() string { return "turn-complete" }

// ErrorEvent surfaces a session fault. Session faults are fatal to the
// session: the caller's policy is to stop the broadcast, not retry.
type ErrorEvent struct {
	Err error
}

func (e ErrorEvent) EventType() string { return "error" }
