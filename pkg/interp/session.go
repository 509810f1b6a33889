package interp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxroom/voxroom/pkg/audio"
)

// ErrSessionActive is returned by Start when a session is already open
// or connecting; replacement must go through Restart so close always
// precedes open.
var ErrSessionActive = errors.New("interp: session already active")

// ErrSessionClosed is returned by a Conn whose session has been closed.
var ErrSessionClosed = errors.New("interp: session closed")

// Manager owns at most one live backend session for the local
// broadcaster. All backend activity is delivered on Events(); consumers
// subscribe once and route by event kind.
type Manager struct {
	backend    Backend
	sampleRate int
	log        *slog.Logger

	events  chan Event
	refresh *refreshScheduler

	mu         sync.Mutex
	conn       Conn
	connecting bool
	gen        uint64 // bumped on stop/restart to orphan in-flight connects
	source     string
	target     string
	restartCtx context.Context

	broadcasting atomic.Bool
	dropped      atomic.Int64
}

// NewManager creates a session manager. cooldown bounds context-driven
// restarts (zero means DefaultRefreshCooldown). sampleRate tags
// outgoing microphone frames.
func NewManager(backend Backend, cooldown time.Duration, sampleRate int, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	m := &Manager{
		backend:    backend,
		sampleRate: sampleRate,
		log:        log,
		events:     make(chan Event, 256),
	}
	m.refresh = newRefreshScheduler(cooldown, m.applyContextRefresh, m.broadcasting.Load)
	return m
}

// Events returns the typed event channel shared by all consumers.
func (m *Manager) Events() <-chan Event { return m.events }

// Start opens a new streaming session for the language pair. The
// connection is established asynchronously; frames sent before it
// resolves are dropped, not queued (audio is continuous, so losing a
// slice of speech during setup is the accepted trade for bounded
// memory). Connection failures surface as an ErrorEvent.
func (m *Manager) Start(ctx context.Context, sourceLang, targetLang, contextHint string) error {
	m.mu.Lock()
	if m.conn != nil || m.connecting {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.connecting = true
	m.source = sourceLang
	m.target = targetLang
	m.restartCtx = ctx
	gen := m.gen
	m.mu.Unlock()

	m.broadcasting.Store(true)
	m.refresh.MarkApplied()

	cfg := SessionConfig{
		SourceLanguage:    sourceLang,
		TargetLanguage:    targetLang,
		SystemInstruction: BuildSystemInstruction(sourceLang, targetLang, contextHint),
	}
	go m.connect(ctx, gen, cfg)
	return nil
}

func (m *Manager) connect(ctx context.Context, gen uint64, cfg SessionConfig) {
	conn, err := m.backend.Connect(ctx, cfg, m.events)

	m.mu.Lock()
	if m.gen != gen {
		// Superseded by a stop or restart while connecting.
		m.mu.Unlock()
		if err == nil {
			if cerr := conn.Close(); cerr != nil {
				m.log.Warn("closing superseded session failed", "err", cerr)
			}
		}
		return
	}
	m.connecting = false
	if err != nil {
		m.mu.Unlock()
		m.emit(ErrorEvent{Err: err})
		return
	}
	m.conn = conn
	m.mu.Unlock()

	m.log.Info("interpretation session open",
		"source", cfg.SourceLanguage, "target", cfg.TargetLanguage)
	sessionsOpened.Inc()
}

// Send encodes one raw PCM16 microphone frame as the base64 wire
// payload and forwards it to the open session. A frame arriving while
// no session is open is silently dropped.
func (m *Manager) Send(pcm16 []byte) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		m.dropped.Add(1)
		framesDropped.Inc()
		return
	}
	if err := conn.SendAudio(audio.EncodePCM16(pcm16), m.sampleRate); err != nil {
		// A single failed frame is non-fatal; subsequent frames continue.
		m.dropped.Add(1)
		framesDropped.Inc()
		m.log.Debug("frame send failed", "err", err)
		return
	}
	framesSent.Inc()
}

// DroppedFrames reports frames discarded while no session was open or a
// send failed.
func (m *Manager) DroppedFrames() int64 { return m.dropped.Load() }

// Stop gracefully closes the session. Both the close and the optional
// disconnect capability are attempted; failures are logged and
// swallowed, and the local session reference is always cleared. Any
// pending debounced refresh is cancelled.
func (m *Manager) Stop() {
	m.broadcasting.Store(false)
	m.refresh.Cancel()
	m.closeCurrent()
}

func (m *Manager) closeCurrent() {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.connecting = false
	m.gen++
	m.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.Close(); err != nil {
		m.log.Warn("session close failed", "err", err)
	}
	if d, ok := conn.(disconnector); ok {
		if err := d.Disconnect(); err != nil {
			m.log.Warn("session disconnect failed", "err", err)
		}
	}
}

// Restart atomically replaces the session: any pending debounced
// refresh is cancelled first so a restart is never chased by a stale
// scheduled one, then the current session is fully closed before the
// new one opens.
func (m *Manager) Restart(ctx context.Context, sourceLang, targetLang, contextHint string) error {
	m.refresh.Cancel()
	m.closeCurrent()
	restarts.Inc()
	return m.Start(ctx, sourceLang, targetLang, contextHint)
}

// ProposeContext submits an updated conversation context. The refresh
// scheduler applies it immediately when outside the cooldown window,
// otherwise parks it (latest wins) for a deferred restart.
func (m *Manager) ProposeContext(ctx context.Context, contextHint string) {
	m.mu.Lock()
	m.restartCtx = ctx
	m.mu.Unlock()
	m.refresh.Propose(contextHint)
}

// Languages returns the language pair of the current or most recent
// session.
func (m *Manager) Languages() (source, target string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source, m.target
}

func (m *Manager) applyContextRefresh(contextHint string) {
	m.mu.Lock()
	source, target := m.source, m.target
	ctx := m.restartCtx
	m.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}
	if err := m.Restart(ctx, source, target, contextHint); err != nil {
		m.log.Warn("context refresh restart failed", "err", err)
	}
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	default:
		// Consumer stalled; drop rather than block the session loop.
		m.log.Warn("event channel full, dropping event", "kind", ev.EventType())
	}
}
