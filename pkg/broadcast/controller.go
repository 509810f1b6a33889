// Package broadcast wires the interpretation session, timeline, audio
// pipeline, and room store into the one object the client binary
// drives: the broadcast controller. It owns the event pump that turns
// backend session events into timeline mutations and scheduled
// playback.
package broadcast

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxroom/voxroom/pkg/audio"
	"github.com/voxroom/voxroom/pkg/interp"
	"github.com/voxroom/voxroom/pkg/room"
	"github.com/voxroom/voxroom/pkg/timeline"
)

// ErrAlreadyBroadcasting is returned by StartBroadcast when a broadcast
// is in progress.
var ErrAlreadyBroadcasting = errors.New("broadcast: already broadcasting")

// Store is the slice of the room store the controller needs. A nil
// store is allowed; persistence and presence updates are then skipped.
type Store interface {
	InsertMessage(ctx context.Context, m room.Message) error
	FetchMessages(ctx context.Context, roomID string, limit int) ([]room.Message, error)
	SetBroadcasting(ctx context.Context, participantID string, on bool) error
}

// CaptureFunc starts microphone capture, invoking onFrame for every
// PCM16 frame until the returned stop function is called.
type CaptureFunc func(onFrame func(pcm []byte)) (stop func(), err error)

// Options configures a Controller. Backend, Scheduler and Decoder are
// required; Store and Capture may be nil (listen-only setups pass no
// Capture).
type Options struct {
	Backend        interp.Backend
	Store          Store
	Capture        CaptureFunc
	Sched          *audio.Scheduler
	Decoder        *audio.DecodeWorker
	RoomID         string
	Sender         timeline.Sender
	TargetLanguage string

	RefreshCooldown time.Duration
	CaptureRate     int
	PlaybackRate    int
	ContextItems    int
	ContextChars    int

	// OnFragment, when set, observes every live transcript fragment
	// after it is merged into the timeline. Used to fan captions out to
	// room members before the turn is finalized.
	OnFragment func(text string, isInput bool)

	Logger *slog.Logger
}

// Controller coordinates one participant's view of a room: broadcasting
// (mic to session to room) and listening (remote messages to local
// translation and replay).
type Controller struct {
	log     *slog.Logger
	backend interp.Backend
	manager *interp.Manager
	tl      *timeline.Timeline
	sched   *audio.Scheduler
	decoder *audio.DecodeWorker
	store   Store
	capture CaptureFunc

	roomID       string
	sender       timeline.Sender
	playbackRate int
	contextItems int
	contextChars int
	onFragment   func(text string, isInput bool)

	mu          sync.Mutex
	target      string
	stopCapture func()
	lastHint    string

	broadcasting atomic.Bool
	pending      chan pendingPlayback
	done         chan struct{}
	closeOnce    sync.Once
}

type pendingPlayback struct {
	reply <-chan audio.DecodeResult
}

func NewController(opts Options) *Controller {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	if opts.CaptureRate <= 0 {
		opts.CaptureRate = audio.CaptureSampleRate
	}
	if opts.PlaybackRate <= 0 {
		opts.PlaybackRate = audio.PlaybackSampleRate
	}
	if opts.ContextItems <= 0 {
		opts.ContextItems = timeline.DefaultContextItems
	}
	if opts.ContextChars <= 0 {
		opts.ContextChars = timeline.DefaultContextChars
	}

	c := &Controller{
		log:          log,
		backend:      opts.Backend,
		manager:      interp.NewManager(opts.Backend, opts.RefreshCooldown, opts.CaptureRate, log),
		tl:           timeline.New(),
		sched:        opts.Sched,
		decoder:      opts.Decoder,
		store:        opts.Store,
		capture:      opts.Capture,
		roomID:       opts.RoomID,
		sender:       opts.Sender,
		target:       opts.TargetLanguage,
		playbackRate: opts.PlaybackRate,
		contextItems: opts.ContextItems,
		contextChars: opts.ContextChars,
		onFragment:   opts.OnFragment,
		pending:      make(chan pendingPlayback, 64),
		done:         make(chan struct{}),
	}
	go c.eventPump()
	go c.playbackPump()
	return c
}

// Timeline exposes the merged transcript for rendering.
func (c *Controller) Timeline() *timeline.Timeline { return c.tl }

// Broadcasting reports whether a broadcast is in progress.
func (c *Controller) Broadcasting() bool { return c.broadcasting.Load() }

// StartBroadcast opens the interpretation session and starts the
// microphone. The current conversation context seeds the session's
// system instruction.
func (c *Controller) StartBroadcast(ctx context.Context) error {
	if c.broadcasting.Swap(true) {
		return ErrAlreadyBroadcasting
	}

	hint := timeline.BuildContext(c.tl.Finalized(), c.contextItems, c.contextChars)
	c.mu.Lock()
	target := c.target
	c.mu.Unlock()

	if err := c.manager.Start(ctx, c.sender.Language, target, hint); err != nil {
		c.broadcasting.Store(false)
		return err
	}

	if c.capture != nil {
		stop, err := c.capture(c.manager.Send)
		if err != nil {
			c.manager.Stop()
			c.broadcasting.Store(false)
			return err
		}
		c.mu.Lock()
		c.stopCapture = stop
		c.mu.Unlock()
	}

	if c.store != nil {
		if err := c.store.SetBroadcasting(ctx, c.sender.ID, true); err != nil {
			c.log.Warn("presence update failed", "err", err)
		}
	}
	broadcastsStarted.Inc()
	return nil
}

// StopBroadcast tears the broadcast down in four isolated steps: stop
// the microphone, close the session, flush scheduled playback, clear
// the presence flag. A failure in one step never skips the others.
func (c *Controller) StopBroadcast() {
	if !c.broadcasting.Swap(false) {
		return
	}

	c.mu.Lock()
	stop := c.stopCapture
	c.stopCapture = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}

	c.manager.Stop()

	if c.sched != nil {
		c.sched.StopAll()
	}

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.store.SetBroadcasting(ctx, c.sender.ID, false); err != nil {
			c.log.Warn("presence update failed", "err", err)
		}
	}
}

// SetTargetLanguage changes the interpretation target. An active
// session is restarted immediately; the debounce policy applies only to
// context refreshes, not deliberate language changes.
func (c *Controller) SetTargetLanguage(ctx context.Context, lang string) error {
	c.mu.Lock()
	c.target = lang
	c.mu.Unlock()

	if !c.broadcasting.Load() {
		return nil
	}
	hint := timeline.BuildContext(c.tl.Finalized(), c.contextItems, c.contextChars)
	return c.manager.Restart(ctx, c.sender.Language, lang, hint)
}

// Replay synthesizes text with the session voice and schedules it on
// the shared playback cursor.
func (c *Controller) Replay(ctx context.Context, text string) error {
	b64, err := c.backend.Synthesize(ctx, text)
	if err != nil {
		return err
	}
	res := <-c.decoder.Decode(audio.DecodeRequest{
		Base64:     b64,
		SampleRate: c.playbackRate,
		Channels:   1,
	})
	if res.Err != nil {
		return res.Err
	}
	c.sched.Schedule(res.Buffer, nil)
	replays.Inc()
	return nil
}

// LoadHistory merges the room's persisted messages into the timeline,
// then fills in missing translations for the local target language.
func (c *Controller) LoadHistory(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	msgs, err := c.store.FetchMessages(ctx, c.roomID, 0)
	if err != nil {
		return err
	}
	for _, m := range msgs {
		c.mergeMessage(m)
	}
	c.translateMissing(ctx)
	return nil
}

// HandleRemoteMessage merges one message observed via the store
// subscription. Messages already known locally (the broadcaster's own
// persisted turns) are ignored; new ones are translated for the local
// target, falling back to the original text when translation fails.
func (c *Controller) HandleRemoteMessage(ctx context.Context, m room.Message) {
	if !c.mergeMessage(m) {
		return
	}
	remoteMessages.Inc()
	c.translateMissing(ctx)
}

func (c *Controller) mergeMessage(m room.Message) bool {
	return c.tl.MergeRemote(timeline.Entry{
		ID:             m.ID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		OriginalText:   m.OriginalText,
		TranslatedText: m.TranslatedText,
		SourceLanguage: m.SourceLanguage,
		CreatedAt:      m.CreatedAt,
	})
}

func (c *Controller) translateMissing(ctx context.Context) {
	c.mu.Lock()
	target := c.target
	c.mu.Unlock()

	for _, e := range c.tl.Untranslated() {
		// Rebuilt per entry so earlier translations in this batch feed
		// later ones. The entry itself is still untranslated, so the
		// hint never includes it.
		hint := timeline.BuildContext(c.tl.Finalized(), c.contextItems, c.contextChars)
		translated, err := c.backend.Translate(ctx, e.OriginalText, e.SourceLanguage, target, hint)
		if err != nil || translated == "" {
			if err != nil {
				c.log.Warn("translation failed, showing original", "err", err)
			}
			translated = e.OriginalText
		}
		c.tl.SetTranslation(e.ID, translated)
	}
}

// Close stops any broadcast and shuts the pumps down. The decoder is
// closed here because the controller is its only client.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.StopBroadcast()
		close(c.done)
		if c.decoder != nil {
			c.decoder.Close()
		}
	})
}

// eventPump routes session events: transcripts into the timeline, audio
// into the decode pipeline, turn completion into finalize/persist/
// context-refresh, errors into a full stop.
func (c *Controller) eventPump() {
	for {
		select {
		case <-c.done:
			return
		case ev := <-c.manager.Events():
			switch e := ev.(type) {
			case interp.TranscriptEvent:
				c.tl.ApplyFragment(e.Text, e.IsInput, c.sender)
				if c.onFragment != nil {
					c.onFragment(e.Text, e.IsInput)
				}
			case interp.AudioEvent:
				c.enqueuePlayback(e.Base64)
			case interp.TurnCompleteEvent:
				c.finalizeTurn()
			case interp.ErrorEvent:
				c.log.Error("session failed, stopping broadcast", "err", e.Err)
				sessionFailures.Inc()
				c.StopBroadcast()
			}
		}
	}
}

// enqueuePlayback hands the chunk to the decode worker and parks the
// reply on the ordered pending queue, so chunks schedule in arrival
// order even though decode runs off this goroutine.
func (c *Controller) enqueuePlayback(b64 string) {
	reply := c.decoder.Decode(audio.DecodeRequest{
		Base64:     b64,
		SampleRate: c.playbackRate,
		Channels:   1,
	})
	select {
	case c.pending <- pendingPlayback{reply: reply}:
	default:
		c.log.Warn("playback queue full, dropping chunk")
	}
}

func (c *Controller) playbackPump() {
	for {
		select {
		case <-c.done:
			return
		case p := <-c.pending:
			res, ok := <-p.reply
			if !ok {
				continue
			}
			if res.Err != nil {
				c.log.Warn("audio chunk decode failed", "err", res.Err)
				continue
			}
			if c.sched != nil {
				c.sched.Schedule(res.Buffer, nil)
				chunksScheduled.Inc()
			}
		}
	}
}

// finalizeTurn closes the in-progress entry, persists it, and proposes
// the refreshed context to the session manager.
func (c *Controller) finalizeTurn() {
	entry, ok := c.tl.Finalize()
	if !ok {
		return
	}
	turnsFinalized.Inc()

	if c.store != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := c.store.InsertMessage(ctx, room.Message{
				ID:             entry.ID,
				RoomID:         c.roomID,
				SenderID:       entry.SenderID,
				SenderName:     entry.SenderName,
				SourceLanguage: entry.SourceLanguage,
				OriginalText:   entry.OriginalText,
				TranslatedText: entry.TranslatedText,
				CreatedAt:      entry.CreatedAt,
			})
			if err != nil {
				// Persistence is best effort; the local timeline already
				// holds the entry.
				c.log.Warn("message persist failed", "err", err)
				return
			}
			messagesPersisted.Inc()
		}()
	}

	// Only a changed context is worth a session restart.
	hint := timeline.BuildContext(c.tl.Finalized(), c.contextItems, c.contextChars)
	c.mu.Lock()
	changed := hint != "" && hint != c.lastHint
	if changed {
		c.lastHint = hint
	}
	c.mu.Unlock()
	if changed {
		c.manager.ProposeContext(context.Background(), hint)
	}
}
