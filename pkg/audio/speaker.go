package audio

import (
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// Speaker plays scheduled sources through the system audio device via
// oto. It implements both Sink (scheduled playback) and Clock (output
// timeline position), so it can back a Scheduler directly.
//
// oto pulls audio with a realtime reader; the Speaker keeps a byte
// queue that a feeder goroutine fills at each source's start time.
// When the queue is empty the reader emits silence, which covers lead
// time before the first scheduled source.
type Speaker struct {
	otoCtx *oto.Context
	player *oto.Player

	epoch time.Time

	mu     sync.Mutex
	out    []byte
	halted map[*Source]struct{}
	closed bool

	sampleRate int
	channels   int

	log *slog.Logger
}

// NewSpeaker opens the output device. The scheduler's buffers must
// match sampleRate and channels.
func NewSpeaker(sampleRate, channels int, log *slog.Logger) (*Speaker, error) {
	if log == nil {
		log = slog.Default()
	}
	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
		// ~100ms device buffer: low latency without glitching.
		BufferSize: 100 * time.Millisecond,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	s := &Speaker{
		otoCtx:     otoCtx,
		epoch:      time.Now(),
		halted:     make(map[*Source]struct{}),
		sampleRate: sampleRate,
		channels:   channels,
		log:        log,
	}
	s.player = otoCtx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// Now returns the position on the output timeline.
func (s *Speaker) Now() time.Duration {
	return time.Since(s.epoch)
}

// Play waits until src.StartAt and then queues its samples for the
// device. The Scheduler's cursor guarantees sources are handed over in
// start order, so sequential appends preserve gapless ordering.
func (s *Speaker) Play(src *Source) {
	go func() {
		if wait := src.StartAt - s.Now(); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			<-timer.C
		}

		s.mu.Lock()
		if _, gone := s.halted[src]; gone || s.closed {
			delete(s.halted, src)
			s.mu.Unlock()
			src.Done()
			return
		}
		s.out = append(s.out, InterleaveS16LE(src.Buffer)...)
		s.mu.Unlock()

		// Report completion when the source's interval has elapsed on
		// the output clock.
		if wait := src.StartAt + src.Buffer.Duration() - s.Now(); wait > 0 {
			time.Sleep(wait)
		}
		src.Done()
	}()
}

// Halt discards src. If its samples are already queued the whole queue
// is flushed; the scheduler only halts en masse via StopAll, so
// flushing everything matches the stop-all contract.
func (s *Speaker) Halt(src *Source) {
	s.mu.Lock()
	s.halted[src] = struct{}{}
	s.out = s.out[:0]
	s.mu.Unlock()
}

// Read implements io.Reader for oto. It never blocks: silence is
// returned whenever no scheduled audio is queued.
func (s *Speaker) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := copy(p, s.out)
	s.out = s.out[n:]
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Close stops playback and releases the device player.
func (s *Speaker) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.out = nil
	s.mu.Unlock()

	if err := s.player.Close(); err != nil {
		s.log.Warn("speaker close failed", "err", err)
	}
}
