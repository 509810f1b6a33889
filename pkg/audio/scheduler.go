package audio

import (
	"sync"
	"time"
)

// Clock reports the current position on the output timeline.
type Clock interface {
	Now() time.Duration
}

// Source is one scheduled buffer of synthesized speech.
type Source struct {
	Buffer  *Buffer
	StartAt time.Duration

	done func()
}

// Done must be called by the sink exactly once when the source finishes
// playing (or is halted). It unregisters the source and runs the
// caller's completion callback.
func (s *Source) Done() {
	if s != nil && s.done != nil {
		s.done()
	}
}

// Sink accepts scheduled sources for playback.
type Sink interface {
	// Play begins playback of src at src.StartAt on the sink's timeline.
	Play(src *Source)
	// Halt immediately stops and discards src, whether pending or playing.
	Halt(src *Source)
}

// Scheduler plays independently-arriving buffers as one continuous
// stream. A single cursor tracks the next available start time:
//
//	start = max(clock.Now(), cursor)
//	cursor = start + buffer.Duration()
//
// which guarantees strict back-to-back ordering with no gaps or
// overlaps regardless of arrival jitter. Slow decode shows up as added
// latency, never as overlap or drops.
type Scheduler struct {
	clock Clock
	sink  Sink

	mu     sync.Mutex
	cursor time.Duration
	active map[*Source]struct{}
}

// NewScheduler creates a scheduler over the given output clock and sink.
func NewScheduler(clock Clock, sink Sink) *Scheduler {
	return &Scheduler{
		clock:  clock,
		sink:   sink,
		active: make(map[*Source]struct{}),
	}
}

// Schedule queues buf for gapless playback and returns its source.
// onDone, if non-nil, runs when playback of this buffer completes or is
// halted.
func (s *Scheduler) Schedule(buf *Buffer, onDone func()) *Source {
	s.mu.Lock()
	start := s.clock.Now()
	if s.cursor > start {
		start = s.cursor
	}
	src := &Source{Buffer: buf, StartAt: start}
	src.done = func() {
		s.mu.Lock()
		delete(s.active, src)
		s.mu.Unlock()
		if onDone != nil {
			onDone()
		}
	}
	s.cursor = start + buf.Duration()
	s.active[src] = struct{}{}
	s.mu.Unlock()

	s.sink.Play(src)
	return src
}

// StopAll halts and discards every scheduled or playing source and
// resets the cursor to the clock's current time, so stale audio never
// continues after a stop.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	srcs := make([]*Source, 0, len(s.active))
	for src := range s.active {
		srcs = append(srcs, src)
	}
	s.active = make(map[*Source]struct{})
	s.cursor = s.clock.Now()
	s.mu.Unlock()

	for _, src := range srcs {
		s.sink.Halt(src)
	}
}

// Active returns the number of sources currently scheduled or playing.
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
