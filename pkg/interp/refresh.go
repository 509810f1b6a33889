package interp

import (
	"sync"
	"time"
)

// DefaultRefreshCooldown is the minimum interval between consecutive
// context-triggered session restarts.
const DefaultRefreshCooldown = 12 * time.Second

type refreshTimer interface {
	Stop() bool
}

// refreshScheduler throttles context-driven restarts. Proposals inside
// the cooldown window are parked in a single pending slot with
// latest-wins replacement; one deferred timer fires at the end of the
// window and applies whatever is pending then. A proposal arriving
// while the timer runs replaces the value but never resets the timer.
type refreshScheduler struct {
	cooldown time.Duration
	apply    func(contextHint string)
	active   func() bool

	// Injected for tests.
	now      func() time.Time
	newTimer func(d time.Duration, f func()) refreshTimer

	mu          sync.Mutex
	lastApplied time.Time
	pending     *string
	timer       refreshTimer
}

func newRefreshScheduler(cooldown time.Duration, apply func(string), active func() bool) *refreshScheduler {
	if cooldown <= 0 {
		cooldown = DefaultRefreshCooldown
	}
	return &refreshScheduler{
		cooldown: cooldown,
		apply:    apply,
		active:   active,
		now:      time.Now,
		newTimer: func(d time.Duration, f func()) refreshTimer {
			return time.AfterFunc(d, f)
		},
	}
}

// Propose submits a new context. Outside the cooldown window it applies
// immediately; inside, it becomes (or replaces) the single pending
// value.
func (s *refreshScheduler) Propose(contextHint string) {
	s.mu.Lock()
	now := s.now()
	elapsed := now.Sub(s.lastApplied)
	if elapsed >= s.cooldown {
		s.lastApplied = now
		s.pending = nil
		s.mu.Unlock()
		s.apply(contextHint)
		return
	}

	s.pending = &contextHint
	if s.timer == nil {
		s.timer = s.newTimer(s.cooldown-elapsed, s.fire)
	}
	s.mu.Unlock()
}

func (s *refreshScheduler) fire() {
	s.mu.Lock()
	s.timer = nil
	if s.pending == nil {
		s.mu.Unlock()
		return
	}
	contextHint := *s.pending
	s.pending = nil

	// Broadcast may have ended while the timer was pending; checked at
	// fire time, not schedule time.
	if s.active != nil && !s.active() {
		s.mu.Unlock()
		return
	}
	s.lastApplied = s.now()
	s.mu.Unlock()

	s.apply(contextHint)
}

// Cancel clears any pending timer and value so a stale restart cannot
// fire after the broadcast has ended or been deliberately restarted.
func (s *refreshScheduler) Cancel() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.mu.Unlock()
}

// MarkApplied records a restart that happened outside this scheduler
// (broadcast start, explicit language change), opening a fresh cooldown
// window.
func (s *refreshScheduler) MarkApplied() {
	s.mu.Lock()
	s.lastApplied = s.now()
	s.mu.Unlock()
}
