package interp

import (
	"testing"
	"time"
)

type fakeTimer struct {
	d       time.Duration
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type schedulerHarness struct {
	s       *refreshScheduler
	now     time.Time
	timers  []*fakeTimer
	applied []string
	active  bool
}

func newSchedulerHarness(cooldown time.Duration) *schedulerHarness {
	h := &schedulerHarness{now: time.Unix(1000, 0), active: true}
	h.s = newRefreshScheduler(cooldown,
		func(ctx string) { h.applied = append(h.applied, ctx) },
		func() bool { return h.active })
	h.s.now = func() time.Time { return h.now }
	h.s.newTimer = func(d time.Duration, f func()) refreshTimer {
		t := &fakeTimer{d: d, f: f}
		h.timers = append(h.timers, t)
		return t
	}
	return h
}

func (h *schedulerHarness) advance(d time.Duration) { h.now = h.now.Add(d) }

func TestRefreshAppliesImmediatelyWhenCold(t *testing.T) {
	h := newSchedulerHarness(12 * time.Second)

	h.s.Propose("ctx-1")

	if len(h.applied) != 1 || h.applied[0] != "ctx-1" {
		t.Fatalf("applied=%v, want [ctx-1]", h.applied)
	}
	if len(h.timers) != 0 {
		t.Fatalf("timers=%d, want 0", len(h.timers))
	}
}

func TestRefreshDebouncesLatestWins(t *testing.T) {
	h := newSchedulerHarness(12 * time.Second)
	h.s.MarkApplied()

	h.s.Propose("ctx-1")
	h.advance(3 * time.Second)
	h.s.Propose("ctx-2")
	h.advance(2 * time.Second)
	h.s.Propose("ctx-3")

	if len(h.applied) != 0 {
		t.Fatalf("applied=%v, want none before timer fires", h.applied)
	}
	if len(h.timers) != 1 {
		t.Fatalf("timers=%d, want exactly 1 (timer never resets)", len(h.timers))
	}
	if h.timers[0].d != 12*time.Second {
		t.Fatalf("timer delay=%v, want 12s", h.timers[0].d)
	}

	h.advance(7 * time.Second)
	h.timers[0].f()

	if len(h.applied) != 1 || h.applied[0] != "ctx-3" {
		t.Fatalf("applied=%v, want [ctx-3]", h.applied)
	}
}

func TestRefreshAppliesImmediatelyAfterCooldownElapsed(t *testing.T) {
	h := newSchedulerHarness(12 * time.Second)
	h.s.MarkApplied()

	h.advance(13 * time.Second)
	h.s.Propose("ctx-1")

	if len(h.applied) != 1 || h.applied[0] != "ctx-1" {
		t.Fatalf("applied=%v, want [ctx-1]", h.applied)
	}

	// Window reopened by the apply.
	h.advance(time.Second)
	h.s.Propose("ctx-2")
	if len(h.applied) != 1 {
		t.Fatalf("applied=%v, want second proposal parked", h.applied)
	}
}

func TestRefreshCancelStopsTimerAndClearsPending(t *testing.T) {
	h := newSchedulerHarness(12 * time.Second)
	h.s.MarkApplied()

	h.s.Propose("ctx-1")
	h.s.Cancel()

	if len(h.timers) != 1 || !h.timers[0].stopped {
		t.Fatal("timer not stopped on cancel")
	}

	// A late fire of an already-stopped timer must be harmless.
	h.timers[0].f()
	if len(h.applied) != 0 {
		t.Fatalf("applied=%v, want none after cancel", h.applied)
	}
}

func TestRefreshDiscardsPendingWhenInactiveAtFireTime(t *testing.T) {
	h := newSchedulerHarness(12 * time.Second)
	h.s.MarkApplied()

	h.s.Propose("ctx-1")
	h.active = false
	h.advance(12 * time.Second)
	h.timers[0].f()

	if len(h.applied) != 0 {
		t.Fatalf("applied=%v, want none once broadcast ended", h.applied)
	}
}

func TestRefreshDefaultCooldown(t *testing.T) {
	s := newRefreshScheduler(0, func(string) {}, nil)
	if s.cooldown != DefaultRefreshCooldown {
		t.Fatalf("cooldown=%v, want %v", s.cooldown, DefaultRefreshCooldown)
	}
}
