// Package autodraw runs the host's timed draw loop. A fine-grained countdown
// tick feeds the "time until next draw" display; when it reaches zero the
// draw is dispatched asynchronously and the scheduler parks in drawInFlight
// until that draw's outcome is observed. A new countdown never starts from
// the tick alone, so a slow draw can never be double-fired.
package autodraw

import (
	"context"
	"sync"
	"time"
)

type State int

const (
	Idle State = iota
	Counting
	DrawInFlight
)

// TickInterval is the countdown resolution.
const TickInterval = 100 * time.Millisecond

// DrawFunc performs one draw. It reports false when the pool is exhausted
// (or the draw is otherwise not allowed), which disables the loop. It may
// take longer than the cadence; the scheduler never awaits it on the tick
// path.
type DrawFunc func(ctx context.Context) bool

type Scheduler struct {
	draw DrawFunc

	mu        sync.Mutex
	state     State
	speed     time.Duration
	minSpeed  time.Duration
	maxSpeed  time.Duration
	remaining time.Duration
	exhausted bool
	cancel    context.CancelFunc

	// onTick receives the clamped remaining time after every tick.
	onTick func(remaining time.Duration)
	// onStop fires when the loop ends; exhausted tells the UI why.
	onStop func(exhausted bool)
}

func NewScheduler(draw DrawFunc, speed, minSpeed, maxSpeed time.Duration) *Scheduler {
	s := &Scheduler{
		draw:     draw,
		minSpeed: minSpeed,
		maxSpeed: maxSpeed,
	}
	s.speed = s.clamp(speed)
	return s
}

func (s *Scheduler) SetOnTick(f func(remaining time.Duration)) {
	s.mu.Lock()
	s.onTick = f
	s.mu.Unlock()
}

func (s *Scheduler) SetOnStop(f func(exhausted bool)) {
	s.mu.Lock()
	s.onStop = f
	s.mu.Unlock()
}

// Start begins the countdown. No-op while already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.state = Counting
	s.remaining = s.speed
	s.exhausted = false
	go s.run(ctx)
}

// Stop cancels the loop. Effective no later than the next tick boundary; an
// already-dispatched draw is allowed to complete and broadcast.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.state = Idle
	s.remaining = 0
	onStop := s.onStop
	s.mu.Unlock()

	if onStop != nil {
		onStop(false)
	}
}

// SetSpeed changes the cadence, clamped to the configured bounds, and
// restarts the current countdown from the new value. Returns the applied
// cadence.
func (s *Scheduler) SetSpeed(speed time.Duration) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speed = s.clamp(speed)
	if s.state == Counting {
		s.remaining = s.speed
	}
	return s.speed
}

func (s *Scheduler) Speed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speed
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != Idle
}

func (s *Scheduler) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exhausted
}

// TimeLeft reports the current countdown value for display, zero while a
// draw is in flight or the loop is idle.
func (s *Scheduler) TimeLeft() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Counting || s.remaining < 0 {
		return 0
	}
	return s.remaining
}

func (s *Scheduler) clamp(d time.Duration) time.Duration {
	if d < s.minSpeed {
		return s.minSpeed
	}
	if d > s.maxSpeed {
		return s.maxSpeed
	}
	return d
}

func (s *Scheduler) run(ctx context.Context) {
	ticker := time.NewTicker(TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.state != Counting {
				// drawInFlight: the countdown resumes only when the draw
				// outcome is observed, never from the tick.
				s.mu.Unlock()
				continue
			}
			s.remaining -= TickInterval
			fire := s.remaining <= 0
			if fire {
				s.state = DrawInFlight
			}
			rem := s.remaining
			onTick := s.onTick
			s.mu.Unlock()

			if onTick != nil {
				if rem < 0 {
					rem = 0
				}
				onTick(rem)
			}
			if fire {
				go s.dispatch(ctx)
			}
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	ok := s.draw(ctx)

	s.mu.Lock()
	if ctx.Err() != nil || s.state != DrawInFlight {
		// Stopped while the draw was in flight; that draw still counts but
		// nothing restarts.
		s.mu.Unlock()
		return
	}
	if !ok {
		s.state = Idle
		s.exhausted = true
		s.remaining = 0
		if s.cancel != nil {
			s.cancel()
			s.cancel = nil
		}
		onStop := s.onStop
		s.mu.Unlock()
		if onStop != nil {
			onStop(true)
		}
		return
	}
	s.state = Counting
	s.remaining = s.speed
	s.mu.Unlock()
}
