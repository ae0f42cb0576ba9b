// Package flush runs the background flush actor: a single goroutine that
// fires a drain-and-upload cycle on a fixed interval or when the buffer
// signals its size threshold, whichever comes first.
package flush

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// CycleFunc performs one drain-and-upload cycle. Its outcome never stalls
// the schedule; reporting failures is the cycle's own responsibility.
type CycleFunc func(ctx context.Context)

// Scheduler owns the flush loop. Exactly one scheduler exists per pipeline
// and it is the sole caller of the buffer's Drain.
type Scheduler struct {
	interval time.Duration
	trigger  <-chan struct{}
	cycle    CycleFunc
	log      *slog.Logger

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a scheduler. trigger may be nil when the size threshold is
// disabled.
func New(interval time.Duration, trigger <-chan struct{}, cycle CycleFunc) *Scheduler {
	return &Scheduler{
		interval: interval,
		trigger:  trigger,
		cycle:    cycle,
		log:      slog.With("component", "flush"),
		done:     make(chan struct{}),
	}
}

// Start launches the flush loop.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		go s.run(ctx)
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-s.trigger:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		s.cycle(ctx)
		timer.Reset(s.interval)
	}
}

// Stop cancels the wait, then performs one final best-effort cycle bounded
// by ctx so buffered records are not silently lost on graceful exit. If the
// grace period expires while the loop is still inside a cycle, Stop returns
// without the final cycle: the in-flight cycle already holds the drain, and
// a second concurrent cycle would violate the single flush actor.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stopOnce.Do(func() {
		if s.cancel == nil {
			return
		}
		s.cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			s.log.Warn("flush loop did not exit within grace period")
			return
		}
		s.cycle(ctx)
	})
}
