package simulation

import (
	"context"
	"sync"

	"github.com/opd-ai/leaudio/executor"
	"github.com/sirupsen/logrus"
)

// maxDrainSteps bounds Drain against events that keep rescheduling.
const maxDrainSteps = 10000

// Scheduler is a FIFO of pending simulated events.
type Scheduler struct {
	mu      sync.Mutex
	pending []func()
	ran     int
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule queues fn behind every pending event.
func (s *Scheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

// Len returns the number of pending events.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Executed returns the number of events run so far.
func (s *Scheduler) Executed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ran
}

// Step runs the oldest pending event and reports whether there was one.
func (s *Scheduler) Step() bool {
	s.mu.Lock()
	if len(s.pending) == 0 {
		s.mu.Unlock()
		return false
	}
	fn := s.pending[0]
	s.pending[0] = nil
	s.pending = s.pending[1:]
	s.ran++
	s.mu.Unlock()

	fn()
	return true
}

// Drain runs events, including the ones they schedule, until none is
// pending. It returns the number of events run.
func (s *Scheduler) Drain() int {
	n := 0
	for n < maxDrainSteps && s.Step() {
		n++
	}
	if n == maxDrainSteps {
		logrus.WithFields(logrus.Fields{
			"function": "Scheduler.Drain",
			"pending":  s.Len(),
		}).Warn("SIMULATION - drain step limit reached")
	}
	return n
}

// DrainOn drains the scheduler on loop so the events run in the loop's
// execution context.
func (s *Scheduler) DrainOn(ctx context.Context, loop *executor.Loop) (int, error) {
	var n int
	err := loop.Do(ctx, func() error {
		n = s.Drain()
		return nil
	})
	return n, err
}
