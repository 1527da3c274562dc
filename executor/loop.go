package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrInboxFull indicates a Post to a loop whose inbox is at capacity.
	ErrInboxFull = errors.New("loop inbox full")

	// ErrStopped indicates a loop that is no longer running.
	ErrStopped = errors.New("loop stopped")

	// ErrAlreadyRunning indicates a second Run of the same loop.
	ErrAlreadyRunning = errors.New("loop already running")
)

// Loop runs posted closures one at a time on a single goroutine.
type Loop struct {
	name  string
	inbox chan func()
	done  chan struct{}

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewLoop creates a loop whose inbox holds depth pending closures.
func NewLoop(name string, depth int) *Loop {
	if depth < 1 {
		depth = 1
	}
	return &Loop{
		name:  name,
		inbox: make(chan func(), depth),
		done:  make(chan struct{}),
	}
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// Pending returns the number of queued closures.
func (l *Loop) Pending() int { return len(l.inbox) }

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Run executes posted closures until ctx is cancelled. Closures still
// queued at that point are dropped. A loop runs at most once.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.stopped {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, l.name)
	}
	l.running = true
	l.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Loop.Run",
		"loop":     l.name,
	}).Debug("Loop started")

	defer func() {
		l.mu.Lock()
		l.stopped = true
		dropped := len(l.inbox)
		l.mu.Unlock()
		close(l.done)

		logrus.WithFields(logrus.Fields{
			"function": "Loop.Run",
			"loop":     l.name,
			"dropped":  dropped,
		}).Debug("Loop stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.inbox:
			fn()
		}
	}
}

// Post queues fn without waiting. It fails with ErrInboxFull when the
// inbox is at capacity and with ErrStopped once Run has returned.
func (l *Loop) Post(fn func()) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return fmt.Errorf("%w: %s", ErrStopped, l.name)
	}
	select {
	case l.inbox <- fn:
		return nil
	default:
		logrus.WithFields(logrus.Fields{
			"function": "Loop.Post",
			"loop":     l.name,
			"depth":    cap(l.inbox),
		}).Warn("Loop inbox full, rejecting work")
		return fmt.Errorf("%w: %s", ErrInboxFull, l.name)
	}
}

// Do runs fn on the loop and waits for its result. Do must not be called
// from the loop itself.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := l.Post(func() { result <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-l.done:
		select {
		case err := <-result:
			return err
		default:
			return fmt.Errorf("%w: %s", ErrStopped, l.name)
		}
	}
}

// RunAll runs every loop until ctx is cancelled or one of them fails.
// Cancellation is a clean stop.
func RunAll(ctx context.Context, loops ...*Loop) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, l := range loops {
		l := l
		g.Go(func() error {
			err := l.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
