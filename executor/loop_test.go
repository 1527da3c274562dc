package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, l *Loop) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return cancel
}

func TestLoopRunsClosuresInOrder(t *testing.T) {
	l := NewLoop("order", 16)
	startLoop(t, l)

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() error { return nil }))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
}

func TestLoopDoReturnsResult(t *testing.T) {
	l := NewLoop("do", 4)
	startLoop(t, l)

	errBoom := errors.New("boom")
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return errBoom }), errBoom)
	assert.NoError(t, l.Do(context.Background(), func() error { return nil }))
}

func TestLoopPostInboxFull(t *testing.T) {
	l := NewLoop("full", 2)
	require.NoError(t, l.Post(func() {}))
	require.NoError(t, l.Post(func() {}))
	assert.ErrorIs(t, l.Post(func() {}), ErrInboxFull)
	assert.Equal(t, 2, l.Pending())
}

func TestLoopStopped(t *testing.T) {
	l := NewLoop("stopped", 4)
	cancel := startLoop(t, l)
	cancel()
	<-l.Done()

	assert.ErrorIs(t, l.Post(func() {}), ErrStopped)
	assert.ErrorIs(t, l.Do(context.Background(), func() error { return nil }), ErrStopped)
	assert.ErrorIs(t, l.Run(context.Background()), ErrAlreadyRunning)
}

func TestLoopDoHonoursContext(t *testing.T) {
	l := NewLoop("ctx", 4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := l.Do(ctx, func() error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRunAllStopsOnCancel(t *testing.T) {
	a, b := NewLoop("a", 4), NewLoop("b", 4)
	ctx, cancel := context.WithCancel(context.Background())

	var ran atomic.Int32
	require.NoError(t, a.Post(func() { ran.Add(1) }))
	require.NoError(t, b.Post(func() { ran.Add(1) }))

	errc := make(chan error, 1)
	go func() { errc <- RunAll(ctx, a, b) }()

	require.NoError(t, a.Do(context.Background(), func() error { return nil }))
	require.NoError(t, b.Do(context.Background(), func() error { return nil }))
	assert.Equal(t, int32(2), ran.Load())

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RunAll did not return")
	}
}

func TestRunAllReportsFailure(t *testing.T) {
	a := NewLoop("a", 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = a.Run(ctx) }()
	require.NoError(t, a.Do(context.Background(), func() error { return nil }))

	b := NewLoop("b", 4)
	err := RunAll(context.Background(), a, b)
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("sibling loop kept running")
	}
}
