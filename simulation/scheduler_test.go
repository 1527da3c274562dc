package simulation

import (
	"context"
	"testing"
	"time"

	"github.com/opd-ai/leaudio/executor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsInOrder(t *testing.T) {
	s := NewScheduler()
	var got []int
	for i := 0; i < 3; i++ {
		i := i
		s.Schedule(func() { got = append(got, i) })
	}
	assert.Equal(t, 3, s.Len())

	require.True(t, s.Step())
	assert.Equal(t, []int{0}, got)

	assert.Equal(t, 2, s.Drain())
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.False(t, s.Step())
	assert.Equal(t, 3, s.Executed())
}

func TestSchedulerDrainRunsFollowUps(t *testing.T) {
	s := NewScheduler()
	var got []string
	s.Schedule(func() {
		got = append(got, "a")
		s.Schedule(func() { got = append(got, "c") })
	})
	s.Schedule(func() { got = append(got, "b") })

	assert.Equal(t, 3, s.Drain())
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestSchedulerDrainStopsRunawayEvents(t *testing.T) {
	s := NewScheduler()
	var again func()
	again = func() { s.Schedule(again) }
	s.Schedule(again)

	assert.Equal(t, maxDrainSteps, s.Drain())
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerDrainOnLoop(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	loop := executor.NewLoop("sim", 4)
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run(ctx) }()

	s := NewScheduler()
	ran := 0
	s.Schedule(func() { ran++ })
	s.Schedule(func() { ran++ })

	n, err := s.DrainOn(ctx, loop)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, ran)

	cancel()
	<-errCh
}
