package orchestrator

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskSlotsSupersession(t *testing.T) {
	slots := newTaskSlots(nil)
	defer slots.shutdown(context.Background())

	var first, second atomic.Int32
	assert.False(t, slots.schedule("s1", kindFollowUp, 30*time.Millisecond, func(context.Context) { first.Add(1) }))
	assert.True(t, slots.schedule("s1", kindFollowUp, 30*time.Millisecond, func(context.Context) { second.Add(1) }))
	assert.True(t, slots.pending("s1", kindFollowUp))

	require.Eventually(t, func() bool { return second.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), first.Load(), "superseded task never runs")
	assert.False(t, slots.pending("s1", kindFollowUp))
}

func TestTaskSlotsIndependentPerSessionAndKind(t *testing.T) {
	slots := newTaskSlots(nil)
	defer slots.shutdown(context.Background())

	var fired atomic.Int32
	slots.schedule("s1", kindClose, 10*time.Millisecond, func(context.Context) { fired.Add(1) })
	slots.schedule("s2", kindClose, 10*time.Millisecond, func(context.Context) { fired.Add(1) })
	slots.schedule("s1", kindFollowUp, 10*time.Millisecond, func(context.Context) { fired.Add(1) })
	require.Eventually(t, func() bool { return fired.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestTaskSlotsCancel(t *testing.T) {
	var events []string
	slots := newTaskSlots(func(kind taskKind, event string) { events = append(events, string(kind)+":"+event) })
	defer slots.shutdown(context.Background())

	var fired atomic.Int32
	slots.schedule("s1", kindClose, 20*time.Millisecond, func(context.Context) { fired.Add(1) })
	due, ok := slots.dueAt("s1", kindClose)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(20*time.Millisecond), due, 20*time.Millisecond)

	assert.True(t, slots.cancel("s1", kindClose))
	assert.False(t, slots.cancel("s1", kindClose))
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, []string{"close:armed", "close:cancelled"}, events)

	slots.schedule("s1", kindGreeting, 20*time.Millisecond, func(context.Context) { fired.Add(1) })
	slots.schedule("s1", kindDebounce, 20*time.Millisecond, func(context.Context) { fired.Add(1) })
	slots.cancelSession("s1")
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), fired.Load())
}

func TestTaskSlotsShutdown(t *testing.T) {
	slots := newTaskSlots(nil)

	started := make(chan struct{})
	var sawCancel atomic.Bool
	slots.schedule("s1", kindDebounce, 0, func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		sawCancel.Store(true)
	})
	var late atomic.Int32
	slots.schedule("s2", kindDebounce, time.Hour, func(context.Context) { late.Add(1) })

	<-started
	require.NoError(t, slots.shutdown(context.Background()))
	assert.True(t, sawCancel.Load(), "running task observes cancellation")
	assert.False(t, slots.pending("s2", kindDebounce))
	assert.False(t, slots.schedule("s3", kindClose, 0, func(context.Context) { late.Add(1) }))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), late.Load())
}
