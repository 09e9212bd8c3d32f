package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

// openStarts returns an OpenFunc that accepts only the given start dates.
func openStarts(starts ...string) OpenFunc {
	set := make(map[string]bool, len(starts))
	for _, s := range starts {
		set[s] = true
	}
	return func(_ context.Context, start time.Time) (bool, error) {
		return set[start.Format(time.DateOnly)], nil
	}
}

func TestFindNearestWindowPrefersSmallerOffset(t *testing.T) {
	checkIn := day("2026-06-10")
	w, err := FindNearestWindow(context.Background(), checkIn, 3, 14, day("2026-06-01"), openStarts("2026-06-08", "2026-06-15"))
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, -2, w.OffsetDays)
	assert.Equal(t, DirectionBackward, w.Direction)
	assert.Equal(t, day("2026-06-08"), w.CheckIn)
	assert.Equal(t, day("2026-06-11"), w.CheckOut)
}

func TestFindNearestWindowTieGoesForward(t *testing.T) {
	checkIn := day("2026-06-10")
	w, err := FindNearestWindow(context.Background(), checkIn, 2, 14, day("2026-06-01"), openStarts("2026-06-07", "2026-06-13"))
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 3, w.OffsetDays)
	assert.Equal(t, DirectionForward, w.Direction)
}

func TestFindNearestWindowBackwardNeverBeforeToday(t *testing.T) {
	checkIn := day("2026-06-10")
	w, err := FindNearestWindow(context.Background(), checkIn, 2, 14, day("2026-06-09"), openStarts("2026-06-08", "2026-06-20"))
	require.NoError(t, err)
	require.NotNil(t, w)
	assert.Equal(t, 10, w.OffsetDays, "06-08 is before today and must not be offered")
}

func TestFindNearestWindowNone(t *testing.T) {
	w, err := FindNearestWindow(context.Background(), day("2026-06-10"), 2, 14, time.Time{}, openStarts("2026-07-30"))
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestFindNearestWindowError(t *testing.T) {
	boom := errors.New("db down")
	open := func(context.Context, time.Time) (bool, error) { return false, boom }
	_, err := FindNearestWindow(context.Background(), day("2026-06-10"), 2, 14, time.Time{}, open)
	assert.ErrorIs(t, err, boom)
}

func TestPickNearest(t *testing.T) {
	fwd := &Window{OffsetDays: 4}
	bwd := &Window{OffsetDays: -4}
	assert.Same(t, fwd, pickNearest(fwd, bwd))
	assert.Same(t, bwd, pickNearest(nil, bwd))
	assert.Same(t, fwd, pickNearest(fwd, nil))
	assert.Same(t, bwd, pickNearest(&Window{OffsetDays: 5}, bwd))
	assert.Nil(t, pickNearest(nil, nil))
}
