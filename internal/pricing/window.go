package pricing

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DirectionForward  = "forward"
	DirectionBackward = "backward"

	// DefaultSearchDays is how far either side of the requested dates the
	// nearest-window search looks.
	DefaultSearchDays = 14
)

// Window is an alternative stay of the same length.
type Window struct {
	CheckIn    time.Time `json:"-"`
	CheckOut   time.Time `json:"-"`
	OffsetDays int       `json:"offset_days"`
	Direction  string    `json:"direction"`
}

// OpenFunc reports whether a stay starting on start is fully bookable.
type OpenFunc func(ctx context.Context, start time.Time) (bool, error)

// FindNearestWindow looks for the closest bookable window of nights nights
// within maxOffset days of checkIn. The forward and backward scans run in
// parallel, each stopping at its first open window. The smaller offset wins
// and ties go to the forward window. Backward windows never start before
// notBefore. It returns nil when neither direction finds a window.
func FindNearestWindow(ctx context.Context, checkIn time.Time, nights, maxOffset int, notBefore time.Time, open OpenFunc) (*Window, error) {
	if nights <= 0 || maxOffset <= 0 || open == nil {
		return nil, nil
	}
	checkIn = dateOnly(checkIn)
	if !notBefore.IsZero() {
		notBefore = dateOnly(notBefore)
	}

	var forward, backward *Window
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for d := 1; d <= maxOffset; d++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := checkIn.AddDate(0, 0, d)
			ok, err := open(gctx, start)
			if err != nil {
				return err
			}
			if ok {
				forward = &Window{CheckIn: start, CheckOut: start.AddDate(0, 0, nights), OffsetDays: d, Direction: DirectionForward}
				return nil
			}
		}
		return nil
	})

	g.Go(func() error {
		for d := 1; d <= maxOffset; d++ {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := checkIn.AddDate(0, 0, -d)
			if !notBefore.IsZero() && start.Before(notBefore) {
				return nil
			}
			ok, err := open(gctx, start)
			if err != nil {
				return err
			}
			if ok {
				backward = &Window{CheckIn: start, CheckOut: start.AddDate(0, 0, nights), OffsetDays: -d, Direction: DirectionBackward}
				return nil
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pickNearest(forward, backward), nil
}

func pickNearest(forward, backward *Window) *Window {
	switch {
	case forward == nil:
		return backward
	case backward == nil:
		return forward
	case forward.OffsetDays <= -backward.OffsetDays:
		return forward
	default:
		return backward
	}
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
