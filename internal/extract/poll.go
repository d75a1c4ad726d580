package extract

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// DefaultPollInterval is the delay between attempts while a derivative job runs.
const DefaultPollInterval = time.Second

// ErrPollExhausted is returned when MaxAttempts attempts all reported "processing".
var ErrPollExhausted = errors.New("derivative job still processing after max attempts")

// Poller repeats an operation until it reports completion.
type Poller struct {
	// Interval between attempts. Zero means DefaultPollInterval.
	Interval time.Duration
	// MaxAttempts bounds the number of attempts. Zero means unbounded; the
	// context deadline is then the only limit.
	MaxAttempts int
	// Sleep waits for d or until ctx is done. Nil uses a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Poll invokes op until it returns done. Errors from op abort immediately.
func Poll[T any](ctx context.Context, p Poller, op func(context.Context) (T, bool, error)) (T, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var zero T
	for attempt := 1; ; attempt++ {
		v, done, err := op(ctx)
		if err != nil {
			return zero, err
		}
		if done {
			return v, nil
		}
		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("%w (%d)", ErrPollExhausted, attempt)
		}
		if err := sleep(ctx, interval); err != nil {
			return zero, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
