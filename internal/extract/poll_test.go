package extract

import (
	"context"
	"errors"
	"testing"
	"time"
)

// fakeSleep records requested delays without waiting.
type fakeSleep struct {
	delays []time.Duration
}

func (f *fakeSleep) Sleep(_ context.Context, d time.Duration) error {
	f.delays = append(f.delays, d)
	return nil
}

func TestPoll_ProcessingTwiceThenDone(t *testing.T) {
	sleeper := &fakeSleep{}
	calls := 0
	op := func(context.Context) (string, bool, error) {
		calls++
		if calls <= 2 {
			return "", false, nil
		}
		return "tree", true, nil
	}

	got, err := Poll(context.Background(), Poller{Sleep: sleeper.Sleep}, op)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if got != "tree" {
		t.Errorf("Poll = %q, want %q", got, "tree")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if len(sleeper.delays) != 2 {
		t.Fatalf("delays = %v, want 2", sleeper.delays)
	}
	for _, d := range sleeper.delays {
		if d != time.Second {
			t.Errorf("delay = %s, want 1s", d)
		}
	}
}

func TestPoll_ErrorAbortsImmediately(t *testing.T) {
	sleeper := &fakeSleep{}
	boom := errors.New("503 service unavailable")
	calls := 0
	op := func(context.Context) (int, bool, error) {
		calls++
		if calls == 1 {
			return 0, false, nil
		}
		return 0, false, boom
	}

	_, err := Poll(context.Background(), Poller{Sleep: sleeper.Sleep}, op)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	if calls != 2 || len(sleeper.delays) != 1 {
		t.Errorf("calls=%d delays=%d, want 2 and 1", calls, len(sleeper.delays))
	}
}

func TestPoll_MaxAttempts(t *testing.T) {
	sleeper := &fakeSleep{}
	calls := 0
	op := func(context.Context) (int, bool, error) {
		calls++
		return 0, false, nil
	}

	_, err := Poll(context.Background(), Poller{MaxAttempts: 4, Interval: 10 * time.Millisecond, Sleep: sleeper.Sleep}, op)
	if !errors.Is(err, ErrPollExhausted) {
		t.Fatalf("err = %v, want ErrPollExhausted", err)
	}
	if calls != 4 || len(sleeper.delays) != 3 {
		t.Errorf("calls=%d delays=%d, want 4 and 3", calls, len(sleeper.delays))
	}
}

func TestPoll_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func(context.Context) (int, bool, error) {
		calls++
		cancel()
		return 0, false, nil
	}

	_, err := Poll(ctx, Poller{Interval: time.Hour}, op)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
