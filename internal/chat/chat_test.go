package chat

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"design-props-rag/internal/models"
)

type echoCompleter struct {
	mu    sync.Mutex
	calls [][]models.Message
	err   error
}

func (e *echoCompleter) Complete(_ context.Context, transcript []models.Message) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, transcript)
	if e.err != nil {
		return "", e.err
	}
	return "re: " + transcript[len(transcript)-1].Text, nil
}

func TestSession_AskAccumulatesTranscript(t *testing.T) {
	c := &echoCompleter{}
	s := NewSession("urn:1", "grounding", c)

	for _, q := range []string{"first", "second"} {
		if _, err := s.Ask(context.Background(), q); err != nil {
			t.Fatalf("Ask(%q): %v", q, err)
		}
	}

	want := []models.Message{
		{Role: models.RoleSystem, Text: "grounding"},
		{Role: models.RoleUser, Text: "first"},
		{Role: models.RoleAssistant, Text: "re: first"},
		{Role: models.RoleUser, Text: "second"},
		{Role: models.RoleAssistant, Text: "re: second"},
	}
	if diff := cmp.Diff(want, s.Transcript()); diff != "" {
		t.Errorf("transcript (-want +got):\n%s", diff)
	}
	// The second completion saw the whole conversation up to the new question.
	if got := len(c.calls[1]); got != 4 {
		t.Errorf("second completion got %d messages, want 4", got)
	}
	if s.Turns() != 2 {
		t.Errorf("Turns() = %d, want 2", s.Turns())
	}
}

func TestSession_FailedAskLeavesTranscriptUntouched(t *testing.T) {
	c := &echoCompleter{err: errors.New("model unavailable")}
	s := NewSession("urn:1", "grounding", c)

	if _, err := s.Ask(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if got := len(s.Transcript()); got != 1 {
		t.Errorf("transcript has %d messages, want 1", got)
	}
}

func TestSession_EmptyQuestion(t *testing.T) {
	s := NewSession("urn:1", "g", &echoCompleter{})
	if _, err := s.Ask(context.Background(), "  "); !errors.Is(err, ErrEmptyQuestion) {
		t.Errorf("err = %v, want ErrEmptyQuestion", err)
	}
}

func TestCache_ConcurrentGetOrCreateInitializesOnce(t *testing.T) {
	cache := NewCache(0, nil)
	var calls atomic.Int32
	release := make(chan struct{})

	build := func(ctx context.Context) (*Session, error) {
		calls.Add(1)
		<-release
		return NewSession("urn:1", "g", &echoCompleter{}), nil
	}

	const callers = 8
	results := make([]*Session, callers)
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	for i := range callers {
		go func() {
			defer done.Done()
			started.Done()
			s, err := cache.GetOrCreate(context.Background(), "urn:1", build)
			if err != nil {
				t.Errorf("GetOrCreate: %v", err)
				return
			}
			results[i] = s
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if got := calls.Load(); got != 1 {
		t.Fatalf("initializer ran %d times, want 1", got)
	}
	for i, s := range results {
		if s != results[0] {
			t.Errorf("caller %d got a different session", i)
		}
	}

	// Later calls reuse the stored session without initializing again.
	s, err := cache.GetOrCreate(context.Background(), "urn:1", build)
	if err != nil || s != results[0] {
		t.Errorf("later GetOrCreate = %v, %v", s, err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("initializer ran %d times after reuse, want 1", got)
	}
}

func TestCache_FailureIsNotMemoized(t *testing.T) {
	cache := NewCache(0, nil)
	boom := errors.New("upstream down")
	calls := 0
	build := func(ctx context.Context) (*Session, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return NewSession("urn:1", "g", &echoCompleter{}), nil
	}

	_, err := cache.GetOrCreate(context.Background(), "urn:1", build)
	var initErr *InitError
	if !errors.As(err, &initErr) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want InitError wrapping boom", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("failed init left %d entries", cache.Len())
	}

	if _, err := cache.GetOrCreate(context.Background(), "urn:1", build); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if calls != 2 || cache.Len() != 1 {
		t.Errorf("calls=%d len=%d, want 2 and 1", calls, cache.Len())
	}
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	cache := NewCache(2, nil)
	mk := func(id string) Initializer {
		return func(context.Context) (*Session, error) {
			return NewSession(id, "g", &echoCompleter{}), nil
		}
	}
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if _, err := cache.GetOrCreate(ctx, id, mk(id)); err != nil {
			t.Fatal(err)
		}
	}
	cache.Get("a") // a is now more recent than b
	if _, err := cache.GetOrCreate(ctx, "c", mk("c")); err != nil {
		t.Fatal(err)
	}

	if _, ok := cache.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	for _, id := range []string{"a", "c"} {
		if _, ok := cache.Get(id); !ok {
			t.Errorf("%s should still be cached", id)
		}
	}
}

func TestCache_WaiterHonoursOwnContext(t *testing.T) {
	cache := NewCache(0, nil)
	release := make(chan struct{})
	defer close(release)

	go func() {
		_, _ = cache.GetOrCreate(context.Background(), "slow", func(context.Context) (*Session, error) {
			<-release
			return NewSession("slow", "g", &echoCompleter{}), nil
		})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := cache.GetOrCreate(ctx, "slow", func(context.Context) (*Session, error) {
		t.Error("second initializer must not run")
		return nil, nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
