package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	discusserrors "github.com/vango-dev/discuss/internal/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestGetSetQueryData(t *testing.T) {
	c := NewClient()
	key := NewKey("comments", "d1")

	if _, ok := c.GetQueryData(key); ok {
		t.Fatal("expected no data for a new key")
	}

	c.SetQueryData(key, []string{"a", "b"})

	data, ok := c.GetQueryData(key)
	if !ok {
		t.Fatal("expected data after SetQueryData")
	}
	if got := data.([]string); len(got) != 2 || got[0] != "a" {
		t.Errorf("GetQueryData = %v", got)
	}

	// Other keys are untouched.
	if _, ok := c.GetQueryData(NewKey("comments", "d2")); ok {
		t.Error("unexpected data under another key")
	}
}

func TestFetchCachesWithinStaleTime(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	c := NewClient(WithStaleTime(time.Minute), WithClock(clock.Now))
	key := NewKey("todos")

	calls := 0
	fetch := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	for i := 0; i < 3; i++ {
		data, err := c.Fetch(context.Background(), key, fetch)
		if err != nil {
			t.Fatal(err)
		}
		if data.(int) != 1 {
			t.Errorf("Fetch #%d = %v, want 1", i, data)
		}
	}
	if calls != 1 {
		t.Errorf("fetcher calls = %d, want 1", calls)
	}

	clock.Advance(2 * time.Minute)
	if !c.IsStale(key) {
		t.Error("expected entry to be stale after stale time")
	}
	data, err := c.Fetch(context.Background(), key, fetch)
	if err != nil {
		t.Fatal(err)
	}
	if data.(int) != 2 {
		t.Errorf("Fetch after stale time = %v, want 2", data)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	c := NewClient(WithStaleTime(time.Hour))
	key := NewKey("comments", "d1")
	c.SetQueryData(key, "cached")

	if c.IsStale(key) {
		t.Fatal("fresh SetQueryData should not be stale")
	}

	if n := c.InvalidateQueries(NewKey("comments")); n != 1 {
		t.Errorf("InvalidateQueries = %d, want 1", n)
	}
	if !c.IsStale(key) {
		t.Error("expected stale after invalidate")
	}

	// Data stays readable while stale.
	if data, ok := c.GetQueryData(key); !ok || data != "cached" {
		t.Errorf("GetQueryData after invalidate = %v, %v", data, ok)
	}

	data, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
		return "fresh", nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if data != "fresh" {
		t.Errorf("Fetch after invalidate = %v, want fresh", data)
	}
}

func TestCancelQueriesDiscardsInFlightRead(t *testing.T) {
	c := NewClient()
	key := NewKey("comments", "d1")
	c.SetQueryData(key, "optimistic")
	c.InvalidateQueries(key)

	started := make(chan struct{})
	release := make(chan struct{})
	var fetchCtxErr error

	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key, func(ctx context.Context) (any, error) {
			close(started)
			<-release
			fetchCtxErr = ctx.Err()
			return "stale server copy", nil
		})
		done <- err
	}()

	<-started
	if !c.IsFetching(key) {
		t.Error("IsFetching = false during fetch")
	}
	if n := c.CancelQueries(key); n != 1 {
		t.Errorf("CancelQueries = %d, want 1", n)
	}
	c.SetQueryData(key, "newer local write")
	close(release)

	err := <-done
	if !discusserrors.HasCode(err, "E321") {
		t.Errorf("Fetch err = %v, want E321", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Fetch err should wrap context.Canceled, got %v", err)
	}
	if !errors.Is(fetchCtxErr, context.Canceled) {
		t.Errorf("fetch context err = %v, want Canceled", fetchCtxErr)
	}

	data, _ := c.GetQueryData(key)
	if data != "newer local write" {
		t.Errorf("cancelled fetch overwrote cache: %v", data)
	}
	if c.IsFetching(key) {
		t.Error("IsFetching = true after cancel")
	}
}

func TestCancelQueriesWithoutInFlight(t *testing.T) {
	c := NewClient()
	c.SetQueryData(NewKey("comments", "d1"), 1)
	if n := c.CancelQueries(NewKey("comments")); n != 0 {
		t.Errorf("CancelQueries = %d, want 0", n)
	}
}

func TestFetchErrorKeepsData(t *testing.T) {
	c := NewClient()
	key := NewKey("k")
	c.SetQueryData(key, "old")

	wantErr := errors.New("boom")
	_, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Fetch err = %v", err)
	}
	if data, _ := c.GetQueryData(key); data != "old" {
		t.Errorf("data after failed fetch = %v, want old", data)
	}
}

func TestRemoveQueries(t *testing.T) {
	c := NewClient()
	c.SetQueryData(NewKey("comments", "d1"), 1)
	c.SetQueryData(NewKey("comments", "d2"), 2)
	c.SetQueryData(NewKey("users"), 3)

	if n := c.RemoveQueries(NewKey("comments")); n != 2 {
		t.Errorf("RemoveQueries = %d, want 2", n)
	}
	if _, ok := c.GetQueryData(NewKey("comments", "d1")); ok {
		t.Error("d1 still cached")
	}
	if _, ok := c.GetQueryData(NewKey("users")); !ok {
		t.Error("users removed")
	}
}

func TestSubscribe(t *testing.T) {
	c := NewClient()
	key := NewKey("comments", "d1")

	var events []Event
	unsubscribe := c.Subscribe(func(ev Event) {
		events = append(events, ev)
	})

	c.SetQueryData(key, 1)
	c.InvalidateQueries(key)
	unsubscribe()
	c.SetQueryData(key, 2)

	want := []EventType{EventSet, EventInvalidated}
	if len(events) != len(want) {
		t.Fatalf("got %d events, want %d", len(events), len(want))
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Errorf("event %d = %s, want %s", i, ev.Type, want[i])
		}
		if !ev.Key.Equal(key) {
			t.Errorf("event %d key = %s", i, ev.Key)
		}
	}
}

func TestFetchAsTypeMismatch(t *testing.T) {
	c := NewClient(WithStaleTime(time.Hour))
	key := NewKey("k")
	c.SetQueryData(key, "a string")

	_, err := FetchAs(context.Background(), c, key, func(context.Context) (int, error) {
		return 1, nil
	})
	if !discusserrors.HasCode(err, "E320") {
		t.Errorf("FetchAs err = %v, want E320", err)
	}

	got, err := FetchAs(context.Background(), c, NewKey("n"), func(context.Context) (int, error) {
		return 7, nil
	})
	if err != nil || got != 7 {
		t.Errorf("FetchAs = %v, %v", got, err)
	}
}

func TestLockKeySerializes(t *testing.T) {
	c := NewClient()
	key := NewKey("comments", "d1")

	unlock, err := c.LockKey(context.Background(), key)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := c.LockKey(ctx, key); err == nil {
		t.Error("second LockKey succeeded while held")
	}

	unlock()
	unlock2, err := c.LockKey(context.Background(), key)
	if err != nil {
		t.Fatalf("LockKey after unlock: %v", err)
	}
	unlock2()
}

func TestIsInvalidatedIgnoresAge(t *testing.T) {
	// Zero stale time: every entry is stale by age, none is invalidated.
	c := NewClient()
	key := NewKey("comments", "d1")
	c.SetQueryData(key, 1)

	if !c.IsStale(key) {
		t.Error("zero stale time should report IsStale")
	}
	if c.IsInvalidated(key) {
		t.Error("IsInvalidated = true right after SetQueryData")
	}

	c.InvalidateQueries(NewKey("comments"))
	if !c.IsInvalidated(key) {
		t.Error("IsInvalidated = false after InvalidateQueries")
	}

	c.SetQueryData(key, 2)
	if c.IsInvalidated(key) {
		t.Error("SetQueryData should clear the invalidated mark")
	}

	c.InvalidateQueries(key)
	if _, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) { return 3, nil }); err != nil {
		t.Fatal(err)
	}
	if c.IsInvalidated(key) {
		t.Error("Fetch should clear the invalidated mark")
	}

	if c.IsInvalidated(NewKey("unknown")) {
		t.Error("unknown key reported invalidated")
	}
}

func TestConcurrentFetchSharesLoad(t *testing.T) {
	c := NewClient(WithStaleTime(time.Hour))
	key := NewKey("comments", "d1")

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	fetch := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return "server copy", nil
	}

	type result struct {
		data any
		err  error
	}
	first := make(chan result, 1)
	go func() {
		data, err := c.Fetch(context.Background(), key, fetch)
		first <- result{data, err}
	}()
	<-started

	second := make(chan result, 1)
	go func() {
		data, err := c.Fetch(context.Background(), key, fetch)
		second <- result{data, err}
	}()

	close(release)
	for i, r := range []result{<-first, <-second} {
		if r.err != nil || r.data != "server copy" {
			t.Errorf("Fetch #%d = %v, %v", i+1, r.data, r.err)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("fetcher calls = %d, want 1", n)
	}
}

func TestFetchJoinerHonoursOwnContext(t *testing.T) {
	c := NewClient()
	key := NewKey("k")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := c.Fetch(context.Background(), key, func(context.Context) (any, error) {
			close(started)
			<-release
			return 1, nil
		})
		done <- err
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Fetch(ctx, key, func(context.Context) (any, error) {
		t.Error("joining Fetch started a second load")
		return nil, nil
	}); !errors.Is(err, context.Canceled) {
		t.Errorf("joining Fetch err = %v, want Canceled", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("first Fetch err = %v", err)
	}
}
