package query

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/discuss/internal/errors"
)

// EventType describes what happened to a cache entry.
type EventType int

const (
	EventSet         EventType = iota // Data written by SetQueryData
	EventFetched                      // Data written by a completed Fetch
	EventFetchFailed                  // A Fetch returned an error
	EventInvalidated                  // Entry marked stale
	EventCancelled                    // In-flight Fetch cancelled
	EventRemoved                      // Entry dropped from the cache
)

func (t EventType) String() string {
	switch t {
	case EventSet:
		return "set"
	case EventFetched:
		return "fetched"
	case EventFetchFailed:
		return "fetch_failed"
	case EventInvalidated:
		return "invalidated"
	case EventCancelled:
		return "cancelled"
	case EventRemoved:
		return "removed"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is delivered to subscribers after the cache changed.
type Event struct {
	Type EventType
	Key  Key
}

// Fetcher loads the server state for one key.
type Fetcher func(ctx context.Context) (any, error)

// entry is the cached state of one key.
type entry struct {
	key       Key
	data      any
	hasData   bool
	stale     bool
	updatedAt time.Time

	fetchID uint64 // Bumped on every Fetch and on cancellation
	call    *fetchCall
}

// fetchCall is one in-flight load shared by every Fetch of the key.
type fetchCall struct {
	done   chan struct{}
	cancel context.CancelFunc
	data   any
	err    error
}

// Client is an in-memory cache of server state keyed by Key.
// It is safe for concurrent use.
type Client struct {
	mu      sync.Mutex
	entries map[string]*entry

	subMu   sync.RWMutex
	subs    map[uint64]func(Event)
	nextSub uint64

	locks keyedMutex

	staleTime time.Duration
	logger    *slog.Logger
	now       func() time.Time
}

// NewClient creates an empty Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		entries: make(map[string]*entry),
		subs:    make(map[uint64]func(Event)),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetQueryData returns the cached data for key. The second result is false
// when nothing has been stored under the key.
func (c *Client) GetQueryData(key Key) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok || !e.hasData {
		return nil, false
	}
	return e.data, true
}

// SetQueryData stores data under key. The entry becomes fresh.
func (c *Client) SetQueryData(key Key, data any) {
	c.mu.Lock()
	e := c.entryLocked(key)
	e.data = data
	e.hasData = true
	e.stale = false
	e.updatedAt = c.now()
	c.mu.Unlock()

	c.emit(Event{Type: EventSet, Key: key.clone()})
}

// InvalidateQueries marks every entry whose key starts with prefix as stale,
// so the next Fetch reloads it. It returns the number of entries marked.
func (c *Client) InvalidateQueries(prefix Key) int {
	c.mu.Lock()
	var keys []Key
	for _, e := range c.entries {
		if e.key.HasPrefix(prefix) {
			e.stale = true
			keys = append(keys, e.key.clone())
		}
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.emit(Event{Type: EventInvalidated, Key: k})
	}
	if len(keys) > 0 {
		c.logger.Debug("query: invalidated", "prefix", prefix.String(), "entries", len(keys))
	}
	return len(keys)
}

// CancelQueries cancels in-flight fetches for every key starting with prefix.
// Cancelled fetches never write their result into the cache. It returns the
// number of fetches cancelled.
func (c *Client) CancelQueries(prefix Key) int {
	c.mu.Lock()
	var keys []Key
	for _, e := range c.entries {
		if e.call == nil || !e.key.HasPrefix(prefix) {
			continue
		}
		e.call.cancel()
		e.call = nil
		e.fetchID++
		keys = append(keys, e.key.clone())
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.emit(Event{Type: EventCancelled, Key: k})
	}
	if len(keys) > 0 {
		c.logger.Debug("query: cancelled in-flight reads", "prefix", prefix.String(), "entries", len(keys))
	}
	return len(keys)
}

// RemoveQueries drops every entry whose key starts with prefix, cancelling
// in-flight fetches for them.
func (c *Client) RemoveQueries(prefix Key) int {
	c.mu.Lock()
	var keys []Key
	for id, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		if e.call != nil {
			e.call.cancel()
			e.call = nil
			e.fetchID++
		}
		delete(c.entries, id)
		keys = append(keys, e.key.clone())
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.emit(Event{Type: EventRemoved, Key: k})
	}
	return len(keys)
}

// IsStale reports whether the next Fetch for key would go to the server.
func (c *Client) IsStale(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return true
	}
	return c.staleLocked(e)
}

// IsInvalidated reports whether key was marked stale by InvalidateQueries
// and has not been written since. Age-based staleness is not counted.
func (c *Client) IsInvalidated(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	return ok && e.stale
}

// IsFetching reports whether a fetch for key is in flight.
func (c *Client) IsFetching(key Key) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	return ok && e.call != nil
}

// Fetch returns the data cached under key, loading it with fetch when the
// entry is missing or stale. Concurrent Fetches of one key share a single
// load, which runs under the ctx of the caller that started it; a joining
// caller stops waiting when its own ctx is done. If the load is cancelled
// through CancelQueries, its result is discarded and every waiting caller
// gets an E321 error.
func (c *Client) Fetch(ctx context.Context, key Key, fetch Fetcher) (any, error) {
	c.mu.Lock()
	e := c.entryLocked(key)
	if !c.staleLocked(e) {
		data := e.data
		c.mu.Unlock()
		return data, nil
	}

	if call := e.call; call != nil {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.data, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	e.fetchID++
	id := e.fetchID
	fetchCtx, cancel := context.WithCancel(ctx)
	call := &fetchCall{done: make(chan struct{}), cancel: cancel}
	e.call = call
	c.mu.Unlock()

	data, err := fetch(fetchCtx)
	cancel()

	c.mu.Lock()
	if e.fetchID != id {
		c.mu.Unlock()
		c.logger.Debug("query: discarded cancelled fetch", "key", key.String())
		call.err = errors.New("E321").WithDetail("fetch for " + key.String() + " was cancelled").Wrap(context.Canceled)
		close(call.done)
		return nil, call.err
	}
	e.call = nil

	if err != nil {
		c.mu.Unlock()
		call.err = err
		close(call.done)
		c.emit(Event{Type: EventFetchFailed, Key: key.clone()})
		return nil, err
	}

	e.data = data
	e.hasData = true
	e.stale = false
	e.updatedAt = c.now()
	c.mu.Unlock()

	call.data = data
	close(call.done)
	c.emit(Event{Type: EventFetched, Key: key.clone()})
	return data, nil
}

// Subscribe registers fn to receive cache events. Events are delivered
// synchronously, after the cache lock is released. Call the returned
// function to unsubscribe.
func (c *Client) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.subs, id)
		c.subMu.Unlock()
	}
}

// LockKey blocks until the caller holds the serial lock for key, or ctx is
// done. Mutations use it to run one after another per key.
func (c *Client) LockKey(ctx context.Context, key Key) (unlock func(), err error) {
	return c.locks.lock(ctx, key.String())
}

func (c *Client) emit(ev Event) {
	c.subMu.RLock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.RUnlock()

	for _, fn := range subs {
		fn(ev)
	}
}

func (c *Client) entryLocked(key Key) *entry {
	id := key.String()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{key: key.clone()}
		c.entries[id] = e
	}
	return e
}

func (c *Client) staleLocked(e *entry) bool {
	if !e.hasData || e.stale {
		return true
	}
	return c.now().Sub(e.updatedAt) >= c.staleTime
}

// FetchAs is Fetch with a typed fetcher and result. Data of another type
// already cached under key yields an E320 error.
func FetchAs[T any](ctx context.Context, c *Client, key Key, fetch func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	data, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := data.(T)
	if !ok {
		return zero, errors.New("E320").WithDetail(fmt.Sprintf("%s holds %T, want %T", key, data, zero))
	}
	return typed, nil
}
