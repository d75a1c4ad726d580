package chat

import (
	"container/list"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"design-props-rag/internal/logging"
)

// Initializer builds a brand new session for a design. It may be slow.
type Initializer func(ctx context.Context) (*Session, error)

// InitError reports that building the session for a design failed
type InitError struct {
	DesignID string
	Err      error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("initialize session for %s: %v", e.DesignID, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Cache maps design ids to their sessions. Concurrent lookups of an absent
// id share a single initialization; failed initializations are not kept.
//
// With MaxSessions > 0 the least recently used session is evicted once the
// bound is exceeded, and a later call for that id builds a fresh session.
type Cache struct {
	maxSessions int
	logger      *slog.Logger

	group singleflight.Group

	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front is most recently used
}

type entry struct {
	designID string
	session  *Session
}

// NewCache creates an empty cache. maxSessions <= 0 never evicts.
func NewCache(maxSessions int, logger *slog.Logger) *Cache {
	return &Cache{
		maxSessions: maxSessions,
		logger:      logging.OrDiscard(logger),
		entries:     make(map[string]*list.Element),
		order:       list.New(),
	}
}

// Get returns the cached session for designID, if any
func (c *Cache) Get(designID string) (*Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[designID]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).session, true
}

// GetOrCreate returns the session for designID, running initialize when absent.
// initialize runs at most once at a time per id; callers arriving while it runs
// wait for its outcome, or for their own ctx to end.
func (c *Cache) GetOrCreate(ctx context.Context, designID string, initialize Initializer) (*Session, error) {
	if s, ok := c.Get(designID); ok {
		return s, nil
	}

	ch := c.group.DoChan(designID, func() (any, error) {
		// A previous flight may have stored the session between Get and DoChan.
		if s, ok := c.Get(designID); ok {
			return s, nil
		}
		c.logger.Info("initializing session", "design_id", designID)
		s, err := initialize(ctx)
		if err != nil {
			return nil, &InitError{DesignID: designID, Err: err}
		}
		c.put(designID, s)
		c.logger.Info("session ready", "design_id", designID, "session_id", s.ID)
		return s, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Session), nil
	}
}

// Len reports how many sessions are cached
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Remove drops the session for designID
func (c *Cache) Remove(designID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[designID]; ok {
		c.order.Remove(el)
		delete(c.entries, designID)
	}
}

func (c *Cache) put(designID string, s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[designID] = c.order.PushFront(&entry{designID: designID, session: s})
	for c.maxSessions > 0 && c.order.Len() > c.maxSessions {
		evicted := c.order.Remove(c.order.Back()).(*entry)
		delete(c.entries, evicted.designID)
		c.logger.Debug("evicted session", "design_id", evicted.designID)
	}
}
