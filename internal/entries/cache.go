// Package entries keeps the locally fetched journal entry list, hydrates
// transcripts and image tags on first need, and answers multi-term search.
package entries

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/Winstonlu01/Lunori/internal/journal"
	"github.com/Winstonlu01/Lunori/internal/logging"
)

// DefaultHydrateConcurrency bounds the detail fetches a search issues at once.
const DefaultHydrateConcurrency = 4

// Store is the remote entry store.
type Store interface {
	ListEntries(ctx context.Context) ([]journal.Entry, error)
	GetEntry(ctx context.Context, id string) (journal.EntryDetail, error)
	DeleteEntry(ctx context.Context, id string) error
	SaveEntry(ctx context.Context, req journal.SaveRequest) (string, error)
}

// Cache is the client-side view of the entry list.
type Cache struct {
	store       Store
	log         *slog.Logger
	now         func() time.Time
	concurrency int

	// hydrated memoizes journal.Hydrated by entry id until the next Refresh.
	hydrated *gocache.Cache
	group    singleflight.Group

	mu      sync.RWMutex
	items   []journal.Entry
	byID    map[string]int
	stats   Aggregates
	loaded  bool
	fetched time.Time
	gen     uint64
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Cache) { c.log = l } }

// WithHydrateConcurrency bounds concurrent detail fetches during Search.
func WithHydrateConcurrency(n int) Option { return func(c *Cache) { c.concurrency = n } }

// WithClock replaces time.Now for aggregate computation.
func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

// NewCache returns an empty cache over store. Call Refresh to load it.
func NewCache(store Store, opts ...Option) *Cache {
	c := &Cache{
		store:       store,
		log:         logging.Discard(),
		now:         time.Now,
		concurrency: DefaultHydrateConcurrency,
		hydrated:    gocache.New(gocache.NoExpiration, 0),
		byID:        map[string]int{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.concurrency < 1 {
		c.concurrency = DefaultHydrateConcurrency
	}
	c.log = c.log.With("component", "entries")
	return c
}

// Refresh replaces the cached list with the store's current one and drops
// every hydrated field. On failure the previous contents are kept.
func (c *Cache) Refresh(ctx context.Context) error {
	list, err := c.store.ListEntries(ctx)
	if err != nil {
		c.log.Warn("list entries failed", "error", err)
		return journal.Wrap(journal.KindEntryFetchFailed, "list entries", err)
	}

	byID := make(map[string]int, len(list))
	for i, e := range list {
		byID[e.ID] = i
	}
	now := c.now()
	stats := computeAggregates(list, now)

	c.mu.Lock()
	c.items = list
	c.byID = byID
	c.stats = stats
	c.loaded = true
	c.fetched = now
	c.gen++
	c.hydrated.Flush()
	c.mu.Unlock()

	c.log.Debug("entries refreshed", "count", len(list), "streak", stats.Streak)
	return nil
}

// Loaded reports whether at least one Refresh succeeded.
func (c *Cache) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// FetchedAt returns when the list was last refreshed.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetched
}

// Entries returns a copy of the cached list in store order.
func (c *Cache) Entries() []journal.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]journal.Entry, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Entry looks up one cached entry.
func (c *Cache) Entry(id string) (journal.Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return journal.Entry{}, false
	}
	return c.items[i], true
}

// Hydrate returns the transcript and image tags of id, fetching them the
// first time. Concurrent callers for the same id share one request, and a
// caller whose context ends stops waiting without failing the others.
func (c *Cache) Hydrate(ctx context.Context, id string) (journal.Hydrated, error) {
	if h, ok := c.cached(id); ok {
		return h, nil
	}

	// The shared fetch outlives any one caller; each caller gives up on
	// its own context only.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		if h, ok := c.cached(id); ok {
			return h, nil
		}
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		detail, err := c.store.GetEntry(fetchCtx, id)
		if err != nil {
			return nil, err
		}
		h := journal.Hydrated{
			Transcript: detail.Transcript,
			ImageTags:  journal.ImageTokens(detail.Images),
			Images:     detail.Images,
		}

		c.mu.Lock()
		// A refresh that landed during the fetch has already dropped the
		// memo; do not repopulate it with a pre-refresh value.
		if c.gen == gen {
			c.hydrated.Set(id, h, gocache.NoExpiration)
		}
		c.mu.Unlock()
		return h, nil
	})

	var (
		v   any
		err error
	)
	select {
	case res := <-ch:
		v, err = res.Val, res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		c.log.Warn("hydrate entry failed", "id", id, "error", err)
		return journal.Hydrated{}, journal.Wrap(journal.KindEntryFetchFailed, "get entry "+id, err)
	}
	return v.(journal.Hydrated), nil
}

// IsHydrated reports whether id's lazy fields are memoized.
func (c *Cache) IsHydrated(id string) bool {
	_, ok := c.cached(id)
	return ok
}

func (c *Cache) cached(id string) (journal.Hydrated, bool) {
	v, ok := c.hydrated.Get(id)
	if !ok {
		return journal.Hydrated{}, false
	}
	return v.(journal.Hydrated), true
}

// Detail returns the cached entry merged with its hydrated fields.
func (c *Cache) Detail(ctx context.Context, id string) (journal.EntryDetail, error) {
	h, err := c.Hydrate(ctx, id)
	if err != nil {
		return journal.EntryDetail{}, err
	}
	e, ok := c.Entry(id)
	if !ok {
		e = journal.Entry{ID: id}
	}
	return journal.EntryDetail{Entry: e, Transcript: h.Transcript, Images: h.Images}, nil
}

// Delete removes id from the store and reloads the list.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if err := c.store.DeleteEntry(ctx, id); err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	c.log.Info("entry deleted", "id", id)
	return c.Refresh(ctx)
}

// Save persists req as a new entry and reloads the list. The returned id is
// valid even when the reload fails.
func (c *Cache) Save(ctx context.Context, req journal.SaveRequest) (string, error) {
	id, err := c.store.SaveEntry(ctx, req)
	if err != nil {
		return "", fmt.Errorf("save entry: %w", err)
	}
	c.log.Info("entry saved", "id", id, "images", len(req.Images))
	return id, c.Refresh(ctx)
}

// Stats returns the aggregates computed by the last Refresh.
func (c *Cache) Stats() Aggregates {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.clone()
}
