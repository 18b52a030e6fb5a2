package entries

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Winstonlu01/Lunori/internal/journal"
)

// Terms splits a query into lowercase whitespace-separated terms.
func Terms(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// Matches reports whether every term occurs in the transcript or in the
// space-joined tag set.
func Matches(h journal.Hydrated, terms []string) bool {
	text := strings.ToLower(h.Transcript)
	tags := strings.Join(h.ImageTags, " ")
	for _, t := range terms {
		if !strings.Contains(text, t) && !strings.Contains(tags, t) {
			return false
		}
	}
	return true
}

// Search returns the cached entries matching query, in cache order. An empty
// query returns every entry without hydrating. Otherwise every entry is
// hydrated first; a failed hydration fails the whole search, but entries
// hydrated before it stay memoized.
func (c *Cache) Search(ctx context.Context, query string) ([]journal.Entry, error) {
	all := c.Entries()
	terms := Terms(query)
	if len(terms) == 0 {
		return all, nil
	}

	hydrated, err := c.hydrateAll(ctx, all)
	if err != nil {
		return nil, journal.Wrap(journal.KindSearchHydrationFailed, "search", err)
	}

	var out []journal.Entry
	for i, e := range all {
		if Matches(hydrated[i], terms) {
			out = append(out, e)
		}
	}
	c.log.Debug("search", "terms", len(terms), "matches", len(out), "of", len(all))
	return out, nil
}

// hydrateAll hydrates list with bounded concurrency and returns the results
// in list order.
func (c *Cache) hydrateAll(ctx context.Context, list []journal.Entry) ([]journal.Hydrated, error) {
	out := make([]journal.Hydrated, len(list))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, e := range list {
		if h, ok := c.cached(e.ID); ok {
			out[i] = h
			continue
		}
		g.Go(func() error {
			h, err := c.Hydrate(gctx, e.ID)
			if err != nil {
				return err
			}
			out[i] = h
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
