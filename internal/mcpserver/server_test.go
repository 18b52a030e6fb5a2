package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Winstonlu01/Lunori/internal/entries"
	"github.com/Winstonlu01/Lunori/internal/journal"
)

type fakeJournal struct {
	loaded     bool
	fetched    time.Time
	clock      func() time.Time
	refreshes  int
	refreshErr error
	list       []journal.Entry
	searchErr  error
	details    map[string]journal.EntryDetail
	stats      entries.Aggregates
	queries    []string
}

func (f *fakeJournal) Loaded() bool         { return f.loaded }
func (f *fakeJournal) FetchedAt() time.Time { return f.fetched }

func (f *fakeJournal) Refresh(context.Context) error {
	f.refreshes++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	f.loaded = true
	f.fetched = time.Now()
	if f.clock != nil {
		f.fetched = f.clock()
	}
	return nil
}

func (f *fakeJournal) Search(_ context.Context, q string) ([]journal.Entry, error) {
	f.queries = append(f.queries, q)
	return f.list, f.searchErr
}

func (f *fakeJournal) Detail(_ context.Context, id string) (journal.EntryDetail, error) {
	d, ok := f.details[id]
	if !ok {
		return journal.EntryDetail{}, journal.Wrap(journal.KindEntryFetchFailed, "get entry "+id, errors.New("404"))
	}
	return d, nil
}

func (f *fakeJournal) Stats() entries.Aggregates { return f.stats }

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return tc.Text
}

func TestSearchEntriesRefreshesOnceAndLimits(t *testing.T) {
	j := &fakeJournal{}
	for i := 0; i < 30; i++ {
		j.list = append(j.list, journal.Entry{ID: fmt.Sprintf("e%02d", i), CreatedAt: time.Now()})
	}
	s := New(j, "test", nil)

	res, err := s.searchEntries(t.Context(), call(map[string]any{"query": "walk", "limit": 5}))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var out struct {
		Total   int `json:"total"`
		Entries []struct {
			ID string `json:"id"`
		} `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 30, out.Total)
	assert.Len(t, out.Entries, 5)
	assert.Equal(t, "e00", out.Entries[0].ID)
	assert.Equal(t, []string{"walk"}, j.queries)

	_, err = s.searchEntries(t.Context(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, j.refreshes, "a loaded cache is not refreshed again")
	assert.Equal(t, []string{"walk", ""}, j.queries)
}

func TestSearchEntriesReloadsStaleList(t *testing.T) {
	now := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	j := &fakeJournal{clock: clock}
	s := New(j, "test", nil, WithMaxAge(time.Minute), WithClock(clock))

	_, err := s.searchEntries(t.Context(), call(nil))
	require.NoError(t, err)
	now = now.Add(30 * time.Second)
	_, err = s.searchEntries(t.Context(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, 1, j.refreshes)

	now = now.Add(time.Minute)
	_, err = s.searchEntries(t.Context(), call(nil))
	require.NoError(t, err)
	assert.Equal(t, 2, j.refreshes, "a list older than the max age is reloaded")

	now = now.Add(time.Hour)
	j.refreshErr = errors.New("connection refused")
	res, err := s.searchEntries(t.Context(), call(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError, "a failed reload keeps serving the previous list")
	assert.Equal(t, 3, j.refreshes)
}

func TestSearchEntriesReportsFailures(t *testing.T) {
	j := &fakeJournal{refreshErr: journal.Wrap(journal.KindEntryFetchFailed, "list entries", errors.New("connection refused"))}
	s := New(j, "test", nil)

	res, err := s.searchEntries(t.Context(), call(map[string]any{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Could not load entries")

	j.refreshErr = nil
	j.searchErr = journal.Wrap(journal.KindSearchHydrationFailed, "search", errors.New("timeout"))
	res, err = s.searchEntries(t.Context(), call(map[string]any{"query": "x"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, text(t, res), "Search could not load every entry")
}

func TestGetEntry(t *testing.T) {
	j := &fakeJournal{loaded: true, details: map[string]journal.EntryDetail{
		"e1": {Entry: journal.Entry{ID: "e1", WordCount: 2}, Transcript: "good day"},
	}}
	s := New(j, "test", nil)

	res, err := s.getEntry(t.Context(), call(map[string]any{"id": "e1"}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, text(t, res), `"transcript": "good day"`)

	res, err = s.getEntry(t.Context(), call(map[string]any{"id": "missing"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	res, err = s.getEntry(t.Context(), call(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError, "id is required")
}

func TestJournalStats(t *testing.T) {
	avg := 12.5
	j := &fakeJournal{loaded: true, stats: entries.Aggregates{
		Weekly: map[string]int{"joy": 3, "fear": 1}, Streak: 4, Total: 9, AverageMood: &avg,
	}}
	s := New(j, "test", nil)

	res, err := s.journalStats(t.Context(), call(nil))
	require.NoError(t, err)

	var out struct {
		Streak int                  `json:"streak_days"`
		Total  int                  `json:"total_entries"`
		Mood   float64              `json:"average_mood"`
		Weekly []entries.LabelCount `json:"weekly_top_emotions"`
	}
	require.NoError(t, json.Unmarshal([]byte(text(t, res)), &out))
	assert.Equal(t, 4, out.Streak)
	assert.Equal(t, 9, out.Total)
	assert.InDelta(t, 12.5, out.Mood, 1e-9)
	assert.Equal(t, []entries.LabelCount{{Label: "joy", Count: 3}, {Label: "fear", Count: 1}}, out.Weekly)
}
