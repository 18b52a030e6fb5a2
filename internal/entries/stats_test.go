package entries

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Winstonlu01/Lunori/internal/journal"
)

var today = time.Date(2026, 10, 17, 15, 30, 0, 0, time.Local)

func daysAgo(n int) time.Time {
	return today.AddDate(0, 0, -n)
}

func entryOn(id string, at time.Time, labels ...string) journal.Entry {
	e := journal.Entry{ID: id, CreatedAt: at}
	for _, l := range labels {
		e.TopEmotions = append(e.TopEmotions, journal.Emotion{Label: l, Score: 0.5})
	}
	return e
}

func TestWeeklyTopExcludesOldEntries(t *testing.T) {
	list := []journal.Entry{
		entryOn("1", today, "joy", "surprise"),
		entryOn("2", today.Add(-time.Hour), "joy"),
		entryOn("3", daysAgo(8), "anger"),
	}
	assert.Equal(t, map[string]int{"joy": 2}, WeeklyTop(list, today))
}

func TestWeeklyTopWindowBoundary(t *testing.T) {
	list := []journal.Entry{
		entryOn("six", time.Date(2026, 10, 11, 0, 5, 0, 0, time.Local), "calm"),
		entryOn("seven", time.Date(2026, 10, 10, 23, 55, 0, 0, time.Local), "fear"),
		entryOn("none", today),
	}
	assert.Equal(t, map[string]int{"calm": 1}, WeeklyTop(list, today))
}

func TestStreak(t *testing.T) {
	tests := []struct {
		name string
		days []int
		want int
	}{
		{"empty", nil, 0},
		{"today only", []int{0}, 1},
		{"one grace day", []int{0, 1, 3}, 3},
		{"two misses break", []int{0, 3}, 1},
		{"starts yesterday", []int{1, 2}, 2},
		{"starts two days ago", []int{2, 3}, 0},
		{"several entries per day", []int{0, 0, 1, 1}, 2},
		{"alternating", []int{0, 2, 4, 6}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list []journal.Entry
			for i, d := range tt.days {
				list = append(list, entryOn(string(rune('a'+i)), daysAgo(d)))
			}
			assert.Equal(t, tt.want, Streak(list, today))
		})
	}
}

func TestStreakHorizon(t *testing.T) {
	var list []journal.Entry
	for d := 0; d < 400; d++ {
		list = append(list, entryOn("e", daysAgo(d)))
	}
	assert.Equal(t, StreakHorizon, Streak(list, today))
}

func TestStatsRecomputedOnRefresh(t *testing.T) {
	m1, m2 := 50, -10
	store := newFakeStore()
	store.add(journal.Entry{ID: "a", CreatedAt: today, Mood: &m1, TopEmotions: []journal.Emotion{{Label: "joy"}}}, "")
	store.add(journal.Entry{ID: "b", CreatedAt: daysAgo(1), Mood: &m2, TopEmotions: []journal.Emotion{{Label: "sadness"}}}, "")
	store.add(journal.Entry{ID: "c", CreatedAt: daysAgo(3)}, "")

	c := NewCache(store, WithClock(func() time.Time { return today }))
	require.NoError(t, c.Refresh(t.Context()))

	s := c.Stats()
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 3, s.Streak)
	assert.Equal(t, map[string]int{"joy": 1, "sadness": 1}, s.Weekly)
	require.NotNil(t, s.AverageMood)
	assert.InDelta(t, 20.0, *s.AverageMood, 1e-9)
	assert.Equal(t, []LabelCount{{"joy", 1}, {"sadness", 1}}, s.Ranked())

	s.Weekly["joy"] = 99
	assert.Equal(t, 1, c.Stats().Weekly["joy"], "Stats returns a copy")

	require.NoError(t, c.Delete(t.Context(), "a"))
	s = c.Stats()
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, 2, s.Streak, "today missed, yesterday and three days ago present")
	assert.Equal(t, map[string]int{"sadness": 1}, s.Weekly)
}
