package entries

import (
	"maps"
	"sort"
	"time"

	"github.com/Winstonlu01/Lunori/internal/journal"
)

const (
	// WeekDays is how many calendar days, today included, the weekly
	// emotion count covers.
	WeekDays = 7
	// StreakHorizon bounds how far back the streak scan looks.
	StreakHorizon = 365
	// graceDays is how many consecutive missed days a streak survives.
	graceDays = 1
)

// Aggregates are the derived figures recomputed on every refresh.
type Aggregates struct {
	// Weekly counts each entry's top emotion label over the last WeekDays
	// calendar days.
	Weekly      map[string]int
	Streak      int
	Total       int
	AverageMood *float64
}

func (a Aggregates) clone() Aggregates {
	a.Weekly = maps.Clone(a.Weekly)
	if a.AverageMood != nil {
		v := *a.AverageMood
		a.AverageMood = &v
	}
	return a
}

// LabelCount is one row of a ranked weekly count.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Ranked returns the weekly counts ordered by count, then label.
func (a Aggregates) Ranked() []LabelCount {
	out := make([]LabelCount, 0, len(a.Weekly))
	for l, n := range a.Weekly {
		out = append(out, LabelCount{Label: l, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func computeAggregates(list []journal.Entry, now time.Time) Aggregates {
	a := Aggregates{
		Weekly: WeeklyTop(list, now),
		Streak: Streak(list, now),
		Total:  len(list),
	}
	var sum, n int
	for _, e := range list {
		if e.Mood != nil {
			sum += *e.Mood
			n++
		}
	}
	if n > 0 {
		avg := float64(sum) / float64(n)
		a.AverageMood = &avg
	}
	return a
}

// day truncates t to its local calendar day.
func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from then to now.
func daysBetween(then, now time.Time) int {
	a, b := day(then.In(now.Location())), day(now)
	// Round absorbs DST shifts in the 24h arithmetic.
	return int(b.Sub(a).Round(24*time.Hour) / (24 * time.Hour))
}

// WeeklyTop counts the top emotion label of every entry created 0..6
// calendar days before now. Entries without emotions are skipped.
func WeeklyTop(list []journal.Entry, now time.Time) map[string]int {
	out := map[string]int{}
	for _, e := range list {
		age := daysBetween(e.CreatedAt, now)
		if age < 0 || age >= WeekDays {
			continue
		}
		if l := e.TopEmotion(); l != "" {
			out[l]++
		}
	}
	return out
}

// Streak scans back from today over StreakHorizon days. A day with an entry
// extends the streak; more than one consecutive missed day ends the scan.
func Streak(list []journal.Entry, now time.Time) int {
	present := make(map[int]bool, len(list))
	for _, e := range list {
		present[daysBetween(e.CreatedAt, now)] = true
	}

	streak, missed := 0, 0
	for d := 0; d < StreakHorizon; d++ {
		if present[d] {
			streak++
			missed = 0
			continue
		}
		missed++
		if missed > graceDays {
			break
		}
	}
	return streak
}
