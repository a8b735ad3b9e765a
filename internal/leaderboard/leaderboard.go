// Package leaderboard ranks users by their remembrance counts.
package leaderboard

import (
	"fmt"
	"sort"
	"time"
)

// Period selects the counting window
type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodAll   Period = "all"
)

// ParsePeriod validates a period name. Empty means all time.
func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case "", PeriodAll:
		return PeriodAll, nil
	case PeriodToday, PeriodWeek:
		return Period(s), nil
	default:
		return "", fmt.Errorf("unknown period %q", s)
	}
}

// Since returns the first day counted by the period, or the zero time for all time
func (p Period) Since(now time.Time) time.Time {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	switch p {
	case PeriodToday:
		return today
	case PeriodWeek:
		return today.AddDate(0, 0, -6)
	default:
		return time.Time{}
	}
}

// Entry is one user's standing
type Entry struct {
	Rank    int    `json:"rank"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Count   int64  `json:"count"`
	Streak  int    `json:"streak"`
	IsMe    bool   `json:"is_me"`
}

// Board is a ranked list with the caller's position
type Board struct {
	Period  Period  `json:"period"`
	Entries []Entry `json:"entries"`
	MyRank  int     `json:"my_rank,omitempty"`
}

// Rank orders entries by count descending, ties by name, and marks me
func Rank(period Period, entries []Entry, me string) Board {
	ranked := make([]Entry, len(entries))
	copy(ranked, entries)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Name < ranked[j].Name
	})

	board := Board{Period: period, Entries: ranked}
	for i := range ranked {
		ranked[i].Rank = i + 1
		ranked[i].IsMe = me != "" && ranked[i].Name == me
		if ranked[i].IsMe {
			board.MyRank = i + 1
		}
	}
	return board
}
