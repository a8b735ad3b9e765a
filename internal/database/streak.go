package database

import "time"

// NextStreak returns the daily streak after activity on day. Activity on the
// day after lastActive extends it, repeated or late activity keeps it, and
// any gap restarts it at 1.
func NextStreak(streak int, lastActive *time.Time, day time.Time) int {
	if lastActive == nil || streak < 1 {
		return 1
	}

	last := calendarDay(*lastActive)
	d := calendarDay(day)
	switch {
	case !d.After(last):
		return streak
	case d.Equal(last.AddDate(0, 0, 1)):
		return streak + 1
	default:
		return 1
	}
}

// calendarDay keeps only the date of t as seen in its own location
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
