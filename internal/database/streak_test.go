package database

import (
	"testing"
	"time"
)

func TestNextStreak(t *testing.T) {
	cairo := time.FixedZone("EET", 2*3600)
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	ptr := func(t time.Time) *time.Time { return &t }

	tests := []struct {
		name       string
		streak     int
		lastActive *time.Time
		day        time.Time
		expected   int
	}{
		{"first activity", 0, nil, day(10), 1},
		{"same day keeps streak", 4, ptr(day(10)), time.Date(2026, 3, 10, 22, 30, 0, 0, cairo), 4},
		{"next day extends", 4, ptr(day(10)), time.Date(2026, 3, 11, 0, 15, 0, 0, cairo), 5},
		{"gap resets", 4, ptr(day(10)), time.Date(2026, 3, 12, 9, 0, 0, 0, cairo), 1},
		{"late record keeps streak", 4, ptr(day(10)), day(8), 4},
		{"month boundary extends", 2, ptr(time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)), day(1), 3},
		{"invalid stored streak restarts", 0, ptr(day(10)), day(11), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NextStreak(tt.streak, tt.lastActive, tt.day); got != tt.expected {
				t.Errorf("Expected streak %d, got %d", tt.expected, got)
			}
		})
	}
}
