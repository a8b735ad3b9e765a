package leaderboard

import (
	"testing"
	"time"
)

func TestRank_OrdersAndMarksMe(t *testing.T) {
	entries := []Entry{
		{Name: "bilal", Count: 120},
		{Name: "amina", Count: 450, Streak: 4},
		{Name: "zaid", Count: 120},
		{Name: "omar", Count: 10},
	}

	board := Rank(PeriodWeek, entries, "zaid")

	expected := []string{"amina", "bilal", "zaid", "omar"}
	for i, name := range expected {
		if board.Entries[i].Name != name {
			t.Errorf("Position %d: expected %s, got %s", i+1, name, board.Entries[i].Name)
		}
		if board.Entries[i].Rank != i+1 {
			t.Errorf("Expected rank %d, got %d", i+1, board.Entries[i].Rank)
		}
	}

	if board.MyRank != 3 {
		t.Errorf("Expected my rank 3, got %d", board.MyRank)
	}
	if !board.Entries[2].IsMe || board.Entries[0].IsMe {
		t.Error("Expected only zaid marked as me")
	}
	if entries[0].Rank != 0 {
		t.Error("Expected input entries to be left untouched")
	}
}

func TestRank_MeAbsent(t *testing.T) {
	board := Rank(PeriodAll, []Entry{{Name: "a", Count: 1}}, "ghost")
	if board.MyRank != 0 {
		t.Errorf("Expected no rank, got %d", board.MyRank)
	}
}

func TestPeriod_Since(t *testing.T) {
	now := time.Date(2026, time.March, 10, 15, 4, 5, 0, time.UTC)

	if got := PeriodToday.Since(now); !got.Equal(time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected today start %v", got)
	}
	if got := PeriodWeek.Since(now); !got.Equal(time.Date(2026, time.March, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected week start %v", got)
	}
	if got := PeriodAll.Since(now); !got.IsZero() {
		t.Errorf("Expected zero time for all, got %v", got)
	}
}

func TestParsePeriod(t *testing.T) {
	if p, err := ParsePeriod(""); err != nil || p != PeriodAll {
		t.Errorf("Expected all for empty, got %s (%v)", p, err)
	}
	if _, err := ParsePeriod("year"); err == nil {
		t.Error("Expected error for unknown period")
	}
}
