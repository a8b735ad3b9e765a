package prayer

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in       string
		expected string
		wantErr  bool
	}{
		{"05:12", "05:12", false},
		{"05:12 (EET)", "05:12", false},
		{" 19:45 ", "19:45", false},
		{"24:00", "", true},
		{"12:60", "", true},
		{"1230", "", true},
		{"ab:cd", "", true},
	}

	for _, tt := range tests {
		c, err := ParseClock(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q) failed: %v", tt.in, err)
			continue
		}
		if c.String() != tt.expected {
			t.Errorf("ParseClock(%q): expected %s, got %s", tt.in, tt.expected, c)
		}
	}
}

func TestClock_AddWraps(t *testing.T) {
	c := Clock{Hour: 23, Minute: 55}
	if got := c.Add(10).String(); got != "00:05" {
		t.Errorf("Expected 00:05, got %s", got)
	}
	if got := (Clock{Hour: 0, Minute: 5}).Add(-10).String(); got != "23:55" {
		t.Errorf("Expected 23:55, got %s", got)
	}
}

func TestClock_JSON(t *testing.T) {
	data, err := json.Marshal(map[TimePoint]Clock{Fajr: {Hour: 5, Minute: 2}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"Fajr":"05:02"}` {
		t.Errorf("Unexpected JSON: %s", data)
	}
}

func TestDailySchedule_IsImmutable(t *testing.T) {
	times := map[TimePoint]Clock{Fajr: {Hour: 5}}
	s := NewDailySchedule(at(10, 9, 0, 0), testZone, times, HijriDate{}, "")

	times[Fajr] = Clock{Hour: 6}
	if c, _ := s.Time(Fajr); c.Hour != 5 {
		t.Errorf("Expected schedule to keep 05:00, got %s", c)
	}

	out := s.Times()
	out[Fajr] = Clock{Hour: 7}
	if c, _ := s.Time(Fajr); c.Hour != 5 {
		t.Errorf("Expected schedule to keep 05:00 after Times() mutation, got %s", c)
	}
}

func TestDailySchedule_InstantCrossesMidnight(t *testing.T) {
	s := NewDailySchedule(at(10, 0, 0, 0), testZone, map[TimePoint]Clock{Isha: {Hour: 23, Minute: 50}}, HijriDate{}, "")

	instant, _ := s.Instant(Isha, 20)
	expected := time.Date(2026, time.March, 11, 0, 10, 0, 0, testZone)
	if !instant.Equal(expected) {
		t.Errorf("Expected %v, got %v", expected, instant)
	}
}

func TestParseTimePoint(t *testing.T) {
	p, err := ParseTimePoint("maghrib")
	if err != nil || p != Maghrib {
		t.Errorf("Expected Maghrib, got %s (%v)", p, err)
	}
	if _, err := ParseTimePoint("brunch"); err == nil {
		t.Error("Expected error for unknown time-point")
	}
}

func TestAlertSettings_Offsets(t *testing.T) {
	s := DefaultAlertSettings("adhan.mp3")
	cfg := s[Asr]
	cfg.Offset = -5
	s[Asr] = cfg

	offsets := s.Offsets()
	if offsets.Of(Asr) != -5 {
		t.Errorf("Expected -5, got %d", offsets.Of(Asr))
	}
	if offsets.Of(Sunrise) != 0 {
		t.Errorf("Expected 0 for unset offset, got %d", offsets.Of(Sunrise))
	}
	if !s[Fajr].Enabled || s[Fajr].Sound != "adhan.mp3" {
		t.Errorf("Unexpected default config: %+v", s[Fajr])
	}
}

func TestTimePoint_IsObligatory(t *testing.T) {
	for _, p := range Obligatory {
		if !p.IsObligatory() {
			t.Errorf("Expected %s to be obligatory", p)
		}
	}
	if Sunrise.IsObligatory() {
		t.Error("Expected Sunrise not to be obligatory")
	}
}
