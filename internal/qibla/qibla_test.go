package qibla

import (
	"math"
	"testing"
)

func TestBearing_KnownCities(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		expected float64
	}{
		{"London", 51.5074, -0.1278, 118.99},
		{"New York", 40.7128, -74.0060, 58.48},
		{"Jakarta", -6.2088, 106.8456, 295.15},
	}

	for _, tt := range tests {
		got := Bearing(tt.lat, tt.lon)
		if math.Abs(got-tt.expected) > 0.05 {
			t.Errorf("%s: expected bearing %.2f, got %.2f", tt.name, tt.expected, got)
		}
	}
}

func TestDistance_London(t *testing.T) {
	got := Distance(51.5074, -0.1278)
	if math.Abs(got-4793.8) > 1 {
		t.Errorf("Expected ~4793.8 km, got %.1f", got)
	}
	if d := Distance(KaabaLat, KaabaLon); d > 0.001 {
		t.Errorf("Expected zero distance at the Kaaba, got %f", d)
	}
}

func TestAngularDistance(t *testing.T) {
	tests := []struct {
		a, b     float64
		expected float64
	}{
		{350, 10, 20},
		{10, 350, 20},
		{0, 180, 180},
		{-10, 10, 20},
		{720, 0, 0},
	}

	for _, tt := range tests {
		if got := AngularDistance(tt.a, tt.b); math.Abs(got-tt.expected) > 1e-9 {
			t.Errorf("AngularDistance(%v, %v): expected %v, got %v", tt.a, tt.b, tt.expected, got)
		}
	}
}

func TestAligned(t *testing.T) {
	if !Aligned(115, 119) {
		t.Error("Expected 115 to be aligned with 119")
	}
	if Aligned(110, 119) {
		t.Error("Did not expect 110 to be aligned with 119")
	}
	if !Aligned(358, 2) {
		t.Error("Expected alignment across north")
	}
}
