package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.TickInterval != time.Second {
		t.Errorf("Expected tick interval 1s, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Sources.Method != 2 {
		t.Errorf("Expected calculation method 2, got %d", cfg.Sources.Method)
	}
	if cfg.Kafka.TopicAlerts != "prayer.alerts" {
		t.Errorf("Expected topic prayer.alerts, got %s", cfg.Kafka.TopicAlerts)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SCHEDULER_TICK_INTERVAL", "500ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("AUDIO_ARGS", "-q,--no-video")
	t.Setenv("STREAM_PORT", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scheduler.TickInterval != 500*time.Millisecond {
		t.Errorf("Expected 500ms, got %v", cfg.Scheduler.TickInterval)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if len(cfg.Audio.Args) != 2 || cfg.Audio.Args[0] != "-q" {
		t.Errorf("Unexpected audio args: %v", cfg.Audio.Args)
	}
	if cfg.Stream.Port != 8081 {
		t.Errorf("Expected fallback port 8081, got %d", cfg.Stream.Port)
	}
}

func TestLoad_InvalidRefreshTime(t *testing.T) {
	t.Setenv("SCHEDULER_REFRESH_TIME", "midnight")

	if _, err := Load(); err == nil {
		t.Error("Expected error for invalid refresh time")
	}
}

func TestParseTimeOfDay(t *testing.T) {
	d, err := ParseTimeOfDay("00:05")
	if err != nil {
		t.Fatalf("ParseTimeOfDay failed: %v", err)
	}
	if d != 5*time.Minute {
		t.Errorf("Expected 5m, got %v", d)
	}

	if _, err := ParseTimeOfDay("25:00"); err == nil {
		t.Error("Expected error for hour 25")
	}
}
