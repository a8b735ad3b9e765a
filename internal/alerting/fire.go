// Package alerting delivers prayer-time alerts to audio, Kafka and displays.
package alerting

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/prayer-server/internal/prayer"
)

// Fire is one prayer alert reaching its adjusted time
type Fire struct {
	ID      uuid.UUID
	Name    prayer.TimePoint
	Time    prayer.Clock
	Offset  int
	At      time.Time
	Sound   string
	Place   string
	Hijri   string
	FiredAt time.Time
}

// NewFire builds an alert for a crossed target
func NewFire(t prayer.Target, cfg prayer.AlertConfig, place, hijri string, firedAt time.Time) Fire {
	return Fire{
		ID:      uuid.New(),
		Name:    t.Name,
		Time:    t.Time,
		Offset:  cfg.Offset,
		At:      t.At,
		Sound:   cfg.Sound,
		Place:   place,
		Hijri:   hijri,
		FiredAt: firedAt,
	}
}

// Key identifies the alert by prayer and date, shared by every replica
func (f Fire) Key() string {
	return prayer.Target{Name: f.Name, Time: f.Time, At: f.At}.Key()
}

// Sink receives fired alerts
type Sink interface {
	Name() string
	Deliver(ctx context.Context, f Fire) error
}
