package database

import (
	"time"
)

// User represents a registered tasbeeh user
type User struct {
	Username   string
	Email      string
	Country    string
	TotalCount int64
	Streak     int
	LastActive *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AlertLog represents one dispatched prayer alert
type AlertLog struct {
	AlertID      string
	Prayer       string
	Place        string
	AdjustedTime string
	ScheduledAt  time.Time
	FiredAt      time.Time
	Sound        string
	Hijri        string
	RecordedAt   time.Time
}
