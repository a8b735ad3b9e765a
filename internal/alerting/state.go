package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ClaimTTL keeps a claimed alert key long enough to cover a restart on the next day
const ClaimTTL = 48 * time.Hour

// Claimer grants the right to deliver an alert exactly once
type Claimer interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// StateManager records fired alerts in Redis
type StateManager struct {
	redis *redis.Client
}

// NewStateManager creates a new state manager
func NewStateManager(redisClient *redis.Client) *StateManager {
	return &StateManager{redis: redisClient}
}

func firedKey(key string) string {
	return fmt.Sprintf("alert_fired:%s", key)
}

// Claim marks the alert as fired. It reports false when another process
// already claimed it.
func (sm *StateManager) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := sm.redis.SetNX(ctx, firedKey(key), time.Now().UTC().Format(time.RFC3339), ClaimTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim alert in Redis: %w", err)
	}
	return ok, nil
}

// FiredAt returns when the alert was claimed, if it was
func (sm *StateManager) FiredAt(ctx context.Context, key string) (time.Time, bool, error) {
	data, err := sm.redis.Get(ctx, firedKey(key)).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to get alert state from Redis: %w", err)
	}

	at, err := time.Parse(time.RFC3339, data)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to parse alert state: %w", err)
	}
	return at, true, nil
}
