package upstream

import (
	"context"
	"time"
)

// Cache stores decoded upstream responses
type Cache interface {
	Get(ctx context.Context, key string, dest any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(ctx context.Context, key string, dest any) bool               { return false }
func (NopCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {}
