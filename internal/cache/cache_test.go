package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func TestCache_UnreachableRedisDisables(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := New(client, zerolog.Nop())
	if c.IsAvailable() {
		t.Fatal("Expected cache disabled when Redis is unreachable")
	}

	c.Set(context.Background(), KeyTimings+"cairo", map[string]string{"fajr": "04:12"}, time.Minute)

	var dest map[string]string
	if c.Get(context.Background(), KeyTimings+"cairo", &dest) {
		t.Error("Expected miss on disabled cache")
	}
}

func TestCache_NilClient(t *testing.T) {
	c := New(nil, zerolog.Nop())
	if c.IsAvailable() {
		t.Error("Expected nil client to be unavailable")
	}

	var dest string
	if c.Get(context.Background(), "k", &dest) {
		t.Error("Expected miss")
	}
}
