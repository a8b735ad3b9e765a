package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/smukkama/prayer-server/internal/database"
	"github.com/smukkama/prayer-server/internal/protocol"
)

type fakeSource struct {
	msgs      chan kafka.Message
	mu        sync.Mutex
	committed []int64
}

func (f *fakeSource) Fetch(ctx context.Context) (kafka.Message, error) {
	select {
	case msg := <-f.msgs:
		return msg, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeSource) Commit(ctx context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

type fakeStore struct {
	mu   sync.Mutex
	logs []*database.AlertLog
}

func (f *fakeStore) InsertAlertLogs(ctx context.Context, logs []*database.AlertLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, logs...)
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.logs)
}

func alertMessage(t *testing.T, offset int64, id, name string) kafka.Message {
	t.Helper()
	data, err := protocol.EncodeAlertNotification(&protocol.AlertNotification{
		Type:         protocol.AlertTypeFired,
		AlertID:      id,
		Prayer:       name,
		AdjustedTime: "12:20",
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return kafka.Message{Offset: offset, Value: data}
}

func TestBatchWriter_FlushesFullBatch(t *testing.T) {
	src := &fakeSource{msgs: make(chan kafka.Message, 4)}
	store := &fakeStore{}
	bw := NewBatchWriter(src, store, 2, time.Hour, zerolog.Nop())

	src.msgs <- alertMessage(t, 1, "a", "Dhuhr")
	src.msgs <- alertMessage(t, 2, "b", "Asr")

	bw.Start(context.Background())
	defer bw.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for store.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if store.count() != 2 {
		t.Fatalf("Expected 2 logs written, got %d", store.count())
	}
}

func TestBatchWriter_SkipsMalformedAndFlushesOnStop(t *testing.T) {
	src := &fakeSource{msgs: make(chan kafka.Message, 4)}
	store := &fakeStore{}
	bw := NewBatchWriter(src, store, 10, time.Hour, zerolog.Nop())

	src.msgs <- kafka.Message{Offset: 1, Value: []byte("not json")}
	src.msgs <- alertMessage(t, 2, "c", "Isha")

	bw.Start(context.Background())
	time.Sleep(100 * time.Millisecond)
	bw.Stop()

	if store.count() != 1 {
		t.Errorf("Expected 1 log written on stop, got %d", store.count())
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.committed) != 2 {
		t.Errorf("Expected both offsets committed, got %v", src.committed)
	}
}
