package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/smukkama/prayer-server/internal/database"
	"github.com/smukkama/prayer-server/internal/protocol"
)

// MessageSource yields messages and accepts offset commits
type MessageSource interface {
	Fetch(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// AlertStore persists alert history
type AlertStore interface {
	InsertAlertLogs(ctx context.Context, logs []*database.AlertLog) error
}

// BatchWriter consumes alert notifications and batch-writes them to the alert history
type BatchWriter struct {
	source        MessageSource
	store         AlertStore
	batchSize     int
	flushInterval time.Duration
	logger        zerolog.Logger
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(source MessageSource, store AlertStore, batchSize int, flushInterval time.Duration, logger zerolog.Logger) *BatchWriter {
	if batchSize <= 0 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchWriter{
		source:        source,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logger.With().Str("component", "batch_writer").Logger(),
	}
}

// Start begins consuming and writing to the database
func (bw *BatchWriter) Start(ctx context.Context) {
	ctx, bw.cancel = context.WithCancel(ctx)
	bw.wg.Add(1)
	go bw.run(ctx)
}

// Stop flushes what was consumed and waits for the writer to exit
func (bw *BatchWriter) Stop() {
	if bw.cancel != nil {
		bw.cancel()
	}
	bw.wg.Wait()
}

func (bw *BatchWriter) run(ctx context.Context) {
	defer bw.wg.Done()

	msgCh := make(chan kafka.Message, bw.batchSize)
	go func() {
		defer close(msgCh)
		for {
			msg, err := bw.source.Fetch(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) {
					return
				}
				bw.logger.Error().Err(err).Msg("consumer error")
				select {
				case <-time.After(time.Second):
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case msgCh <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	var batch []kafka.Message
	for {
		select {
		case <-ticker.C:
			if len(batch) > 0 {
				bw.flush(batch)
				batch = nil
			}

		case msg, ok := <-msgCh:
			if !ok {
				bw.flush(batch)
				return
			}
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(batch)
				batch = nil
			}
		}
	}
}

// flush writes the batch and commits offsets. It runs on its own context so
// the final flush on shutdown is not cut short.
func (bw *BatchWriter) flush(batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logs := make([]*database.AlertLog, 0, len(batch))
	for _, msg := range batch {
		l, err := decodeAlertLog(msg)
		if err != nil {
			bw.logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed alert")
			continue
		}
		logs = append(logs, l)
	}

	if err := bw.store.InsertAlertLogs(ctx, logs); err != nil {
		bw.logger.Error().Err(err).Int("count", len(logs)).Msg("failed to write alert history")
		return
	}

	if err := bw.source.Commit(ctx, batch...); err != nil {
		bw.logger.Error().Err(err).Msg("failed to commit offsets")
		return
	}

	bw.logger.Info().Int("count", len(logs)).Msg("flushed alert history")
}

func decodeAlertLog(msg kafka.Message) (*database.AlertLog, error) {
	alert, err := protocol.DecodeAlertNotification(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}

	return &database.AlertLog{
		AlertID:      alert.AlertID,
		Prayer:       alert.Prayer,
		Place:        alert.Place,
		AdjustedTime: alert.AdjustedTime,
		ScheduledAt:  alert.ScheduledAt,
		FiredAt:      alert.FiredAt,
		Sound:        alert.Sound,
		Hijri:        alert.Hijri,
	}, nil
}
