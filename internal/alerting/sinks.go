package alerting

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/protocol"
)

// PlayerSink plays the alert sound through an external audio command
type PlayerSink struct {
	command      string
	args         []string
	defaultSound string
	logger       zerolog.Logger
}

// NewPlayerSink creates an audio sink. An empty command disables playback.
func NewPlayerSink(command string, args []string, defaultSound string, logger zerolog.Logger) *PlayerSink {
	return &PlayerSink{
		command:      command,
		args:         args,
		defaultSound: defaultSound,
		logger:       logger.With().Str("component", "player").Logger(),
	}
}

// Name implements Sink
func (p *PlayerSink) Name() string { return "player" }

// Deliver starts playback and returns without waiting for it to finish
func (p *PlayerSink) Deliver(ctx context.Context, f Fire) error {
	if p.command == "" {
		return nil
	}

	sound := f.Sound
	if sound == "" {
		sound = p.defaultSound
	}

	args := append(append([]string{}, p.args...), sound)
	cmd := exec.Command(p.command, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			p.logger.Debug().Err(err).Str("sound", sound).Msg("playback ended with error")
		}
	}()
	return nil
}

// Publisher sends keyed messages to a topic
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// PublisherSink forwards alerts to the alerts topic
type PublisherSink struct {
	publisher Publisher
}

// NewPublisherSink creates a Kafka-backed sink
func NewPublisherSink(publisher Publisher) *PublisherSink {
	return &PublisherSink{publisher: publisher}
}

// Name implements Sink
func (s *PublisherSink) Name() string { return "publisher" }

// Deliver encodes the alert and publishes it keyed by date
func (s *PublisherSink) Deliver(ctx context.Context, f Fire) error {
	data, err := protocol.EncodeAlertNotification(Notification(f))
	if err != nil {
		return fmt.Errorf("failed to encode alert: %w", err)
	}
	return s.publisher.Publish(ctx, f.At.Format("2006-01-02"), data)
}

// Notification converts a fire into its topic message
func Notification(f Fire) *protocol.AlertNotification {
	return &protocol.AlertNotification{
		Type:         protocol.AlertTypeFired,
		AlertID:      f.ID.String(),
		Prayer:       string(f.Name),
		AdjustedTime: f.Time.String(),
		OffsetMin:    f.Offset,
		Place:        f.Place,
		Hijri:        f.Hijri,
		Sound:        f.Sound,
		ScheduledAt:  f.At,
		FiredAt:      f.FiredAt,
	}
}
