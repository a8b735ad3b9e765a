package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/smukkama/prayer-server/internal/database"
	"github.com/smukkama/prayer-server/internal/logging"
	"github.com/smukkama/prayer-server/internal/notification"
	"github.com/smukkama/prayer-server/internal/protocol"
	"github.com/smukkama/prayer-server/internal/queue"
	"github.com/smukkama/prayer-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.Setup(cfg.Log.Environment, cfg.Log.Level)
	logger.Info().Msg("starting notification service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Alert history: every fired alert lands in alerts_log
	historyConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.GroupHistory)
	defer historyConsumer.Close()

	batchWriter := queue.NewBatchWriter(historyConsumer, db, 100, 5*time.Second, logger)
	batchWriter.Start(ctx)
	defer batchWriter.Stop()

	notifier := notification.NewEmailNotifier(cfg.SMTP, logger)
	if err := notifier.TestConnection(); err != nil {
		logger.Warn().Err(err).Msg("SMTP unavailable, notifications will be logged only")
	}

	emailConsumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.GroupEmail)
	defer emailConsumer.Close()

	logger.Info().
		Str("topic", cfg.Kafka.TopicAlerts).
		Str("email_group", cfg.Kafka.GroupEmail).
		Str("history_group", cfg.Kafka.GroupHistory).
		Msg("notification service is running")

	for {
		msg, err := emailConsumer.Fetch(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				break
			}
			logger.Error().Err(err).Msg("failed to consume message")
			time.Sleep(time.Second)
			continue
		}

		alert, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			logger.Warn().Err(err).Int64("offset", msg.Offset).Msg("skipping malformed alert")
			emailConsumer.Commit(ctx, msg)
			continue
		}

		if err := notifier.SendPrayerAlert(alert); err != nil {
			// Uncommitted messages are redelivered after a restart or rebalance
			logger.Error().Err(err).Str("alert_id", alert.AlertID).Msg("failed to send notification")
			continue
		}

		if err := emailConsumer.Commit(ctx, msg); err != nil {
			logger.Error().Err(err).Msg("failed to commit offset")
		}
	}

	logger.Info().Msg("shutting down gracefully")
}
