package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/smukkama/prayer-server/internal/alerting"
	"github.com/smukkama/prayer-server/internal/api"
	"github.com/smukkama/prayer-server/internal/cache"
	"github.com/smukkama/prayer-server/internal/connection"
	"github.com/smukkama/prayer-server/internal/database"
	"github.com/smukkama/prayer-server/internal/geocode"
	"github.com/smukkama/prayer-server/internal/logging"
	"github.com/smukkama/prayer-server/internal/queue"
	"github.com/smukkama/prayer-server/internal/quran"
	"github.com/smukkama/prayer-server/internal/scheduler"
	"github.com/smukkama/prayer-server/internal/server"
	"github.com/smukkama/prayer-server/internal/settings"
	"github.com/smukkama/prayer-server/internal/source"
	"github.com/smukkama/prayer-server/internal/tasbeeh"
	"github.com/smukkama/prayer-server/internal/timer"
	"github.com/smukkama/prayer-server/internal/upstream"
	"github.com/smukkama/prayer-server/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.Setup(cfg.Log.Environment, cfg.Log.Level)
	logger.Info().Msg("starting prayer server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Postgres holds settings, users and alert history
	db, err := database.Connect(ctx, cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	// Redis backs the response cache and the alert claims
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	responseCache := cache.New(redisClient, logger)
	var claimer alerting.Claimer
	var firedLog api.FiredLog
	if responseCache.IsAvailable() {
		stateManager := alerting.NewStateManager(redisClient)
		claimer = stateManager
		firedLog = stateManager
	} else {
		logger.Warn().Msg("alert claims disabled, duplicate alerts are possible across restarts")
	}

	if err := queue.EnsureTopic(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, cfg.Kafka.NumPartitions, 1, logger); err != nil {
		logger.Warn().Err(err).Msg("failed to ensure alerts topic")
	}
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer producer.Close()

	// Upstream providers
	src := cfg.Sources
	aladhan := source.NewClient(
		upstream.NewClient(src.AladhanURL, src.UserAgent, src.RequestsPerMinute, src.HTTPTimeout, logger),
		src.Method, responseCache, cfg.Redis.CacheTTL, logger)
	geocoder := geocode.NewResolver(
		upstream.NewClient(src.NominatimURL, src.UserAgent, src.RequestsPerMinute, src.HTTPTimeout, logger),
		src.NominatimLanguage, responseCache, cfg.Redis.CacheTTL, logger)
	quranClient := quran.NewClient(
		upstream.NewClient(src.QuranURL, src.UserAgent, src.RequestsPerMinute, src.HTTPTimeout, logger),
		responseCache, cfg.Redis.CacheTTL, logger)

	repo := settings.NewRepository(db.Settings(), cfg.Audio.DefaultSound, cfg.Scheduler.DefaultCity, logger)

	timerManager := timer.NewManager()
	timerManager.Start()
	defer timerManager.Stop()

	dispatcher := alerting.NewDispatcher(cfg.Scheduler.DispatchBuffer, claimer, logger,
		alerting.NewPlayerSink(cfg.Audio.Command, cfg.Audio.Args, cfg.Audio.DefaultSound, logger),
		alerting.NewPublisherSink(producer),
	)

	sched := scheduler.New(aladhan, repo, dispatcher, scheduler.Options{
		TickInterval:     cfg.Scheduler.TickInterval,
		FetchTimeout:     cfg.Scheduler.FetchTimeout,
		FireGrace:        cfg.Scheduler.FireGrace,
		SubscriberBuffer: 4,
	}, logger)

	connManager := connection.NewManager(cfg.Stream.MaxConnections)
	stream := server.NewTCPServer(cfg.Stream, connManager, timerManager, sched, logger)
	if err := stream.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start countdown stream")
	}
	defer stream.Stop()
	dispatcher.AddSink(stream)

	go func() {
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("dispatcher stopped")
		}
	}()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	refreshAt, _ := config.ParseTimeOfDay(cfg.Scheduler.RefreshTime)
	if err := sched.ScheduleDailyRefresh(timerManager, refreshAt); err != nil {
		logger.Fatal().Err(err).Msg("failed to schedule daily refresh")
	}

	handler := api.New(api.Deps{
		Scheduler: sched,
		Settings:  repo,
		Tasbeeh:   tasbeeh.NewService(db, logger),
		Calendar:  aladhan,
		Geocoder:  geocoder,
		Quran:     quranClient,
		Users:     db,
		Displays:  connManager,
		Fired:     firedLog,
	}, logger).Router(cfg.HTTP.CORSAllowOrigins, 30*time.Second)

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP API listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Print statistics periodically
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := connManager.Stats()
				timerStats := timerManager.Stats()
				state := sched.State()
				logger.Info().
					Int("displays", stats.TotalConnections).
					Int("unique_displays", stats.UniqueDisplays).
					Int("timers", timerStats.Scheduled).
					Str("next", string(state.Name)).
					Str("remaining", state.RemainingString()).
					Msg("server statistics")
			}
		}
	}()

	logger.Info().
		Int("stream_port", cfg.Stream.Port).
		Str("http_addr", cfg.HTTP.Addr()).
		Msg("prayer server is running")

	<-ctx.Done()
	logger.Info().Msg("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown failed")
	}
	<-schedDone
}
