package alerting

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/telemetry"
)

// DefaultDeliverTimeout bounds a single sink delivery
const DefaultDeliverTimeout = 10 * time.Second

// Dispatcher queues fired alerts and delivers them to every sink
type Dispatcher struct {
	events  chan Fire
	claimer Claimer
	timeout time.Duration
	logger  zerolog.Logger

	mu    sync.RWMutex
	sinks []Sink
}

// NewDispatcher creates a dispatcher with a bounded queue. A nil claimer
// delivers every alert it receives.
func NewDispatcher(buffer int, claimer Claimer, logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 16
	}
	return &Dispatcher{
		events:  make(chan Fire, buffer),
		claimer: claimer,
		timeout: DefaultDeliverTimeout,
		logger:  logger.With().Str("component", "dispatcher").Logger(),
		sinks:   sinks,
	}
}

// AddSink registers another sink
func (d *Dispatcher) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Dispatch enqueues an alert without blocking. It reports false when the
// queue is full and the alert was dropped.
func (d *Dispatcher) Dispatch(f Fire) bool {
	select {
	case d.events <- f:
		telemetry.AlertsFired.WithLabelValues(string(f.Name)).Inc()
		return true
	default:
		telemetry.AlertsDropped.WithLabelValues("queue_full").Inc()
		d.logger.Warn().Str("prayer", string(f.Name)).Msg("dispatch queue full, alert dropped")
		return false
	}
}

// Run delivers queued alerts until ctx is cancelled
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case f := <-d.events:
			d.deliver(ctx, f)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, f Fire) {
	log := d.logger.With().
		Str("alert_id", f.ID.String()).
		Str("prayer", string(f.Name)).
		Str("time", f.Time.String()).
		Logger()

	if d.claimer != nil {
		ok, err := d.claimer.Claim(ctx, f.Key())
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("alert claim failed, delivering anyway")
		case !ok:
			telemetry.AlertsDropped.WithLabelValues("already_claimed").Inc()
			log.Info().Msg("alert already delivered elsewhere")
			return
		}
	}

	d.mu.RLock()
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.RUnlock()

	for _, s := range sinks {
		sctx, cancel := context.WithTimeout(ctx, d.timeout)
		err := s.Deliver(sctx, f)
		cancel()
		if err != nil {
			telemetry.SinkErrors.WithLabelValues(s.Name()).Inc()
			log.Error().Err(err).Str("sink", s.Name()).Msg("alert delivery failed")
		}
	}

	log.Info().Int("sinks", len(sinks)).Msg("alert delivered")
}
