// Package api exposes the prayer server over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/connection"
	"github.com/smukkama/prayer-server/internal/database"
	"github.com/smukkama/prayer-server/internal/geocode"
	"github.com/smukkama/prayer-server/internal/leaderboard"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/quran"
	"github.com/smukkama/prayer-server/internal/settings"
	"github.com/smukkama/prayer-server/internal/source"
	"github.com/smukkama/prayer-server/internal/tasbeeh"
	"github.com/smukkama/prayer-server/internal/telemetry"
	"github.com/smukkama/prayer-server/internal/upstream"
)

// Scheduler is the countdown runtime seen by the API
type Scheduler interface {
	State() prayer.State
	Today() (*prayer.DailySchedule, []prayer.Entry, prayer.State)
	ScheduleFor(ctx context.Context, date time.Time) (*prayer.DailySchedule, error)
	Evaluate(sched *prayer.DailySchedule, now time.Time) prayer.State
	Alerts() prayer.AlertSettings
	UpdateAlert(ctx context.Context, p prayer.TimePoint, cfg prayer.AlertConfig) (prayer.AlertSettings, error)
	SoundEnabled() bool
	SetSoundEnabled(ctx context.Context, enabled bool) error
	Place() prayer.Place
	SetLocation(ctx context.Context, place prayer.Place) error
}

// Calendar returns Hijri month grids
type Calendar interface {
	HijriCalendar(ctx context.Context, year int, month time.Month) ([]source.CalendarDay, error)
}

// Geocoder resolves free-text places
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Result, error)
}

// Quran serves mushaf text
type Quran interface {
	Surahs(ctx context.Context) ([]quran.Surah, error)
	Page(ctx context.Context, page int) ([]quran.Ayah, error)
	Surah(ctx context.Context, number int, lang string) ([]quran.Ayah, error)
	Search(ctx context.Context, query, lang string) ([]quran.Ayah, error)
}

// Users persists tasbeeh users and their totals
type Users interface {
	UpsertUser(ctx context.Context, u *database.User) error
	GetUser(ctx context.Context, username string) (*database.User, error)
	LeaderboardEntries(ctx context.Context, since time.Time, limit int) ([]leaderboard.Entry, error)
}

// Stats reports connected display boards
type Stats interface {
	Stats() connection.ManagerStats
	CountByDisplay() map[string]int
}

// FiredLog reports when an alert was delivered
type FiredLog interface {
	FiredAt(ctx context.Context, key string) (time.Time, bool, error)
}

// Deps collects the services behind the API. Calendar, Geocoder, Quran,
// Users and Displays may be nil; their routes then answer 503.
type Deps struct {
	Scheduler Scheduler
	Settings  *settings.Repository
	Tasbeeh   *tasbeeh.Service
	Calendar  Calendar
	Geocoder  Geocoder
	Quran     Quran
	Users     Users
	Displays  Stats
	Fired     FiredLog
}

// API serves the HTTP endpoints
type API struct {
	Deps
	logger zerolog.Logger
	now    func() time.Time
}

// New creates the API
func New(deps Deps, logger zerolog.Logger) *API {
	return &API{
		Deps:   deps,
		logger: logger.With().Str("component", "api").Logger(),
		now:    time.Now,
	}
}

// Router builds the HTTP handler with middleware, health and metrics
func (a *API) Router(allowOrigins []string, requestTimeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
	}).Handler)
	r.Use(telemetry.MetricsMiddleware)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", telemetry.Handler())

	a.Routes(r)
	return r
}

// Routes registers the versioned API routes
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/prayer", func(r chi.Router) {
			r.Get("/next", a.handleNext)
			r.Get("/today", a.handleToday)
			r.Get("/times", a.handleTimes)
			r.Get("/settings", a.handleAlertSettings)
			r.Put("/settings/{name}", a.handleUpdateAlert)
			r.Get("/sound", a.handleSound)
			r.Put("/sound", a.handleSetSound)
		})

		r.Route("/location", func(r chi.Router) {
			r.Get("/", a.handleLocation)
			r.Put("/", a.handleSetLocation)
			r.Get("/search", a.handleLocationSearch)
		})

		r.Get("/calendar/{year}/{month}", a.handleCalendar)
		r.Get("/qibla", a.handleQibla)

		r.Route("/quran", func(r chi.Router) {
			r.Get("/surahs", a.handleSurahs)
			r.Get("/page/{n}", a.handlePage)
			r.Get("/surah/{n}", a.handleSurah)
			r.Get("/search", a.handleQuranSearch)
		})

		r.Get("/profile", a.handleProfile)
		r.Put("/profile", a.handleSetProfile)
		r.Delete("/profile", a.handleClearProfile)

		r.Route("/tasbeeh", func(r chi.Router) {
			r.Get("/dhikr", a.handleDhikr)
			r.Put("/dhikr", a.handleSelectDhikr)
			r.Post("/tap", a.handleTap)
			r.Post("/reset", a.handleResetTasbeeh)
		})

		r.Route("/khatma", func(r chi.Router) {
			r.Get("/", a.handleKhatma)
			r.Post("/contribute", a.handleKhatmaContribute)
		})
		r.Route("/adkar", func(r chi.Router) {
			r.Get("/progress", a.handleAdkarProgress)
			r.Post("/{id}/increment", a.handleAdkarIncrement)
			r.Post("/{id}/reset", a.handleAdkarReset)
		})

		r.Get("/leaderboard", a.handleLeaderboard)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status": "ok",
		"time":   a.now().UTC().Format(time.RFC3339),
		"place":  a.Scheduler.Place().Name,
	}
	if a.Displays != nil {
		resp["displays"] = a.Displays.Stats()
		resp["display_names"] = a.Displays.CountByDisplay()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes a failure
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: ErrorBody{Code: code, Message: message}})
}

// writeUpstreamError maps provider failures to 502, everything else to 500
func (a *API) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, upstream.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, upstream.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		a.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream request failed")
		writeError(w, http.StatusBadGateway, "upstream_unavailable", err.Error())
	default:
		a.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func unavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusServiceUnavailable, "not_configured", what+" is not configured")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid JSON body")
		return false
	}
	return true
}
