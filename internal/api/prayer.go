package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/scheduler"
)

// MaxOffsetMinutes bounds a user offset in either direction
const MaxOffsetMinutes = 12 * 60

type stateResponse struct {
	Status           string     `json:"status"`
	Name             string     `json:"name,omitempty"`
	Time             string     `json:"time,omitempty"`
	Target           *time.Time `json:"target,omitempty"`
	Remaining        string     `json:"remaining"`
	RemainingSeconds int64      `json:"remaining_seconds"`
	NextDay          bool       `json:"next_day"`
}

func newStateResponse(s prayer.State) stateResponse {
	resp := stateResponse{
		Status:    s.Status.String(),
		Remaining: s.RemainingString(),
	}
	if s.Status == prayer.StatusActive {
		target := s.Target
		resp.Name = string(s.Name)
		resp.Time = s.Time.String()
		resp.Target = &target
		resp.RemainingSeconds = int64(s.Remaining / time.Second)
		resp.NextDay = s.NextDay
	}
	return resp
}

type entryResponse struct {
	Name     string `json:"name"`
	Time     string `json:"time"`
	Adjusted string `json:"adjusted"`
	Offset   int    `json:"offset"`
	Next     bool   `json:"next"`
}

type scheduleResponse struct {
	Date       string           `json:"date"`
	Place      string           `json:"place"`
	Hijri      prayer.HijriDate `json:"hijri"`
	HijriLabel string           `json:"hijri_label"`
	Entries    []entryResponse  `json:"entries"`
	State      stateResponse    `json:"state"`
}

func newScheduleResponse(sched *prayer.DailySchedule, entries []prayer.Entry, state prayer.State) scheduleResponse {
	resp := scheduleResponse{
		Date:       sched.DateKey(),
		Place:      sched.Place(),
		Hijri:      sched.Hijri(),
		HijriLabel: sched.Hijri().String(),
		Entries:    make([]entryResponse, 0, len(entries)),
		State:      newStateResponse(state),
	}
	for _, e := range entries {
		resp.Entries = append(resp.Entries, entryResponse{
			Name:     string(e.Name),
			Time:     e.Raw.String(),
			Adjusted: e.Adjusted.String(),
			Offset:   e.Offset,
			Next:     e.Next,
		})
	}
	return resp
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStateResponse(a.Scheduler.State()))
}

func (a *API) handleToday(w http.ResponseWriter, r *http.Request) {
	sched, entries, state := a.Scheduler.Today()
	if sched == nil {
		writeError(w, http.StatusServiceUnavailable, "no_schedule", "no schedule loaded yet")
		return
	}
	writeJSON(w, http.StatusOK, newScheduleResponse(sched, entries, state))
}

func (a *API) handleTimes(w http.ResponseWriter, r *http.Request) {
	now := a.now()
	loc := now.Location()
	if sched, _, _ := a.Scheduler.Today(); sched != nil {
		loc = sched.Location()
	}

	date := now.In(loc)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	sched, err := a.Scheduler.ScheduleFor(r.Context(), date)
	if err != nil {
		if errors.Is(err, scheduler.ErrNoSchedule) {
			writeError(w, http.StatusNotFound, "no_schedule", err.Error())
			return
		}
		a.writeUpstreamError(w, r, err)
		return
	}

	state := a.Scheduler.Evaluate(sched, now)
	entries := prayer.Timeline(sched, a.Scheduler.Alerts().Offsets(), state)
	writeJSON(w, http.StatusOK, newScheduleResponse(sched, entries, state))
}

func (a *API) handleAlertSettings(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"sound_enabled": a.Scheduler.SoundEnabled(),
		"prayers":       a.Scheduler.Alerts(),
	}
	if fired := a.firedToday(r); len(fired) > 0 {
		resp["fired_today"] = fired
	}
	writeJSON(w, http.StatusOK, resp)
}

// firedToday returns when each of today's alerts was delivered
func (a *API) firedToday(r *http.Request) map[prayer.TimePoint]time.Time {
	if a.Fired == nil {
		return nil
	}
	sched, _, _ := a.Scheduler.Today()
	if sched == nil {
		return nil
	}

	fired := make(map[prayer.TimePoint]time.Time)
	for _, p := range prayer.Obligatory {
		key := prayer.Target{Name: p, At: sched.Date()}.Key()
		at, ok, err := a.Fired.FiredAt(r.Context(), key)
		if err != nil {
			a.logger.Warn().Err(err).Str("key", key).Msg("failed to read fired alert")
			return nil
		}
		if ok {
			fired[p] = at
		}
	}
	return fired
}

type alertUpdate struct {
	Offset  *int    `json:"offset"`
	Sound   *string `json:"sound"`
	Enabled *bool   `json:"enabled"`
}

func (a *API) handleUpdateAlert(w http.ResponseWriter, r *http.Request) {
	p, err := prayer.ParseTimePoint(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_prayer", err.Error())
		return
	}
	if !p.IsObligatory() {
		writeError(w, http.StatusBadRequest, "invalid_prayer", fmt.Sprintf("%s has no alert", p))
		return
	}

	var req alertUpdate
	if !decodeBody(w, r, &req) {
		return
	}

	cfg := a.Scheduler.Alerts().Config(p, a.Settings.DefaultSound())
	if req.Offset != nil {
		if *req.Offset < -MaxOffsetMinutes || *req.Offset > MaxOffsetMinutes {
			writeError(w, http.StatusBadRequest, "invalid_offset",
				fmt.Sprintf("offset must be within ±%d minutes", MaxOffsetMinutes))
			return
		}
		cfg.Offset = *req.Offset
	}
	if req.Sound != nil {
		cfg.Sound = strings.TrimSpace(*req.Sound)
	}
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}

	updated, err := a.Scheduler.UpdateAlert(r.Context(), p, cfg)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated[p])
}

func (a *API) handleSound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": a.Scheduler.SoundEnabled()})
}

func (a *API) handleSetSound(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "enabled is required")
		return
	}

	if err := a.Scheduler.SetSoundEnabled(r.Context(), *req.Enabled); err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": *req.Enabled})
}

func (a *API) handleLocation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Scheduler.Place())
}

type locationRequest struct {
	Name string   `json:"name"`
	Lat  *float64 `json:"lat"`
	Lon  *float64 `json:"lon"`
}

func (a *API) handleSetLocation(w http.ResponseWriter, r *http.Request) {
	var req locationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	var place prayer.Place
	switch {
	case req.Lat != nil && req.Lon != nil:
		if !validCoords(*req.Lat, *req.Lon) {
			writeError(w, http.StatusBadRequest, "invalid_coordinates", "lat must be within ±90 and lon within ±180")
			return
		}
		place = prayer.CoordsPlace(name, *req.Lat, *req.Lon)
	case name != "":
		place = prayer.CityPlace(name)
	default:
		writeError(w, http.StatusBadRequest, "invalid_location", "name or lat/lon is required")
		return
	}

	if err := a.Scheduler.SetLocation(r.Context(), place); err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a.Scheduler.Place())
}

func (a *API) handleLocationSearch(w http.ResponseWriter, r *http.Request) {
	if a.Geocoder == nil {
		unavailable(w, "geocoding")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q is required")
		return
	}

	results, err := a.Geocoder.Search(r.Context(), q)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func validCoords(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
