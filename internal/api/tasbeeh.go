package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/smukkama/prayer-server/internal/database"
	"github.com/smukkama/prayer-server/internal/leaderboard"
	"github.com/smukkama/prayer-server/internal/settings"
	"github.com/smukkama/prayer-server/internal/tasbeeh"
	"github.com/smukkama/prayer-server/internal/telemetry"
)

// LeaderboardLimit caps the number of ranked users returned
const LeaderboardLimit = 50

// username is the registered local user, empty when no profile exists
func (a *API) username(r *http.Request) string {
	if p := a.Settings.Profile(r.Context()); p != nil {
		return p.Username
	}
	return ""
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	p := a.Settings.Profile(r.Context())
	if p == nil {
		writeError(w, http.StatusNotFound, "no_profile", "no profile registered")
		return
	}

	if a.Users != nil {
		u, err := a.Users.GetUser(r.Context(), p.Username)
		if err != nil {
			a.logger.Warn().Err(err).Str("username", p.Username).Msg("failed to load user totals")
		} else if u != nil {
			p.TotalCount = u.TotalCount
			p.Streak = u.Streak
		}
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *API) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req settings.Profile
	if !decodeBody(w, r, &req) {
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Country = strings.TrimSpace(req.Country)

	if req.Username == "" {
		writeError(w, http.StatusBadRequest, "invalid_profile", "username is required")
		return
	}
	if req.Email != "" && !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid_profile", "email is invalid")
		return
	}

	if a.Users != nil {
		user := &database.User{Username: req.Username, Email: req.Email, Country: req.Country}
		if err := a.Users.UpsertUser(r.Context(), user); err != nil {
			a.writeUpstreamError(w, r, err)
			return
		}
	}

	if err := a.Settings.SetProfile(r.Context(), req); err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *API) handleClearProfile(w http.ResponseWriter, r *http.Request) {
	if err := a.Settings.ClearProfile(r.Context()); err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleDhikr(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"catalog": tasbeeh.Catalog,
		"current": a.Tasbeeh.Current(a.username(r)),
	})
}

type dhikrRequest struct {
	ID     int    `json:"id"`
	Text   string `json:"text"`
	Target int    `json:"target"`
}

func (a *API) handleSelectDhikr(w http.ResponseWriter, r *http.Request) {
	var req dhikrRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ID == tasbeeh.CustomID && strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "invalid_dhikr", "custom dhikr needs text")
		return
	}

	d, err := tasbeeh.Resolve(req.ID, req.Text, req.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_dhikr", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.Tasbeeh.Select(a.username(r), d))
}

func (a *API) handleTap(w http.ResponseWriter, r *http.Request) {
	result := a.Tasbeeh.Tap(r.Context(), a.username(r))
	telemetry.TasbeehTaps.Inc()
	writeJSON(w, http.StatusOK, result)
}

func (a *API) handleResetTasbeeh(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Tasbeeh.Reset(a.username(r)))
}

type adkarResponse struct {
	ID     string `json:"id"`
	Count  int    `json:"count"`
	Repeat int    `json:"repeat,omitempty"`
	Done   bool   `json:"done"`
}

func (a *API) handleAdkarProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.Settings.AdkarProgress(r.Context()))
}

func (a *API) handleAdkarIncrement(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	repeat := 1
	if raw := r.URL.Query().Get("repeat"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_repeat", "repeat must be a positive number")
			return
		}
		repeat = n
	}

	progress := tasbeeh.Progress(a.Settings.AdkarProgress(r.Context()))
	count, added := progress.Increment(id, repeat)
	if added {
		if err := a.Settings.SetAdkarProgress(r.Context(), progress); err != nil {
			a.writeUpstreamError(w, r, err)
			return
		}
	}

	writeJSON(w, http.StatusOK, adkarResponse{
		ID:     id,
		Count:  count,
		Repeat: repeat,
		Done:   progress.Done(id, repeat),
	})
}

func (a *API) handleAdkarReset(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	progress := tasbeeh.Progress(a.Settings.AdkarProgress(r.Context()))
	progress.Reset(id)
	if err := a.Settings.SetAdkarProgress(r.Context(), progress); err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, adkarResponse{ID: id})
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if a.Users == nil {
		unavailable(w, "leaderboard")
		return
	}

	period, err := leaderboard.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_period", err.Error())
		return
	}

	entries, err := a.Users.LeaderboardEntries(r.Context(), period.Since(a.now()), LeaderboardLimit)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leaderboard.Rank(period, entries, a.username(r)))
}
