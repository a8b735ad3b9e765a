package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/smukkama/prayer-server/internal/qibla"
	"github.com/smukkama/prayer-server/internal/quran"
)

func (a *API) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if a.Calendar == nil {
		unavailable(w, "calendar")
		return
	}

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil || year < 1 || year > 9999 {
		writeError(w, http.StatusBadRequest, "invalid_year", "year must be a positive number")
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "invalid_month", "month must be within 1-12")
		return
	}

	days, err := a.Calendar.HijriCalendar(r.Context(), year, time.Month(month))
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"month": month,
		"days":  days,
	})
}

type qiblaResponse struct {
	Bearing    float64  `json:"bearing"`
	DistanceKm float64  `json:"distance_km"`
	Heading    *float64 `json:"heading,omitempty"`
	Delta      *float64 `json:"delta,omitempty"`
	Aligned    *bool    `json:"aligned,omitempty"`
}

func (a *API) handleQibla(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(q.Get("lon"), 64)
	if errLat != nil || errLon != nil || !validCoords(lat, lon) {
		writeError(w, http.StatusBadRequest, "invalid_coordinates", "lat and lon are required")
		return
	}

	bearing := qibla.Bearing(lat, lon)
	resp := qiblaResponse{
		Bearing:    bearing,
		DistanceKm: qibla.Distance(lat, lon),
	}

	if raw := q.Get("heading"); raw != "" {
		heading, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_heading", "heading must be a number")
			return
		}
		heading = qibla.Normalize(heading)
		delta := qibla.AngularDistance(heading, bearing)
		aligned := qibla.Aligned(heading, bearing)
		resp.Heading = &heading
		resp.Delta = &delta
		resp.Aligned = &aligned
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleSurahs(w http.ResponseWriter, r *http.Request) {
	if a.Quran == nil {
		unavailable(w, "quran")
		return
	}

	surahs, err := a.Quran.Surahs(r.Context())
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, surahs)
}

func (a *API) handlePage(w http.ResponseWriter, r *http.Request) {
	if a.Quran == nil {
		unavailable(w, "quran")
		return
	}

	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < quran.FirstPage || n > quran.LastPage {
		writeError(w, http.StatusBadRequest, "invalid_page", "page must be within 1-604")
		return
	}

	ayahs, err := a.Quran.Page(r.Context(), n)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"page": n, "ayahs": ayahs})
}

func (a *API) handleSurah(w http.ResponseWriter, r *http.Request) {
	if a.Quran == nil {
		unavailable(w, "quran")
		return
	}

	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil || n < 1 || n > 114 {
		writeError(w, http.StatusBadRequest, "invalid_surah", "surah must be within 1-114")
		return
	}
	lang := languageParam(r)

	ayahs, err := a.Quran.Surah(r.Context(), n, lang)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"surah":   n,
		"lang":    lang,
		"edition": quran.EditionFor(lang),
		"ayahs":   ayahs,
	})
}

func (a *API) handleQuranSearch(w http.ResponseWriter, r *http.Request) {
	if a.Quran == nil {
		unavailable(w, "quran")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "q is required")
		return
	}

	ayahs, err := a.Quran.Search(r.Context(), q, languageParam(r))
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ayahs)
}

func languageParam(r *http.Request) string {
	lang := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("lang")))
	if lang == "" {
		return "ar"
	}
	return lang
}

type khatmaContribution struct {
	Pages int64 `json:"pages"`
}

func (a *API) handleKhatma(w http.ResponseWriter, r *http.Request) {
	tally := a.Settings.Khatma(r.Context())
	writeJSON(w, http.StatusOK, quran.KhatmaFromPages(tally.Pages, tally.Contributions))
}

func (a *API) handleKhatmaContribute(w http.ResponseWriter, r *http.Request) {
	var req khatmaContribution
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Pages < 1 || req.Pages > quran.MaxContribution {
		writeError(w, http.StatusBadRequest, "invalid_pages",
			fmt.Sprintf("pages must be between 1 and %d", quran.MaxContribution))
		return
	}

	tally, err := a.Settings.AddKhatmaPages(r.Context(), req.Pages)
	if err != nil {
		a.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quran.KhatmaFromPages(tally.Pages, tally.Contributions))
}
