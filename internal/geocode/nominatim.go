// Package geocode resolves free-text place names through Nominatim.
package geocode

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/cache"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/upstream"
)

// MaxResults is the number of candidates requested per search
const MaxResults = 5

// Result is one search candidate
type Result struct {
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
}

// ShortName returns the first comma-separated segment of the display name
func (r Result) ShortName() string {
	name, _, _ := strings.Cut(r.DisplayName, ",")
	return strings.TrimSpace(name)
}

// Place converts the result into a coordinate-based place
func (r Result) Place() prayer.Place {
	return prayer.CoordsPlace(r.ShortName(), r.Lat, r.Lon)
}

type searchItem struct {
	PlaceID     int64  `json:"place_id"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Resolver searches places by name
type Resolver struct {
	http     *upstream.Client
	language string
	cache    upstream.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewResolver creates a Nominatim resolver returning names in language
func NewResolver(http *upstream.Client, language string, c upstream.Cache, cacheTTL time.Duration, logger zerolog.Logger) *Resolver {
	if c == nil {
		c = upstream.NopCache{}
	}
	return &Resolver{
		http:     http,
		language: language,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "geocode").Logger(),
	}
}

// Search returns up to MaxResults candidates in relevance order.
// A blank query yields no results without contacting the service.
func (r *Resolver) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Result{}, nil
	}

	key := cache.KeySearch + r.language + ":" + strings.ToLower(query)
	var results []Result
	if r.cache.Get(ctx, key, &results) {
		return results, nil
	}

	params := url.Values{}
	params.Set("format", "json")
	params.Set("q", query)
	params.Set("accept-language", r.language)
	params.Set("limit", strconv.Itoa(MaxResults))
	params.Set("addressdetails", "1")

	var items []searchItem
	if err := r.http.GetJSON(ctx, "/search", params, &items); err != nil {
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}

	results = make([]Result, 0, len(items))
	for _, item := range items {
		lat, errLat := strconv.ParseFloat(item.Lat, 64)
		lon, errLon := strconv.ParseFloat(item.Lon, 64)
		if errLat != nil || errLon != nil {
			r.logger.Debug().Int64("place_id", item.PlaceID).Msg("skipping result with invalid coordinates")
			continue
		}
		results = append(results, Result{
			ID:          strconv.FormatInt(item.PlaceID, 10),
			DisplayName: item.DisplayName,
			Lat:         lat,
			Lon:         lon,
		})
	}

	r.cache.Set(ctx, key, results, r.cacheTTL)
	return results, nil
}
