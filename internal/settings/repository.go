// Package settings provides typed access to persisted user preferences.
// Values are stored as JSON blobs under flat keys; a missing or unreadable
// value always reads as its default.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/prayer"
)

// Keys of the persisted values
const (
	KeyPrayerSettings = "prayer_settings"
	KeySoundEnabled   = "adhan_enabled"
	KeyLastCity       = "last_city"
	KeyLastCoords     = "last_coords"
	KeyProfile        = "tasbeeh_user_v1"
	KeyAdkarProgress  = "adkar_progress"
	KeyKhatma         = "khatma_pages"
)

// Store is a flat key/value store of JSON-encoded values
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Profile is the locally registered tasbeeh user
type Profile struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Country    string `json:"country"`
	TotalCount int64  `json:"totalCount"`
	Streak     int    `json:"streak"`
}

// KhatmaTally counts pages contributed to the shared reading cycle
type KhatmaTally struct {
	Pages         int64 `json:"pages"`
	Contributions int64 `json:"contributions"`
}

type storedCoords struct {
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Name string  `json:"name"`
}

// Repository reads and writes typed settings with per-key defaults
type Repository struct {
	alertMu      sync.Mutex
	khatmaMu     sync.Mutex
	store        Store
	defaultSound string
	defaultCity  string
	logger       zerolog.Logger
}

// NewRepository creates a settings repository over a store
func NewRepository(store Store, defaultSound, defaultCity string, logger zerolog.Logger) *Repository {
	return &Repository{
		store:        store,
		defaultSound: defaultSound,
		defaultCity:  defaultCity,
		logger:       logger.With().Str("component", "settings").Logger(),
	}
}

// DefaultSound returns the sound used when a time-point has none configured
func (r *Repository) DefaultSound() string {
	return r.defaultSound
}

// load decodes key into dest. It reports false when the value is absent,
// unreadable or corrupt; dest is left untouched in that case.
func (r *Repository) load(ctx context.Context, key string, dest any) bool {
	found, err := r.read(ctx, key, dest)
	if err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("failed to read setting, using default")
		return false
	}
	return found
}

// read is load for callers that must not mistake a store failure for an
// absent value. Corrupt values still read as absent.
func (r *Repository) read(ctx context.Context, key string, dest any) (bool, error) {
	raw, ok, err := r.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if !ok || raw == "" {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		r.logger.Warn().Err(err).Str("key", key).Msg("corrupt setting, using default")
		return false, nil
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := r.store.Put(ctx, key, string(data)); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// AlertSettings returns the stored alert settings merged over the defaults
func (r *Repository) AlertSettings(ctx context.Context) prayer.AlertSettings {
	settings, err := r.alertSettings(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Msg("failed to read alert settings, using defaults")
		return prayer.DefaultAlertSettings(r.defaultSound)
	}
	return settings
}

func (r *Repository) alertSettings(ctx context.Context) (prayer.AlertSettings, error) {
	settings := prayer.DefaultAlertSettings(r.defaultSound)

	var stored map[string]prayer.AlertConfig
	found, err := r.read(ctx, KeyPrayerSettings, &stored)
	if err != nil {
		return nil, err
	}
	if !found {
		return settings, nil
	}

	for name, cfg := range stored {
		p, err := prayer.ParseTimePoint(name)
		if err != nil || !p.IsObligatory() {
			continue
		}
		if cfg.Sound == "" {
			cfg.Sound = r.defaultSound
		}
		settings[p] = cfg
	}
	return settings, nil
}

// SetAlertSettings replaces all alert settings
func (r *Repository) SetAlertSettings(ctx context.Context, s prayer.AlertSettings) error {
	return r.save(ctx, KeyPrayerSettings, s)
}

// SetAlert updates the alert configuration of one time-point and returns the
// full settings. A failed read aborts the update so stored values of other
// time-points are never replaced by defaults.
func (r *Repository) SetAlert(ctx context.Context, p prayer.TimePoint, cfg prayer.AlertConfig) (prayer.AlertSettings, error) {
	r.alertMu.Lock()
	defer r.alertMu.Unlock()

	settings, err := r.alertSettings(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Sound == "" {
		cfg.Sound = r.defaultSound
	}
	settings[p] = cfg

	if err := r.SetAlertSettings(ctx, settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// SoundEnabled returns the global sound toggle. It defaults to off.
func (r *Repository) SoundEnabled(ctx context.Context) bool {
	var enabled bool
	if !r.load(ctx, KeySoundEnabled, &enabled) {
		return false
	}
	return enabled
}

// SetSoundEnabled persists the global sound toggle
func (r *Repository) SetSoundEnabled(ctx context.Context, enabled bool) error {
	return r.save(ctx, KeySoundEnabled, enabled)
}

// LastPlace returns the last selected place, preferring stored coordinates
// over the stored city name and falling back to the default city.
func (r *Repository) LastPlace(ctx context.Context) prayer.Place {
	var coords storedCoords
	if r.load(ctx, KeyLastCoords, &coords) {
		return prayer.CoordsPlace(coords.Name, coords.Lat, coords.Lon)
	}

	var city string
	if r.load(ctx, KeyLastCity, &city) && strings.TrimSpace(city) != "" {
		return prayer.CityPlace(city)
	}

	return prayer.CityPlace(r.defaultCity)
}

// SetPlace persists the selected place
func (r *Repository) SetPlace(ctx context.Context, place prayer.Place) error {
	if err := r.save(ctx, KeyLastCity, place.Name); err != nil {
		return err
	}

	if !place.HasCoords {
		if err := r.store.Delete(ctx, KeyLastCoords); err != nil {
			return fmt.Errorf("failed to clear %s: %w", KeyLastCoords, err)
		}
		return nil
	}

	return r.save(ctx, KeyLastCoords, storedCoords{Lat: place.Lat, Lon: place.Lon, Name: place.Name})
}

// Profile returns the registered profile, or nil when none is stored
func (r *Repository) Profile(ctx context.Context) *Profile {
	var p Profile
	if !r.load(ctx, KeyProfile, &p) || p.Username == "" {
		return nil
	}
	return &p
}

// SetProfile persists the profile
func (r *Repository) SetProfile(ctx context.Context, p Profile) error {
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("username is required")
	}
	return r.save(ctx, KeyProfile, p)
}

// ClearProfile removes the stored profile
func (r *Repository) ClearProfile(ctx context.Context) error {
	return r.store.Delete(ctx, KeyProfile)
}

// AdkarProgress returns per-item repetition counts
func (r *Repository) AdkarProgress(ctx context.Context) map[string]int {
	progress := map[string]int{}
	if !r.load(ctx, KeyAdkarProgress, &progress) {
		return map[string]int{}
	}
	return progress
}

// SetAdkarProgress persists per-item repetition counts
func (r *Repository) SetAdkarProgress(ctx context.Context, progress map[string]int) error {
	return r.save(ctx, KeyAdkarProgress, progress)
}

// Khatma returns the contributed page tally
func (r *Repository) Khatma(ctx context.Context) KhatmaTally {
	var tally KhatmaTally
	if !r.load(ctx, KeyKhatma, &tally) {
		return KhatmaTally{}
	}
	return tally
}

// AddKhatmaPages adds one contribution to the tally. A failed read aborts
// the update so the stored tally is never reset.
func (r *Repository) AddKhatmaPages(ctx context.Context, pages int64) (KhatmaTally, error) {
	if pages <= 0 {
		return KhatmaTally{}, fmt.Errorf("pages must be positive")
	}

	r.khatmaMu.Lock()
	defer r.khatmaMu.Unlock()

	var tally KhatmaTally
	if _, err := r.read(ctx, KeyKhatma, &tally); err != nil {
		return KhatmaTally{}, err
	}
	tally.Pages += pages
	tally.Contributions++

	if err := r.save(ctx, KeyKhatma, tally); err != nil {
		return KhatmaTally{}, err
	}
	return tally, nil
}
