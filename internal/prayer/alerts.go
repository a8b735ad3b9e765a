package prayer

// Offsets maps a time-point to a signed minute adjustment. Missing entries are 0.
type Offsets map[TimePoint]int

// Of returns the offset for a time-point
func (o Offsets) Of(p TimePoint) int {
	return o[p]
}

// AlertConfig is the per time-point alert configuration
type AlertConfig struct {
	Offset  int    `json:"offset"`
	Sound   string `json:"sound"`
	Enabled bool   `json:"enabled"`
}

// AlertSettings holds the alert configuration of every obligatory time-point
type AlertSettings map[TimePoint]AlertConfig

// DefaultAlertSettings enables every obligatory time-point with no offset
func DefaultAlertSettings(sound string) AlertSettings {
	s := make(AlertSettings, len(Obligatory))
	for _, p := range Obligatory {
		s[p] = AlertConfig{Offset: 0, Sound: sound, Enabled: true}
	}
	return s
}

// Config returns the configuration of a time-point, falling back to an enabled default
func (s AlertSettings) Config(p TimePoint, defaultSound string) AlertConfig {
	if c, ok := s[p]; ok {
		return c
	}
	return AlertConfig{Sound: defaultSound, Enabled: true}
}

// Offsets derives the user offsets from the alert settings
func (s AlertSettings) Offsets() Offsets {
	o := make(Offsets, len(s))
	for p, c := range s {
		o[p] = c.Offset
	}
	return o
}

// Clone returns an independent copy
func (s AlertSettings) Clone() AlertSettings {
	out := make(AlertSettings, len(s))
	for p, c := range s {
		out[p] = c
	}
	return out
}

// Place identifies where prayer times are computed for
type Place struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
	HasCoords bool    `json:"has_coords"`
}

// CityPlace builds a place resolved by city name only
func CityPlace(city string) Place {
	return Place{Name: city}
}

// CoordsPlace builds a place resolved by coordinates
func CoordsPlace(name string, lat, lon float64) Place {
	return Place{Name: name, Lat: lat, Lon: lon, HasCoords: true}
}
