// Package source fetches daily prayer schedules and Hijri calendars from the
// Aladhan API.
package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/cache"
	"github.com/smukkama/prayer-server/internal/prayer"
	"github.com/smukkama/prayer-server/internal/upstream"
)

// ErrUnavailable is returned when no usable schedule could be obtained
var ErrUnavailable = upstream.ErrUnavailable

// Client is the Aladhan API client
type Client struct {
	http     *upstream.Client
	method   int
	cache    upstream.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewClient creates an Aladhan client using the given calculation method
func NewClient(http *upstream.Client, method int, c upstream.Cache, cacheTTL time.Duration, logger zerolog.Logger) *Client {
	if c == nil {
		c = upstream.NopCache{}
	}
	return &Client{
		http:     http,
		method:   method,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "aladhan").Logger(),
	}
}

type envelope[T any] struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type hijriJSON struct {
	Date    string `json:"date"`
	Day     string `json:"day"`
	Weekday struct {
		En string `json:"en"`
		Ar string `json:"ar"`
	} `json:"weekday"`
	Month struct {
		Number int    `json:"number"`
		En     string `json:"en"`
		Ar     string `json:"ar"`
	} `json:"month"`
	Year        string `json:"year"`
	Designation struct {
		Abbreviated string `json:"abbreviated"`
	} `json:"designation"`
	Holidays []string `json:"holidays"`
}

type gregorianJSON struct {
	Date string `json:"date"`
}

type dateJSON struct {
	Hijri     hijriJSON     `json:"hijri"`
	Gregorian gregorianJSON `json:"gregorian"`
}

type timingsData struct {
	Timings map[string]string `json:"timings"`
	Date    dateJSON          `json:"date"`
	Meta    struct {
		Timezone string `json:"timezone"`
	} `json:"meta"`
}

// CalendarDay is one day of a Gregorian month with its Hijri equivalent
type CalendarDay struct {
	Gregorian string           `json:"gregorian"`
	Hijri     prayer.HijriDate `json:"hijri"`
	Holidays  []string         `json:"holidays"`
}

// Fetch returns the schedule of place for the calendar date of date
func (c *Client) Fetch(ctx context.Context, place prayer.Place, date time.Time) (*prayer.DailySchedule, error) {
	day := date.Format("02-01-2006")
	params := url.Values{}
	params.Set("method", strconv.Itoa(c.method))

	var path string
	if place.HasCoords {
		path = "/timings/" + day
		params.Set("latitude", strconv.FormatFloat(place.Lat, 'f', 6, 64))
		params.Set("longitude", strconv.FormatFloat(place.Lon, 'f', 6, 64))
	} else {
		if place.Name == "" {
			return nil, fmt.Errorf("place has neither coordinates nor a city name")
		}
		path = "/timingsByCity/" + day
		params.Set("city", place.Name)
		params.Set("country", "")
	}

	key := cache.KeyTimings + path + "?" + params.Encode()
	var resp envelope[timingsData]
	if !c.cache.Get(ctx, key, &resp) {
		if err := c.http.GetJSON(ctx, path, params, &resp); err != nil {
			return nil, err
		}
		if resp.Code != 200 {
			return nil, fmt.Errorf("%w: aladhan responded with code %d (%s)", ErrUnavailable, resp.Code, resp.Status)
		}
		c.cache.Set(ctx, key, resp, c.cacheTTL)
	}

	return c.buildSchedule(resp.Data, place, date)
}

func (c *Client) buildSchedule(data timingsData, place prayer.Place, date time.Time) (*prayer.DailySchedule, error) {
	loc := time.Local
	if data.Meta.Timezone != "" {
		if l, err := time.LoadLocation(data.Meta.Timezone); err == nil {
			loc = l
		} else {
			c.logger.Warn().Err(err).Str("timezone", data.Meta.Timezone).Msg("unknown timezone, using local time")
		}
	}

	times := make(map[prayer.TimePoint]prayer.Clock, len(prayer.All))
	for _, p := range prayer.All {
		raw, ok := data.Timings[string(p)]
		if !ok {
			continue
		}
		clock, err := prayer.ParseClock(raw)
		if err != nil {
			c.logger.Warn().Err(err).Str("prayer", string(p)).Msg("skipping unparseable time")
			continue
		}
		times[p] = clock
	}
	if len(times) == 0 {
		return nil, fmt.Errorf("%w: response carried no timings", ErrUnavailable)
	}

	y, m, d := date.Date()
	return prayer.NewDailySchedule(
		time.Date(y, m, d, 0, 0, 0, 0, loc),
		loc,
		times,
		convertHijri(data.Date.Hijri),
		place.Name,
	), nil
}

// HijriCalendar returns every day of a Gregorian month with its Hijri date
func (c *Client) HijriCalendar(ctx context.Context, year int, month time.Month) ([]CalendarDay, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month %d", month)
	}

	path := fmt.Sprintf("/gToHCalendar/%d/%d", int(month), year)
	key := cache.KeyCalendar + path

	var days []CalendarDay
	if c.cache.Get(ctx, key, &days) {
		return days, nil
	}

	var resp envelope[[]dateJSON]
	if err := c.http.GetJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 200 {
		return nil, fmt.Errorf("%w: aladhan responded with code %d (%s)", ErrUnavailable, resp.Code, resp.Status)
	}

	days = make([]CalendarDay, 0, len(resp.Data))
	for _, d := range resp.Data {
		greg := d.Gregorian.Date
		if t, err := time.Parse("02-01-2006", greg); err == nil {
			greg = t.Format("2006-01-02")
		}
		holidays := d.Hijri.Holidays
		if holidays == nil {
			holidays = []string{}
		}
		days = append(days, CalendarDay{
			Gregorian: greg,
			Hijri:     convertHijri(d.Hijri),
			Holidays:  holidays,
		})
	}

	c.cache.Set(ctx, key, days, c.cacheTTL)
	return days, nil
}

func convertHijri(h hijriJSON) prayer.HijriDate {
	day, _ := strconv.Atoi(h.Day)
	year, _ := strconv.Atoi(h.Year)
	return prayer.HijriDate{
		Day:         day,
		Month:       h.Month.Number,
		MonthEn:     h.Month.En,
		MonthAr:     h.Month.Ar,
		Year:        year,
		WeekdayEn:   h.Weekday.En,
		WeekdayAr:   h.Weekday.Ar,
		Designation: h.Designation.Abbreviated,
	}
}
