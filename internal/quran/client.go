// Package quran reads surahs, pages and search results from alquran.cloud.
package quran

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/smukkama/prayer-server/internal/cache"
	"github.com/smukkama/prayer-server/internal/upstream"
)

const (
	// FirstPage and LastPage bound the Madani mushaf pagination
	FirstPage = 1
	LastPage  = 604

	ArabicEdition = "quran-uthmani"
	TafsirEdition = "ar.muyassar"
)

var editions = map[string]string{
	"ar": ArabicEdition,
	"en": "en.asad",
	"id": "id.indonesian",
	"tr": "tr.diyanet",
	"ur": "ur.jalandhry",
}

// EditionFor returns the translation edition of a language, defaulting to English
func EditionFor(lang string) string {
	if e, ok := editions[lang]; ok {
		return e
	}
	return editions["en"]
}

// Surah describes one chapter
type Surah struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
	RevelationType         string `json:"revelationType"`
}

// SurahRef is the short surah reference carried by ayahs
type SurahRef struct {
	Number         int    `json:"number"`
	Name           string `json:"name"`
	EnglishName    string `json:"englishName"`
	RevelationType string `json:"revelationType,omitempty"`
}

// Ayah is one verse, optionally with translation and tafsir
type Ayah struct {
	Number        int       `json:"number"`
	Text          string    `json:"text"`
	NumberInSurah int       `json:"numberInSurah"`
	Juz           int       `json:"juz"`
	Page          int       `json:"page"`
	Translation   string    `json:"translation,omitempty"`
	Tafsir        string    `json:"tafsir,omitempty"`
	Surah         *SurahRef `json:"surah,omitempty"`
}

type response[T any] struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type editionData struct {
	Ayahs []Ayah `json:"ayahs"`
}

type searchData struct {
	Count   int    `json:"count"`
	Matches []Ayah `json:"matches"`
}

// Client is the alquran.cloud API client
type Client struct {
	http     *upstream.Client
	cache    upstream.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewClient creates a Quran client
func NewClient(http *upstream.Client, c upstream.Cache, cacheTTL time.Duration, logger zerolog.Logger) *Client {
	if c == nil {
		c = upstream.NopCache{}
	}
	return &Client{
		http:     http,
		cache:    c,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "quran").Logger(),
	}
}

func (c *Client) get(ctx context.Context, path string, dest interface{ ok() bool }) error {
	key := cache.KeyQuran + path
	if c.cache.Get(ctx, key, dest) {
		return nil
	}
	if err := c.http.GetJSON(ctx, path, nil, dest); err != nil {
		return err
	}
	if !dest.ok() {
		return fmt.Errorf("%w: %s returned a non-200 code", upstream.ErrUnavailable, path)
	}
	c.cache.Set(ctx, key, dest, c.cacheTTL)
	return nil
}

func (r *response[T]) ok() bool { return r.Code == 200 }

// Surahs lists all 114 surahs
func (c *Client) Surahs(ctx context.Context) ([]Surah, error) {
	var resp response[[]Surah]
	if err := c.get(ctx, "/surah", &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch surah list: %w", err)
	}
	return resp.Data, nil
}

// Page returns the ayahs printed on one mushaf page
func (c *Client) Page(ctx context.Context, page int) ([]Ayah, error) {
	if page < FirstPage || page > LastPage {
		return nil, fmt.Errorf("page %d out of range %d-%d", page, FirstPage, LastPage)
	}

	var resp response[editionData]
	if err := c.get(ctx, fmt.Sprintf("/page/%d/%s", page, ArabicEdition), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
	}
	return resp.Data.Ayahs, nil
}

// Surah returns the Arabic text of a surah with tafsir and, for non-Arabic
// languages, the translation of that language.
func (c *Client) Surah(ctx context.Context, number int, lang string) ([]Ayah, error) {
	if number < 1 || number > 114 {
		return nil, fmt.Errorf("surah %d out of range 1-114", number)
	}

	arabic := lang == "ar"
	list := []string{ArabicEdition}
	if !arabic {
		list = append(list, EditionFor(lang))
	}
	list = append(list, TafsirEdition)

	var resp response[[]editionData]
	path := fmt.Sprintf("/surah/%d/editions/%s", number, strings.Join(list, ","))
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch surah %d: %w", number, err)
	}
	if len(resp.Data) != len(list) {
		return nil, fmt.Errorf("%w: expected %d editions, got %d", upstream.ErrUnavailable, len(list), len(resp.Data))
	}

	base := resp.Data[0].Ayahs
	var translation []Ayah
	if !arabic {
		translation = resp.Data[1].Ayahs
	}
	tafsir := resp.Data[len(resp.Data)-1].Ayahs

	out := make([]Ayah, len(base))
	for i, a := range base {
		if i < len(translation) {
			a.Translation = translation[i].Text
		}
		if i < len(tafsir) {
			a.Tafsir = tafsir[i].Text
		}
		a.Surah = nil
		out[i] = a
	}
	return out, nil
}

// Search finds ayahs containing query in the edition of lang
func (c *Client) Search(ctx context.Context, query, lang string) ([]Ayah, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Ayah{}, nil
	}

	edition := EditionFor(lang)
	var resp response[searchData]
	path := "/search/" + url.PathEscape(query) + "/all/" + edition
	if err := c.get(ctx, path, &resp); err != nil {
		if errors.Is(err, upstream.ErrNotFound) {
			return []Ayah{}, nil
		}
		return nil, fmt.Errorf("failed to search %q: %w", query, err)
	}
	return resp.Data.Matches, nil
}
