package astro

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moonwatch/internal/cache"
)

const (
	DefaultGeocodingURL        = "https://geocoding-api.open-meteo.com/v1/search"
	DefaultReverseGeocodingURL = "https://nominatim.openstreetmap.org/reverse"
)

// DefaultPlaceTTL is how long a resolved place name is remembered.
const DefaultPlaceTTL = 7 * 24 * time.Hour

// OpenMeteoGeocoder resolves names through the Open-Meteo geocoding API and
// coordinates through a Nominatim compatible reverse endpoint. Resolved
// places are kept in a cache.Store.
type OpenMeteoGeocoder struct {
	searchURL  string
	reverseURL string
	userAgent  string
	language   string
	client     *http.Client

	places   cache.Store
	placeTTL time.Duration
}

type GeocoderConfig struct {
	SearchURL  string
	ReverseURL string
	UserAgent  string
	Language   string
	Timeout    time.Duration

	// Cache holds resolved places. A nil Cache gets a private memory store.
	Cache    cache.Store
	PlaceTTL time.Duration
}

func NewOpenMeteoGeocoder(cfg GeocoderConfig) *OpenMeteoGeocoder {
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultGeocodingURL
	}
	if cfg.ReverseURL == "" {
		cfg.ReverseURL = DefaultReverseGeocodingURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemoryStore()
	}
	if cfg.PlaceTTL <= 0 {
		cfg.PlaceTTL = DefaultPlaceTTL
	}
	return &OpenMeteoGeocoder{
		searchURL:  cfg.SearchURL,
		reverseURL: cfg.ReverseURL,
		userAgent:  cfg.UserAgent,
		language:   cfg.Language,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		places:   cfg.Cache,
		placeTTL: cfg.PlaceTTL,
	}
}

type openMeteoResult struct {
	Name        string  `json:"name"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	Admin1      string  `json:"admin1"`
	Country     string  `json:"country"`
	CountryCode string  `json:"country_code"`
}

type openMeteoGeoResponse struct {
	Results []openMeteoResult `json:"results"`
}

type nominatimResponse struct {
	Error   string `json:"error"`
	Address struct {
		City         string `json:"city"`
		Town         string `json:"town"`
		Village      string `json:"village"`
		Municipality string `json:"municipality"`
		County       string `json:"county"`
		State        string `json:"state"`
		Country      string `json:"country"`
	} `json:"address"`
}

// searchCount is how many candidates are compared against the region and
// country given after the city name.
const searchCount = 10

func placeKey(name string) string {
	return "moonwatch:place:" + strings.ToLower(strings.TrimSpace(name))
}

// Resolve looks up a place name. For "City, Region, Country" style input
// the city is searched and the candidate matching most of the qualifiers
// wins, first result on a tie.
func (g *OpenMeteoGeocoder) Resolve(ctx context.Context, name string) (Place, error) {
	if strings.TrimSpace(name) == "" {
		return Place{}, fmt.Errorf("geocoding: %w: empty name", ErrLocationNotFound)
	}

	if place, ok := g.cachedPlace(ctx, name); ok {
		return place, nil
	}

	city, qualifiers := splitPlaceName(name)
	results, err := g.search(ctx, city)
	if err != nil {
		return Place{}, err
	}
	if len(results) == 0 {
		return Place{}, fmt.Errorf("geocoding %q: %w", name, ErrLocationNotFound)
	}

	r := bestMatch(results, qualifiers)
	place := Place{
		Name:      r.Name,
		Region:    r.Admin1,
		Country:   r.Country,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Timezone:  r.Timezone,
	}
	g.storePlace(ctx, name, place)
	return place, nil
}

// ReverseGeocode turns coordinates into a "City, Region" label. The label
// is remembered with the coordinates it came from, so resolving it later
// gives back the same spot rather than a namesake.
func (g *OpenMeteoGeocoder) ReverseGeocode(ctx context.Context, latitude, longitude float64) (string, error) {
	query := url.Values{}
	query.Set("format", "jsonv2")
	query.Set("lat", fmt.Sprintf("%.6f", latitude))
	query.Set("lon", fmt.Sprintf("%.6f", longitude))
	query.Set("zoom", "10")
	query.Set("accept-language", g.language)

	var payload nominatimResponse
	if err := g.getJSON(ctx, g.reverseURL, query, &payload); err != nil {
		return "", fmt.Errorf("reverse geocoding: %w", err)
	}
	if payload.Error != "" {
		return "", fmt.Errorf("reverse geocoding: %w: %s", ErrLocationNotFound, payload.Error)
	}

	a := payload.Address
	city := firstNonEmpty(a.City, a.Town, a.Village, a.Municipality, a.County)
	if city == "" {
		return "", fmt.Errorf("reverse geocoding (%.4f, %.4f): %w", latitude, longitude, ErrLocationNotFound)
	}

	place := Place{Name: city, Region: a.State, Country: a.Country, Latitude: latitude, Longitude: longitude}

	// Nominatim has no time zones; borrow the one of the nearest namesake.
	if results, err := g.search(ctx, city); err != nil {
		log.Printf("No time zone for %s: %v", place.Label(), err)
	} else if len(results) > 0 {
		place.Timezone = nearest(results, latitude, longitude).Timezone
	}

	label := place.Label()
	g.storePlace(ctx, label, place)
	return label, nil
}

func (g *OpenMeteoGeocoder) search(ctx context.Context, city string) ([]openMeteoResult, error) {
	query := url.Values{}
	query.Set("name", city)
	query.Set("count", strconv.Itoa(searchCount))
	query.Set("language", g.language)
	query.Set("format", "json")

	var payload openMeteoGeoResponse
	if err := g.getJSON(ctx, g.searchURL, query, &payload); err != nil {
		return nil, fmt.Errorf("geocoding: %w", err)
	}
	return payload.Results, nil
}

func (g *OpenMeteoGeocoder) cachedPlace(ctx context.Context, name string) (Place, bool) {
	raw, ok, err := g.places.Get(ctx, placeKey(name))
	if err != nil {
		log.Printf("Place cache read failed for %q: %v", name, err)
		return Place{}, false
	}
	if !ok {
		return Place{}, false
	}
	var place Place
	if err := json.Unmarshal(raw, &place); err != nil {
		return Place{}, false
	}
	return place, true
}

func (g *OpenMeteoGeocoder) storePlace(ctx context.Context, name string, place Place) {
	raw, err := json.Marshal(place)
	if err != nil {
		return
	}
	if err := g.places.Set(ctx, placeKey(name), raw, g.placeTTL); err != nil {
		log.Printf("Place cache write failed for %q: %v", name, err)
	}
}

// splitPlaceName separates "Springfield, Illinois, US" into the city and
// its qualifiers.
func splitPlaceName(name string) (string, []string) {
	parts := strings.Split(name, ",")
	return strings.TrimSpace(parts[0]), nonEmpty(parts[1:]...)
}

func bestMatch(results []openMeteoResult, qualifiers []string) openMeteoResult {
	best, bestScore := results[0], 0
	for _, r := range results {
		score := 0
		for _, q := range qualifiers {
			if strings.EqualFold(q, r.Admin1) || strings.EqualFold(q, r.Country) || strings.EqualFold(q, r.CountryCode) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	return best
}

func nearest(results []openMeteoResult, latitude, longitude float64) openMeteoResult {
	best, bestDist := results[0], math.Inf(1)
	for _, r := range results {
		d := math.Hypot(r.Latitude-latitude, r.Longitude-longitude)
		if d < bestDist {
			best, bestDist = r, d
		}
	}
	return best
}

func nonEmpty(values ...string) []string {
	var out []string
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (g *OpenMeteoGeocoder) getJSON(ctx context.Context, endpoint string, query url.Values, out interface{}) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("bad endpoint %q: %w", endpoint, err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
