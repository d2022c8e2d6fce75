package astro

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"moonwatch/internal/calendar"
)

const DefaultUSNOURL = "https://aa.usno.navy.mil/api/rstt/oneday"

// USNOClient reads one day of rise, set and phase data from the US Naval
// Observatory API for a geocoded location.
type USNOClient struct {
	endpoint  string
	userAgent string
	geocoder  Geocoder
	solar     *SolarCalculator
	client    *http.Client
	now       func() time.Time
}

type USNOConfig struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	Geocoder  Geocoder
}

func NewUSNOClient(cfg USNOConfig) *USNOClient {
	if cfg.URL == "" {
		cfg.URL = DefaultUSNOURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &USNOClient{
		endpoint:  cfg.URL,
		userAgent: cfg.UserAgent,
		geocoder:  cfg.Geocoder,
		solar:     NewSolarCalculator(),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		now: time.Now,
	}
}

type usnoPhenomenon struct {
	Phen string `json:"phen"`
	Time string `json:"time"`
}

type usnoResponse struct {
	Error      string `json:"error"`
	Properties struct {
		Data struct {
			CurPhase  string           `json:"curphase"`
			FracIllum string           `json:"fracillum"`
			TZ        float64          `json:"tz"`
			MoonData  []usnoPhenomenon `json:"moondata"`
			SunData   []usnoPhenomenon `json:"sundata"`
		} `json:"data"`
	} `json:"properties"`
}

func (c *USNOClient) Fetch(ctx context.Context, date calendar.Date, location string) (*Observation, error) {
	if c.geocoder == nil {
		return nil, fmt.Errorf("usno: no geocoder configured")
	}

	place, err := c.geocoder.Resolve(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("usno: %w", err)
	}

	loc := time.UTC
	if strings.TrimSpace(place.Timezone) != "" {
		if parsed, err := time.LoadLocation(place.Timezone); err == nil {
			loc = parsed
		} else {
			log.Printf("Unknown timezone %q for %s, using UTC", place.Timezone, location)
		}
	}
	offset := utcOffsetHours(date, loc)

	query := url.Values{}
	query.Set("date", date.String())
	query.Set("coords", fmt.Sprintf("%.4f,%.4f", place.Latitude, place.Longitude))
	query.Set("tz", strconv.FormatFloat(offset, 'f', -1, 64))

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("usno: bad endpoint %q: %w", c.endpoint, err)
	}
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("usno request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("usno request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("usno bad status: %s", resp.Status)
	}

	var payload usnoResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("usno decode: %w", err)
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("usno: %s", payload.Error)
	}

	data := payload.Properties.Data
	if strings.TrimSpace(data.CurPhase) == "" {
		return nil, fmt.Errorf("usno: %w: phase missing", ErrNoData)
	}

	illumination, err := parsePercent(data.FracIllum)
	if err != nil {
		return nil, fmt.Errorf("usno: %w", err)
	}

	obs := &Observation{
		Date:                date,
		Location:            location,
		PlaceName:           place.Label(),
		Latitude:            place.Latitude,
		Longitude:           place.Longitude,
		Timezone:            loc.String(),
		Hemisphere:          HemisphereOf(place.Latitude),
		PhaseName:           data.CurPhase,
		IlluminationPercent: illumination,
		FetchedAt:           c.now(),
	}

	var moonOK [2]bool
	obs.Moonrise, moonOK[0] = findPhenomenon(data.MoonData, "Rise")
	obs.Moonset, moonOK[1] = findPhenomenon(data.MoonData, "Set")
	if !moonOK[0] || !moonOK[1] {
		return nil, fmt.Errorf("usno %s %s: %w: moon does not both rise and set", location, date, ErrNoData)
	}

	sunrise, riseOK := findPhenomenon(data.SunData, "Rise")
	sunset, setOK := findPhenomenon(data.SunData, "Set")
	if !riseOK || !setOK {
		fallbackRise, fallbackSet, err := c.solar.SunTimes(date, place.Latitude, place.Longitude, loc)
		if err != nil {
			return nil, fmt.Errorf("usno %s %s: %w: %v", location, date, ErrNoData, err)
		}
		if !riseOK {
			sunrise = fallbackRise
		}
		if !setOK {
			sunset = fallbackSet
		}
	}
	obs.Sunrise = sunrise
	obs.Sunset = sunset

	if err := obs.Validate(); err != nil {
		return nil, fmt.Errorf("usno: %w", err)
	}
	return obs, nil
}

func findPhenomenon(entries []usnoPhenomenon, phen string) (calendar.TimeOfDay, bool) {
	for _, e := range entries {
		if !strings.EqualFold(strings.TrimSpace(e.Phen), phen) {
			continue
		}
		t, err := calendar.ParseTimeOfDay(e.Time)
		if fields := strings.Fields(e.Time); err != nil && len(fields) > 1 {
			// some entries carry a trailing zone marker, "20:15 ST"
			t, err = calendar.ParseTimeOfDay(fields[0])
		}
		if err != nil {
			return calendar.TimeOfDay{}, false
		}
		return t, true
	}
	return calendar.TimeOfDay{}, false
}

func parsePercent(value string) (float64, error) {
	trimmed := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	if trimmed == "" {
		return 0, fmt.Errorf("illumination missing")
	}
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid illumination %q: %w", value, err)
	}
	return v, nil
}

// utcOffsetHours is the zone offset in effect at local noon of date.
func utcOffsetHours(date calendar.Date, loc *time.Location) float64 {
	noon := time.Date(date.Year, time.Month(date.Month), date.Day, 12, 0, 0, 0, loc)
	_, offset := noon.Zone()
	return float64(offset) / 3600
}
