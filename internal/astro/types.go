package astro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"moonwatch/internal/calendar"
	"moonwatch/internal/moon"
)

var (
	ErrNoData           = errors.New("no rise/set data for location")
	ErrLocationNotFound = errors.New("location not found")
	ErrPositionTimeout  = errors.New("position unavailable before timeout")
	ErrPositionDenied   = errors.New("position permission denied")
)

// Source returns the sun and moon observation for a date and location.
type Source interface {
	Fetch(ctx context.Context, date calendar.Date, location string) (*Observation, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, date calendar.Date, location string) (*Observation, error)

func (f SourceFunc) Fetch(ctx context.Context, date calendar.Date, location string) (*Observation, error) {
	return f(ctx, date, location)
}

type Hemisphere string

const (
	Northern Hemisphere = "northern"
	Southern Hemisphere = "southern"
)

func HemisphereOf(latitude float64) Hemisphere {
	if latitude < 0 {
		return Southern
	}
	return Northern
}

type Observation struct {
	Date     calendar.Date `json:"date"`
	Location string        `json:"location"`
	// PlaceName is the geocoded "City, Region" label for Location.
	PlaceName string `json:"place_name,omitempty"`

	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`

	Hemisphere          Hemisphere `json:"hemisphere"`
	PhaseName           string     `json:"phase_name"`
	IlluminationPercent float64    `json:"illumination_percent"`
	CyclePercent        int        `json:"cycle_percent"`
	PhaseUnrecognized   bool       `json:"phase_unrecognized,omitempty"`

	Moonrise calendar.TimeOfDay `json:"moonrise"`
	Moonset  calendar.TimeOfDay `json:"moonset"`
	Sunrise  calendar.TimeOfDay `json:"sunrise"`
	Sunset   calendar.TimeOfDay `json:"sunset"`

	FetchedAt time.Time `json:"fetched_at"`
}

// ApplyPhase derives CyclePercent from the phase name and illumination. An
// unknown phase name clamps the cycle to 0, flags the observation and
// returns the mapping error for the caller to log.
func (o *Observation) ApplyPhase() error {
	percent, err := moon.CyclePercent(o.PhaseName, o.IlluminationPercent)
	if err != nil {
		o.CyclePercent = 0
		o.PhaseUnrecognized = true
		return err
	}
	o.CyclePercent = percent
	o.PhaseUnrecognized = false
	return nil
}

// Validate reports whether every time of day is in range.
func (o *Observation) Validate() error {
	for name, t := range map[string]calendar.TimeOfDay{
		"moonrise": o.Moonrise,
		"moonset":  o.Moonset,
		"sunrise":  o.Sunrise,
		"sunset":   o.Sunset,
	} {
		if !t.Valid() {
			return fmt.Errorf("%s out of range: %+v", name, t)
		}
	}
	if o.IlluminationPercent < 0 || o.IlluminationPercent > 100 {
		return fmt.Errorf("illumination out of range: %v", o.IlluminationPercent)
	}
	return nil
}

// Place is a geocoded location.
type Place struct {
	Name      string  `json:"name"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone,omitempty"`
}

// Label returns "City, Region", falling back to the country.
func (p Place) Label() string {
	switch {
	case p.Name != "" && p.Region != "":
		return p.Name + ", " + p.Region
	case p.Name != "" && p.Country != "":
		return p.Name + ", " + p.Country
	default:
		return p.Name
	}
}

type Geocoder interface {
	Resolve(ctx context.Context, name string) (Place, error)
	ReverseGeocode(ctx context.Context, latitude, longitude float64) (string, error)
}

type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geolocator acquires the user's position once.
type Geolocator interface {
	Locate(ctx context.Context) (Position, error)
}
