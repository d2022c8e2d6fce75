package astro

import (
	"fmt"
	"time"

	"moonwatch/internal/calendar"

	"github.com/sj14/astral/pkg/astral"
)

// SolarCalculator computes sunrise and sunset locally. It fills in when the
// remote source leaves a sun event out of its day listing.
type SolarCalculator struct{}

func NewSolarCalculator() *SolarCalculator {
	return &SolarCalculator{}
}

// SunTimes returns sunrise and sunset for date at the given coordinates,
// as wall clock times in loc.
func (s *SolarCalculator) SunTimes(date calendar.Date, latitude, longitude float64, loc *time.Location) (calendar.TimeOfDay, calendar.TimeOfDay, error) {
	if loc == nil {
		loc = time.UTC
	}
	observer := astral.Observer{
		Latitude:  latitude,
		Longitude: longitude,
	}
	day := time.Date(date.Year, time.Month(date.Month), date.Day, 12, 0, 0, 0, loc)

	rise, err := astral.Sunrise(observer, day)
	if err != nil {
		return calendar.TimeOfDay{}, calendar.TimeOfDay{}, fmt.Errorf("sunrise: %w", err)
	}
	set, err := astral.Sunset(observer, day)
	if err != nil {
		return calendar.TimeOfDay{}, calendar.TimeOfDay{}, fmt.Errorf("sunset: %w", err)
	}

	return calendar.ClockOf(rise.In(loc)), calendar.ClockOf(set.In(loc)), nil
}
