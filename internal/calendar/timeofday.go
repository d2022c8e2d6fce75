package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a rise or set time on a 24 hour clock.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour <= 23 && t.Minute >= 0 && t.Minute <= 59
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Minutes returns the minutes elapsed since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

// ClockOf returns the time of day of t in its own location.
func ClockOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ParseTimeOfDay accepts "HH:MM", "HH:MM:SS", "H:MM AM" and "HH:MMPM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	value := strings.ToUpper(strings.TrimSpace(s))
	if value == "" {
		return TimeOfDay{}, fmt.Errorf("empty time of day")
	}

	meridiem := ""
	for _, suffix := range []string{"AM", "PM", "A.M.", "P.M."} {
		if strings.HasSuffix(value, suffix) {
			meridiem = suffix[:1]
			value = strings.TrimSpace(strings.TrimSuffix(value, suffix))
			break
		}
	}

	parts := strings.Split(value, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid minute in %q: %w", s, err)
	}

	switch meridiem {
	case "A":
		if hour < 1 || hour > 12 {
			return TimeOfDay{}, fmt.Errorf("invalid 12 hour time %q", s)
		}
		if hour == 12 {
			hour = 0
		}
	case "P":
		if hour < 1 || hour > 12 {
			return TimeOfDay{}, fmt.Errorf("invalid 12 hour time %q", s)
		}
		if hour != 12 {
			hour += 12
		}
	}

	t := TimeOfDay{Hour: hour, Minute: minute}
	if !t.Valid() {
		return TimeOfDay{}, fmt.Errorf("time of day out of range %q", s)
	}
	return t, nil
}
