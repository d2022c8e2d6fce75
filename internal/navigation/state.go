package navigation

import (
	"errors"
	"fmt"
	"strings"

	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"
)

var (
	ErrFetchFailed = errors.New("no moon data for this date and location")
	ErrStale       = errors.New("superseded by a newer navigation")
	ErrCrossOrigin = errors.New("navigation target leaves the current origin")
	ErrGeolocation = errors.New("could not determine your location")
)

// StorageKeyLocation is the persisted key holding the last good location.
const StorageKeyLocation = "location"

type Status int

const (
	Idle Status = iota
	Loading
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type Direction int

const (
	Prev Direction = -1
	Next Direction = 1
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prev", "previous", "back":
		return Prev, nil
	case "next", "forward":
		return Next, nil
	default:
		return 0, fmt.Errorf("unknown direction %q", s)
	}
}

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// State is the navigation state. It only changes through Controller
// transitions.
type State struct {
	Status           Status        `json:"status"`
	ActiveDate       calendar.Date `json:"active_date"`
	Location         string        `json:"location"`
	PreviousLocation string        `json:"previous_location"`
	Loading          bool          `json:"loading"`
	IsToday          bool          `json:"is_today"`
}

// Snapshot is a consistent copy of the controller for rendering.
type Snapshot struct {
	State       State              `json:"state"`
	Observation *astro.Observation `json:"observation,omitempty"`
	SpriteFrame int                `json:"sprite_frame"`
	Path        string             `json:"path"`
	Title       string             `json:"title"`
}
