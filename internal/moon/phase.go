// Package moon maps named lunar phases onto a 0-100 cycle position and
// picks the matching frame of the moon photo sprite.
package moon

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrUnknownPhase = errors.New("unknown moon phase")

type Phase int

const (
	NewMoon Phase = iota
	WaxingCrescent
	FirstQuarter
	WaxingGibbous
	FullMoon
	WaningGibbous
	LastQuarter
	WaningCrescent
)

var phaseNames = map[Phase]string{
	NewMoon:        "New Moon",
	WaxingCrescent: "Waxing Crescent",
	FirstQuarter:   "First Quarter",
	WaxingGibbous:  "Waxing Gibbous",
	FullMoon:       "Full Moon",
	WaningGibbous:  "Waning Gibbous",
	LastQuarter:    "Last Quarter",
	WaningCrescent: "Waning Crescent",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// ParsePhase matches one of the eight phase names, ignoring case and
// surrounding whitespace.
func ParsePhase(name string) (Phase, error) {
	normalized := strings.Join(strings.Fields(name), " ")
	for p, n := range phaseNames {
		if strings.EqualFold(n, normalized) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
}

// CyclePercent places a phase and its illumination within the lunar cycle:
// 0 is new moon, 50 full moon, 100 the next new moon.
func CyclePercent(name string, illumination float64) (int, error) {
	phase, err := ParsePhase(name)
	if err != nil {
		return 0, err
	}

	switch phase {
	case NewMoon:
		return 0, nil
	case WaxingCrescent, WaxingGibbous:
		return int(math.Floor(illumination / 2)), nil
	case FirstQuarter:
		return 25, nil
	case FullMoon:
		return 50, nil
	case WaningGibbous, WaningCrescent:
		return int(math.Floor(100 - illumination/2)), nil
	case LastQuarter:
		return 75, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, name)
}

// SpriteFrame picks a 1-based frame out of frameCount. There is no frame 0:
// a new moon lands on the last frame, closing the cycle.
func SpriteFrame(percent int, frameCount int) int {
	if frameCount <= 0 {
		return 0
	}
	frame := int(math.Round(float64(percent) / 100 * float64(frameCount)))
	if frame == 0 {
		return frameCount
	}
	return frame
}

const (
	DefaultSpriteFrames     = 26
	DefaultSpriteFrameWidth = 200
)

// Sprite describes the horizontal strip of moon photos.
type Sprite struct {
	Frames     int `json:"frames"`
	FrameWidth int `json:"frame_width"`
}

func DefaultSprite() Sprite {
	return Sprite{Frames: DefaultSpriteFrames, FrameWidth: DefaultSpriteFrameWidth}
}

func (s Sprite) Frame(percent int) int {
	return SpriteFrame(percent, s.Frames)
}

// Offset is the CSS background-position x offset of a 1-based frame.
func (s Sprite) Offset(frame int) int {
	if frame < 1 {
		return 0
	}
	return -(frame - 1) * s.FrameWidth
}
