package api

import (
	"fmt"

	"moonwatch/internal/astro"
	"moonwatch/internal/calendar"
	"moonwatch/internal/geometry"
	"moonwatch/internal/moon"
	"moonwatch/internal/navigation"
)

// MoonView is the photo sprite state for one observation.
type MoonView struct {
	Phase        string  `json:"phase"`
	Illumination float64 `json:"illumination_percent"`
	CyclePercent int     `json:"cycle_percent"`
	Unrecognized bool    `json:"phase_unrecognized,omitempty"`
	Frame        int     `json:"frame"`
	Offset       int     `json:"offset"`
	FrameWidth   int     `json:"frame_width"`
	Southern     bool    `json:"southern"`
}

// ObservationView is an observation with everything needed to draw it.
type ObservationView struct {
	Observation astro.Observation `json:"observation"`
	Sun         geometry.Arc      `json:"sun"`
	Moon        geometry.Arc      `json:"moon"`
	Sprite      MoonView          `json:"sprite"`
}

type PageView struct {
	Title     string           `json:"title"`
	DateLabel string           `json:"date_label"`
	State     navigation.State `json:"state"`
	Path      string           `json:"path"`
	PrevPath  string           `json:"prev_path"`
	NextPath  string           `json:"next_path"`
	Chart     geometry.Chart   `json:"chart"`
	Ticks     []geometry.Tick  `json:"ticks"`
	View      *ObservationView `json:"view,omitempty"`
	Notices   []string         `json:"notices,omitempty"`
}

func newObservationView(obs astro.Observation, chart geometry.Chart, sprite moon.Sprite) *ObservationView {
	frame := sprite.Frame(obs.CyclePercent)
	return &ObservationView{
		Observation: obs,
		Sun:         chart.Arc(obs.Sunrise, obs.Sunset),
		Moon:        chart.Arc(obs.Moonrise, obs.Moonset),
		Sprite: MoonView{
			Phase:        obs.PhaseName,
			Illumination: obs.IlluminationPercent,
			CyclePercent: obs.CyclePercent,
			Unrecognized: obs.PhaseUnrecognized,
			Frame:        frame,
			Offset:       sprite.Offset(frame),
			FrameWidth:   sprite.FrameWidth,
			Southern:     obs.Hemisphere == astro.Southern,
		},
	}
}

func (s *Server) pageView(snap navigation.Snapshot, notices []string) PageView {
	date := snap.State.ActiveDate
	location := snap.State.Location

	title := snap.Title
	if title == "" {
		title = "Moon"
	}

	v := PageView{
		Title:     title,
		DateLabel: calendar.FormatForDisplay(date, s.locale(), s.monthStyle()),
		State:     snap.State,
		Path:      snap.Path,
		PrevPath:  calendar.BuildPath(calendar.Prev(date), location),
		NextPath:  calendar.BuildPath(calendar.Next(date), location),
		Chart:     s.chart,
		Ticks:     s.chart.Ticks(),
		Notices:   notices,
	}
	if snap.Observation != nil {
		v.View = newObservationView(*snap.Observation, s.chart, s.sprite)
		v.DateLabel = calendar.FormatForDisplay(snap.Observation.Date, s.locale(), s.monthStyle())
	}
	return v
}

// spriteStyle is the inline CSS that shows one frame of the sprite.
func spriteStyle(m MoonView) string {
	style := fmt.Sprintf("background-position: %dpx 0; width: %dpx; height: %dpx;", m.Offset, m.FrameWidth, m.FrameWidth)
	if m.Southern {
		style += " transform: rotate(180deg);"
	}
	return style
}

// ringData bundles the arguments of the "ring" template.
func ringData(name string, chart geometry.Chart, ticks []geometry.Tick, arc geometry.Arc, caption string) map[string]interface{} {
	return map[string]interface{}{
		"Name":    name,
		"Chart":   chart,
		"Ticks":   ticks,
		"Arc":     arc,
		"Caption": caption,
	}
}
