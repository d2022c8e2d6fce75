// Package geometry turns rise and set times into arcs on a 24 hour donut chart.
package geometry

import (
	"math"

	"moonwatch/internal/calendar"
)

// Default chart dimensions in SVG user units.
const (
	DefaultSize       = 200.0
	DefaultMargin     = 30.0
	DefaultSweepWidth = 20.0
	DefaultLabelGap   = 6.0
	DefaultAxisOffset = -90.0
)

type ChartConfig struct {
	Size       float64 `json:"size"`
	Margin     float64 `json:"margin"`
	SweepWidth float64 `json:"sweep_width"`
	LabelGap   float64 `json:"label_gap"`
	AxisOffset float64 `json:"axis_offset"`
}

func DefaultChartConfig() ChartConfig {
	return ChartConfig{
		Size:       DefaultSize,
		Margin:     DefaultMargin,
		SweepWidth: DefaultSweepWidth,
		LabelGap:   DefaultLabelGap,
		AxisOffset: DefaultAxisOffset,
	}
}

// Chart holds the derived dimensions of one donut chart.
type Chart struct {
	Config        ChartConfig `json:"config"`
	Center        float64     `json:"center"`
	Radius        float64     `json:"radius"`
	Circumference float64     `json:"circumference"`
	ViewBox       float64     `json:"view_box"`
}

func NewChart(cfg ChartConfig) Chart {
	if cfg.Size <= 0 {
		cfg.Size = DefaultSize
	}
	if cfg.SweepWidth <= 0 || cfg.SweepWidth >= cfg.Size {
		cfg.SweepWidth = DefaultSweepWidth
	}
	radius := (cfg.Size - cfg.SweepWidth) / 2
	return Chart{
		Config:        cfg,
		Center:        cfg.Size/2 + cfg.Margin,
		Radius:        radius,
		Circumference: 2 * math.Pi * radius,
		ViewBox:       cfg.Size + 2*cfg.Margin,
	}
}

// Arc is everything the renderer needs to draw one rise/set ring.
type Arc struct {
	Rise       calendar.TimeOfDay `json:"rise"`
	Set        calendar.TimeOfDay `json:"set"`
	Sweep      ArcSweep           `json:"sweep"`
	DashOffset float64            `json:"dash_offset"`
	RiseLabel  LabelPlacement     `json:"rise_label"`
	SetLabel   LabelPlacement     `json:"set_label"`
}

func (c Chart) Arc(rise, set calendar.TimeOfDay) Arc {
	sweep := ComputeSweep(rise, set, c.Config.AxisOffset)
	return Arc{
		Rise:       rise,
		Set:        set,
		Sweep:      sweep,
		DashOffset: StrokeDashOffset(sweep, c.Circumference),
		RiseLabel:  c.Label(sweep.StartAngle),
		SetLabel:   c.Label(sweep.EndAngle),
	}
}

// Label places a text label just outside the ring at angle.
func (c Chart) Label(angle float64) LabelPlacement {
	base := c.Radius + c.Config.SweepWidth/2 + c.Config.LabelGap
	return PlaceLabel(angle, base, c.Config.Margin, c.Config.LabelGap, c.Config.AxisOffset, c.Center, c.Center)
}

type Tick struct {
	Hour   int     `json:"hour"`
	X1     float64 `json:"x1"`
	Y1     float64 `json:"y1"`
	X2     float64 `json:"x2"`
	Y2     float64 `json:"y2"`
	Major  bool    `json:"major"`
	Label  string  `json:"label,omitempty"`
	LabelX float64 `json:"label_x"`
	LabelY float64 `json:"label_y"`
}

// Ticks returns one mark per hour across the ring, with every sixth hour
// labelled inside the circle.
func (c Chart) Ticks() []Tick {
	inner := c.Radius - c.Config.SweepWidth/2
	outer := c.Radius + c.Config.SweepWidth/2
	ticks := make([]Tick, 0, 24)
	for h := 0; h < 24; h++ {
		angle := TimeToDegrees(calendar.TimeOfDay{Hour: h}) + c.Config.AxisOffset
		rad := angle * math.Pi / 180
		cos, sin := math.Cos(rad), math.Sin(rad)

		start := inner
		major := h%6 == 0
		if !major {
			start = c.Radius
		}
		t := Tick{
			Hour:  h,
			X1:    round2(start*cos + c.Center),
			Y1:    round2(start*sin + c.Center),
			X2:    round2(outer*cos + c.Center),
			Y2:    round2(outer*sin + c.Center),
			Major: major,
		}
		if major {
			labelRadius := inner - c.Config.LabelGap*2
			t.Label = calendar.TimeOfDay{Hour: h}.String()
			t.LabelX = round2(labelRadius*cos + c.Center)
			t.LabelY = round2(labelRadius*sin + c.Center)
		}
		ticks = append(ticks, t)
	}
	return ticks
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
