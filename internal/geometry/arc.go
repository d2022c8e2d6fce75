package geometry

import (
	"math"

	"moonwatch/internal/calendar"
)

const degreesPerHour = 360.0 / 24

type ArcSweep struct {
	StartAngle float64 `json:"start_angle"`
	EndAngle   float64 `json:"end_angle"`
	Sweep      float64 `json:"sweep"`
}

type LabelPlacement struct {
	Radius   float64 `json:"radius"`
	Rotation float64 `json:"rotation"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

// TimeToDegrees maps a time onto the 24 hour circle, one decimal place.
func TimeToDegrees(t calendar.TimeOfDay) float64 {
	deg := float64(t.Minutes()) * degreesPerHour / 60
	return math.Round(deg*10) / 10
}

// ComputeSweep returns the arc from start to end. axisOffset rotates the
// zero hour away from SVG's 3 o'clock origin so the ring lines up with the
// chart's tick marks. A set time earlier than the rise wraps past midnight.
func ComputeSweep(start, end calendar.TimeOfDay, axisOffset float64) ArcSweep {
	startAngle := TimeToDegrees(start) + axisOffset
	endAngle := TimeToDegrees(end) + axisOffset

	sweep := endAngle - startAngle
	if sweep < 0 {
		sweep = (360 - startAngle) + endAngle
	}
	return ArcSweep{StartAngle: startAngle, EndAngle: endAngle, Sweep: sweep}
}

// StrokeDashOffset is the dash offset that leaves sweep degrees of a full
// dash array visible.
func StrokeDashOffset(s ArcSweep, circumference float64) float64 {
	return circumference - (s.Sweep/360)*circumference
}

// PlaceLabel positions a label at angle around (cx, cy). Labels on the left
// half of the circle are turned by 180 degrees so the text stays upright,
// and pushed out by marginAdjust-labelGap since the flipped text now runs
// back towards the ring.
func PlaceLabel(angle, baseRadius, marginAdjust, labelGap, axisOffset, cx, cy float64) LabelPlacement {
	radius := baseRadius
	rotation := angle

	if angle > 180+axisOffset && angle < 180+axisOffset+180 {
		rotation = angle - 180
		radius += marginAdjust - labelGap
	}

	rad := angle * math.Pi / 180
	return LabelPlacement{
		Radius:   radius,
		Rotation: rotation,
		X:        radius*math.Cos(rad) + cx,
		Y:        radius*math.Sin(rad) + cy,
	}
}
