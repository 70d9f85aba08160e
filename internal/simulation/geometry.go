package simulation

import "math"

// Line geometry. Values are in world units; one unit is one pixel at scale 1.
const (
	// Width is the visible width of the line.
	Width = 550.0

	// ScreenOffset maps world y to screen y: y' = ScreenOffset - y.
	ScreenOffset = 600.0

	// ExitX is where bottles and liquid leave the simulated region.
	ExitX = Width + 1500

	// ConveyorY is the height bottles ride at.
	ConveyorY = 300.0

	// ConveyorTop is the belt surface spilled liquid rests on.
	ConveyorTop = ConveyorY + 10

	// ConveyorStep is how far the belt moves per tick while the motor runs.
	ConveyorStep = 0.25

	// SpawnX is where new bottles appear.
	SpawnX = 130.0

	// BottleSpacing is the gap the newest bottle must clear before another spawns.
	BottleSpacing = 60.0

	// MinBottleY is the height below which a bottle is considered lost.
	MinBottleY = 150.0
)

// Bottle outline relative to its body position.
const (
	bottleLeft   = -150.0
	bottleRight  = -100.0
	bottleHeight = 100.0

	// bottleFloor is the floor half-thickness plus the liquid radius.
	bottleFloor = 3.9 + LiquidRadius
)

// Contact sensor, in screen coordinates.
const (
	SensorX      = 153.0 // floor(550 / 3.58)
	SensorY      = 210.0 // floor(350 / 1.66)
	SensorRadius = 1.5
)

// Nozzle and liquid.
const (
	NozzleMinX = 181
	NozzleMaxX = 182
	NozzleY    = 430.0

	// Gravity is the vertical acceleration in units/s^2.
	Gravity = -900.0

	LiquidRadius = 3.0

	// MaxLiquid caps live liquid units; the oldest are dropped beyond it.
	MaxLiquid = 10000
)

// Vec is a point in world coordinates.
type Vec struct {
	X, Y float64
}

// Screen maps v to screen coordinates.
func (v Vec) Screen() Vec {
	return Vec{X: v.X, Y: ScreenOffset - v.Y}
}

// Segment is a straight line between two points.
type Segment struct {
	A, B Vec
}

// Screen maps both ends to screen coordinates.
func (s Segment) Screen() Segment {
	return Segment{A: s.A.Screen(), B: s.B.Screen()}
}

// vertical reports whether the segment is vertical within a pixel.
func (s Segment) vertical() bool {
	return math.Abs(s.A.X-s.B.X) < 2
}

// touchesSensor reports whether a vertical screen-space segment passes within
// SensorRadius of the sensor.
func touchesSensor(wall Segment) bool {
	if !wall.vertical() {
		return false
	}
	minY := math.Min(wall.A.Y, wall.B.Y)
	maxY := math.Max(wall.A.Y, wall.B.Y)
	return math.Abs(SensorX-wall.A.X) <= SensorRadius && minY <= SensorY && SensorY <= maxY
}
