package simulation

import (
	"math/rand/v2"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// TickRate is the number of simulation steps per second.
const TickRate = 60

// TickInterval is the simulated time covered by one Step.
const TickInterval = time.Second / TickRate

// dt is TickInterval in seconds.
const dt = 1.0 / TickRate

// Inputs are the actuator and mode values the simulation reacts to.
type Inputs struct {
	Run    bool
	Motor  bool
	Nozzle bool
	Mode   register.Mode
}

// Emitting reports whether liquid leaves the nozzle this tick.
func (in Inputs) Emitting() bool {
	return in.Nozzle || in.Mode.ForcesFill()
}

// Observation is what the sensors saw after a step.
type Observation struct {
	// Contact is the raw proximity of a bottle wall to the contact sensor.
	Contact bool `json:"contact"`

	Bottles int `json:"bottles"`
	Liquid  int `json:"liquid"`

	// Spilled counts liquid units resting on the belt instead of in a bottle.
	Spilled int `json:"spilled"`
}

// Bottle is a bottle riding the conveyor.
type Bottle struct {
	ID  uint64
	Pos Vec
}

// Segments returns the base, left wall and right wall in world coordinates.
func (b Bottle) Segments() [3]Segment {
	l := b.Pos.X + bottleLeft
	r := b.Pos.X + bottleRight
	y := b.Pos.Y
	return [3]Segment{
		{A: Vec{l, y}, B: Vec{r, y}},
		{A: Vec{l, y}, B: Vec{l, y + bottleHeight}},
		{A: Vec{r, y}, B: Vec{r, y + bottleHeight}},
	}
}

// LeftWall returns the wall the contact sensor detects.
func (b Bottle) LeftWall() Segment {
	return b.Segments()[1]
}

// inside reports whether x lies between the bottle walls.
func (b Bottle) inside(x float64) bool {
	return x > b.Pos.X+bottleLeft && x < b.Pos.X+bottleRight
}

// liquidState is where a liquid unit currently is.
type liquidState int

const (
	falling liquidState = iota
	inBottle
	onBelt
)

// Liquid is one unit of liquid.
type Liquid struct {
	Pos Vec
	VY  float64

	// Bottle is the ID of the bottle the unit belongs to, 0 for none. It is
	// the newest bottle when poured and the catching bottle once landed.
	Bottle uint64

	state liquidState
}

// Resting reports whether the unit has stopped falling.
func (l Liquid) Resting() bool {
	return l.state != falling
}

// Option configures a World.
type Option func(*World)

// WithSeed makes liquid placement reproducible.
func WithSeed(seed uint64) Option {
	return func(w *World) {
		w.rng = rand.New(rand.NewPCG(seed, seed)) //nolint:gosec // not security sensitive
	}
}

// WithLiquidCap overrides MaxLiquid.
func WithLiquidCap(n int) Option {
	return func(w *World) {
		if n > 0 {
			w.liquidCap = n
		}
	}
}

// World is the simulated line.
//
// Thread Safety: World is not safe for concurrent use. It is owned by the
// tick goroutine; use Snapshot to hand state to other goroutines.
type World struct {
	rng *rand.Rand

	bottles []*Bottle
	liquid  []*Liquid
	nextID  uint64

	liquidCap int

	// conveyor is nil when the belt is missing; Step rebuilds it.
	conveyor *Segment
	rebuilds uint64

	steps uint64
}

// New creates an empty line with the conveyor in place.
func New(opts ...Option) *World {
	w := &World{
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // not security sensitive
		nextID:    1,
		liquidCap: MaxLiquid,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.buildConveyor()
	return w
}

// Step advances the line by one tick. It never fails.
func (w *World) Step(in Inputs) Observation {
	w.steps++

	if w.conveyor == nil {
		w.buildConveyor()
		w.rebuilds++
	}

	if in.Emitting() {
		w.emit()
	}

	if in.Motor {
		for _, b := range w.bottles {
			b.Pos.X += ConveyorStep
		}
	}

	if in.Run && w.spawnDue() {
		w.spawn()
	}

	w.moveLiquid(in.Motor)
	w.cull()

	return w.observe()
}

// BreakConveyor removes the belt. The next Step rebuilds it.
func (w *World) BreakConveyor() {
	w.conveyor = nil
}

// Stats reports counters since the world was created.
type Stats struct {
	Steps            uint64
	ConveyorRebuilds uint64
	BottlesSpawned   uint64
}

// Stats returns a snapshot of the counters.
func (w *World) Stats() Stats {
	return Stats{
		Steps:            w.steps,
		ConveyorRebuilds: w.rebuilds,
		BottlesSpawned:   w.nextID - 1,
	}
}

// Snapshot is a copy of the world's visible state.
type Snapshot struct {
	Bottles []Bottle
	Liquid  []Liquid
}

// Snapshot copies the current bottles and liquid.
func (w *World) Snapshot() Snapshot {
	s := Snapshot{
		Bottles: make([]Bottle, len(w.bottles)),
		Liquid:  make([]Liquid, len(w.liquid)),
	}
	for i, b := range w.bottles {
		s.Bottles[i] = *b
	}
	for i, l := range w.liquid {
		s.Liquid[i] = *l
	}
	return s
}

func (w *World) buildConveyor() {
	w.conveyor = &Segment{A: Vec{0, ConveyorTop}, B: Vec{Width, ConveyorTop}}
}

func (w *World) newest() *Bottle {
	if len(w.bottles) == 0 {
		return nil
	}
	return w.bottles[len(w.bottles)-1]
}

func (w *World) spawnDue() bool {
	last := w.newest()
	return last == nil || last.Pos.X > SpawnX+BottleSpacing
}

func (w *World) spawn() {
	w.bottles = append(w.bottles, &Bottle{ID: w.nextID, Pos: Vec{SpawnX, ConveyorY}})
	w.nextID++
}

// emit drops one unit under the nozzle, poured for the newest bottle.
func (w *World) emit() {
	var owner uint64
	if b := w.newest(); b != nil {
		owner = b.ID
	}
	x := float64(NozzleMinX + w.rng.IntN(NozzleMaxX-NozzleMinX+1))
	w.liquid = append(w.liquid, &Liquid{Pos: Vec{x, NozzleY}, Bottle: owner})

	if over := len(w.liquid) - w.liquidCap; over > 0 {
		w.liquid = append(w.liquid[:0], w.liquid[over:]...)
	}
}

func (w *World) bottle(id uint64) *Bottle {
	for _, b := range w.bottles {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// catching returns the bottle whose walls enclose x, if any.
func (w *World) catching(x float64) *Bottle {
	for _, b := range w.bottles {
		if b.inside(x) {
			return b
		}
	}
	return nil
}

// moveLiquid integrates falling units and carries resting ones.
func (w *World) moveLiquid(motor bool) {
	for _, l := range w.liquid {
		switch l.state {
		case inBottle:
			if b := w.bottle(l.Bottle); b != nil {
				l.Pos.X = b.Pos.X + (bottleLeft+bottleRight)/2
			}
			continue
		case onBelt:
			if motor {
				l.Pos.X += ConveyorStep
			}
			continue
		}

		l.VY += Gravity * dt
		l.Pos.Y += l.VY * dt

		if b := w.catching(l.Pos.X); b != nil {
			if floor := b.Pos.Y + bottleFloor; l.Pos.Y <= floor {
				l.Pos.Y = floor
				l.VY = 0
				l.Bottle = b.ID
				l.state = inBottle
			}
			continue
		}

		if w.conveyor != nil && l.Pos.X >= w.conveyor.A.X && l.Pos.X <= w.conveyor.B.X {
			if top := w.conveyor.A.Y + LiquidRadius; l.Pos.Y <= top {
				l.Pos.Y = top
				l.VY = 0
				l.state = onBelt
			}
		}
	}
}

// cull removes bottles and liquid that left the region.
func (w *World) cull() {
	gone := make(map[uint64]bool)
	kept := w.bottles[:0]
	for _, b := range w.bottles {
		if b.Pos.X > ExitX || b.Pos.Y < MinBottleY {
			gone[b.ID] = true
			continue
		}
		kept = append(kept, b)
	}
	clear(w.bottles[len(kept):])
	w.bottles = kept

	liquid := w.liquid[:0]
	for _, l := range w.liquid {
		if l.Pos.Y < 0 || l.Pos.X > ExitX {
			continue
		}
		if l.Bottle != 0 && gone[l.Bottle] {
			continue
		}
		liquid = append(liquid, l)
	}
	clear(w.liquid[len(liquid):])
	w.liquid = liquid
}

func (w *World) observe() Observation {
	obs := Observation{
		Bottles: len(w.bottles),
		Liquid:  len(w.liquid),
	}
	for _, b := range w.bottles {
		if touchesSensor(b.LeftWall().Screen()) {
			obs.Contact = true
			break
		}
	}
	for _, l := range w.liquid {
		if l.state == onBelt {
			obs.Spilled++
		}
	}
	return obs
}
