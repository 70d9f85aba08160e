package control

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/plant"
	"github.com/nerrad567/virtuaplant-core/internal/register"
	"github.com/nerrad567/virtuaplant-core/internal/simulation"
)

// Frame is the outcome of one tick, handed to the Observer.
type Frame struct {
	Time        time.Time
	Tags        Tags
	Observation simulation.Observation
	Outcome     Outcome

	// Actuated is false when the tick skipped actuation.
	Actuated bool
}

// Observer receives every frame. Observe is called on the tick goroutine
// and must not block.
type Observer interface {
	Observe(Frame)
}

// RunnerStats holds tick counters.
type RunnerStats struct {
	Ticks   uint64 `json:"ticks"`
	Skipped uint64 `json:"skipped"`
	Outages uint64 `json:"outages"`
}

// RunnerConfig holds runner settings.
type RunnerConfig struct {
	// Interval is the tick period. Default: simulation.TickInterval.
	Interval time.Duration

	// Observer is optional.
	Observer Observer

	// Logger is optional.
	Logger Logger
}

// Runner drives the simulation, fill cycle and control loop at a fixed rate.
//
// Thread Safety: Tick and Run must be called from one goroutine. Latest and
// Stats are safe from any goroutine.
type Runner struct {
	devices  *plant.Devices
	world    *simulation.World
	cycle    *FillCycle
	loop     *Loop
	interval time.Duration
	observer Observer
	logger   Logger

	// inputs are the last actuator values read successfully.
	inputs simulation.Inputs
	outage bool

	latestMu sync.RWMutex
	latest   Frame

	ticks   atomic.Uint64
	skipped atomic.Uint64
	outages atomic.Uint64
}

// NewRunner wires a runner over devices.
func NewRunner(devices *plant.Devices, world *simulation.World, cycle *FillCycle, cfg RunnerConfig) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = simulation.TickInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = discard{}
	}
	return &Runner{
		devices:  devices,
		world:    world,
		cycle:    cycle,
		loop:     NewLoop(devices),
		interval: cfg.Interval,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}
}

// Run ticks until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("control loop started", "interval", r.interval)
	defer r.logger.Info("control loop stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			r.Tick(now)
		}
	}
}

// Tick runs one simulation step, fill-cycle update and control cycle.
func (r *Runner) Tick(now time.Time) Frame {
	r.ticks.Add(1)
	frame := Frame{Time: now}

	// An out-of-domain NEVER_STOP still yields usable inputs with ModeOff.
	in, err := simulation.ReadInputs(r.devices)
	readOK := err == nil || errors.Is(err, register.ErrInvalidTagValue)
	if readOK {
		r.inputs = in
	}

	// The line keeps moving on the last known actuators during an outage.
	frame.Observation = r.world.Step(r.inputs)
	if r.inputs.Emitting() {
		r.cycle.Emitted(now)
	}

	if readOK {
		var errs []error
		out, cycleErr := r.cycle.Update(now, frame.Observation.Contact, r.inputs.Mode)
		frame.Outcome = out
		errs = append(errs, cycleErr)

		tags, loopErr := r.loop.Tick()
		frame.Tags = tags
		frame.Actuated = loopErr == nil
		errs = append(errs, loopErr)
		err = errors.Join(errs...)
	}

	if !frame.Actuated {
		r.skipped.Add(1)
	}
	r.track(err)

	r.latestMu.Lock()
	r.latest = frame
	r.latestMu.Unlock()

	if r.observer != nil {
		r.observer.Observe(frame)
	}
	return frame
}

// Latest returns the most recent frame.
func (r *Runner) Latest() Frame {
	r.latestMu.RLock()
	defer r.latestMu.RUnlock()
	return r.latest
}

// Status returns the fill-cycle snapshot.
func (r *Runner) Status() FillStatus {
	return r.cycle.Status()
}

// Stats returns the tick counters.
func (r *Runner) Stats() RunnerStats {
	return RunnerStats{
		Ticks:   r.ticks.Load(),
		Skipped: r.skipped.Load(),
		Outages: r.outages.Load(),
	}
}

// track logs bank outages once at the start and once on recovery.
func (r *Runner) track(err error) {
	switch {
	case errors.Is(err, register.ErrBankUnavailable):
		if !r.outage {
			r.outage = true
			r.outages.Add(1)
			r.logger.Warn("device bank unavailable, holding actuators", "error", err)
		}
	case err == nil:
		if r.outage {
			r.outage = false
			r.logger.Info("device banks reachable again")
		}
	default:
		r.logger.Error("control tick failed", "error", err)
	}
}
