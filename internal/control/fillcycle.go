package control

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/plant"
	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Fill-cycle timing.
const (
	// DefaultCooldown is the minimum time between two triggers.
	DefaultCooldown = 2300 * time.Millisecond

	// DefaultContactPulse is how long CONTACT stays high after a trigger.
	DefaultContactPulse = 1800 * time.Millisecond

	// DefaultFillDuration is how long the nozzle is held open.
	DefaultFillDuration = 1500 * time.Millisecond
)

// FillConfig holds the fill-cycle timing.
type FillConfig struct {
	Cooldown     time.Duration
	ContactPulse time.Duration
	FillDuration time.Duration
}

// DefaultFillConfig returns the standard line timing.
func DefaultFillConfig() FillConfig {
	return FillConfig{
		Cooldown:     DefaultCooldown,
		ContactPulse: DefaultContactPulse,
		FillDuration: DefaultFillDuration,
	}
}

// State is the fill-cycle state.
type State int

const (
	StateIdle State = iota
	StateFilling
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFilling:
		return "filling"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Transition is what an Update did.
type Transition int

const (
	TransitionNone Transition = iota
	TransitionTriggered
	TransitionCompleted
)

// FillEvent describes one completed fill.
type FillEvent struct {
	TriggerID uint64
	Started   time.Time
	Completed time.Time
}

// Duration returns how long the nozzle was held open.
func (e FillEvent) Duration() time.Duration {
	return e.Completed.Sub(e.Started)
}

// Outcome is the result of one Update.
type Outcome struct {
	Transition Transition

	// TriggerID is set on TransitionTriggered.
	TriggerID uint64

	// Fill is set on TransitionCompleted.
	Fill *FillEvent
}

// FillStatus is a snapshot of the state machine.
type FillStatus struct {
	State       State     `json:"state"`
	Triggered   bool      `json:"triggered"`
	LastTrigger time.Time `json:"last_trigger"`
	OpenSince   time.Time `json:"open_since"`
	Cycles      uint64    `json:"cycles"`
}

// FillCycle turns raw contact observations into CONTACT, NOZZLE and LEVEL.
//
// IDLE to FILLING happens on contact when sensing is enabled, no cycle is in
// progress and the line has been quiet for the cooldown. The quiet period
// starts at the first Update and restarts on every trigger and every tick
// that emits liquid (see Emitted). FILLING to
// IDLE happens when the fill duration has elapsed. The contact release runs
// on the Scheduler, independent of the fill timer.
//
// Thread Safety: Update is called from the tick goroutine. Status and Close
// are safe to call from any goroutine.
type FillCycle struct {
	devices *plant.Devices
	sched   Scheduler
	cfg     FillConfig
	logger  Logger

	mu          sync.Mutex
	triggered   bool
	lastTrigger time.Time
	quietSince  time.Time // cooldown reference; zero before the first Update
	openSince   time.Time // zero while the nozzle is not held open
	nextID      uint64
	pending     map[uint64]struct{}
	cycles      uint64
}

// NewFillCycle creates an idle fill cycle. Zero timing fields take defaults.
func NewFillCycle(devices *plant.Devices, sched Scheduler, cfg FillConfig) *FillCycle {
	def := DefaultFillConfig()
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.ContactPulse <= 0 {
		cfg.ContactPulse = def.ContactPulse
	}
	if cfg.FillDuration <= 0 {
		cfg.FillDuration = def.FillDuration
	}
	return &FillCycle{
		devices: devices,
		sched:   sched,
		cfg:     cfg,
		logger:  discard{},
		pending: make(map[uint64]struct{}),
	}
}

// SetLogger sets the logger.
func (f *FillCycle) SetLogger(logger Logger) {
	if logger == nil {
		logger = discard{}
	}
	f.logger = logger
}

// Update advances the state machine to now.
//
// contact is the raw sensor observation and mode the current NEVER_STOP.
// State changes are applied even when register writes fail; the write errors
// are joined and returned.
func (f *FillCycle) Update(now time.Time, contact bool, mode register.Mode) (Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		out  Outcome
		errs []error
	)

	if f.quietSince.IsZero() {
		f.quietSince = now
	}

	if !f.openSince.IsZero() && now.Sub(f.openSince) >= f.cfg.FillDuration {
		event := &FillEvent{TriggerID: f.nextID, Started: f.openSince, Completed: now}
		f.openSince = time.Time{}
		f.triggered = false
		f.cycles++

		errs = append(errs, f.write(f.devices.Nozzle, "nozzle", 0))
		errs = append(errs, f.write(f.devices.Level, "level", 1))

		f.logger.Debug("fill complete", "trigger_id", event.TriggerID, "duration", event.Duration())
		out = Outcome{Transition: TransitionCompleted, Fill: event}
	}

	if mode.SensingDisabled() {
		errs = append(errs, f.write(f.devices.Contact, "contact", 0))
		return out, errors.Join(errs...)
	}

	if out.Transition != TransitionNone || !contact || f.triggered || now.Sub(f.quietSince) < f.cfg.Cooldown {
		return out, errors.Join(errs...)
	}

	f.nextID++
	id := f.nextID
	f.triggered = true
	f.lastTrigger = now
	f.quietSince = now
	f.openSince = now

	errs = append(errs, f.write(f.devices.Contact, "contact", 1))
	errs = append(errs, f.write(f.devices.Nozzle, "nozzle", 1))
	errs = append(errs, f.write(f.devices.Level, "level", 0))

	f.pending[id] = struct{}{}
	f.sched.After(id, f.cfg.ContactPulse, func() { f.releaseContact(id) })

	f.logger.Debug("fill triggered", "trigger_id", id)
	return Outcome{Transition: TransitionTriggered, TriggerID: id}, errors.Join(errs...)
}

// Emitted restarts the cooldown: liquid left the nozzle at now.
func (f *FillCycle) Emitted(now time.Time) {
	f.mu.Lock()
	f.quietSince = now
	f.mu.Unlock()
}

// Status returns a snapshot of the state machine.
func (f *FillCycle) Status() FillStatus {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := FillStatus{
		State:       StateIdle,
		Triggered:   f.triggered,
		LastTrigger: f.lastTrigger,
		OpenSince:   f.openSince,
		Cycles:      f.cycles,
	}
	if !f.openSince.IsZero() {
		s.State = StateFilling
	}
	return s
}

// Close cancels every pending contact release.
func (f *FillCycle) Close() {
	f.mu.Lock()
	ids := make([]uint64, 0, len(f.pending))
	for id := range f.pending {
		ids = append(ids, id)
	}
	clear(f.pending)
	f.mu.Unlock()

	for _, id := range ids {
		f.sched.Cancel(id)
	}
}

// releaseContact is the delayed CONTACT:=0 of trigger id.
func (f *FillCycle) releaseContact(id uint64) {
	f.mu.Lock()
	delete(f.pending, id)
	f.mu.Unlock()

	if err := f.write(f.devices.Contact, "contact", 0); err != nil {
		f.logger.Warn("contact release failed", "trigger_id", id, "error", err)
	}
}

func (f *FillCycle) write(dev register.Accessor, name string, v uint16) error {
	if err := dev.Write(register.DeviceAddr, v); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
