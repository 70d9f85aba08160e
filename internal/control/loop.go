package control

import (
	"fmt"

	"github.com/nerrad567/virtuaplant-core/internal/plant"
	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Tags is the PLC view after a tick.
type Tags struct {
	Run     bool          `json:"run"`
	Level   bool          `json:"level"`
	Contact bool          `json:"contact"`
	Motor   bool          `json:"motor"`
	Nozzle  bool          `json:"nozzle"`
	Mode    register.Mode `json:"never_stop"`
}

// Evaluate is the control rule:
//
//	MOTOR  = RUN && (!CONTACT || LEVEL)
//	NOZZLE = RUN && CONTACT && !LEVEL
func Evaluate(run, contact, level bool) (motor, nozzle bool) {
	motor = run && (!contact || level)
	nozzle = run && contact && !level
	return motor, nozzle
}

// Loop reads sensors, applies Evaluate and drives the actuators.
type Loop struct {
	devices *plant.Devices
}

// NewLoop creates a control loop over devices.
func NewLoop(devices *plant.Devices) *Loop {
	return &Loop{devices: devices}
}

// Tick runs one control cycle.
//
// Sensors are read before anything is written. If any read or actuator write
// fails, the error is returned and the remaining writes of the cycle are
// skipped; actuators keep whatever value they last held.
func (l *Loop) Tick() (Tags, error) {
	d := l.devices

	rw, err := d.PLC.ReadRange(register.RWBase, register.TagNeverStop+1)
	if err != nil {
		return Tags{}, fmt.Errorf("reading plc: %w", err)
	}
	level, err := d.Level.Read(register.DeviceAddr)
	if err != nil {
		return Tags{}, fmt.Errorf("reading level: %w", err)
	}
	contact, err := d.Contact.Read(register.DeviceAddr)
	if err != nil {
		return Tags{}, fmt.Errorf("reading contact: %w", err)
	}

	// Out-of-domain NEVER_STOP reads as ModeOff.
	mode, _ := register.ParseMode(rw[register.TagNeverStop])

	t := Tags{
		Run:     rw[register.TagRun] == 1,
		Level:   level == 1,
		Contact: contact == 1,
		Mode:    mode,
	}
	t.Motor, t.Nozzle = Evaluate(t.Run, t.Contact, t.Level)

	if err := d.Motor.Write(register.DeviceAddr, register.Bool(t.Motor)); err != nil {
		return t, fmt.Errorf("writing motor: %w", err)
	}
	if err := d.Nozzle.Write(register.DeviceAddr, register.Bool(t.Nozzle)); err != nil {
		return t, fmt.Errorf("writing nozzle: %w", err)
	}

	// LEVEL..NOZZLE are contiguous in the read-only block.
	mirror := []uint16{
		register.Bool(t.Level),
		register.Bool(t.Contact),
		register.Bool(t.Motor),
		register.Bool(t.Nozzle),
	}
	if err := d.PLC.WriteRange(register.ROBase+register.TagLevel, mirror); err != nil {
		return t, fmt.Errorf("mirroring tags: %w", err)
	}
	return t, nil
}
