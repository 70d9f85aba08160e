package simulation

import (
	"fmt"

	"github.com/nerrad567/virtuaplant-core/internal/plant"
	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// ReadInputs reads the actuator and mode registers the simulation reacts to:
// RUN and NEVER_STOP from the PLC read-write block, MOTOR and NOZZLE from
// their device banks.
//
// An out-of-domain NEVER_STOP is returned as ModeOff together with an error
// wrapping register.ErrInvalidTagValue; the other fields are still valid.
// Any other error leaves Inputs zero.
func ReadInputs(d *plant.Devices) (Inputs, error) {
	rw, err := d.PLC.ReadRange(register.RWBase, register.TagNeverStop+1)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading plc: %w", err)
	}
	motor, err := d.Motor.Read(register.DeviceAddr)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading motor: %w", err)
	}
	nozzle, err := d.Nozzle.Read(register.DeviceAddr)
	if err != nil {
		return Inputs{}, fmt.Errorf("reading nozzle: %w", err)
	}

	mode, modeErr := register.ParseMode(rw[register.TagNeverStop])
	return Inputs{
		Run:    rw[register.TagRun] == 1,
		Motor:  motor == 1,
		Nozzle: nozzle == 1,
		Mode:   mode,
	}, modeErr
}
