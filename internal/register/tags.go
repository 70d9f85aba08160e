package register

import (
	"fmt"
	"strings"
)

// PLC address space layout.
const (
	// RWBase is the start of the PLC read-write block.
	RWBase uint16 = 0x0

	// ROBase is the start of the PLC read-only block mirrored by the control loop.
	ROBase uint16 = 0x3E8

	// BlockSize is the number of words a console reads from each block.
	BlockSize uint16 = 17

	// DeviceAddr is where single-value device banks keep their value.
	DeviceAddr uint16 = 0x0
)

// Tag offsets, relative to RWBase or ROBase.
const (
	TagRun       uint16 = 0x0
	TagLevel     uint16 = 0x1
	TagContact   uint16 = 0x2
	TagMotor     uint16 = 0x3
	TagNozzle    uint16 = 0x4
	TagNeverStop uint16 = 0x5
)

// Tag is a named offset within a bank.
type Tag struct {
	Name   string
	Offset uint16
	// Writable marks tags living in the PLC read-write block.
	Writable bool
}

// Tags lists every defined tag.
var Tags = []Tag{
	{Name: "run", Offset: TagRun, Writable: true},
	{Name: "level", Offset: TagLevel},
	{Name: "contact", Offset: TagContact},
	{Name: "motor", Offset: TagMotor},
	{Name: "nozzle", Offset: TagNozzle},
	{Name: "never_stop", Offset: TagNeverStop, Writable: true},
}

// LookupTag returns the tag with the given case-insensitive name.
func LookupTag(name string) (Tag, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range Tags {
		if t.Name == name {
			return t, true
		}
	}
	return Tag{}, false
}

// Address returns the absolute PLC address of the tag: the RW block for
// writable tags, the RO block otherwise.
func (t Tag) Address() uint16 {
	if t.Writable {
		return RWBase + t.Offset
	}
	return ROBase + t.Offset
}

// WriteTag validates value against the named tag's domain and stores it at
// the tag's address. Only tags in the read-write block can be written.
func WriteTag(a Accessor, name string, value uint16) (Tag, error) {
	tag, ok := LookupTag(name)
	if !ok {
		return Tag{}, fmt.Errorf("%w: %q", ErrUnknownTag, name)
	}
	if !tag.Writable {
		return tag, fmt.Errorf("%w: %s", ErrReadOnlyTag, tag.Name)
	}

	switch tag.Offset {
	case TagNeverStop:
		if _, err := ParseMode(value); err != nil {
			return tag, err
		}
	default:
		if value > 1 {
			return tag, fmt.Errorf("%w: %s=%d", ErrInvalidTagValue, tag.Name, value)
		}
	}

	return tag, a.Write(tag.Address(), value)
}

// Mode is the NEVER_STOP tag value.
type Mode uint16

// NEVER_STOP modes.
const (
	// ModeOff is normal, sensor-gated operation.
	ModeOff Mode = 0

	// ModeForceRun disables contact sensing so the conveyor never stops.
	// The control rule itself does not read it.
	ModeForceRun Mode = 1

	// ModeForceFill disables contact sensing and emits liquid every tick.
	ModeForceFill Mode = 2
)

// ParseMode converts a raw NEVER_STOP word into a Mode.
// Values outside {0,1,2} yield ModeOff and ErrInvalidTagValue.
func ParseMode(v uint16) (Mode, error) {
	switch m := Mode(v); m {
	case ModeOff, ModeForceRun, ModeForceFill:
		return m, nil
	default:
		return ModeOff, fmt.Errorf("%w: never_stop=%d", ErrInvalidTagValue, v)
	}
}

// SensingDisabled reports whether contact sensing is suspended.
func (m Mode) SensingDisabled() bool {
	return m != ModeOff
}

// ForcesFill reports whether liquid is emitted regardless of the nozzle.
func (m Mode) ForcesFill() bool {
	return m == ModeForceFill
}

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeForceRun:
		return "force_run"
	case ModeForceFill:
		return "force_fill"
	default:
		return fmt.Sprintf("mode(%d)", uint16(m))
	}
}

// Bool converts a boolean into a register word.
func Bool(v bool) uint16 {
	if v {
		return 1
	}
	return 0
}
