package plant

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/virtuaplant-core/internal/bridges/modbus"
	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// Device names. They name the banks, the port map keys and the log fields.
const (
	DevicePLC     = "plc"
	DeviceMotor   = "motor"
	DeviceNozzle  = "nozzle"
	DeviceLevel   = "level"
	DeviceContact = "contact"
)

// DeviceNames lists every device in port order.
var DeviceNames = []string{DevicePLC, DeviceMotor, DeviceNozzle, DeviceLevel, DeviceContact}

// Banks owns the in-memory register banks of the plant.
type Banks struct {
	PLC     *register.Bank
	Motor   *register.Bank
	Nozzle  *register.Bank
	Level   *register.Bank
	Contact *register.Bank
}

// NewBanks creates five zero-initialised banks of size words each.
func NewBanks(size int) *Banks {
	return &Banks{
		PLC:     register.NewBank(DevicePLC, size),
		Motor:   register.NewBank(DeviceMotor, size),
		Nozzle:  register.NewBank(DeviceNozzle, size),
		Level:   register.NewBank(DeviceLevel, size),
		Contact: register.NewBank(DeviceContact, size),
	}
}

// Bank returns the named bank.
func (b *Banks) Bank(name string) (*register.Bank, error) {
	switch strings.ToLower(name) {
	case DevicePLC:
		return b.PLC, nil
	case DeviceMotor:
		return b.Motor, nil
	case DeviceNozzle:
		return b.Nozzle, nil
	case DeviceLevel:
		return b.Level, nil
	case DeviceContact:
		return b.Contact, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
}

// Devices returns handles that access the banks directly.
func (b *Banks) Devices() *Devices {
	return &Devices{
		PLC:     b.PLC,
		Motor:   b.Motor,
		Nozzle:  b.Nozzle,
		Level:   b.Level,
		Contact: b.Contact,
	}
}

// ServerConfigs returns one listener config per bank on host at the mapped
// ports, in DeviceNames order.
func (b *Banks) ServerConfigs(host string, ports PortMap, logger modbus.Logger) ([]modbus.ServerConfig, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	cfgs := make([]modbus.ServerConfig, 0, len(DeviceNames))
	for _, name := range DeviceNames {
		bank, _ := b.Bank(name)
		port, _ := ports.Port(name)
		cfgs = append(cfgs, modbus.ServerConfig{
			Name:    name,
			Address: net.JoinHostPort(host, strconv.Itoa(port)),
			Bank:    bank,
			Logger:  logger,
		})
	}
	return cfgs, nil
}

// Loopback returns handles with the PLC bank accessed directly and the four
// field devices reached through their Modbus listeners, so device I/O takes
// the same network path an external tool would.
func (b *Banks) Loopback(host string, ports PortMap, timeout time.Duration) (*Devices, error) {
	d, err := Dial(host, ports, timeout)
	if err != nil {
		return nil, err
	}

	// The PLC stays local; drop its client.
	if c, ok := d.PLC.(io.Closer); ok {
		_ = c.Close()
	}
	d.PLC = b.PLC
	return d, nil
}

// Devices holds the handle of every device bank. The simulation and the
// control loop take a *Devices rather than reaching for globals.
type Devices struct {
	PLC     register.Accessor
	Motor   register.Accessor
	Nozzle  register.Accessor
	Level   register.Accessor
	Contact register.Accessor
}

// Dial returns handles that reach every bank over Modbus/TCP on host.
// Connections open lazily, so Dial succeeds even while the plant is down.
func Dial(host string, ports PortMap, timeout time.Duration) (*Devices, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}

	clients := make(map[string]register.Accessor, len(DeviceNames))
	for _, name := range DeviceNames {
		port, _ := ports.Port(name)
		c, err := modbus.NewClient(modbus.ClientConfig{
			Name:    name,
			Address: net.JoinHostPort(host, strconv.Itoa(port)),
			Timeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("creating %s client: %w", name, err)
		}
		clients[name] = c
	}

	return &Devices{
		PLC:     clients[DevicePLC],
		Motor:   clients[DeviceMotor],
		Nozzle:  clients[DeviceNozzle],
		Level:   clients[DeviceLevel],
		Contact: clients[DeviceContact],
	}, nil
}

// Device returns the named handle.
func (d *Devices) Device(name string) (register.Accessor, error) {
	switch strings.ToLower(name) {
	case DevicePLC:
		return d.PLC, nil
	case DeviceMotor:
		return d.Motor, nil
	case DeviceNozzle:
		return d.Nozzle, nil
	case DeviceLevel:
		return d.Level, nil
	case DeviceContact:
		return d.Contact, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
}

// Close closes every handle that holds a connection. Local banks are left
// untouched.
func (d *Devices) Close() error {
	var errs []error
	for _, a := range []register.Accessor{d.PLC, d.Motor, d.Nozzle, d.Level, d.Contact} {
		if c, ok := a.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
