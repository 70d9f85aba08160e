package plant

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBasePort is the port of the PLC bank; devices follow at +1..+4.
const DefaultBasePort = 5020

// PortMap is the TCP port of each device bank.
type PortMap struct {
	PLC     int `json:"plc"`
	Motor   int `json:"motor"`
	Nozzle  int `json:"nozzle"`
	Level   int `json:"level"`
	Contact int `json:"contact"`
}

// DefaultPortMap assigns base+0..4 in DeviceNames order.
func DefaultPortMap(base int) PortMap {
	return PortMap{
		PLC:     base,
		Motor:   base + 1,
		Nozzle:  base + 2,
		Level:   base + 3,
		Contact: base + 4,
	}
}

// Port returns the port of the named device.
func (p PortMap) Port(device string) (int, error) {
	switch strings.ToLower(device) {
	case DevicePLC:
		return p.PLC, nil
	case DeviceMotor:
		return p.Motor, nil
	case DeviceNozzle:
		return p.Nozzle, nil
	case DeviceLevel:
		return p.Level, nil
	case DeviceContact:
		return p.Contact, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDevice, device)
	}
}

// Validate checks that every device has a usable port.
func (p PortMap) Validate() error {
	var errs []error
	for _, name := range DeviceNames {
		port, _ := p.Port(name)
		if port < 1 || port > 65535 {
			errs = append(errs, fmt.Errorf("%w: %s port %d", ErrInvalidPortMap, name, port))
		}
	}
	return errors.Join(errs...)
}

// LoadPortMap reads a port map from a JSON file.
func LoadPortMap(path string) (PortMap, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return PortMap{}, fmt.Errorf("reading port map: %w", err)
	}

	var p PortMap
	if err := json.Unmarshal(data, &p); err != nil {
		return PortMap{}, fmt.Errorf("%w: %w", ErrInvalidPortMap, err)
	}
	if err := p.Validate(); err != nil {
		return PortMap{}, err
	}
	return p, nil
}

// Save writes the port map as JSON, replacing any existing file.
func (p PortMap) Save(path string) error {
	if err := p.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding port map: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating port map directory: %w", err)
		}
	}

	// Write then rename so readers never see a partial file.
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil { //nolint:gosec // not secret
		return fmt.Errorf("writing port map: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing port map: %w", err)
	}
	return nil
}
