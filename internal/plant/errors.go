package plant

import "errors"

// Domain errors for the plant package.
var (
	// ErrUnknownDevice is returned when a device name is not part of the plant.
	ErrUnknownDevice = errors.New("plant: unknown device")

	// ErrInvalidPortMap is returned when a port map is missing a device or
	// holds a port outside 1-65535.
	ErrInvalidPortMap = errors.New("plant: invalid port map")
)
