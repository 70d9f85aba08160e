package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	ErrDisabled = errors.New("influxdb: disabled")

	// ErrConnectionFailed wraps the reason Connect could not reach the server.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrNotConnected is returned after Close.
	ErrNotConnected = errors.New("influxdb: client closed")

	// ErrUnhealthy means the server answered the ping but not with a pass.
	ErrUnhealthy = errors.New("influxdb: server unhealthy")
)
