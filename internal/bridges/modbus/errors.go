package modbus

import "errors"

// Domain errors for the Modbus bridge package.
var (
	// ErrServerClosed is returned by Start after Close.
	ErrServerClosed = errors.New("modbus: server closed")

	// ErrListenFailed is returned when a bank listener cannot bind its port.
	ErrListenFailed = errors.New("modbus: listen failed")
)
