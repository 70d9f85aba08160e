// Package modbus exposes register banks over Modbus/TCP and reaches remote
// banks as a Modbus client.
//
// Every simulated device of the plant owns one bank and one TCP listener:
//
//	┌──────────────┐  Modbus/TCP  ┌──────────────┐
//	│ console /    │◄────────────►│ Server (plc) │◄──► register.Bank
//	│ attack tools │              └──────────────┘
//	└──────────────┘              ┌──────────────┐
//	┌──────────────┐  Modbus/TCP  │ Server (motor│
//	│ control loop │◄────────────►│ nozzle, ...) │◄──► register.Bank
//	└──────────────┘              └──────────────┘
//
// # Server
//
// Server runs github.com/simonvetter/modbus over a bank. The handler serves:
//
//   - 0x03 Read Holding Registers
//   - 0x04 Read Input Registers (served from the same words)
//   - 0x06 Write Single Register
//   - 0x10 Write Multiple Registers
//
// Requests go straight to the bank without locking beyond its per-word
// atomics, so concurrent clients race exactly as they would against a real
// PLC. Out-of-range requests are answered with exception 0x02; any other
// bank failure with 0x04.
//
// # Client
//
// Client implements register.Accessor on top of github.com/goburrow/modbus.
// Any transport failure closes the connection and surfaces
// register.ErrBankUnavailable; the next call dials again.
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple goroutines.
package modbus
