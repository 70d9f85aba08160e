// Package control is the PLC of the bottle-filling line.
//
// Three pieces run once per tick, in order, on a single goroutine owned by
// Runner:
//
//  1. The simulation steps with the actuator values read from the banks.
//  2. FillCycle turns the raw contact observation into the CONTACT, NOZZLE
//     and LEVEL registers, with a cooldown, a fixed fill duration and a
//     delayed contact release.
//  3. Loop applies the combinational rule to RUN, CONTACT and LEVEL, writes
//     MOTOR and NOZZLE, and mirrors all four into the PLC read-only block.
//
// Nothing here locks the banks. Operators and attack clients write the same
// registers concurrently and the tick simply sees whatever is there.
//
// # Failure Handling
//
// If a device bank is unreachable the tick skips actuation, so actuators keep
// their last values. The outage is logged once, and the next tick retries.
package control
