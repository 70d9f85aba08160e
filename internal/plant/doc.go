// Package plant wires the five device banks of the bottle-filling line
// together.
//
// The plant owns one register bank per device: the PLC and four single-word
// devices (motor, nozzle, level, contact). Banks holds the banks themselves;
// Devices holds the handles the simulation and control loop use to reach
// them, which are either the banks directly or Modbus clients connected back
// through the listeners.
//
// PortMap records which TCP port serves which bank. It is written once by the
// plant process and read by every external client.
package plant
