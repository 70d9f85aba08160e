// Package register provides the register banks that back every simulated
// device of the bottle-filling plant.
//
// A Bank is a fixed array of 16-bit words addressed from zero. Banks are
// shared, network-reachable memory: the tick loop, the Modbus listeners and
// any number of external clients touch the same words at the same time.
//
// # Atomicity
//
// A single word read or write is atomic and can never be torn. Nothing larger
// is: ReadRange, WriteRange and any read-then-write sequence can interleave
// with concurrent writers. The attack tooling relies on this, so the bank
// deliberately offers no transactions and no locks.
//
// # Tags
//
// Tags name fixed offsets inside the PLC bank (see tags.go). The PLC bank is
// split into a read-write block at RWBase, which operators and attackers
// write, and a read-only block at ROBase, which only the control loop writes.
// The split is a convention; the bank itself accepts writes anywhere.
//
// # Usage
//
//	plc := register.NewBank("plc", register.DefaultSize)
//	_ = plc.Write(register.RWBase+register.TagRun, 1)
//	run, _ := plc.Read(register.RWBase + register.TagRun)
package register
