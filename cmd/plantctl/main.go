// plantctl is the operator and attacker command line for a running plant.
//
// It reaches the PLC bank over Modbus/TCP, like any external tool would:
//
//	plantctl console                 # poll and print the operator view
//	plantctl run | stop              # set RUN
//	plantctl attack stop-all         # press Enter to stop the attack
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
