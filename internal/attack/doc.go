// Package attack implements the adversarial clients of the plant.
//
// Each attack writes raw values into the PLC read-write block with no
// coordination with the control loop, for as long as its context lives, and
// then restores normal operation:
//
//	stop-all       RUN=0 rewritten in a tight loop; restores RUN=1
//	never-stop     NEVER_STOP=1 (contact sensing off); restores NEVER_STOP=0
//	stop-and-fill  RUN=0, NEVER_STOP=2 (liquid forced); restores NEVER_STOP=0, RUN=1
//
// These are the races the plant exists to demonstrate. Nothing here is
// validated against tag domains.
package attack
