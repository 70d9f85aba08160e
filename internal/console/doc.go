// Package console is the operator's view of the plant.
//
// A Console polls the PLC bank's status and control blocks once a second and
// turns them into a Status. When the bank cannot be reached it reports
// OFFLINE and clears every value rather than showing stale ones. The only
// command it issues is RUN on or off.
package console
