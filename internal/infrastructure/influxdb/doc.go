// Package influxdb writes plant time series with
// github.com/influxdata/influxdb-client-go/v2.
//
// Measurements:
//
//	plc_tags    one point per actuated tick: run, level, contact, motor,
//	            nozzle, never_stop, bottles, liquid, spilled
//	fill_cycle  one point per completed fill: event_id, trigger_id, duration_ms
//
// Writes never block the caller; points are batched and flushed on an
// interval, and batch failures are reported through SetOnError.
package influxdb
