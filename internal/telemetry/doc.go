// Package telemetry fans control-loop frames out to the plant's observers:
// MQTT, InfluxDB, the SQLite history and WebSocket clients.
//
// The Recorder sits behind a bounded queue so the tick goroutine never waits
// on a slow sink. Frames that do not fit are dropped and counted. Every sink
// is optional.
//
// Commands carries tag writes arriving over MQTT into the PLC bank. Those
// writes are as uncoordinated as any other client's.
package telemetry
