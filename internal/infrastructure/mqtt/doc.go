// Package mqtt connects the plant to an MQTT broker with
// github.com/eclipse/paho.mqtt.golang.
//
// Topics under virtuaplant/:
//
//	state/plc/tags          retained PLC tag snapshot, republished on change
//	event/fill              one message per completed fill cycle
//	command/plc/{tag}       {"value":N} writes RUN or NEVER_STOP
//	system/status           retained online/offline, with a will for crashes
//
// Command writes land in the PLC register block like any other client's,
// without coordination with the control loop.
package mqtt
