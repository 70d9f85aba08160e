package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the plant's MQTT hierarchy.
//
// Device topics use the flat scheme: virtuaplant/{category}/{device}/{name}
const (
	// TopicPrefix is the root of every plant topic.
	TopicPrefix = "virtuaplant"

	// TopicPrefixSystem is the base for process status topics.
	TopicPrefixSystem = "virtuaplant/system"
)

// Topics provides builders for plant MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.State("plc", "tags")   // virtuaplant/state/plc/tags
//	topics.Command("plc", "run")  // virtuaplant/command/plc/run
type Topics struct{}

// State returns a retained state topic for a device.
//
// Example: virtuaplant/state/plc/tags
func (Topics) State(device, name string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, device, name)
}

// Command returns the topic external clients write a device tag on.
//
// Example: virtuaplant/command/plc/never_stop
func (Topics) Command(device, tag string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, device, tag)
}

// Event returns the topic for discrete plant events.
//
// Example: virtuaplant/event/fill
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// PLCTags returns the retained topic carrying the PLC tag snapshot.
func (t Topics) PLCTags() string {
	return t.State("plc", "tags")
}

// FillEvents returns the topic fill-cycle completions are published on.
func (t Topics) FillEvents() string {
	return t.Event("fill")
}

// SystemStatus returns the process status topic, also used for the LWT.
//
// Example: virtuaplant/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// AllCommands returns a pattern matching every tag command for a device.
//
// Pattern: virtuaplant/command/plc/+
func (Topics) AllCommands(device string) string {
	return fmt.Sprintf("%s/command/%s/+", TopicPrefix, device)
}

// AllTopics returns a pattern matching all plant topics.
//
// Pattern: virtuaplant/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// CommandTag extracts the tag name from a command topic.
// It returns false when topic is not a command topic for device.
func (Topics) CommandTag(device, topic string) (string, bool) {
	prefix := fmt.Sprintf("%s/command/%s/", TopicPrefix, device)
	tag, ok := strings.CutPrefix(topic, prefix)
	if !ok || tag == "" || strings.Contains(tag, "/") {
		return "", false
	}
	return tag, true
}
