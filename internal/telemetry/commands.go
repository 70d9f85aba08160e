package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/nerrad567/virtuaplant-core/internal/audit"
	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/virtuaplant-core/internal/register"
)

// plcDevice is the device segment of PLC command topics.
const plcDevice = "plc"

// ErrInvalidCommand is returned for malformed command messages.
var ErrInvalidCommand = errors.New("telemetry: invalid command")

// CommandPayload is the body of a tag command: {"value": N}.
type CommandPayload struct {
	Value *int `json:"value"`
}

// Subscriber is the MQTT subscription side used by Commands.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// Commands writes RUN and NEVER_STOP from MQTT command messages.
type Commands struct {
	plc    register.Accessor
	audit  audit.Repository
	logger Logger
}

// NewCommands creates a command handler writing into plc.
func NewCommands(plc register.Accessor, logger Logger) *Commands {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Commands{plc: plc, logger: logger}
}

// SetAudit records every applied command in repo.
func (c *Commands) SetAudit(repo audit.Repository) {
	c.audit = repo
}

// Subscribe registers Handle for every PLC command topic.
func (c *Commands) Subscribe(sub Subscriber, qos byte) error {
	topic := mqtt.Topics{}.AllCommands(plcDevice)
	if err := sub.Subscribe(topic, qos, c.Handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	c.logger.Info("listening for tag commands", "topic", topic)
	return nil
}

// Handle applies one command message. It matches mqtt.MessageHandler.
func (c *Commands) Handle(topic string, payload []byte) error {
	name, ok := mqtt.Topics{}.CommandTag(plcDevice, topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidCommand, topic)
	}

	var cmd CommandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if cmd.Value == nil {
		return fmt.Errorf("%w: value is required", ErrInvalidCommand)
	}
	if *cmd.Value < 0 || *cmd.Value > math.MaxUint16 {
		return fmt.Errorf("%w: %s=%d", register.ErrInvalidTagValue, name, *cmd.Value)
	}

	tag, err := register.WriteTag(c.plc, name, uint16(*cmd.Value)) //nolint:gosec // range checked above
	if err != nil {
		return err
	}
	c.logger.Info("tag written from mqtt", "tag", tag.Name, "value", *cmd.Value)

	if c.audit != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
		defer cancel()
		err := c.audit.Create(ctx, &audit.Entry{
			Tag:     tag.Name,
			Value:   uint16(*cmd.Value), //nolint:gosec // range checked above
			Source:  audit.SourceMQTT,
			Details: map[string]any{"topic": topic},
		})
		if err != nil {
			c.logger.Warn("recording tag write failed", "tag", tag.Name, "error", err)
		}
	}
	return nil
}
