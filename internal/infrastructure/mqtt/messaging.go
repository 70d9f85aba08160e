package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// maxPayloadSize caps outgoing messages at 1MB.
const maxPayloadSize = 1 << 20

// maxQoS is the highest MQTT QoS level.
const maxQoS = 2

// Publish sends payload to topic and waits for the broker to accept it.
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: empty topic", ErrInvalidMessage)
	case qos > maxQoS:
		return fmt.Errorf("%w: qos %d", ErrInvalidMessage, qos)
	case len(payload) > maxPayloadSize:
		return fmt.Errorf("%w: %d byte payload exceeds %d", ErrInvalidMessage, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed); err != nil {
		c.publishErrors.Add(1)
		return fmt.Errorf("%s: %w", topic, err)
	}
	c.published.Add(1)
	return nil
}

// PublishRetained publishes state (the broker keeps the last one per topic).
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.qos(), true)
}

// PublishEvent publishes a one-off event.
func (c *Client) PublishEvent(topic string, payload []byte) error {
	return c.Publish(topic, payload, c.qos(), false)
}

// Subscribe routes messages on topic (wildcards allowed) to handler. The
// subscription survives reconnects.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return fmt.Errorf("%w: empty topic", ErrInvalidMessage)
	case qos > maxQoS:
		return fmt.Errorf("%w: qos %d", ErrInvalidMessage, qos)
	case handler == nil:
		return fmt.Errorf("%w: %s: nil handler", ErrSubscribeFailed, topic)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	if err := wait(c.client.Subscribe(topic, qos, c.dispatch(handler)), ErrSubscribeFailed); err != nil {
		return fmt.Errorf("%s: %w", topic, err)
	}

	c.subsMu.Lock()
	c.subs[topic] = route{qos: qos, handler: handler}
	c.subsMu.Unlock()
	return nil
}

// Subscriptions returns the number of topics replayed on reconnect.
func (c *Client) Subscriptions() int {
	c.subsMu.Lock()
	defer c.subsMu.Unlock()
	return len(c.subs)
}

// dispatch adapts handler to paho, counting messages and containing panics.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.received.Add(1)
		defer func() {
			if r := recover(); r != nil {
				c.handlerErrors.Add(1)
				c.log().Error("MQTT handler panic", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.handlerErrors.Add(1)
			c.log().Warn("MQTT message rejected", "topic", msg.Topic(), "error", err)
		}
	}
}

// wait blocks on a paho token for at most publishTimeout.
func wait(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("%w: no answer after %v", sentinel, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
