package mqtt

import "errors"

var (
	// ErrNotConnected is returned while the broker connection is down.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrConnectionFailed wraps the reason the first connect failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrPublishFailed wraps a rejected or timed-out publish.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps a rejected or timed-out subscribe.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrInvalidMessage covers empty topics, QoS above 2 and oversized payloads.
	ErrInvalidMessage = errors.New("mqtt: invalid message")
)
