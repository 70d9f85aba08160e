package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/virtuaplant-core/internal/infrastructure/config"
)

const (
	connectTimeout      = 10 * time.Second
	publishTimeout      = 5 * time.Second
	keepAlive           = 60 * time.Second
	disconnectQuiesceMS = 1000
)

// Status values on the system status topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"

	reasonShutdown = "graceful_shutdown"
	reasonCrash    = "unexpected_disconnect"
)

// StatusMessage is the retained payload on virtuaplant/system/status.
type StatusMessage struct {
	Status    string    `json:"status"`
	ClientID  string    `json:"client_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// buildClientOptions maps the mqtt config section onto paho options,
// including the will message announcing a crash.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions().
		AddBroker(brokerURL(cfg)).
		SetClientID(cfg.Broker.ClientID).
		SetCleanSession(true).
		SetKeepAlive(keepAlive).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(false)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}
	if cfg.Reconnect.MaxDelay > 0 {
		opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	}
	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	opts.SetBinaryWill(Topics{}.SystemStatus(), statusPayload(cfg.Broker.ClientID, statusOffline, reasonCrash), 1, true)
	return opts
}

// brokerURL is tcp://host:port, or ssl:// with TLS.
func brokerURL(cfg config.MQTTConfig) string {
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
}

func statusPayload(clientID, status, reason string) []byte {
	b, _ := json.Marshal(StatusMessage{ //nolint:errchkjson // plain struct
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	})
	return b
}
