package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second

	maxQoS = 2

	// maxPayloadSize caps outgoing payloads at 1MB.
	maxPayloadSize = 1 << 20

	statusOnline  = "online"
	statusOffline = "offline"
)

// buildClientOptions creates paho options from config.
//
// Paho's own connect-retry is left off: the initial connection is retried
// by Connect with an exponential backoff so that a bounded number of
// attempts can fail startup cleanly. Reconnects after a successful
// connection are handled by paho's auto-reconnect.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	configureLWT(opts, cfg.Broker.ClientID)

	return opts
}

// connectBackOff returns the retry policy for the initial connection.
func connectBackOff(cfg config.MQTTReconnectConfig) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		bo.InitialInterval = time.Duration(cfg.InitialDelay) * time.Second
	}
	if cfg.MaxDelay > 0 {
		bo.MaxInterval = time.Duration(cfg.MaxDelay) * time.Second
	}
	bo.MaxElapsedTime = 0

	attempts := cfg.MaxAttempts
	if attempts < 0 {
		attempts = 0
	}
	return backoff.WithMaxRetries(bo, uint64(attempts))
}

// statusPayload is published retained on the system status topic.
type statusPayload struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func buildStatusPayload(status, clientID, reason string) []byte {
	b, _ := json.Marshal(statusPayload{ //nolint:errcheck // plain struct cannot fail
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return b
}

// configureLWT makes the broker publish an offline status if the core
// disappears without a clean disconnect.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetBinaryWill(Topics{}.SystemStatus(),
		buildStatusPayload(statusOffline, clientID, "unexpected_disconnect"), 1, true)
}
