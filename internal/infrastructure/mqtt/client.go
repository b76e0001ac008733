package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/actuator-core/internal/infrastructure/config"
)

// Client is the core's connection to the bridge broker.
//
// Subscriptions survive reconnects: paho drops them with a clean session,
// so onConnect replays every tracked topic. All methods are safe for
// concurrent use.
type Client struct {
	client pahomqtt.Client
	cfg    config.MQTTConfig

	connected atomic.Bool
	traffic   counters

	subMu         sync.RWMutex
	subscriptions map[string]subscription

	hookMu       sync.RWMutex
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the subset of logging.Logger used by the client.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler is invoked for each received message on a paho goroutine.
// A returned error is logged and counted; it does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

// Stats is a snapshot of message traffic since Connect.
type Stats struct {
	Published     uint64
	Received      uint64
	HandlerErrors uint64
	Reconnects    uint64
}

type counters struct {
	published atomic.Uint64
	received  atomic.Uint64
	failed    atomic.Uint64
	connects  atomic.Uint64
}

// Connect dials the broker. The first connection is retried with an
// exponential backoff (cfg.Reconnect) so a broker that starts slightly
// later than the core does not fail startup; paho owns reconnection after
// that.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		cfg:           cfg,
		subscriptions: make(map[string]subscription),
	}

	opts := buildClientOptions(cfg)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.onConnected() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.onConnectionLost(err) })
	c.client = pahomqtt.NewClient(opts)

	dial := func() error {
		return await(c.client.Connect(), defaultConnectTimeout, nil)
	}
	if err := backoff.Retry(dial, connectBackOff(cfg.Reconnect)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// paho runs the connect handler on its own goroutine; without this a
	// Subscribe straight after Connect could see a stale state.
	c.connected.Store(true)
	return c, nil
}

// onConnected runs after every successful (re)connection.
func (c *Client) onConnected() {
	c.connected.Store(true)
	c.traffic.connects.Add(1)

	c.subMu.RLock()
	for topic, sub := range c.subscriptions {
		c.client.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
	}
	c.subMu.RUnlock()

	c.announce(statusOnline, "")

	c.hookMu.RLock()
	hook := c.onConnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook()
	}
}

func (c *Client) onConnectionLost(err error) {
	c.connected.Store(false)
	c.logWarn("MQTT connection lost", "error", err)

	c.hookMu.RLock()
	hook := c.onDisconnect
	c.hookMu.RUnlock()
	if hook != nil {
		hook(err)
	}
}

// announce publishes the retained core status. It does not wait for the
// broker; the status is advisory.
func (c *Client) announce(state, reason string) pahomqtt.Token {
	return c.client.Publish(Topics{}.SystemStatus(), byte(c.cfg.QoS), true, // #nosec G115 -- qos validated 0..2
		buildStatusPayload(state, c.cfg.Broker.ClientID, reason))
}

// Close replaces the retained status with a graceful offline message and
// disconnects. Safe on a nil or never-connected client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	if c.IsConnected() {
		c.announce(statusOffline, "graceful_shutdown").WaitTimeout(defaultPublishTimeout)
	}
	c.client.Disconnect(defaultDisconnectQuiesce)
	c.connected.Store(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker connection is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected combines our view of the connection with paho's; paho
// reports true while it is still reconnecting.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.connected.Load() && c.client.IsConnected()
}

// Stats returns the traffic counters.
func (c *Client) Stats() Stats {
	var reconnects uint64
	if n := c.traffic.connects.Load(); n > 1 {
		reconnects = n - 1
	}
	return Stats{
		Published:     c.traffic.published.Load(),
		Received:      c.traffic.received.Load(),
		HandlerErrors: c.traffic.failed.Load(),
		Reconnects:    reconnects,
	}
}

// SetOnConnect sets a callback run on every (re)connection.
func (c *Client) SetOnConnect(callback func()) {
	c.hookMu.Lock()
	c.onConnect = callback
	c.hookMu.Unlock()
}

// SetOnDisconnect sets a callback run when the connection is lost.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.hookMu.Lock()
	c.onDisconnect = callback
	c.hookMu.Unlock()
}

// SetLogger sets the logger used for connection loss and handler failures.
func (c *Client) SetLogger(logger Logger) {
	c.hookMu.Lock()
	c.logger = logger
	c.hookMu.Unlock()
}

func (c *Client) logWarn(msg string, args ...any) {
	c.hookMu.RLock()
	logger := c.logger
	c.hookMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func (c *Client) logError(msg string, args ...any) {
	c.hookMu.RLock()
	logger := c.logger
	c.hookMu.RUnlock()
	if logger != nil {
		logger.Error(msg, args...)
	}
}

// dispatch adapts a MessageHandler to paho. A panicking handler is logged
// and counted as a failure instead of taking down paho's router goroutine.
func (c *Client) dispatch(handler MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		c.traffic.received.Add(1)
		defer func() {
			if r := recover(); r != nil {
				c.traffic.failed.Add(1)
				c.logError("MQTT handler panic recovered", "topic", msg.Topic(), "panic", r)
			}
		}()
		if err := handler(msg.Topic(), msg.Payload()); err != nil {
			c.traffic.failed.Add(1)
			c.logWarn("MQTT handler returned error", "topic", msg.Topic(), "error", err)
		}
	}
}

// await waits for a paho token. Failures are wrapped in sentinel when one
// is given.
func await(token pahomqtt.Token, timeout time.Duration, sentinel error) error {
	var err error
	if !token.WaitTimeout(timeout) {
		err = fmt.Errorf("timeout after %v", timeout)
	} else {
		err = token.Error()
	}
	if err == nil || sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
