package mqtt

import (
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/semmidev/blockward/internal/config"
	"github.com/semmidev/blockward/internal/domain"
)

// Logger matches the logging surface of the rest of the adapters.
type Logger interface {
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// CommandHandler receives remote commands arriving over the broker.
type CommandHandler interface {
	HandleStart()
	HandleStop()
	HandleCompressionSet(enabled bool)
}

// Client is the broker-facing side of the daemon: it publishes every
// telemetry signal under a host-scoped topic tree and dispatches the
// command and compression-toggle topics to a handler. It also announces
// the device to Home Assistant via MQTT discovery on every (re)connect,
// so a restarted broker learns the entities again without operator
// action.
type Client struct {
	client          paho.Client
	hostname        string
	discoveryPrefix string
	handler         CommandHandler
	logger          Logger
}

func NewClient(cfg *config.MQTTConfig, hostname string, handler CommandHandler, logger Logger) *Client {
	c := &Client{
		hostname:        hostname,
		discoveryPrefix: cfg.DiscoveryPrefix,
		handler:         handler,
		logger:          logger,
	}

	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Broker, cfg.Port)).
		SetClientID(fmt.Sprintf("blockward-%s", hostname)).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Duration(cfg.ReconnectInterval) * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warnf("mqtt connection lost: %v", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c.client = paho.NewClient(opts)
	return c
}

// Connect blocks until the first broker connection succeeds or the
// token fails. With connect-retry enabled the token only fails on
// non-recoverable option errors.
func (c *Client) Connect() error {
	token := c.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	return nil
}

// Disconnect flushes in-flight messages and drops the connection.
func (c *Client) Disconnect() {
	c.client.Disconnect(250)
}

func (c *Client) onConnect(_ paho.Client) {
	c.logger.Infof("connected to mqtt broker")

	c.subscribe(c.topic("command"), c.onCommand)
	c.subscribe(c.topic("compression_enabled/set"), c.onCompressionSet)

	c.publishDiscovery()
	c.Publish(domain.SignalStatus, "Ready")
}

func (c *Client) subscribe(topic string, cb paho.MessageHandler) {
	token := c.client.Subscribe(topic, 0, cb)
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Errorf("failed to subscribe to %s: %v", topic, err)
	}
}

func (c *Client) onCommand(_ paho.Client, msg paho.Message) {
	cmd := strings.TrimSpace(string(msg.Payload()))
	c.logger.Infof("received command: %s", cmd)

	switch strings.ToLower(cmd) {
	case "start":
		c.handler.HandleStart()
	case "stop":
		// Stop waits out the termination grace period, keep the paho
		// router callback free.
		go c.handler.HandleStop()
	default:
		c.logger.Warnf("unknown command ignored: %s", cmd)
	}
}

func (c *Client) onCompressionSet(_ paho.Client, msg paho.Message) {
	payload := strings.TrimSpace(string(msg.Payload()))
	switch strings.ToLower(payload) {
	case "true":
		c.handler.HandleCompressionSet(true)
	case "false":
		c.handler.HandleCompressionSet(false)
	default:
		c.logger.Warnf("unknown compression payload ignored: %s", payload)
	}
}

func (c *Client) topic(suffix string) string {
	return fmt.Sprintf("blockward/%s/%s", c.hostname, suffix)
}

// Publish sends one telemetry value, fire and forget.
func (c *Client) Publish(sig domain.Signal, payload string) {
	c.publish(c.topic(string(sig)), payload, false)
}

// PublishRetained sends one telemetry value the broker keeps for late
// subscribers.
func (c *Client) PublishRetained(sig domain.Signal, payload string) {
	c.publish(c.topic(string(sig)), payload, true)
}

func (c *Client) publish(topic, payload string, retained bool) {
	token := c.client.Publish(topic, 0, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		c.logger.Errorf("failed to publish to %s: %v", topic, err)
	}
}
