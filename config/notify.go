package config

import (
	"fmt"
	"strings"
	"time"
)

// NotifyTransport selects the push channel implementation.
type NotifyTransport string

const (
	NotifyTransportWebSocket NotifyTransport = "websocket"
	NotifyTransportRedis     NotifyTransport = "redis"
)

// UnmarshalText implements encoding.TextUnmarshaler for NotifyTransport.
func (t *NotifyTransport) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch NotifyTransport(v) {
	case NotifyTransportWebSocket, NotifyTransportRedis:
		*t = NotifyTransport(v)
		return nil
	default:
		return fmt.Errorf("invalid NotifyTransport: %q (valid options: websocket, redis)", v)
	}
}

const defaultMessageExpr = "message || keluhan"

// NotifyConfig controls the push channel and the notification relay.
type NotifyConfig struct {
	Transport NotifyTransport `env:"NOTIFY_TRANSPORT" envDefault:"websocket"`

	// URL is the fixed push server endpoint for the websocket transport.
	URL string `env:"NOTIFY_URL" envDefault:"ws://localhost:3000/notifications"`
	// RedisChannel is the Pub/Sub channel for the redis transport.
	RedisChannel string `env:"NOTIFY_REDIS_CHANNEL" envDefault:"desa:notifications"`

	ReconnectInterval time.Duration `env:"NOTIFY_RECONNECT_INTERVAL" envDefault:"2s"`
	HandshakeTimeout  time.Duration `env:"NOTIFY_HANDSHAKE_TIMEOUT"  envDefault:"10s"`

	QueueCapacity    int `env:"NOTIFY_QUEUE_CAPACITY"    envDefault:"200"`
	SubscriberBuffer int `env:"NOTIFY_SUBSCRIBER_BUFFER" envDefault:"16"`

	// MessageExpr is a JMESPath expression selecting the message text from an event payload.
	MessageExpr string `env:"NOTIFY_MESSAGE_EXPR" envDefault:"message || keluhan"`

	// RequireAuth mounts the relay only while the session is authenticated.
	RequireAuth bool `env:"NOTIFY_REQUIRE_AUTH" envDefault:"true"`
}

// Sanitize applies guardrails to notify configuration values.
func (c *NotifyConfig) Sanitize() {
	if c.QueueCapacity < 1 {
		c.QueueCapacity = 1
	}
	if c.SubscriberBuffer < 1 {
		c.SubscriberBuffer = 1
	}
	if c.ReconnectInterval < 100*time.Millisecond {
		c.ReconnectInterval = 100 * time.Millisecond
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.MessageExpr = strings.TrimSpace(c.MessageExpr); c.MessageExpr == "" {
		c.MessageExpr = defaultMessageExpr
	}
}
