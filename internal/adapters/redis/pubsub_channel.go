package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sidesa/desa-admin/internal/ports"
)

var _ ports.ChannelDialer = (*PubSubDialer)(nil)

// PubSubDialer opens push channels backed by a Redis pub/sub subscription.
type PubSubDialer struct {
	client  redis.UniversalClient
	channel string
	backoff time.Duration
	logger  *slog.Logger
}

// PubSubDialerOptions configures PubSubDialer.
type PubSubDialerOptions struct {
	Channel string
	// Backoff paces Receive retries after a connection error. Defaults to 2s.
	Backoff time.Duration
	Logger  *slog.Logger
}

// NewPubSubDialer creates a dialer subscribing to opts.Channel.
func NewPubSubDialer(client redis.UniversalClient, opts PubSubDialerOptions) (*PubSubDialer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Channel == "" {
		return nil, errors.New("pub/sub channel is required")
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &PubSubDialer{
		client:  client,
		channel: opts.Channel,
		backoff: opts.Backoff,
		logger:  opts.Logger.With("component", "redis_pubsub", "channel", opts.Channel),
	}, nil
}

// Dial subscribes and waits for the subscription to be confirmed.
func (d *PubSubDialer) Dial(ctx context.Context) (ports.Channel, error) {
	sub := d.client.Subscribe(ctx, d.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", d.channel, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &pubSubChannel{
		sub:     sub,
		events:  make(chan ports.ChannelEvent, 16),
		cancel:  cancel,
		done:    make(chan struct{}),
		backoff: d.backoff,
		logger:  d.logger,
	}
	go c.run(runCtx)
	return c, nil
}

type pubSubChannel struct {
	sub     *redis.PubSub
	events  chan ports.ChannelEvent
	cancel  context.CancelFunc
	done    chan struct{}
	backoff time.Duration
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

func (c *pubSubChannel) Events() <-chan ports.ChannelEvent { return c.events }

func (c *pubSubChannel) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		c.closeErr = c.sub.Close()
		<-c.done
	})
	return c.closeErr
}

// run emits a connect event for the initial subscription and for every resubscription go-redis
// performs after reconnecting.
func (c *pubSubChannel) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	if !c.emit(ctx, ports.ChannelEvent{Kind: ports.EventConnect}) {
		return
	}
	for {
		msg, err := c.sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Warn("pub/sub receive failed", "error", err, "retry_in", c.backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}

		var ev ports.ChannelEvent
		switch m := msg.(type) {
		case *redis.Subscription:
			if m.Kind != "subscribe" {
				continue
			}
			ev = ports.ChannelEvent{Kind: ports.EventConnect}
		case *redis.Message:
			ev = ports.ChannelEvent{Kind: ports.EventNotification, Payload: payload(m.Payload)}
		default:
			continue
		}
		if !c.emit(ctx, ev) {
			return
		}
	}
}

func (c *pubSubChannel) emit(ctx context.Context, ev ports.ChannelEvent) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// payload passes JSON through and wraps plain text as a JSON string.
func payload(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
