// Package wschannel implements the notification push channel over a WebSocket connection.
// Frames are JSON envelopes of the form {"event": "notification", "data": {...}}.
package wschannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sidesa/desa-admin/internal/ports"
	"golang.org/x/time/rate"
)

var _ ports.ChannelDialer = (*Dialer)(nil)

// TokenFunc supplies the bearer token sent with each handshake. An empty token sends no header.
type TokenFunc func(ctx context.Context) (string, error)

// Options configures Dialer.
type Options struct {
	URL               string
	Token             TokenFunc
	HandshakeTimeout  time.Duration
	ReconnectInterval time.Duration
	Logger            *slog.Logger
}

// Dialer opens WebSocket push channels that reconnect on their own after network loss.
type Dialer struct {
	url       string
	token     TokenFunc
	ws        *websocket.Dialer
	reconnect time.Duration
	logger    *slog.Logger
}

// NewDialer validates opts and returns a Dialer.
func NewDialer(opts Options) (*Dialer, error) {
	if opts.URL == "" {
		return nil, errors.New("websocket URL is required")
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.ReconnectInterval <= 0 {
		opts.ReconnectInterval = 2 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dialer{
		url:   opts.URL,
		token: opts.Token,
		ws: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		reconnect: opts.ReconnectInterval,
		logger:    opts.Logger.With("component", "ws_channel"),
	}, nil
}

// Dial connects once and returns a channel that keeps reconnecting until closed.
func (d *Dialer) Dial(ctx context.Context) (ports.Channel, error) {
	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &channel{
		dialer:  d,
		events:  make(chan ports.ChannelEvent, 16),
		cancel:  cancel,
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Every(d.reconnect), 1),
		conn:    conn,
	}
	go c.run(runCtx)
	return c, nil
}

func (d *Dialer) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if d.token != nil {
		token, err := d.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("websocket token: %w", err)
		}
		if token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}
	conn, resp, err := d.ws.DialContext(ctx, d.url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", d.url, err)
	}
	return conn, nil
}

type channel struct {
	dialer  *Dialer
	events  chan ports.ChannelEvent
	cancel  context.CancelFunc
	done    chan struct{}
	limiter *rate.Limiter

	mu   sync.Mutex
	conn *websocket.Conn

	closeOnce sync.Once
}

func (c *channel) Events() <-chan ports.ChannelEvent { return c.events }

func (c *channel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.mu.Lock()
		if c.conn != nil {
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			err = c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
		<-c.done
	})
	return err
}

func (c *channel) run(ctx context.Context) {
	defer close(c.done)
	defer close(c.events)

	// The initial connection consumes the limiter's burst so reconnects are paced from here.
	c.limiter.Allow()
	conn := c.current()
	for {
		if conn == nil {
			var ok bool
			if conn, ok = c.redial(ctx); !ok {
				return
			}
		}
		if !c.emit(ctx, ports.ChannelEvent{Kind: ports.EventConnect}) {
			return
		}
		c.read(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		c.drop(conn)
		conn = nil
	}
}

// read forwards frames from conn until the connection fails or ctx is done.
func (c *channel) read(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.dialer.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		ev, ok := decodeFrame(data)
		if !ok {
			continue
		}
		if !c.emit(ctx, ev) {
			return
		}
	}
}

func (c *channel) redial(ctx context.Context) (*websocket.Conn, bool) {
	for {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, false
		}
		conn, err := c.dialer.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, false
			}
			c.dialer.logger.Warn("websocket reconnect failed", "error", err)
			continue
		}
		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			return nil, false
		}
		c.conn = conn
		c.mu.Unlock()
		c.dialer.logger.Info("websocket reconnected")
		return conn, true
	}
}

func (c *channel) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *channel) drop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close()
}

func (c *channel) emit(ctx context.Context, ev ports.ChannelEvent) bool {
	select {
	case c.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// decodeFrame maps a text frame to a channel event. Frames without an event name are treated as
// bare notification payloads; other named events are ignored.
func decodeFrame(data []byte) (ports.ChannelEvent, bool) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
		if !json.Valid(data) {
			return ports.ChannelEvent{}, false
		}
		return ports.ChannelEvent{Kind: ports.EventNotification, Payload: json.RawMessage(data)}, true
	}
	if ports.EventKind(f.Event) != ports.EventNotification {
		return ports.ChannelEvent{}, false
	}
	return ports.ChannelEvent{Kind: ports.EventNotification, Payload: f.Data}, true
}
