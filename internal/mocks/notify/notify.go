// Package notify contains hand-written push channel doubles.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/sidesa/desa-admin/internal/ports"
)

var (
	_ ports.Channel       = (*FakeChannel)(nil)
	_ ports.ChannelDialer = (*FakeDialer)(nil)
)

// FakeChannel is an in-memory push channel. Tests inject server events with Emit.
type FakeChannel struct {
	events chan ports.ChannelEvent

	mu     sync.Mutex
	closed bool
	closes int
}

// NewFakeChannel creates an open channel with an event buffer of size buffer.
func NewFakeChannel(buffer int) *FakeChannel {
	return &FakeChannel{events: make(chan ports.ChannelEvent, buffer)}
}

func (c *FakeChannel) Events() <-chan ports.ChannelEvent {
	return c.events
}

// Emit delivers ev unless the channel is closed. It reports whether ev was delivered.
func (c *FakeChannel) Emit(ev ports.ChannelEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events <- ev
	return true
}

// EmitConnect emits a connect event.
func (c *FakeChannel) EmitConnect() bool {
	return c.Emit(ports.ChannelEvent{Kind: ports.EventConnect})
}

// EmitNotification emits a notification event with payload marshalled to JSON.
func (c *FakeChannel) EmitNotification(payload any) bool {
	raw, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	return c.Emit(ports.ChannelEvent{Kind: ports.EventNotification, Payload: raw})
}

// Close closes the event stream. Repeated calls are counted and do nothing else.
func (c *FakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.events)
	return nil
}

// Closes returns how many times Close was called.
func (c *FakeChannel) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Closed reports whether the channel has been closed.
func (c *FakeChannel) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// ErrDialRefused is returned by FakeDialer when Err is set to it.
var ErrDialRefused = errors.New("dial refused")

// FakeDialer hands out a new FakeChannel per Dial.
type FakeDialer struct {
	// Err, when set, fails every Dial.
	Err    error
	Buffer int

	mu       sync.Mutex
	channels []*FakeChannel
}

func (d *FakeDialer) Dial(ctx context.Context) (ports.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return nil, d.Err
	}
	buf := d.Buffer
	if buf < 1 {
		buf = 16
	}
	ch := NewFakeChannel(buf)
	d.channels = append(d.channels, ch)
	return ch, nil
}

// SetErr changes the dial error.
func (d *FakeDialer) SetErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Err = err
}

// Dials returns how many channels were opened.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

// Channel returns the i-th opened channel.
func (d *FakeDialer) Channel(i int) *FakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.channels[i]
}

// Last returns the most recently opened channel, or nil.
func (d *FakeDialer) Last() *FakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}
