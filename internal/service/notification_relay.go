package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sidesa/desa-admin/internal/domain/notify"
	"github.com/sidesa/desa-admin/internal/observability/metrics"
	"github.com/sidesa/desa-admin/internal/ports"
)

const (
	defaultSubscriberBuffer = 16
	defaultJournalTimeout   = 2 * time.Second
	defaultJournalBuffer    = 64
)

var (
	// ErrAlreadyConnected is returned by Connect while the relay holds a channel.
	ErrAlreadyConnected = errors.New("notification relay already connected")
	// ErrNotConnected is returned by Disconnect and Subscribe while no channel is held.
	ErrNotConnected = errors.New("notification relay not connected")
)

// NotificationRelayOptions groups dependencies for NotificationRelay.
type NotificationRelayOptions struct {
	Dialer    ports.ChannelDialer
	Extractor *MessageExtractor
	// Journal is optional; accepted notifications are appended to it by a background writer.
	Journal        ports.NotificationJournal
	JournalTimeout time.Duration
	// JournalBuffer bounds the appends waiting for the writer; the excess is not journaled.
	JournalBuffer int
	QueueCapacity  int
	Metrics        metrics.RelayRecorder
	Logger         *slog.Logger
	Now            func() time.Time
}

// NotificationRelay owns at most one push channel at a time and keeps the notifications received
// on it in a newest-first queue that any number of subscribers can follow.
type NotificationRelay struct {
	dialer         ports.ChannelDialer
	extractor      *MessageExtractor
	journal        ports.NotificationJournal
	journalTimeout time.Duration
	journalBuffer  int
	capacity       int
	metrics        metrics.RelayRecorder
	logger         *slog.Logger
	now            func() time.Time

	mu         sync.Mutex
	connecting bool
	mount      uint64
	channel    ports.Channel
	done       chan struct{}
	queue      *notify.Queue
	subs       map[uint64]chan notify.Notification
	nextSub    uint64
}

// NewNotificationRelay constructs a disconnected relay.
func NewNotificationRelay(opts NotificationRelayOptions) (*NotificationRelay, error) {
	if opts.Dialer == nil {
		return nil, errors.New("channel dialer is required")
	}
	if opts.Extractor == nil {
		ex, err := NewMessageExtractor(DefaultMessageExpr)
		if err != nil {
			return nil, err
		}
		opts.Extractor = ex
	}
	if opts.JournalTimeout <= 0 {
		opts.JournalTimeout = defaultJournalTimeout
	}
	if opts.JournalBuffer <= 0 {
		opts.JournalBuffer = defaultJournalBuffer
	}
	if opts.QueueCapacity <= 0 {
		opts.QueueCapacity = notify.DefaultQueueCapacity
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &NotificationRelay{
		dialer:         opts.Dialer,
		extractor:      opts.Extractor,
		journal:        opts.Journal,
		journalTimeout: opts.JournalTimeout,
		journalBuffer:  opts.JournalBuffer,
		capacity:       opts.QueueCapacity,
		metrics:        opts.Metrics,
		logger:         opts.Logger.With("component", "notification_relay"),
		now:            opts.Now,
		subs:           make(map[uint64]chan notify.Notification),
	}, nil
}

// Connect opens the push channel and starts a new mount with an empty queue.
func (r *NotificationRelay) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.channel != nil || r.connecting {
		r.mu.Unlock()
		return ErrAlreadyConnected
	}
	r.connecting = true
	r.mu.Unlock()

	ch, err := r.dialer.Dial(ctx)

	r.mu.Lock()
	r.connecting = false
	if err != nil {
		r.mu.Unlock()
		return fmt.Errorf("dial push channel: %w", err)
	}
	r.mount++
	mount := r.mount
	done := make(chan struct{})
	r.channel = ch
	r.done = done
	r.queue = notify.NewQueue(r.capacity)
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.SetMounted(true)
	}
	r.logger.InfoContext(ctx, "push channel opened", "mount", mount)

	var backlog chan notify.Notification
	if r.journal != nil {
		backlog = make(chan notify.Notification, r.journalBuffer)
		go r.writeJournal(mount, backlog)
	}
	go r.receive(mount, ch, done, backlog)
	return nil
}

// Disconnect closes the channel and every subscription and drops the mount's queue. When it
// returns no handler is running and none will run for this mount.
func (r *NotificationRelay) Disconnect() error {
	r.mu.Lock()
	ch := r.channel
	if ch == nil {
		r.mu.Unlock()
		return ErrNotConnected
	}
	mount := r.mount
	done := r.done
	r.channel = nil
	r.done = nil
	r.queue = nil
	for id, sub := range r.subs {
		close(sub)
		delete(r.subs, id)
	}
	r.mu.Unlock()

	err := ch.Close()
	<-done

	if r.metrics != nil {
		r.metrics.SetMounted(false)
		r.metrics.SetSubscribers(0)
	}
	r.logger.Info("push channel closed", "mount", mount)

	if err != nil {
		return fmt.Errorf("close push channel: %w", err)
	}
	return nil
}

// Connected reports whether the relay currently holds a channel.
func (r *NotificationRelay) Connected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.channel != nil
}

// Snapshot returns the queued notifications, newest first.
func (r *NotificationRelay) Snapshot() []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.queue == nil {
		return []notify.Notification{}
	}
	return r.queue.Items()
}

// Subscribe registers a receiver for notifications accepted after this call. The returned
// channel is closed by dispose or by Disconnect; dispose may be called any number of times.
// A receiver that falls buffer notifications behind misses the excess.
func (r *NotificationRelay) Subscribe(buffer int) (<-chan notify.Notification, func(), error) {
	if buffer < 1 {
		buffer = defaultSubscriberBuffer
	}

	r.mu.Lock()
	if r.channel == nil {
		r.mu.Unlock()
		return nil, nil, ErrNotConnected
	}
	r.nextSub++
	id := r.nextSub
	sub := make(chan notify.Notification, buffer)
	r.subs[id] = sub
	count := len(r.subs)
	r.mu.Unlock()

	r.setSubscribers(count)

	var once sync.Once
	dispose := func() {
		once.Do(func() {
			r.mu.Lock()
			if cur, ok := r.subs[id]; ok && cur == sub {
				close(sub)
				delete(r.subs, id)
			}
			count := len(r.subs)
			r.mu.Unlock()
			r.setSubscribers(count)
		})
	}
	return sub, dispose, nil
}

func (r *NotificationRelay) receive(mount uint64, ch ports.Channel, done chan struct{}, backlog chan notify.Notification) {
	defer close(done)
	if backlog != nil {
		defer close(backlog)
	}
	for ev := range ch.Events() {
		r.handle(mount, ev, backlog)
	}

	r.mu.Lock()
	current := r.channel == ch
	r.mu.Unlock()
	if current {
		r.logger.Warn("push channel ended while mounted", "mount", mount)
	}
}

func (r *NotificationRelay) handle(mount uint64, ev ports.ChannelEvent, backlog chan<- notify.Notification) {
	if r.metrics != nil {
		r.metrics.RecordChannelEvent(string(ev.Kind))
	}

	switch ev.Kind {
	case ports.EventConnect:
		r.logger.Debug("push channel connected", "mount", mount)
		return
	case ports.EventNotification:
	default:
		r.logger.Debug("ignoring push event", "kind", ev.Kind, "mount", mount)
		return
	}

	n, err := r.extractor.Extract(ev.Payload, r.now())
	if err != nil {
		r.logger.Warn("dropping malformed notification", "error", err, "mount", mount)
		r.recordDropped(metrics.DropMalformed, 1)
		return
	}

	r.mu.Lock()
	if r.channel == nil || mount != r.mount {
		r.mu.Unlock()
		r.recordDropped(metrics.DropDetached, 1)
		return
	}
	r.queue.Push(n)
	slow := 0
	for _, sub := range r.subs {
		select {
		case sub <- n:
		default:
			slow++
		}
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordNotification()
	}
	r.recordDropped(metrics.DropSlowSubscriber, slow)

	if backlog != nil {
		select {
		case backlog <- n:
		default:
			r.logger.Warn("journal backlog full, notification not journaled", "notification_id", n.ID, "mount", mount)
			r.recordDropped(metrics.DropJournalBacklog, 1)
		}
	}
}

// writeJournal appends the mount's notifications until the receive loop closes backlog.
func (r *NotificationRelay) writeJournal(mount uint64, backlog <-chan notify.Notification) {
	for n := range backlog {
		ctx, cancel := context.WithTimeout(context.Background(), r.journalTimeout)
		if err := r.journal.Append(ctx, n); err != nil {
			r.logger.Warn("journal append failed", "error", err, "notification_id", n.ID, "mount", mount)
		}
		cancel()
	}
}

func (r *NotificationRelay) recordDropped(reason string, n int) {
	if r.metrics == nil {
		return
	}
	for range n {
		r.metrics.RecordDropped(reason)
	}
}

func (r *NotificationRelay) setSubscribers(n int) {
	if r.metrics != nil {
		r.metrics.SetSubscribers(n)
	}
}
