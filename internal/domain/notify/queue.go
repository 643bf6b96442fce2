package notify

// DefaultQueueCapacity bounds the in-memory queue when no capacity is configured.
const DefaultQueueCapacity = 200

// Queue is a fixed-capacity ring buffer of notifications.
// Items are exposed newest-first; when full, Push evicts the oldest entry.
// Ordering reflects arrival order only, never the Timestamp field.
// Queue is not safe for concurrent use; the owner serializes access.
type Queue struct {
	buf   []Notification
	head  int // index of the next write
	count int
}

// NewQueue creates a queue holding at most capacity entries (minimum 1).
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{buf: make([]Notification, capacity)}
}

// Push records n as the newest entry and reports whether an older entry was evicted.
func (q *Queue) Push(n Notification) bool {
	evicted := q.count == len(q.buf)
	q.buf[q.head] = n
	q.head = (q.head + 1) % len(q.buf)
	if !evicted {
		q.count++
	}
	return evicted
}

// Items returns a newest-first copy of the queue contents.
func (q *Queue) Items() []Notification {
	out := make([]Notification, 0, q.count)
	for i := 1; i <= q.count; i++ {
		idx := (q.head - i + len(q.buf)) % len(q.buf)
		out = append(out, q.buf[idx])
	}
	return out
}

// Len returns the number of stored entries.
func (q *Queue) Len() int { return q.count }

// Cap returns the maximum number of stored entries.
func (q *Queue) Cap() int { return len(q.buf) }

// Reset drops every entry.
func (q *Queue) Reset() {
	clear(q.buf)
	q.head = 0
	q.count = 0
}
