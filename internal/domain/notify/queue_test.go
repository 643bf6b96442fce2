package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messages(items []Notification) []string {
	out := make([]string, 0, len(items))
	for _, n := range items {
		out = append(out, n.Message)
	}
	return out
}

func TestQueue_NewestFirst(t *testing.T) {
	q := NewQueue(10)
	now := time.Now()

	for i, msg := range []string{"A", "B", "C"} {
		q.Push(New(msg, time.Time{}, now))
		assert.Equal(t, i+1, q.Len(), "queue grows by exactly one per event")
	}

	assert.Equal(t, []string{"C", "B", "A"}, messages(q.Items()))
}

func TestQueue_ArrivalOrderIgnoresTimestamp(t *testing.T) {
	q := NewQueue(4)
	base := time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

	q.Push(New("late event", base.Add(time.Hour), base))
	q.Push(New("early event", base.Add(-time.Hour), base))

	assert.Equal(t, []string{"early event", "late event"}, messages(q.Items()))
}

func TestQueue_DuplicatesAreKept(t *testing.T) {
	q := NewQueue(4)
	now := time.Now()
	q.Push(New("same", time.Time{}, now))
	q.Push(New("same", time.Time{}, now))

	assert.Equal(t, 2, q.Len())
}

func TestQueue_DropOldestWhenFull(t *testing.T) {
	q := NewQueue(3)
	now := time.Now()

	for _, msg := range []string{"1", "2", "3"} {
		require.False(t, q.Push(New(msg, time.Time{}, now)))
	}
	assert.True(t, q.Push(New("4", time.Time{}, now)))
	assert.True(t, q.Push(New("5", time.Time{}, now)))

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"5", "4", "3"}, messages(q.Items()))
}

func TestQueue_ResetAndMinimumCapacity(t *testing.T) {
	q := NewQueue(0)
	assert.Equal(t, 1, q.Cap())

	now := time.Now()
	q.Push(New("x", time.Time{}, now))
	q.Push(New("y", time.Time{}, now))
	assert.Equal(t, []string{"y"}, messages(q.Items()))

	q.Reset()
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.Items())
}

func TestNew_DefaultsTimestampToReceipt(t *testing.T) {
	received := time.Date(2025, 3, 12, 10, 5, 0, 0, time.UTC)
	n := New("Surat selesai", time.Time{}, received)

	assert.Equal(t, received, n.Timestamp)
	assert.Equal(t, received, n.ReceivedAt)
	assert.NotEqual(t, [16]byte{}, [16]byte(n.ID))
}
