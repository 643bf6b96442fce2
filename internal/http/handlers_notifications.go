package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sidesa/desa-admin/internal/domain/notify"
)

const (
	defaultSubscriberBuffer = 16
	defaultHeartbeat        = 25 * time.Second
	defaultHistoryLimit     = 50
	wsWriteTimeout          = 10 * time.Second
)

// NotificationHandlers serves the notification display surfaces: the queue snapshot,
// a server-sent event stream, a websocket fan-out and the journal history.
type NotificationHandlers struct {
	Feed    NotificationFeed
	Journal NotificationHistory
	// Buffer is the per-client subscription buffer.
	Buffer int
	// Heartbeat is the keep-alive interval for streams.
	Heartbeat    time.Duration
	HistoryLimit int
	Upgrader     *websocket.Upgrader
	Logger       *slog.Logger
}

type notificationList struct {
	Connected bool                  `json:"connected"`
	Items     []notify.Notification `json:"items"`
}

type wsFrame struct {
	Event string              `json:"event"`
	Data  notify.Notification `json:"data"`
}

var errRelayDisconnected = errors.New("notification relay is not connected")

// NewUpgrader returns a websocket upgrader that admits the listed origins.
// An empty list keeps gorilla's same-origin check.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	u := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	if len(allowedOrigins) > 0 {
		u.CheckOrigin = originChecker(allowedOrigins)
	}
	return u
}

func originChecker(allowed []string) func(*http.Request) bool {
	hosts := make([]string, 0, len(allowed))
	for _, o := range allowed {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, strings.ToLower(u.Host))
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(u.Host)
		return host == strings.ToLower(r.Host) || slices.Contains(hosts, host)
	}
}

func (h *NotificationHandlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *NotificationHandlers) buffer() int {
	if h.Buffer > 0 {
		return h.Buffer
	}
	return defaultSubscriberBuffer
}

func (h *NotificationHandlers) heartbeat() time.Duration {
	if h.Heartbeat > 0 {
		return h.Heartbeat
	}
	return defaultHeartbeat
}

// List returns the current queue, newest first.
// GET /notifications.
func (h *NotificationHandlers) List(w http.ResponseWriter, _ *http.Request) {
	resp := notificationList{Items: []notify.Notification{}}
	if h.Feed != nil {
		resp.Connected = h.Feed.Connected()
		if items := h.Feed.Snapshot(); items != nil {
			resp.Items = items
		}
	}
	WriteJSON(w, http.StatusOK, resp)
}

func (h *NotificationHandlers) subscribe(w http.ResponseWriter) (<-chan notify.Notification, func(), bool) {
	if h.Feed == nil {
		writeRelayUnavailable(w)
		return nil, nil, false
	}
	ch, dispose, err := h.Feed.Subscribe(h.buffer())
	if err != nil {
		writeRelayUnavailable(w)
		return nil, nil, false
	}
	return ch, dispose, true
}

func writeRelayUnavailable(w http.ResponseWriter) {
	WriteError(w, ErrorParams{
		Code:    http.StatusServiceUnavailable,
		ErrCode: "relay_disconnected",
		Err:     errRelayDisconnected,
	})
}

// Stream pushes notifications as server-sent events until the client goes away
// or the relay is disconnected.
// GET /notifications/stream.
func (h *NotificationHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	ch, dispose, ok := h.subscribe(w)
	if !ok {
		return
	}
	defer dispose()

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		h.logger().WarnContext(r.Context(), "event stream not supported", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case n, open := <-ch:
			if !open {
				_, _ = fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				_ = rc.Flush()
				return
			}
			if err := writeEvent(w, n); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, n notify.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: notification\nid: %s\ndata: %s\n\n", n.ID, data)
	return err
}

// WebSocket fans notifications out to a websocket client as
// {"event":"notification","data":{...}} text frames.
// GET /notifications/ws.
func (h *NotificationHandlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	ch, dispose, ok := h.subscribe(w)
	if !ok {
		return
	}
	defer dispose()

	upgrader := h.Upgrader
	if upgrader == nil {
		upgrader = NewUpgrader(nil)
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger().WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// The read loop only serves control frames; it ends when the client closes.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.heartbeat())
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		case n, open := <-ch:
			if !open {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "relay disconnected")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(wsFrame{Event: "notification", Data: n}); err != nil {
				h.logger().DebugContext(r.Context(), "websocket write failed", "error", err)
				return
			}
		}
	}
}

// History returns journaled notifications, most recent first.
// GET /notifications/history?limit=N.
func (h *NotificationHandlers) History(w http.ResponseWriter, r *http.Request) {
	if h.Journal == nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusNotFound,
			ErrCode: "journal_disabled",
			Err:     errors.New("notification journal is not enabled"),
		})
		return
	}

	def := h.HistoryLimit
	if def <= 0 {
		def = defaultHistoryLimit
	}
	limit, err := parseIntQuery(r, "limit", def)
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "validation", Err: err})
		return
	}

	items, err := h.Journal.Recent(r.Context(), limit)
	if err != nil {
		h.logger().ErrorContext(r.Context(), "read notification history", "error", err)
		WriteAppError(w, err)
		return
	}
	if items == nil {
		items = []notify.Notification{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
