package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sidesa/desa-admin/internal/domain/notify"
)

// DefaultMessageExpr selects the message text of a push event payload.
const DefaultMessageExpr = "message || keluhan"

// ErrMalformedPayload is returned for notification payloads without usable message text.
var ErrMalformedPayload = errors.New("notification payload has no message")

// MessageExtractor turns a raw notification payload into a Notification.
type MessageExtractor struct {
	expr   string
	search func(data any) (any, error)
	policy *bluemonday.Policy
}

// NewMessageExtractor compiles expr (DefaultMessageExpr when empty).
func NewMessageExtractor(expr string) (*MessageExtractor, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultMessageExpr
	}
	compiled, err := jmespath.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile message expression %q: %w", expr, err)
	}
	return &MessageExtractor{
		expr:   expr,
		search: compiled.Search,
		policy: bluemonday.StrictPolicy(),
	}, nil
}

// Expression returns the compiled JMESPath expression.
func (e *MessageExtractor) Expression() string {
	return e.expr
}

// Extract decodes payload, selects and sanitises the message and parses the optional RFC 3339
// timestamp. A missing or unparsable timestamp becomes receivedAt. A bare JSON string payload is
// taken as the message itself.
func (e *MessageExtractor) Extract(payload json.RawMessage, receivedAt time.Time) (notify.Notification, error) {
	var data any
	if err := json.Unmarshal(payload, &data); err != nil {
		return notify.Notification{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var raw any
	var timestamp time.Time
	switch v := data.(type) {
	case string:
		raw = v
	case map[string]any:
		selected, err := e.search(v)
		if err != nil {
			return notify.Notification{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		raw = selected
		timestamp = parseTimestamp(v["timestamp"])
	default:
		return notify.Notification{}, ErrMalformedPayload
	}

	text, ok := raw.(string)
	if !ok {
		return notify.Notification{}, ErrMalformedPayload
	}
	message := strings.TrimSpace(html.UnescapeString(e.policy.Sanitize(text)))
	if message == "" {
		return notify.Notification{}, ErrMalformedPayload
	}

	return notify.New(message, timestamp, receivedAt), nil
}

func parseTimestamp(v any) time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return ts
}
