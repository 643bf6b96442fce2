package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	ErrNotificationRequired = errors.New("notification id and message are required")
	ErrLimitOutOfRange      = errors.New("limit must be positive")
)
