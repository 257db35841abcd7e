package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file (requires the sqlite build tag)
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// AuditEntry records one session or notification event.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At         time.Time `json:"at"`
	Event      string    `json:"event"` // session.login, session.evicted, notify.sent, ...
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username,omitempty"`
	ChatID     int64     `json:"chat_id,omitempty"`
	AlertCount int       `json:"alert_count,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"err,omitempty"`
	RefID      string    `json:"ref_id,omitempty"` // notification id
}
