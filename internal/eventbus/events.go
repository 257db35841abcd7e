package eventbus

import "time"

// Event types published by the bot. The audit recorder persists these;
// anything else may subscribe read-only.
const (
	TypeSessionLogin   = "session.login"
	TypeSessionLogout  = "session.logout"
	TypeSessionEvicted = "session.evicted"
	TypeNotifySent     = "notify.sent"
	TypeNotifyFailed   = "notify.failed"
)

// SessionEvent describes a session lifecycle change.
type SessionEvent struct {
	UserID   int64
	Username string
	ChatID   int64
	Reason   string // evictions only: "logout", "unauthorized"
	At       time.Time
}

// NotifyEvent describes one notification delivery attempt.
type NotifyEvent struct {
	ID         string
	UserID     int64
	ChatID     int64
	AlertCount int
	Error      string
	At         time.Time
}
