package storage

import (
	"context"
	"time"

	"stockbot/internal/eventbus"
	"stockbot/pkg/logx"
)

// Recorder subscribes to the event bus and persists session and
// notification events as audit entries. A nil store disables it.
type Recorder struct {
	store Store
	bus   eventbus.Bus
	log   logx.Logger
}

func NewRecorder(store Store, bus eventbus.Bus, log logx.Logger) *Recorder {
	return &Recorder{store: store, bus: bus, log: log}
}

// Run consumes bus events until ctx is cancelled. Append failures are
// logged and dropped; auditing must never stall the bot.
func (r *Recorder) Run(ctx context.Context) error {
	if r.store == nil {
		<-ctx.Done()
		return nil
	}
	ch, cancel := r.bus.Subscribe(64)
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			e, ok := toEntry(ev)
			if !ok {
				continue
			}
			appendCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			if err := r.store.Append(appendCtx, e); err != nil {
				r.log.Warn("audit: append failed",
					logx.String("event", e.Event), logx.Err(err))
			}
			done()
		}
	}
}

func toEntry(ev eventbus.Event) (AuditEntry, bool) {
	switch ev.Type {
	case eventbus.TypeSessionLogin, eventbus.TypeSessionLogout, eventbus.TypeSessionEvicted:
		se, ok := ev.Data.(eventbus.SessionEvent)
		if !ok {
			return AuditEntry{}, false
		}
		return AuditEntry{
			At:       ev.Time,
			Event:    ev.Type,
			UserID:   se.UserID,
			Username: se.Username,
			ChatID:   se.ChatID,
			Reason:   se.Reason,
		}, true
	case eventbus.TypeNotifySent, eventbus.TypeNotifyFailed:
		ne, ok := ev.Data.(eventbus.NotifyEvent)
		if !ok {
			return AuditEntry{}, false
		}
		return AuditEntry{
			At:         ev.Time,
			Event:      ev.Type,
			UserID:     ne.UserID,
			ChatID:     ne.ChatID,
			AlertCount: ne.AlertCount,
			Error:      ne.Error,
			RefID:      ne.ID,
		}, true
	default:
		return AuditEntry{}, false
	}
}
