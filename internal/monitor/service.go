package monitor

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/eventbus"
	"stockbot/internal/session"
	kit "stockbot/internal/transport"
	"stockbot/pkg/logx"
)

// AlertSource fetches the triggered alerts for a bearer token.
type AlertSource interface {
	TriggeredAlerts(ctx context.Context, token string) ([]api.Alert, error)
}

// Notifier delivers alert cards and session notices.
type Notifier interface {
	NotifyTriggered(ctx context.Context, to kit.ChatTarget, userID int64, username string, alerts []api.Alert) error
	SessionExpired(ctx context.Context, to kit.ChatTarget, userID int64)
}

// Config controls pass timing.
type Config struct {
	Interval time.Duration // pass period, default 2m
	Cooldown time.Duration // per-user notification gate, default 5m
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 2 * time.Minute
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 5 * time.Minute
	}
	return c
}

// Service runs monitoring passes over the session store.
type Service struct {
	mu  sync.Mutex
	cfg Config

	log      logx.Logger
	sessions *session.Store
	alerts   AlertSource
	notif    Notifier
	bus      eventbus.Bus

	// passMu serializes passes; a firing that arrives while the previous
	// pass is still walking users is dropped, not queued.
	passMu sync.Mutex

	now func() time.Time
}

func New(cfg Config, sessions *session.Store, alerts AlertSource, notif Notifier, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg.withDefaults(),
		log:      log,
		sessions: sessions,
		alerts:   alerts,
		notif:    notif,
		bus:      bus,
		now:      time.Now,
	}
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

// Interval reports the configured pass period.
func (s *Service) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Interval
}

func (s *Service) cooldown() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Cooldown
}

// RunPass executes one monitoring pass. A pass with no sessions makes no
// backend calls. Overlapping invocations are dropped.
func (s *Service) RunPass(ctx context.Context) error {
	if !s.passMu.TryLock() {
		s.log.Debug("pass still running; skipping this firing")
		return nil
	}
	defer s.passMu.Unlock()

	snap := s.sessions.Snapshot()
	if len(snap) == 0 {
		return nil
	}
	s.log.Debug("monitoring pass started", logx.Int("sessions", len(snap)))
	for _, e := range snap {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.checkUser(ctx, e)
	}
	return nil
}

// checkUser handles one user's iteration. Panics and failures stay
// contained here so remaining users are never skipped.
func (s *Service) checkUser(ctx context.Context, e session.Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic during user check",
				logx.Int64("user_id", e.UserID), logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	alerts, err := s.alerts.TriggeredAlerts(ctx, e.Session.AccessToken)
	if err != nil {
		if api.IsUnauthorized(err) {
			s.evict(ctx, e)
			return
		}
		// Transient or malformed: leave the session alone, retry next pass.
		s.log.Warn("triggered-alerts fetch failed",
			logx.Int64("user_id", e.UserID),
			logx.String("kind", string(api.KindOf(err))), logx.Err(err))
		return
	}
	if len(alerts) == 0 {
		return
	}

	now := s.now()
	// A zero LastAlertCheckAt means never notified; the first pass after
	// login may notify immediately.
	if last := e.Session.LastAlertCheckAt; !last.IsZero() && now.Sub(last) < s.cooldown() {
		s.log.Debug("notification suppressed by cool-down",
			logx.Int64("user_id", e.UserID), logx.Int("alerts", len(alerts)))
		return
	}
	chatID, ok := s.sessions.Channel(e.UserID)
	if !ok {
		s.log.Debug("no bound channel; skipping notification",
			logx.Int64("user_id", e.UserID))
		return
	}
	target := kit.ChatTarget{ChatID: chatID}
	if err := s.notif.NotifyTriggered(ctx, target, e.UserID, e.Session.Username, alerts); err != nil {
		// Delivery failed: keep the old timestamp so the next eligible
		// pass retries the notification.
		return
	}
	s.sessions.TouchAlertCheck(e.UserID, now)
}

func (s *Service) evict(ctx context.Context, e session.Entry) {
	s.sessions.Evict(e.UserID)
	s.log.Info("session evicted, backend rejected token",
		logx.Int64("user_id", e.UserID), logx.String("username", e.Session.Username))
	if s.bus != nil {
		now := s.now()
		s.bus.Publish(eventbus.Event{
			Type: eventbus.TypeSessionEvicted,
			Time: now,
			Data: eventbus.SessionEvent{
				UserID:   e.UserID,
				Username: e.Session.Username,
				Reason:   "unauthorized",
				At:       now,
			},
		})
	}
	// Best-effort direct notice; the session is gone either way.
	s.notif.SessionExpired(ctx, kit.UserTarget(e.UserID), e.UserID)
}
