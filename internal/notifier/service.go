package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"stockbot/internal/api"
	"stockbot/internal/eventbus"
	kit "stockbot/internal/transport"
	"stockbot/pkg/logx"
	"stockbot/pkg/msgui"
)

// Config controls notification delivery.
type Config struct {
	RatePerSec     int // global send budget, default 3
	MaxAlertsShown int // alerts rendered per message, default 5
	HistorySize    int // recent deliveries kept in memory, default 50
}

// Delivery is one entry in the in-memory delivery history.
type Delivery struct {
	ID         string
	UserID     int64
	ChatID     int64
	AlertCount int
	At         time.Time
	Error      string // empty on success
}

// Service sends triggered-alert cards and session notices.
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log     logx.Logger
	adapter kit.Adapter
	bus     eventbus.Bus

	cfg     Config
	limiter *rate.Limiter
	hist    []Delivery
}

func New(cfg Config, adapter kit.Adapter, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 3
	}
	if cfg.MaxAlertsShown <= 0 {
		cfg.MaxAlertsShown = 5
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	s.cfg = cfg
	if len(s.hist) > cfg.HistorySize {
		s.hist = append([]Delivery(nil), s.hist[len(s.hist)-cfg.HistorySize:]...)
	}
	// Token bucket: burst = rate per sec, so short spikes don't block too hard.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) snapshot() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// NotifyTriggered renders the triggered alerts as one card and sends it
// to the user's bound chat. It returns only after the send has succeeded
// or failed, so the caller can decide whether to advance its bookkeeping.
func (s *Service) NotifyTriggered(ctx context.Context, to kit.ChatTarget, userID int64, username string, alerts []api.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	cfg, limiter := s.snapshot()
	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	id := uuid.NewString()
	msg := formatTriggered(username, alerts, cfg.MaxAlertsShown)
	_, err := msg.Send(ctx, s.adapter, to)
	if err != nil {
		s.log.Warn("alert notification failed",
			logx.String("id", id), logx.Int64("user_id", userID),
			logx.Int("alerts", len(alerts)), logx.Err(err))
		s.record(Delivery{
			ID: id, UserID: userID, ChatID: to.ChatID,
			AlertCount: len(alerts), At: time.Now(), Error: err.Error(),
		})
		s.publish(eventbus.TypeNotifyFailed, eventbus.NotifyEvent{
			ID: id, UserID: userID, ChatID: to.ChatID,
			AlertCount: len(alerts), Error: err.Error(), At: time.Now(),
		})
		return err
	}
	s.log.Info("alert notification sent",
		logx.String("id", id), logx.Int64("user_id", userID),
		logx.Int("alerts", len(alerts)))
	s.record(Delivery{
		ID: id, UserID: userID, ChatID: to.ChatID,
		AlertCount: len(alerts), At: time.Now(),
	})
	s.publish(eventbus.TypeNotifySent, eventbus.NotifyEvent{
		ID: id, UserID: userID, ChatID: to.ChatID,
		AlertCount: len(alerts), At: time.Now(),
	})
	return nil
}

// Notify sends an arbitrary card through the shared rate limiter.
func (s *Service) Notify(ctx context.Context, to kit.ChatTarget, msg msgui.Message) error {
	_, limiter := s.snapshot()
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := msg.Send(ctx, s.adapter, to)
	return err
}

func (s *Service) record(d Delivery) {
	s.mu.Lock()
	s.hist = append(s.hist, d)
	if n := s.cfg.HistorySize; len(s.hist) > n {
		s.hist = append([]Delivery(nil), s.hist[len(s.hist)-n:]...)
	}
	s.mu.Unlock()
}

// History returns the retained deliveries, oldest first.
func (s *Service) History() []Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Delivery, len(s.hist))
	copy(out, s.hist)
	return out
}

// SessionExpired tells a user their backend session was dropped.
// Best-effort: the session is already gone whether or not this lands.
func (s *Service) SessionExpired(ctx context.Context, to kit.ChatTarget, userID int64) {
	if err := s.Notify(ctx, to, formatExpired()); err != nil {
		s.log.Debug("session-expired notice failed",
			logx.Int64("user_id", userID), logx.Err(err))
	}
}

func (s *Service) publish(typ string, data eventbus.NotifyEvent) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: data.At, Data: data})
}
