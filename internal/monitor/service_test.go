package monitor

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/eventbus"
	"stockbot/internal/notifier"
	"stockbot/internal/session"
	kit "stockbot/internal/transport"
	"stockbot/pkg/logx"
)

type fakeAlerts struct {
	mu      sync.Mutex
	results map[string][]api.Alert
	errs    map[string]error
	calls   map[string]int
	total   int
	gate    chan struct{} // when set, blocks each fetch until closed
}

func newFakeAlerts() *fakeAlerts {
	return &fakeAlerts{
		results: map[string][]api.Alert{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeAlerts) TriggeredAlerts(_ context.Context, token string) ([]api.Alert, error) {
	f.mu.Lock()
	f.calls[token]++
	f.total++
	gate := f.gate
	res, err := f.results[token], f.errs[token]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return res, err
}

func (f *fakeAlerts) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

type notifyCall struct {
	to     kit.ChatTarget
	userID int64
	alerts []api.Alert
}

type fakeNotifier struct {
	mu      sync.Mutex
	calls   []notifyCall
	expired []int64
	err     error
}

func (f *fakeNotifier) NotifyTriggered(_ context.Context, to kit.ChatTarget, userID int64, _ string, alerts []api.Alert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, notifyCall{to: to, userID: userID, alerts: alerts})
	return nil
}

func (f *fakeNotifier) SessionExpired(_ context.Context, _ kit.ChatTarget, userID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expired = append(f.expired, userID)
}

func (f *fakeNotifier) notifyCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func triggered(symbol string) []api.Alert {
	return []api.Alert{{
		StockSymbol:    symbol,
		Condition:      ">",
		ThresholdPrice: json.Number("150.00"),
	}}
}

type fixture struct {
	svc      *Service
	store    *session.Store
	alerts   *fakeAlerts
	notif    *fakeNotifier
	now      time.Time
	baseTime time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    session.NewStore(),
		alerts:   newFakeAlerts(),
		notif:    &fakeNotifier{},
		baseTime: time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC),
	}
	f.now = f.baseTime
	f.svc = New(Config{}, f.store, f.alerts, f.notif, logx.Nop(), nil)
	f.svc.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) login(t *testing.T, userID int64, token string) {
	t.Helper()
	if err := f.store.Put(session.Session{
		UserID:      userID,
		AccessToken: token,
		Username:    "user",
		ConnectedAt: f.baseTime,
	}); err != nil {
		t.Fatalf("put session: %v", err)
	}
	f.store.BindChannel(userID, userID*10)
}

func (f *fixture) pass(t *testing.T) {
	t.Helper()
	if err := f.svc.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}
}

func TestPassWithNoSessionsMakesNoCalls(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.pass(t)
	if n := f.alerts.totalCalls(); n != 0 {
		t.Fatalf("backend calls = %d, want 0", n)
	}
}

func TestFirstPassNotifiesImmediately(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	f.alerts.results["tok"] = triggered("AAPL")

	f.pass(t)

	if n := f.notif.notifyCount(); n != 1 {
		t.Fatalf("notify count = %d, want 1", n)
	}
	sess, _ := f.store.Get(1)
	if !sess.LastAlertCheckAt.Equal(f.now) {
		t.Fatalf("LastAlertCheckAt = %v, want %v", sess.LastAlertCheckAt, f.now)
	}
}

func TestCooldownSuppressesSecondPass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	f.alerts.results["tok"] = triggered("AAPL")

	f.pass(t)
	first := f.now

	f.now = f.now.Add(120 * time.Second)
	f.pass(t)

	if n := f.notif.notifyCount(); n != 1 {
		t.Fatalf("notify count = %d, want 1 (suppressed)", n)
	}
	sess, _ := f.store.Get(1)
	if !sess.LastAlertCheckAt.Equal(first) {
		t.Fatalf("LastAlertCheckAt moved during cool-down: %v", sess.LastAlertCheckAt)
	}
}

func TestRenotifyAfterCooldown(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	f.alerts.results["tok"] = triggered("AAPL")

	f.pass(t)
	f.now = f.now.Add(301 * time.Second)
	f.pass(t)

	if n := f.notif.notifyCount(); n != 2 {
		t.Fatalf("notify count = %d, want 2", n)
	}
	sess, _ := f.store.Get(1)
	if !sess.LastAlertCheckAt.Equal(f.now) {
		t.Fatalf("LastAlertCheckAt = %v, want %v", sess.LastAlertCheckAt, f.now)
	}
}

func TestUnauthorizedEvictsSession(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	f.alerts.errs["tok"] = &api.Error{Kind: api.KindUnauthorized, Status: 401}

	f.pass(t)

	if _, ok := f.store.Get(1); ok {
		t.Fatal("session should be evicted")
	}
	if _, ok := f.store.Channel(1); ok {
		t.Fatal("channel binding should be removed")
	}
	f.notif.mu.Lock()
	expired := append([]int64(nil), f.notif.expired...)
	f.notif.mu.Unlock()
	if len(expired) != 1 || expired[0] != 1 {
		t.Fatalf("expired notices = %v, want [1]", expired)
	}

	// Subsequent passes no longer query the evicted user.
	before := f.alerts.totalCalls()
	f.pass(t)
	if f.alerts.totalCalls() != before {
		t.Fatal("evicted user was queried again")
	}
}

func TestTransientFailureLeavesSessionUntouched(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	f.alerts.errs["tok"] = &api.Error{Kind: api.KindTimeout}

	f.pass(t)

	if _, ok := f.store.Get(1); !ok {
		t.Fatal("session must survive a transient failure")
	}
	if n := f.notif.notifyCount(); n != 0 {
		t.Fatalf("notify count = %d, want 0", n)
	}
}

func TestPerUserIsolation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "dead")
	f.login(t, 2, "live")
	f.alerts.errs["dead"] = &api.Error{Kind: api.KindTimeout}
	f.alerts.results["live"] = triggered("TSLA")

	f.pass(t)

	if n := f.notif.notifyCount(); n != 1 {
		t.Fatalf("notify count = %d, want 1", n)
	}
	f.notif.mu.Lock()
	got := f.notif.calls[0].userID
	f.notif.mu.Unlock()
	if got != 2 {
		t.Fatalf("notified user = %d, want 2", got)
	}
	if _, ok := f.store.Get(1); !ok {
		t.Fatal("timed-out user's session must be untouched")
	}
}

func TestZeroAlertsIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	f.alerts.results["tok"] = nil

	f.pass(t)

	if n := f.notif.notifyCount(); n != 0 {
		t.Fatalf("notify count = %d, want 0", n)
	}
	sess, _ := f.store.Get(1)
	if !sess.LastAlertCheckAt.IsZero() {
		t.Fatal("LastAlertCheckAt must stay unset on empty result")
	}
}

func TestNoBoundChannelSkipsWithoutStateChange(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	if err := f.store.Put(session.Session{UserID: 1, AccessToken: "tok"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	f.alerts.results["tok"] = triggered("AAPL")

	f.pass(t)

	if n := f.notif.notifyCount(); n != 0 {
		t.Fatalf("notify count = %d, want 0", n)
	}
	sess, _ := f.store.Get(1)
	if !sess.LastAlertCheckAt.IsZero() {
		t.Fatal("cool-down must not advance when no channel is bound")
	}
}

func TestDeliveryFailureKeepsTimestamp(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	f.alerts.results["tok"] = triggered("AAPL")
	f.notif.err = context.DeadlineExceeded

	f.pass(t)

	sess, _ := f.store.Get(1)
	if !sess.LastAlertCheckAt.IsZero() {
		t.Fatal("LastAlertCheckAt must not advance on delivery failure")
	}

	// Next pass retries once delivery works again.
	f.notif.mu.Lock()
	f.notif.err = nil
	f.notif.mu.Unlock()
	f.pass(t)
	if n := f.notif.notifyCount(); n != 1 {
		t.Fatalf("notify count = %d, want 1", n)
	}
}

func TestOverlappingPassIsDropped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.login(t, 1, "tok")
	gate := make(chan struct{})
	f.alerts.mu.Lock()
	f.alerts.gate = gate
	f.alerts.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = f.svc.RunPass(context.Background())
	}()

	// Wait until the first pass is in flight, then fire again.
	deadline := time.Now().Add(2 * time.Second)
	for f.alerts.totalCalls() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first pass never reached the backend")
		}
		time.Sleep(time.Millisecond)
	}
	f.pass(t) // must return immediately without a second fetch

	if n := f.alerts.totalCalls(); n != 1 {
		t.Fatalf("backend calls = %d, want 1 (overlap dropped)", n)
	}
	close(gate)
	<-done
}

type captureAdapter struct {
	mu    sync.Mutex
	texts []string
}

func (c *captureAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (c *captureAdapter) Stop(context.Context) error                     { return nil }
func (c *captureAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(c.texts)}, nil
}
func (c *captureAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}
func (c *captureAdapter) DeleteMessage(context.Context, kit.MessageRef) error { return nil }

// End-to-end through the real notifier: a session last checked at T0,
// with an alert still triggered at T0+400s, produces one message naming
// the symbol and condition and advances the timestamp.
func TestTriggeredAlertDeliveredAfterWindow(t *testing.T) {
	t.Parallel()

	store := session.NewStore()
	alerts := newFakeAlerts()
	ad := &captureAdapter{}
	notif := notifier.New(notifier.Config{RatePerSec: 100}, ad, logx.Nop(), eventbus.New())

	svc := New(Config{}, store, alerts, notif, logx.Nop(), nil)
	t0 := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	now := t0.Add(400 * time.Second)
	svc.now = func() time.Time { return now }

	if err := store.Put(session.Session{UserID: 7, AccessToken: "tok", Username: "dave"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if !store.TouchAlertCheck(7, t0) {
		t.Fatal("seed timestamp")
	}
	store.BindChannel(7, 70)
	alerts.results["tok"] = triggered("AAPL")

	if err := svc.RunPass(context.Background()); err != nil {
		t.Fatalf("pass: %v", err)
	}

	ad.mu.Lock()
	texts := append([]string(nil), ad.texts...)
	ad.mu.Unlock()
	if len(texts) != 1 {
		t.Fatalf("messages sent = %d, want 1", len(texts))
	}
	if !strings.Contains(texts[0], "AAPL") || !strings.Contains(texts[0], "&gt; $150.00") {
		t.Fatalf("unexpected message: %q", texts[0])
	}
	sess, _ := store.Get(7)
	if !sess.LastAlertCheckAt.Equal(now) {
		t.Fatalf("LastAlertCheckAt = %v, want %v", sess.LastAlertCheckAt, now)
	}
}
