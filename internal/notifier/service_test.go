package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"stockbot/internal/api"
	kit "stockbot/internal/transport"
	"stockbot/pkg/logx"
)

type stubAdapter struct {
	fail bool
	sent int
}

func (s *stubAdapter) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (s *stubAdapter) Stop(ctx context.Context) error                         { return nil }

func (s *stubAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if s.fail {
		return kit.MessageRef{}, errors.New("send failed")
	}
	s.sent++
	return kit.MessageRef{ChatID: to.ChatID, MessageID: s.sent}, nil
}

func (s *stubAdapter) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	return nil
}

func (s *stubAdapter) DeleteMessage(ctx context.Context, ref kit.MessageRef) error { return nil }

func oneAlert() []api.Alert {
	return []api.Alert{{StockSymbol: "AAPL", Condition: ">", ThresholdPrice: json.Number("150")}}
}

func TestNotifyTriggeredRecordsHistory(t *testing.T) {
	t.Parallel()

	ad := &stubAdapter{}
	svc := New(Config{RatePerSec: 100}, ad, logx.Nop(), nil)
	ctx := context.Background()

	if err := svc.NotifyTriggered(ctx, kit.UserTarget(7), 7, "alice", oneAlert()); err != nil {
		t.Fatalf("NotifyTriggered: %v", err)
	}
	ad.fail = true
	if err := svc.NotifyTriggered(ctx, kit.UserTarget(7), 7, "alice", oneAlert()); err == nil {
		t.Fatal("expected delivery error")
	}

	hist := svc.History()
	if len(hist) != 2 {
		t.Fatalf("history len = %d, want 2", len(hist))
	}
	if hist[0].Error != "" {
		t.Errorf("first delivery error = %q, want success", hist[0].Error)
	}
	if hist[1].Error == "" {
		t.Error("second delivery should have recorded the send error")
	}
	if hist[0].ID == hist[1].ID {
		t.Error("delivery ids should be unique")
	}
	if hist[0].UserID != 7 || hist[0].AlertCount != 1 {
		t.Errorf("delivery fields = %+v", hist[0])
	}
}

func TestHistoryBounded(t *testing.T) {
	t.Parallel()

	svc := New(Config{RatePerSec: 100, HistorySize: 3}, &stubAdapter{}, logx.Nop(), nil)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		alerts := make([]api.Alert, i+1)
		for j := range alerts {
			alerts[j] = oneAlert()[0]
		}
		if err := svc.NotifyTriggered(ctx, kit.UserTarget(1), 1, "bob", alerts); err != nil {
			t.Fatalf("NotifyTriggered #%d: %v", i, err)
		}
	}

	hist := svc.History()
	if len(hist) != 3 {
		t.Fatalf("history len = %d, want 3", len(hist))
	}
	// Oldest entries are dropped first.
	for i, want := range []int{3, 4, 5} {
		if hist[i].AlertCount != want {
			t.Errorf("hist[%d].AlertCount = %d, want %d", i, hist[i].AlertCount, want)
		}
	}
}

func TestSessionExpiredBestEffort(t *testing.T) {
	t.Parallel()

	svc := New(Config{RatePerSec: 100}, &stubAdapter{fail: true}, logx.Nop(), nil)
	// Must not panic or record a delivery.
	svc.SessionExpired(context.Background(), kit.UserTarget(9), 9)
	if got := len(svc.History()); got != 0 {
		t.Fatalf("history len = %d, want 0", got)
	}
}
