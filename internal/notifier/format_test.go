package notifier

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"stockbot/internal/api"
)

func alert(symbol, cond, threshold string) api.Alert {
	return api.Alert{
		StockSymbol:    symbol,
		Condition:      cond,
		ThresholdPrice: json.Number(threshold),
	}
}

func TestFormatTriggeredCard(t *testing.T) {
	t.Parallel()

	msg := formatTriggered("dave", []api.Alert{alert("AAPL", ">", "150.0")}, 5)
	if !strings.Contains(msg.Text, "AAPL") {
		t.Fatalf("card missing symbol: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "&gt; $150.00") {
		t.Fatalf("card missing condition: %q", msg.Text)
	}
	if !strings.Contains(msg.Text, "dave") {
		t.Fatalf("card missing username: %q", msg.Text)
	}
	if msg.Opt == nil || msg.Opt.ParseMode != "HTML" {
		t.Fatal("expected HTML parse mode")
	}
}

func TestFormatTriggeredCapsAlerts(t *testing.T) {
	t.Parallel()

	var alerts []api.Alert
	for i := 0; i < 8; i++ {
		alerts = append(alerts, alert(fmt.Sprintf("SYM%d", i), "<", "10"))
	}
	msg := formatTriggered("", alerts, 5)
	if !strings.Contains(msg.Text, "showing 5 of 8") {
		t.Fatalf("missing overflow footer: %q", msg.Text)
	}
	if strings.Contains(msg.Text, "SYM5") {
		t.Fatalf("alert past the cap was rendered: %q", msg.Text)
	}
}

func TestFormatPrice(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{"150.0", "$150.00"},
		{"150", "$150.00"},
		{"0.515", "$0.52"},
		{"garbage", "$garbage"},
		{"", "$?"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.raw); got != tt.want {
			t.Errorf("FormatPrice(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
