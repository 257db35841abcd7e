package notifier

import (
	"fmt"
	"strings"

	"stockbot/internal/api"
	"stockbot/pkg/msgui"
)

func formatTriggered(username string, alerts []api.Alert, maxShown int) msgui.Message {
	b := msgui.New().Title("🔔", "Stock Alert Triggered")
	if username != "" {
		b.Line("Hey " + username + ", your alerts fired:")
	}
	b.Blank()

	shown := alerts
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	for _, a := range shown {
		line := "• " + msgui.B(a.Symbol()).String() + " " + msgui.Esc(describeCondition(a)).String()
		if typ := strings.TrimSpace(a.AlertType); typ != "" {
			line += " " + msgui.Esc("("+typ+")").String()
		}
		b.RawLine(line)
		if a.DurationMinutes != nil && *a.DurationMinutes > 0 {
			b.RawLine("   " + msgui.I(fmt.Sprintf("%dm window", *a.DurationMinutes)).String())
		}
		if t, ok := a.TriggeredTime(); ok {
			b.RawLine("   " + msgui.I("triggered "+t.UTC().Format("2006-01-02 15:04 MST")).String())
		}
	}
	b.Blank()
	if len(alerts) > len(shown) {
		b.Line(fmt.Sprintf("…showing %d of %d triggered alerts", len(shown), len(alerts)))
	} else {
		b.Line("Use the alerts command to review or adjust your alerts.")
	}
	return b.Build()
}

func formatExpired() msgui.Message {
	return msgui.New().
		Title("⚠️", "Session Expired").
		Line("Your session is no longer valid. Use the login command to reconnect.").
		Build()
}

// describeCondition renders "<condition> $<threshold>", e.g. "> $150.00".
func describeCondition(a api.Alert) string {
	cond := strings.TrimSpace(a.Condition)
	if cond == "" {
		cond = a.AlertType
	}
	return cond + " " + FormatPrice(a.ThresholdPrice.String())
}

// FormatPrice renders a backend decimal string as a dollar amount with
// two decimals, falling back to the raw string when it does not parse.
func FormatPrice(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "$?"
	}
	var v float64
	if _, err := fmt.Sscanf(raw, "%f", &v); err != nil {
		return "$" + raw
	}
	return fmt.Sprintf("$%.2f", v)
}
