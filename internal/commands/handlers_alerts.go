package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"stockbot/internal/api"
	"stockbot/internal/notifier"
	"stockbot/pkg/msgui"
)

const alertsShownMax = 10

var validConditions = []string{">", "<", ">=", "<=", "=="}

func validCondition(c string) bool {
	for _, v := range validConditions {
		if c == v {
			return true
		}
	}
	return false
}

func (d *Deps) cmdAlerts(ctx context.Context, req *Request) error {
	sess, ok := d.requireSession(ctx, req)
	if !ok {
		return nil
	}

	filter := "all"
	if len(req.Args) > 0 {
		filter = strings.ToLower(req.Args[0])
	}

	var (
		alerts []api.Alert
		err    error
		title  string
		empty  string
	)
	switch filter {
	case "triggered":
		title, empty = "🚨 Your Triggered Alerts", "No triggered alerts found"
		alerts, err = d.Backend.TriggeredAlerts(ctx, sess.AccessToken)
	case "active":
		title, empty = "🟢 Your Active Alerts", "No active alerts found"
		alerts, err = d.Backend.Alerts(ctx, sess.AccessToken)
		if err == nil {
			// The list endpoint returns every alert; active is a
			// client-side view.
			kept := alerts[:0]
			for _, a := range alerts {
				if a.Active() {
					kept = append(kept, a)
				}
			}
			alerts = kept
		}
	default:
		title, empty = "📈 All Your Stock Alerts", "No alerts found"
		alerts, err = d.Backend.Alerts(ctx, sess.AccessToken)
	}
	if err != nil {
		if api.IsUnauthorized(err) {
			return d.dropExpired(ctx, req)
		}
		return reply(ctx, req, failMessage(err, "fetching your alerts"))
	}

	if len(alerts) == 0 {
		return reply(ctx, req, msgui.New().
			RawLine(msgui.B(title).String()).
			Line(empty).
			Line("💡 Use "+req.Prefix+"stocks to see current stock prices").
			Build())
	}

	b := msgui.New().
		RawLine(msgui.B(title).String()).
		Line(fmt.Sprintf("Found %d alerts for %s", len(alerts), sess.Username)).
		Blank()

	shown := alerts
	if len(shown) > alertsShownMax {
		shown = shown[:alertsShownMax]
	}
	for _, a := range shown {
		status := "🟢"
		if !a.Active() {
			status = "🔴"
		}
		b.RawLine(status + " " + msgui.B(a.Symbol()).String())
		b.Line("   " + strings.TrimSpace(a.AlertType+" "+a.Condition+" "+notifier.FormatPrice(a.ThresholdPrice.String())))
		if a.DurationMinutes != nil {
			b.Line(fmt.Sprintf("   duration: %d minutes", *a.DurationMinutes))
		}
		if t, ok := a.CreatedTime(); ok {
			b.Line("   created: " + t.Format("01/02/2006"))
		}
		if t, ok := a.TriggeredTime(); ok {
			b.Line("   triggered: " + t.Format("01/02 15:04"))
		}
	}
	if len(alerts) > len(shown) {
		b.Blank().Line(fmt.Sprintf("Showing first %d of %d alerts", len(shown), len(alerts)))
	}
	return reply(ctx, req, b.Build())
}

func (d *Deps) cmdAlertCreate(ctx context.Context, req *Request) error {
	if len(req.Args) < 3 {
		return reply(ctx, req, msgui.New().
			Title("🔔", "Create a Stock Alert").
			Code(req.Prefix+"alert <stock_id> <condition> <price> [duration] [type]").
			Line("See "+req.Prefix+"alerthelp for details and examples.").
			Build())
	}

	// Validate everything before touching the session or the backend.
	stockID, err := strconv.Atoi(req.Args[0])
	if err != nil || stockID <= 0 {
		return reply(ctx, req, msgui.New().
			Title("❌", "Invalid Stock ID").
			Line("Stock id must be a positive number, got "+req.Args[0]).
			Build())
	}
	cond := req.Args[1]
	if !validCondition(cond) {
		return reply(ctx, req, msgui.New().
			Title("❌", "Invalid Condition").
			Line("Condition must be one of: "+strings.Join(validConditions, ", ")).
			Build())
	}
	price, err := strconv.ParseFloat(req.Args[2], 64)
	if err != nil || price <= 0 {
		return reply(ctx, req, msgui.New().
			Title("❌", "Invalid Price").
			Line("Price must be a positive number, got "+req.Args[2]).
			Build())
	}
	var duration *int64
	if len(req.Args) > 3 {
		v, err := strconv.ParseInt(req.Args[3], 10, 64)
		if err != nil || v <= 0 {
			return reply(ctx, req, msgui.New().
				Title("❌", "Invalid Duration").
				Line("Duration must be a positive number of minutes").
				Build())
		}
		duration = &v
	}
	alertType := "THRESHOLD"
	if len(req.Args) > 4 {
		alertType = strings.ToUpper(strings.TrimSpace(req.Args[4]))
		if alertType == "" {
			alertType = "THRESHOLD"
		}
	}

	sess, ok := d.requireSession(ctx, req)
	if !ok {
		return nil
	}

	created, err := d.Backend.CreateAlert(ctx, sess.AccessToken, api.CreateAlertRequest{
		Stock:           stockID,
		AlertType:       alertType,
		Condition:       cond,
		ThresholdPrice:  strconv.FormatFloat(price, 'f', 2, 64),
		IsActive:        true,
		DurationMinutes: duration,
	})
	if err != nil {
		if api.IsUnauthorized(err) {
			return d.dropExpired(ctx, req)
		}
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return reply(ctx, req, msgui.New().
				Title("❌", "Stock Not Found").
				Line(fmt.Sprintf("Stock with ID %d does not exist", stockID)).
				Build())
		}
		return reply(ctx, req, failMessage(err, "creating the alert"))
	}

	durDisplay := "Indefinite"
	if duration != nil {
		durDisplay = fmt.Sprintf("%d minutes", *duration)
	}
	b := msgui.New().
		Title("✅", "Alert Created Successfully").
		KV("Stock ID", strconv.Itoa(stockID)).
		KV("Condition", fmt.Sprintf("Price %s $%.2f", cond, price)).
		KV("Duration", durDisplay).
		KV("Status", "Active")
	if created.ID != 0 {
		b.KV("Alert ID", strconv.Itoa(created.ID))
	}
	b.Blank().Line("Alert will notify when the condition is met.")
	return reply(ctx, req, b.Build())
}

func (d *Deps) cmdAlertHelp(ctx context.Context, req *Request) error {
	p := req.Prefix
	return reply(ctx, req, msgui.New().
		Title("🔔", "Stock Alert Help").
		Line("Learn how to create stock price alerts").
		Blank().
		Code(p+"alert <stock_id> <condition> <price> [duration] [type]").
		Blank().
		KV("stock_id", "ID of the stock to monitor").
		KV("condition", strings.Join(validConditions, ", ")).
		KV("price", "target price (decimal)").
		KV("duration", "minutes, optional").
		KV("type", "alert type, optional (default THRESHOLD)").
		Blank().
		RawLine(msgui.B("Examples").String()).
		Code(p+"alert 1 > 150.50").
		Code(p+"alert 2 < 50.00 60").
		Code(p+"alert 3 >= 100.25 1440").
		Blank().
		Line("Without a duration the alert remains active indefinitely.").
		Build())
}
