package commands

import (
	"context"
	"fmt"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/notifier"
	"stockbot/pkg/msgui"
)

const stocksShownMax = 15

func (d *Deps) cmdStocks(ctx context.Context, req *Request) error {
	stocks, err := d.Backend.Stocks(ctx)
	if err != nil {
		return reply(ctx, req, failMessage(err, "fetching stock prices"))
	}
	if len(stocks) == 0 {
		return reply(ctx, req, msgui.New().
			Title("📊", "Stock Prices").
			Line("No stock data available").
			Build())
	}

	b := msgui.New().Title("📊", "Current Stock Prices").Blank()
	shown := stocks
	if len(shown) > stocksShownMax {
		shown = shown[:stocksShownMax]
	}
	for _, s := range shown {
		updated := "unknown"
		if t, ok := s.LastUpdatedTime(); ok {
			updated = t.Format("15:04")
		}
		b.RawLine("📈 " + msgui.B(s.Symbol).String() + "  " +
			msgui.Esc(notifier.FormatPrice(s.CurrentPrice.String())).String() + "  " +
			msgui.I("updated "+updated).String())
	}
	if len(stocks) > len(shown) {
		b.Blank().Line(fmt.Sprintf("Showing first %d of %d stocks", len(shown), len(stocks)))
	} else {
		b.Blank().Line(fmt.Sprintf("Showing %d stocks", len(stocks)))
	}
	return reply(ctx, req, b.Build())
}

func (d *Deps) cmdRefresh(ctx context.Context, req *Request) error {
	sess, ok := d.requireSession(ctx, req)
	if !ok {
		return nil
	}
	res, err := d.Backend.RefreshPrices(ctx, sess.AccessToken)
	if err != nil {
		if api.IsUnauthorized(err) {
			return d.dropExpired(ctx, req)
		}
		return reply(ctx, req, failMessage(err, "refreshing stock prices"))
	}

	b := msgui.New().
		Title("✅", "Refresh Complete").
		Line("Stock prices have been refreshed successfully!")
	if res.RefreshedCount > 0 {
		b.KV("Updated", fmt.Sprintf("%d stocks refreshed", res.RefreshedCount))
	}
	if res.Message != "" {
		b.KV("Details", res.Message)
	}
	b.Blank().Line("Use " + req.Prefix + "stocks to see updated prices")
	return reply(ctx, req, b.Build())
}

func (d *Deps) cmdPing(ctx context.Context, req *Request) error {
	apiStatus := "✅ connected"
	apiLatency := "n/a"
	start := time.Now()
	if _, err := d.Backend.Stocks(ctx); err != nil {
		apiStatus = "❌ " + string(api.KindOf(err))
	} else {
		apiLatency = fmt.Sprintf("%dms", time.Since(start).Milliseconds())
	}

	b := msgui.New().
		Title("🏓", "Pong!").
		KV("Bot status", "✅ online").
		KV("API status", apiStatus).
		KV("API latency", apiLatency)
	if !d.Started.IsZero() {
		b.KV("Uptime", time.Since(d.Started).Truncate(time.Second).String())
	}
	return reply(ctx, req, b.Build())
}

func (d *Deps) cmdStart(ctx context.Context, req *Request) error {
	p := req.Prefix
	return reply(ctx, req, msgui.New().
		Title("🤖", "Stock Alerts Bot").
		Line("Connects this chat to your stock alerts system.").
		Blank().
		RawLine(msgui.B("Authentication").String()).
		Code(p+"register <user> <pass> <email>").
		Code(p+"login <user> <pass>").
		Code(p+"logout").
		Code(p+"status").
		Blank().
		RawLine(msgui.B("Stock Alerts").String()).
		Code(p+"alert <stock_id> <condition> <price> [duration]").
		Code(p+"alerthelp").
		Code(p+"alerts [all|active|triggered]").
		Blank().
		RawLine(msgui.B("Stock Data").String()).
		Code(p+"stocks").
		Code(p+"refresh").
		Blank().
		RawLine(msgui.B("Information").String()).
		Code(p+"help").
		Code(p+"ping").
		Blank().
		Line("Login once and the bot notifies you automatically when alerts trigger.").
		Build())
}
