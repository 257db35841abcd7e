package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/eventbus"
	"stockbot/internal/session"
	"stockbot/pkg/logx"
	"stockbot/pkg/msgui"
)

func (d *Deps) cmdRegister(ctx context.Context, req *Request) error {
	if len(req.Args) < 3 {
		return reply(ctx, req, msgui.New().
			Title("🔐", "Register for Stock Alerts").
			Line("Usage: "+req.Prefix+"register <username> <password> <email>").
			Blank().
			Line("This creates a new account in the stock alerts system.").
			Line("⚠️ Your registration message will be deleted for security.").
			Build())
	}
	username, password, email := req.Args[0], req.Args[1], req.Args[2]
	d.scrubCredentialMessage(ctx, req)

	if err := d.Backend.Register(ctx, username, password, email); err != nil {
		return reply(ctx, req, failMessage(err, "registering your account"))
	}
	return reply(ctx, req, msgui.New().
		Title("✅", "Registration Successful").
		Line("You can now log in: "+req.Prefix+"login <username> <password>").
		Build())
}

func (d *Deps) cmdLogin(ctx context.Context, req *Request) error {
	if len(req.Args) < 2 {
		return reply(ctx, req, msgui.New().
			Title("🔐", "Login to Stock Alerts").
			Line("Usage: "+req.Prefix+"login <username> <password>").
			Blank().
			Line("This connects your chat account to the stock alerts system.").
			Line("⚠️ Your login message will be deleted for security.").
			Build())
	}
	username, password := req.Args[0], req.Args[1]
	d.scrubCredentialMessage(ctx, req)

	creds, err := d.Backend.Login(ctx, username, password)
	if err != nil {
		if api.KindOf(err) == api.KindUnauthorized || api.KindOf(err) == api.KindClient {
			detail := "Login failed."
			var apiErr *api.Error
			if errors.As(err, &apiErr) && apiErr.Detail != "" {
				detail = apiErr.Detail
			}
			return reply(ctx, req, msgui.New().
				Title("❌", "Login Failed").
				Line(detail).
				Blank().
				Line("Please check your username and password.").
				Build())
		}
		return reply(ctx, req, failMessage(err, "logging in"))
	}

	now := time.Now()
	if err := d.Sessions.Put(session.Session{
		UserID:       req.FromID,
		AccessToken:  creds.Access,
		RefreshToken: creds.Refresh,
		Username:     username,
		ConnectedAt:  now,
	}); err != nil {
		d.Log.Error("session store rejected login", logx.Int64("user_id", req.FromID), logx.Err(err))
		return reply(ctx, req, failMessage(err, "storing your session"))
	}
	// Alerts go to wherever the user logged in from.
	d.Sessions.BindChannel(req.FromID, req.Chat.ChatID)
	d.publishSession(eventbus.TypeSessionLogin, req.FromID, username, req.Chat.ChatID, "")
	req.Logger.Info("user logged in", logx.String("username", username))

	b := msgui.New().
		Title("✅", "Successfully Connected!").
		Line("Welcome "+username+"! Alert notifications will be sent to this chat.").
		Blank().
		KV("Next", req.Prefix+"alerts to view your alerts").
		KV("Prices", req.Prefix+"stocks for current prices")

	// Summary is decoration; a failure here must not fail the login.
	if sum, err := d.Backend.AlertSummary(ctx, creds.Access); err == nil {
		b.Blank().
			RawLine(msgui.B("Your Alert Summary").String()).
			KV("Active alerts", fmt.Sprintf("%d", sum.ActiveCount)).
			KV("Triggered alerts", fmt.Sprintf("%d", sum.TriggeredCount))
	} else {
		req.Logger.Debug("alert summary unavailable after login", logx.Err(err))
	}
	return reply(ctx, req, b.Build())
}

func (d *Deps) cmdLogout(ctx context.Context, req *Request) error {
	sess, ok := d.Sessions.Get(req.FromID)
	if !ok {
		return reply(ctx, req, msgui.New().
			Title("ℹ️", "Not Connected").
			Line("You are not currently connected to any account.").
			Build())
	}
	d.Sessions.Evict(req.FromID)
	d.publishSession(eventbus.TypeSessionLogout, req.FromID, sess.Username, req.Chat.ChatID, "logout")
	req.Logger.Info("user logged out", logx.String("username", sess.Username))
	return reply(ctx, req, msgui.New().
		Title("👋", "Disconnected").
		Line(sess.Username+" has been disconnected successfully.").
		Line("You will no longer receive alert notifications.").
		Build())
}

func (d *Deps) cmdStatus(ctx context.Context, req *Request) error {
	b := msgui.New().Title("🔍", "System Status")

	sess, ok := d.Sessions.Get(req.FromID)
	if !ok {
		b.KV("Connection", "not connected").
			Line("Use " + req.Prefix + "login <username> <password> to connect.").
			Blank().
			KV("API endpoint", d.BaseURL).
			KV("Prefix", req.Prefix)
		return reply(ctx, req, b.Build())
	}

	b.KV("Connected as", sess.Username).
		KV("Since", sess.ConnectedAt.UTC().Format("2006-01-02 15:04 MST"))

	if sum, err := d.Backend.AlertSummary(ctx, sess.AccessToken); err == nil {
		b.KV("Active alerts", fmt.Sprintf("%d", sum.ActiveCount)).
			KV("Triggered alerts", fmt.Sprintf("%d", sum.TriggeredCount)).
			KV("API status", "✅ connected")
	} else if api.IsUnauthorized(err) {
		return d.dropExpired(ctx, req)
	} else {
		b.KV("API status", "❌ "+string(api.KindOf(err)))
	}

	if chatID, bound := d.Sessions.Channel(req.FromID); bound {
		b.KV("Alert channel", fmt.Sprintf("%d", chatID))
	}
	b.Blank().
		KV("API endpoint", d.BaseURL).
		KV("Prefix", req.Prefix)
	return reply(ctx, req, b.Build())
}

// scrubCredentialMessage deletes the invoking message so credentials do
// not linger in chat history. Best-effort: group chats may not grant the
// bot delete rights.
func (d *Deps) scrubCredentialMessage(ctx context.Context, req *Request) {
	if err := req.Adapter.DeleteMessage(ctx, req.Ref()); err != nil {
		req.Logger.Debug("could not delete credential message", logx.Err(err))
		_, _ = req.Adapter.SendText(ctx, req.Chat,
			"⚠️ Could not delete your message. Please delete it manually for security.", nil)
	}
}
