package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/eventbus"
	"stockbot/internal/session"
	"stockbot/pkg/msgui"
)

func reply(ctx context.Context, req *Request, msg msgui.Message) error {
	_, err := msg.Send(ctx, req.Adapter, req.Chat)
	return err
}

func notConnected(prefix string) msgui.Message {
	return msgui.New().
		Title("🔒", "Not Connected").
		Line("Please login first: " + prefix + "login <username> <password>").
		Build()
}

// requireSession fetches the caller's session, answering with a login
// hint when there is none.
func (d *Deps) requireSession(ctx context.Context, req *Request) (session.Session, bool) {
	sess, ok := d.Sessions.Get(req.FromID)
	if !ok {
		_ = reply(ctx, req, notConnected(req.Prefix))
		return session.Session{}, false
	}
	return sess, true
}

// dropExpired evicts the caller's session after a 401 and tells them.
func (d *Deps) dropExpired(ctx context.Context, req *Request) error {
	sess, _ := d.Sessions.Get(req.FromID)
	d.Sessions.Evict(req.FromID)
	d.publishSession(eventbus.TypeSessionEvicted, req.FromID, sess.Username, req.Chat.ChatID, "unauthorized")
	return reply(ctx, req, msgui.New().
		Title("🔒", "Session Expired").
		Line("Your login session has expired.").
		Line("Please login again: "+req.Prefix+"login <username> <password>").
		Build())
}

func (d *Deps) publishSession(typ string, userID int64, username string, chatID int64, reason string) {
	if d.Bus == nil {
		return
	}
	now := time.Now()
	d.Bus.Publish(eventbus.Event{Type: typ, Time: now, Data: eventbus.SessionEvent{
		UserID:   userID,
		Username: username,
		ChatID:   chatID,
		Reason:   reason,
		At:       now,
	}})
}

// failMessage renders a classified backend failure the way users see it.
func failMessage(err error, doing string) msgui.Message {
	b := msgui.New()
	switch api.KindOf(err) {
	case api.KindTimeout:
		b.Title("⏰", "Connection Timeout").
			Line("Request timed out while " + doing + ".")
	case api.KindConnection:
		b.Title("🌐", "Connection Error").
			Line("Could not connect to the stock alerts API.")
	case api.KindServer:
		b.Title("❌", "Server Error").
			Line("The stock alerts API failed while " + doing + ".")
	case api.KindMalformed:
		b.Title("❌", "Unexpected Response").
			Line("The stock alerts API returned data the bot could not read.")
	case api.KindClient:
		b.Title("❌", "Request Failed")
		var apiErr *api.Error
		if errors.As(err, &apiErr) {
			if apiErr.Detail != "" {
				b.Line(apiErr.Detail)
			}
			for _, f := range apiErr.FieldErrors(3) {
				b.Code(f)
			}
			if apiErr.Detail == "" && len(apiErr.Fields) == 0 {
				b.Line(fmt.Sprintf("The request was rejected (HTTP %d).", apiErr.Status))
			}
		} else {
			b.Line("The request was rejected.")
		}
	default:
		b.Title("❌", "Error").
			Line("Something went wrong while " + doing + ".")
	}
	return b.Build()
}
