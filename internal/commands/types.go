package commands

import (
	"context"
	"time"

	"stockbot/internal/api"
	"stockbot/internal/eventbus"
	"stockbot/internal/session"
	kit "stockbot/internal/transport"
	"stockbot/pkg/logx"
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Middleware func(next HandlerFunc) HandlerFunc

func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

// Request carries one matched command invocation.
type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	From    string // chat-platform username, may be empty
	Command string
	Args    []string
	ReqID   string
	Prefix  string // active command prefix, for usage strings

	Adapter kit.Adapter
	Logger  logx.Logger
}

// Ref returns a reference to the invoking message.
func (r *Request) Ref() kit.MessageRef {
	ref := kit.MessageRef{ChatID: r.Chat.ChatID, ThreadID: r.Chat.ThreadID}
	if r.Update.Message != nil {
		ref.MessageID = r.Update.Message.ID
	}
	return ref
}

// Backend is the slice of the API client the command handlers need.
type Backend interface {
	Register(ctx context.Context, username, password, email string) error
	Login(ctx context.Context, username, password string) (api.Credentials, error)
	AlertSummary(ctx context.Context, token string) (api.Summary, error)
	Alerts(ctx context.Context, token string) ([]api.Alert, error)
	TriggeredAlerts(ctx context.Context, token string) ([]api.Alert, error)
	CreateAlert(ctx context.Context, token string, req api.CreateAlertRequest) (api.Alert, error)
	Stocks(ctx context.Context) ([]api.Stock, error)
	RefreshPrices(ctx context.Context, token string) (api.RefreshResult, error)
}

// Deps is everything the handler set closes over.
type Deps struct {
	Backend  Backend
	Sessions *session.Store
	Bus      eventbus.Bus
	Log      logx.Logger

	// BaseURL is shown in status output.
	BaseURL string
	// Started is used for uptime in ping output.
	Started time.Time
}
