// Package api is the HTTP client for the stock-alert backend.
//
// Every call takes its timeout from the client config, performs exactly one
// request (no retries: retry policy belongs to callers) and maps the outcome
// to a classified *Error so callers can branch on Kind instead of sniffing
// status codes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"stockbot/pkg/logx"
)

type Config struct {
	BaseURL string

	// RequestTimeout bounds data calls (login, alerts, stocks). Default 15s.
	RequestTimeout time.Duration
	// SummaryTimeout bounds the cheap summary ping. Default 10s.
	SummaryTimeout time.Duration
	// RefreshTimeout bounds the refresh-prices action, which fans out to
	// upstream quote providers on the backend side. Default 30s.
	RefreshTimeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, errors.New("api base url is empty")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 15 * time.Second
	}
	if cfg.SummaryTimeout <= 0 {
		cfg.SummaryTimeout = 10 * time.Second
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = 30 * time.Second
	}
	return &Client{
		cfg: cfg,
		// Per-call deadlines come from the context; keep the transport itself
		// uncapped so the refresh call can use its longer budget.
		http: &http.Client{},
		log:  log,
	}, nil
}

func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// ---- operations ----

func (c *Client) Register(ctx context.Context, username, password, email string) error {
	body := map[string]string{"username": username, "password": password, "email": email}
	status, _, err := c.do(ctx, http.MethodPost, "/api/auth/register/", "", body, c.cfg.RequestTimeout)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return &Error{Kind: KindMalformed, Status: status, Detail: "unexpected registration status"}
	}
	return nil
}

func (c *Client) Login(ctx context.Context, username, password string) (Credentials, error) {
	body := map[string]string{"username": username, "password": password}
	_, raw, err := c.do(ctx, http.MethodPost, "/api/auth/login/", "", body, c.cfg.RequestTimeout)
	if err != nil {
		return Credentials{}, err
	}
	var creds Credentials
	if err := json.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, &Error{Kind: KindMalformed, Detail: "login response is not JSON", cause: err}
	}
	if strings.TrimSpace(creds.Access) == "" {
		return Credentials{}, &Error{Kind: KindMalformed, Detail: "login response has no access token"}
	}
	return creds, nil
}

func (c *Client) AlertSummary(ctx context.Context, token string) (Summary, error) {
	_, raw, err := c.do(ctx, http.MethodGet, "/api/alerts/summary/", token, nil, c.cfg.SummaryTimeout)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	if err := json.Unmarshal(raw, &s); err != nil {
		return Summary{}, &Error{Kind: KindMalformed, Detail: "summary response is not JSON", cause: err}
	}
	return s, nil
}

func (c *Client) Alerts(ctx context.Context, token string) ([]Alert, error) {
	return c.alertList(ctx, token, "/api/alerts/")
}

// TriggeredAlerts lists alerts whose condition currently holds. This is the
// monitor's hot path.
func (c *Client) TriggeredAlerts(ctx context.Context, token string) ([]Alert, error) {
	return c.alertList(ctx, token, "/api/alerts/triggered/")
}

func (c *Client) alertList(ctx context.Context, token, path string) ([]Alert, error) {
	_, raw, err := c.do(ctx, http.MethodGet, path, token, nil, c.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return decodeAlertList(raw)
}

func (c *Client) CreateAlert(ctx context.Context, token string, req CreateAlertRequest) (Alert, error) {
	status, raw, err := c.do(ctx, http.MethodPost, "/api/alerts/", token, req, c.cfg.RequestTimeout)
	if err != nil {
		return Alert{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return Alert{}, &Error{Kind: KindMalformed, Status: status, Detail: "unexpected create-alert status"}
	}
	var a Alert
	if err := json.Unmarshal(raw, &a); err != nil {
		return Alert{}, &Error{Kind: KindMalformed, Detail: "create-alert response is not JSON", cause: err}
	}
	return a, nil
}

// Stocks is the only unauthenticated read.
func (c *Client) Stocks(ctx context.Context) ([]Stock, error) {
	_, raw, err := c.do(ctx, http.MethodGet, "/api/stocks/", "", nil, c.cfg.RequestTimeout)
	if err != nil {
		return nil, err
	}
	return decodeStockList(raw)
}

func (c *Client) RefreshPrices(ctx context.Context, token string) (RefreshResult, error) {
	_, raw, err := c.do(ctx, http.MethodPost, "/api/stocks/actions/refresh-prices/", token, nil, c.cfg.RefreshTimeout)
	if err != nil {
		return RefreshResult{}, err
	}
	var r RefreshResult
	// Refresh responses vary by backend version; tolerate non-JSON bodies.
	_ = json.Unmarshal(raw, &r)
	return r, nil
}

// ---- request plumbing ----

// do performs one request and returns (status, body) for 2xx, or a classified
// *Error otherwise.
func (c *Client) do(ctx context.Context, method, path, token string, body any, timeout time.Duration) (int, []byte, error) {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("api: encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, method, c.cfg.BaseURL+path, rd)
	if err != nil {
		return 0, nil, fmt.Errorf("api: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	raw, err := readCapped(resp.Body, maxResponseBytes)
	if err != nil {
		return 0, nil, &Error{Kind: KindConnection, Status: resp.StatusCode, Detail: "reading response body", cause: err}
	}

	c.log.Debug("backend call",
		logx.String("method", method),
		logx.String("path", path),
		logx.Int("status", resp.StatusCode),
		logx.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode/100 == 2 {
		return resp.StatusCode, raw, nil
	}
	return 0, nil, classifyStatus(resp.StatusCode, raw)
}

const maxResponseBytes = 4 << 20

func classifyTransport(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, cause: err}
	}
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return &Error{Kind: KindTimeout, cause: err}
	}
	return &Error{Kind: KindConnection, cause: err}
}

func classifyStatus(status int, raw []byte) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, Status: status, Detail: detailFromBody(raw)}
	case status >= 500:
		return &Error{Kind: KindServer, Status: status, Detail: detailFromBody(raw)}
	default:
		e := &Error{Kind: KindClient, Status: status, Detail: detailFromBody(raw)}
		e.Fields = fieldsFromBody(raw)
		return e
	}
}

// detailFromBody pulls the conventional DRF "detail" message, if present.
func detailFromBody(raw []byte) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	if d, ok := m["detail"].(string); ok {
		return d
	}
	return ""
}

// fieldsFromBody parses a DRF validation body: {"field": ["msg", ...], ...}.
func fieldsFromBody(raw []byte) map[string][]string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	out := map[string][]string{}
	for field, v := range m {
		if field == "detail" {
			continue
		}
		switch msgs := v.(type) {
		case []any:
			for _, msg := range msgs {
				out[field] = append(out[field], fmt.Sprint(msg))
			}
		case string:
			out[field] = append(out[field], msgs)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
