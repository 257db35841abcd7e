package api

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Credentials is the token pair returned by a successful login. Both tokens
// are opaque to the bot; the refresh token is stored but never exercised.
type Credentials struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type Summary struct {
	ActiveCount    int `json:"active_count"`
	TriggeredCount int `json:"triggered_count"`
}

// Alert is one backend alert record. The backend is inconsistent about the
// symbol field ("stock_symbol" on reads, "stock" on some list shapes), and
// threshold_price arrives as either a string or a number, hence the loose types.
type Alert struct {
	ID              int         `json:"id,omitempty"`
	StockSymbol     string      `json:"stock_symbol,omitempty"`
	Stock           any         `json:"stock,omitempty"`
	AlertType       string      `json:"alert_type,omitempty"`
	Condition       string      `json:"condition,omitempty"`
	ThresholdPrice  json.Number `json:"threshold_price,omitempty"`
	IsActive        *bool       `json:"is_active,omitempty"`
	DurationMinutes *int64      `json:"duration_minutes,omitempty"`
	CreatedAt       string      `json:"created_at,omitempty"`
	TriggeredAt     string      `json:"triggered_at,omitempty"`
}

// Symbol resolves the display symbol with the same fallback chain the backend
// clients have always used: stock_symbol, then stock, then "Unknown".
func (a Alert) Symbol() string {
	if s := strings.TrimSpace(a.StockSymbol); s != "" {
		return s
	}
	switch v := a.Stock.(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case json.Number:
		return v.String()
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return "Unknown"
}

// Active defaults to true when the backend omits is_active.
func (a Alert) Active() bool { return a.IsActive == nil || *a.IsActive }

// TriggeredTime parses triggered_at; ok is false when absent or unparseable.
func (a Alert) TriggeredTime() (time.Time, bool) { return parseBackendTime(a.TriggeredAt) }

// CreatedTime parses created_at; ok is false when absent or unparseable.
func (a Alert) CreatedTime() (time.Time, bool) { return parseBackendTime(a.CreatedAt) }

func parseBackendTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// CreateAlertRequest is the POST /api/alerts/ payload. DurationMinutes nil
// means the alert never expires; the backend treats the absent field as
// indefinite.
type CreateAlertRequest struct {
	Stock           int    `json:"stock"`
	AlertType       string `json:"alert_type"`
	Condition       string `json:"condition"`
	ThresholdPrice  string `json:"threshold_price"`
	IsActive        bool   `json:"is_active"`
	DurationMinutes *int64 `json:"duration_minutes,omitempty"`
}

type Stock struct {
	Symbol       string      `json:"symbol"`
	CurrentPrice json.Number `json:"current_price"`
	LastUpdated  string      `json:"last_updated,omitempty"`
}

func (s Stock) LastUpdatedTime() (time.Time, bool) { return parseBackendTime(s.LastUpdated) }

type RefreshResult struct {
	RefreshedCount int    `json:"refreshed_count,omitempty"`
	Message        string `json:"message,omitempty"`
}
