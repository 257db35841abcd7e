package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockbot/pkg/logx"
)

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:        srv.URL,
		RequestTimeout: 2 * time.Second,
		SummaryTimeout: 2 * time.Second,
		RefreshTimeout: 2 * time.Second,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, srv
}

func TestLoginSuccess(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/login/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access":"tok-a","refresh":"tok-r"}`))
	})

	creds, err := c.Login(context.Background(), "alice", "s3cret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if creds.Access != "tok-a" || creds.Refresh != "tok-r" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
}

func TestLoginMissingAccessToken(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refresh":"only"}`))
	})

	_, err := c.Login(context.Background(), "alice", "s3cret")
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
}

func TestUnauthorizedClassification(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
	})

	_, err := c.TriggeredAlerts(context.Background(), "stale")
	if !IsUnauthorized(err) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	ae := err.(*Error)
	if ae.Status != http.StatusUnauthorized || ae.Detail == "" {
		t.Fatalf("unexpected error: %+v", ae)
	}
}

func TestServerErrorClassification(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Alerts(context.Background(), "tok")
	if KindOf(err) != KindServer {
		t.Fatalf("expected server error, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatal("5xx should be transient")
	}
}

func TestValidationErrorFields(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"threshold_price":["A valid number is required."],"stock":["Invalid pk"]}`))
	})

	_, err := c.CreateAlert(context.Background(), "tok", CreateAlertRequest{Stock: 99})
	if KindOf(err) != KindClient {
		t.Fatalf("expected client error, got %v", err)
	}
	lines := err.(*Error).FieldErrors(3)
	if len(lines) != 2 {
		t.Fatalf("expected 2 field errors, got %v", lines)
	}
	if lines[0] != "stock: Invalid pk" {
		t.Fatalf("expected sorted field errors, got %v", lines)
	}
}

func TestTimeoutClassification(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, RequestTimeout: 50 * time.Millisecond}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Stocks(context.Background())
	if KindOf(err) != KindTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !IsTransient(err) {
		t.Fatal("timeout should be transient")
	}
}

func TestConnectionFailureClassification(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: url}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = c.Stocks(context.Background())
	if KindOf(err) != KindConnection {
		t.Fatalf("expected connection failure, got %v", err)
	}
}

func TestBearerTokenForwarded(t *testing.T) {
	t.Parallel()
	var got string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"active_count":2,"triggered_count":1}`))
	})

	s, err := c.AlertSummary(context.Background(), "tok-a")
	if err != nil {
		t.Fatalf("AlertSummary: %v", err)
	}
	if got != "Bearer tok-a" {
		t.Fatalf("expected bearer header, got %q", got)
	}
	if s.ActiveCount != 2 || s.TriggeredCount != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestRegisterRequires201(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK) // backend bug: login-shaped response
	})

	err := c.Register(context.Background(), "bob", "pw", "bob@example.com")
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected malformed for non-201, got %v", err)
	}
}
