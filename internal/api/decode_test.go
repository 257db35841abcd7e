package api

import "testing"

func TestDecodeAlertListShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "bare array", raw: `[{"stock_symbol":"AAPL","condition":">","threshold_price":"150.00"}]`, want: 1},
		{name: "paginated", raw: `{"count":2,"results":[{"stock_symbol":"AAPL"},{"stock_symbol":"TSLA"}]}`, want: 2},
		{name: "empty results", raw: `{"results":[]}`, want: 0},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeAlertList([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decodeAlertList: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDecodeAlertListMalformed(t *testing.T) {
	t.Parallel()
	_, err := decodeAlertList([]byte(`<html>nope</html>`))
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected malformed, got %v", err)
	}
	_, err = decodeAlertList([]byte(`{"count":0}`))
	if KindOf(err) != KindMalformed {
		t.Fatalf("expected malformed for unrecognized shape, got %v", err)
	}
}

func TestDecodeStockListShapes(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "bare array", raw: `[{"symbol":"AAPL","current_price":"182.50"}]`, want: 1},
		{name: "results key", raw: `{"results":[{"symbol":"AAPL"},{"symbol":"MSFT"}]}`, want: 2},
		{name: "stocks key", raw: `{"stocks":[{"symbol":"AAPL"}]}`, want: 1},
		{name: "data key", raw: `{"data":[{"symbol":"AAPL"}]}`, want: 1},
		{name: "dict of records", raw: `{"AAPL":{"symbol":"AAPL","current_price":1.5},"meta":"x"}`, want: 1},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeStockList([]byte(tt.raw))
			if err != nil {
				t.Fatalf("decodeStockList: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestAlertSymbolFallback(t *testing.T) {
	t.Parallel()
	if got := (Alert{StockSymbol: "AAPL"}).Symbol(); got != "AAPL" {
		t.Fatalf("Symbol = %q", got)
	}
	if got := (Alert{Stock: "TSLA"}).Symbol(); got != "TSLA" {
		t.Fatalf("Symbol = %q", got)
	}
	if got := (Alert{Stock: float64(7)}).Symbol(); got != "7" {
		t.Fatalf("Symbol = %q", got)
	}
	if got := (Alert{}).Symbol(); got != "Unknown" {
		t.Fatalf("Symbol = %q", got)
	}
}

func TestAlertActiveDefaultsTrue(t *testing.T) {
	t.Parallel()
	if !(Alert{}).Active() {
		t.Fatal("is_active omitted should default to active")
	}
	f := false
	if (Alert{IsActive: &f}).Active() {
		t.Fatal("explicit false should stick")
	}
}
