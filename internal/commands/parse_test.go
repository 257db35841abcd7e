package commands

import (
	"reflect"
	"testing"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		prefix   string
		wantName string
		wantArgs []string
		wantOK   bool
	}{
		{name: "bang prefix", text: "!login bob secret", prefix: "!", wantName: "login", wantArgs: []string{"bob", "secret"}, wantOK: true},
		{name: "slash always works", text: "/status", prefix: "!", wantName: "status", wantArgs: nil, wantOK: true},
		{name: "bot mention stripped", text: "/alerts@stockbot active", prefix: "!", wantName: "alerts", wantArgs: []string{"active"}, wantOK: true},
		{name: "uppercase normalized", text: "!STOCKS", prefix: "!", wantName: "stocks", wantArgs: nil, wantOK: true},
		{name: "quoted arg", text: `!login bob "p w"`, prefix: "!", wantName: "login", wantArgs: []string{"bob", "p w"}, wantOK: true},
		{name: "plain text ignored", text: "hello there", prefix: "!", wantOK: false},
		{name: "bare prefix ignored", text: "!", prefix: "!", wantOK: false},
		{name: "custom prefix", text: "$ping", prefix: "$", wantName: "ping", wantArgs: nil, wantOK: true},
		{name: "empty text", text: "  ", prefix: "!", wantOK: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			name, args, ok := ParseCommand(tt.text, tt.prefix)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if name != tt.wantName {
				t.Errorf("name = %q, want %q", name, tt.wantName)
			}
			if len(args) != 0 || len(tt.wantArgs) != 0 {
				if !reflect.DeepEqual(args, tt.wantArgs) {
					t.Errorf("args = %v, want %v", args, tt.wantArgs)
				}
			}
		})
	}
}

func TestTokenizeEscapes(t *testing.T) {
	t.Parallel()
	got := tokenize(`alert 1 > 150.50`)
	want := []string{"alert", "1", ">", "150.50"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("tokenize = %v, want %v", got, want)
	}
}
