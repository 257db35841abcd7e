package api

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a backend call failure. Callers pick policy from the kind:
// interactive commands surface it, the monitor evicts on KindUnauthorized and
// waits for the next pass on anything transient.
type Kind string

const (
	KindTimeout      Kind = "timeout"
	KindConnection   Kind = "connection"
	KindUnauthorized Kind = "unauthorized"
	KindClient       Kind = "client"
	KindServer       Kind = "server"
	KindMalformed    Kind = "malformed"
)

// Error is a classified backend failure.
type Error struct {
	Kind   Kind
	Status int // HTTP status when one was received, else 0
	Detail string
	// Fields holds per-field validation messages from a 400 body.
	Fields map[string][]string
	cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("api: ")
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (http %d)", e.Status)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.cause != nil && e.Detail == "" {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.cause }

// FieldErrors renders up to max "field: message" lines, sorted for stable output.
func (e *Error) FieldErrors(max int) []string {
	if len(e.Fields) == 0 {
		return nil
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, max)
	for _, k := range keys {
		for _, msg := range e.Fields[k] {
			out = append(out, k+": "+msg)
			if max > 0 && len(out) >= max {
				return out
			}
		}
	}
	return out
}

// KindOf extracts the failure kind, or "" for nil/foreign errors.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }

// IsTransient reports failures worth retrying on a later cycle.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindConnection, KindServer:
		return true
	}
	return false
}
