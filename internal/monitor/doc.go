// Package monitor polls the backend for triggered alerts on behalf of
// every active session and drives notification delivery.
//
// One pass walks a snapshot of the session store. Users are handled
// independently: an auth failure evicts that session, transient failures
// are retried on the next pass, and a per-user cool-down keeps a
// condition that stays triggered from notifying on every pass.
package monitor
