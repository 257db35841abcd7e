// Package notifier delivers alert notifications to users over the
// chat transport.
//
// Delivery is synchronous so callers can gate follow-up state (such as
// per-user check timestamps) on success, but sends share a global rate
// limiter to stay under Telegram's per-bot message budget. Lifecycle
// events are published on the event bus for auditing.
package notifier
