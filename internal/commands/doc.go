// Package commands routes inbound chat messages to bot command handlers.
//
// Messages starting with the configured prefix (or "/") are tokenized,
// matched against the registry, and executed on a bounded worker pool.
// Each execution runs through a middleware chain: panic recovery,
// request logging, and a per-command timeout.
package commands
