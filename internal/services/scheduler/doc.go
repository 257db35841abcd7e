// Package scheduler runs recurring jobs on a small worker pool.
//
// Schedules are cron expressions (robfig/cron, optional seconds field) or
// fixed intervals. Jobs registered by name are upserted, so hot-reloads can
// re-register without duplicating entries.
package scheduler
