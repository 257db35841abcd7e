// Package logx is a small structured-logging facade over zerolog.
//
// It exists so the rest of the bot never touches zerolog directly:
// components hold a Logger value (cheap to copy, safe when zero) while the
// Service owns the sinks (console, JSON file, and an optional Telegram ops
// chat) and can swap them on config hot reload.
package logx
