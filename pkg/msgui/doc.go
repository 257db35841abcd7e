// Package msgui builds Telegram-safe message payloads.
//
// It couples text with send options so handlers do not repeat
// ParseMode/preview boilerplate, and escapes by default for
// ParseMode="HTML".
package msgui
