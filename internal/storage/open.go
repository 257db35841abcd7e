package storage

import (
	"context"
	"fmt"
	"strings"

	"stockbot/pkg/logx"
)

// Store appends audit entries and can read back the most recent ones.
type Store interface {
	Append(ctx context.Context, e AuditEntry) error
	Recent(ctx context.Context, limit int) ([]AuditEntry, error)
	Close() error
}

// Open returns the store selected by cfg, or (nil, nil) when storage is
// disabled. Callers must treat a nil store as "auditing off".
func Open(cfg Config, log logx.Logger) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return nil, nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage: file driver requires path")
		}
		return openFile(cfg, log)
	case "sqlite":
		if cfg.Path == "" {
			return nil, fmt.Errorf("storage: sqlite driver requires path")
		}
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
