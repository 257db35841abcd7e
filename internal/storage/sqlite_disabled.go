//go:build !sqlite

package storage

import (
	"fmt"

	"stockbot/pkg/logx"
)

func openSQLite(Config, logx.Logger) (Store, error) {
	return nil, fmt.Errorf("storage: sqlite driver requires building with -tags sqlite")
}
