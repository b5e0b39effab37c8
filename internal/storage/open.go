package storage

import (
	"errors"
	"strings"

	"tempora/pkg/logx"
)

// Open initializes the configured store. An empty driver defaults to the
// in-memory backend so the daemon still comes up without a data directory.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "memory":
		return newMemory(log, cfg.Defaults), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
