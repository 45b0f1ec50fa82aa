package storage

import (
	"context"
	"errors"
	"strings"

	logx "hrbot/pkg/logx"
)

type Store interface {
	AppendAlert(ctx context.Context, r AlertRecord) error
	// RecentAlerts returns up to limit records, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)
	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// Open initializes the configured store. It returns (nil, nil) when storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none":
		return nil, nil
	case "file":
		return openFile(cfg, log.With(logx.String("comp", "storage.file")))
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log.With(logx.String("comp", "storage.sqlite")))
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
