package ledger

import (
	"fmt"

	"vcs-go/internal/config"
	"vcs-go/internal/database"
	"vcs-go/internal/vcs"
)

// NewStorageFromConfig creates the LedgerStorage selected by cfg.Type.
// The path is resolved against basePath and defaults per type.
func NewStorageFromConfig(cfg config.LedgerConfig, basePath string) (vcs.LedgerStorage, error) {
	path := cfg.Path
	if path == "" {
		path = config.DefaultLedgerPath(cfg.Type)
	}
	path = config.ResolvePath(basePath, path)

	switch cfg.Type {
	case "text", "":
		return NewTextStorage(path), nil
	case "sqlite":
		return database.NewSQLiteStorage(path)
	case "memory":
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown ledger type: %s", cfg.Type)
	}
}
