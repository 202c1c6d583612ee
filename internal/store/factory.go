package store

import (
	"fmt"
	"path/filepath"

	"vcs-go/internal/config"
	"vcs-go/internal/vcs"
)

// NewStoreFromConfig creates the ObjectStore selected by cfg.Store. When
// encryptor is non-nil the store is wrapped in an EncryptedStore staging
// through <basePath>/.vcs/temp.
func NewStoreFromConfig(cfg *config.Config, basePath string, encryptor vcs.Encryptor, passphrase PassphraseFunc) (vcs.ObjectStore, error) {
	var inner vcs.ObjectStore
	switch cfg.Store.Type {
	case "memory":
		inner = NewMemoryStore()
	case "filesystem", "":
		root := cfg.Store.Root
		if root == "" {
			root = filepath.Join(config.Dir, "versions")
		}
		fs, err := NewFileSystemStore(config.ResolvePath(basePath, root))
		if err != nil {
			return nil, err
		}
		inner = fs
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Store.Type)
	}

	if encryptor == nil {
		return inner, nil
	}
	tempDir := filepath.Join(basePath, config.Dir, "temp")
	return NewEncryptedStore(inner, encryptor, tempDir, passphrase), nil
}
