package encryption

import (
	"fmt"

	"vcs-go/internal/config"
	"vcs-go/internal/vcs"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
// It returns nil when encryption is disabled. Key paths are resolved
// against basePath.
func NewEncryptorFromConfig(cfg config.EncryptionConfig, basePath string) (vcs.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return nil, nil
	case "age":
		return NewAgeEncryptor(
			config.ResolvePath(basePath, cfg.PublicKeyPath),
			config.ResolvePath(basePath, cfg.PrivateKeyPath),
		), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
