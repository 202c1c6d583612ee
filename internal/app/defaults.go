package app

import (
	"fmt"
	"os"
	"path/filepath"

	"vcs-go/internal/config"
)

// Environment variables read by GetDefaults and PassphraseFromEnv.
const (
	EnvBaseDir    = "VCS_BASE_DIR"
	EnvPassphrase = "VCS_PASSPHRASE"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - VCS_BASE_DIR: repository base path (default: the working directory)
func GetDefaults() (map[string]string, error) {
	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"base_dir":    baseDir,
		"config_path": config.PathFor(baseDir),
	}, nil
}

// getBaseDir returns the repository base path, checking VCS_BASE_DIR first,
// then falling back to the working directory.
func getBaseDir() (string, error) {
	if path := os.Getenv(EnvBaseDir); path != "" {
		return filepath.Abs(path)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	return cwd, nil
}

// PassphraseFromEnv returns VCS_PASSPHRASE and whether it was set.
func PassphraseFromEnv() (string, bool) {
	return os.LookupEnv(EnvPassphrase)
}
