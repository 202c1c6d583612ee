package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Dir is the name of the repository metadata directory under the base path.
const Dir = ".vcs"

// FileName is the name of the config file inside Dir.
const FileName = "config.toml"

// Config represents the per-repository configuration for vcs.
// Relative paths are resolved against the repository base path.
type Config struct {
	RepoID     string           `toml:"repo_id"`
	LogDir     string           `toml:"log_dir"`
	LogLevel   string           `toml:"log_level"` // debug, info, warn or error
	Store      StoreConfig      `toml:"store"`
	Ledger     LedgerConfig     `toml:"ledger"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// StoreConfig selects the object store backend.
type StoreConfig struct {
	Type string `toml:"type"`           // "filesystem" (default) or "memory"
	Root string `toml:"root,omitempty"` // only used for type=filesystem
}

// LedgerConfig selects where version records are persisted.
// This uses a tagged union pattern - the Type field determines how Path is read.
type LedgerConfig struct {
	Type string `toml:"type"`           // "text" (default), "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // defaults depend on Type
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// Enabled reports whether snapshots are encrypted.
func (c EncryptionConfig) Enabled() bool {
	return c.Type != "" && c.Type != "none"
}

// NewConfig creates a Config with default paths for a new repository.
func NewConfig(repoID string) *Config {
	return &Config{
		RepoID:   repoID,
		LogDir:   filepath.Join(Dir, "log"),
		LogLevel: "info",
		Store: StoreConfig{
			Type: "filesystem",
			Root: filepath.Join(Dir, "versions"),
		},
		Ledger: LedgerConfig{
			Type: "text",
			Path: filepath.Join(Dir, "versions.meta"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(Dir, "keys", "vcs.pub"),
			PrivateKeyPath: filepath.Join(Dir, "keys", "vcs.key"),
		},
	}
}

// DefaultLedgerPath returns the default ledger location for a ledger type.
func DefaultLedgerPath(ledgerType string) string {
	if ledgerType == "sqlite" {
		return filepath.Join(Dir, "versions.db")
	}
	return filepath.Join(Dir, "versions.meta")
}

// Validate checks the backend type strings and the log level.
func (c *Config) Validate() error {
	switch c.Store.Type {
	case "filesystem", "memory":
	default:
		return fmt.Errorf("unknown store type: %q", c.Store.Type)
	}
	switch c.Ledger.Type {
	case "text", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown ledger type: %q", c.Ledger.Type)
	}
	switch c.Encryption.Type {
	case "", "none", "age", "test":
	default:
		return fmt.Errorf("unknown encryption type: %q", c.Encryption.Type)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	return nil
}

// ValidatePersisted checks a config that is read from or written to disk.
// The memory backends lose their contents at exit, so a repository on
// disk cannot use them.
func (c *Config) ValidatePersisted() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Store.Type == "memory" {
		return fmt.Errorf("store type %q cannot be persisted", c.Store.Type)
	}
	if c.Ledger.Type == "memory" {
		return fmt.Errorf("ledger type %q cannot be persisted", c.Ledger.Type)
	}
	return nil
}

// ResolvePath makes p absolute by joining it to basePath when relative.
func ResolvePath(basePath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(basePath, p)
}

// PathFor returns the config file location for a repository base path.
func PathFor(basePath string) string {
	return filepath.Join(basePath, Dir, FileName)
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads and validates a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	if err := cfg.ValidatePersisted(); err != nil {
		return nil, fmt.Errorf("validating config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes cfg to a new config file at path. It fails if the file exists.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := cfg.ValidatePersisted(); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
