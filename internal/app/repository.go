package app

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vcs-go/internal/config"
	"vcs-go/internal/encryption"
	"vcs-go/internal/hasher"
	"vcs-go/internal/ledger"
	"vcs-go/internal/store"
	"vcs-go/internal/vcs"
)

// LockFileName is the advisory lock held for the life of a Repository.
const LockFileName = "lock"

// Options tune how a Repository is opened. The zero value is usable.
type Options struct {
	// Operation names the CLI command, e.g. "checkin". It tags log lines.
	Operation string

	// Verbose mirrors log output to Stderr.
	Verbose bool
	Stderr  io.Writer

	// Passphrase supplies the decryption passphrase on first read, and the
	// key passphrase during Init when encryption is enabled.
	Passphrase store.PassphraseFunc

	Clock vcs.Clock
}

func (o Options) clock() vcs.Clock {
	if o.Clock == nil {
		return vcs.RealClock{}
	}
	return o.Clock
}

func (o Options) passphrase() (string, error) {
	if o.Passphrase == nil {
		return "", fmt.Errorf("%w: no passphrase available", vcs.ErrInvalidArgument)
	}
	return o.Passphrase()
}

// Repository is the application layer between the CLI and the
// VersionManager. It constructs all components from the repository config,
// accepts raw paths from the command line, and releases everything on Close.
type Repository struct {
	basePath string
	cfg      *config.Config
	op       *Operation

	lock    *repoLock
	storage vcs.LedgerStorage
	ledger  *ledger.Ledger
	store   vcs.ObjectStore
	manager *vcs.VersionManager
	logger  vcs.Logger
	logFile *os.File
	report  *vcs.LoadReport
}

// Init creates a repository under basePath: the .vcs directory tree, the
// config file, age keys when encryption is enabled, and an empty ledger.
// It fails with ErrExists if .vcs is already present. A failed Init leaves
// no .vcs directory behind.
func Init(basePath string, cfg *config.Config, opts Options) (err error) {
	basePath, err = filepath.Abs(basePath)
	if err != nil {
		return fmt.Errorf("resolving base path: %w", err)
	}

	vcsDir := filepath.Join(basePath, config.Dir)
	if _, statErr := os.Stat(vcsDir); statErr == nil {
		return fmt.Errorf("%w: repository at %s", vcs.ErrExists, basePath)
	}

	if err := cfg.ValidatePersisted(); err != nil {
		return fmt.Errorf("%w: %w", vcs.ErrInvalidArgument, err)
	}

	defer func() {
		if err != nil {
			os.RemoveAll(vcsDir)
		}
	}()

	dirs := []string{
		config.ResolvePath(basePath, cfg.Store.Root),
		filepath.Join(vcsDir, "temp"),
		config.ResolvePath(basePath, cfg.LogDir),
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: creating %s: %w", vcs.ErrIOFailure, dir, err)
		}
	}

	if err := config.Init(config.PathFor(basePath), cfg); err != nil {
		return err
	}

	if cfg.Encryption.Enabled() {
		enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption, basePath)
		if err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
		if !enc.IsConfigured() {
			passphrase, err := opts.passphrase()
			if err != nil {
				return fmt.Errorf("setting up encryption: %w", err)
			}
			if err := enc.Setup(passphrase); err != nil {
				return fmt.Errorf("setting up encryption: %w", err)
			}
		}
	}

	if opts.Operation == "" {
		opts.Operation = "init"
	}
	repo, err := Load(basePath, opts)
	if err != nil {
		return err
	}

	if err := repo.ledger.Persist(); err != nil {
		repo.Finish(err)
		repo.Close()
		return fmt.Errorf("writing empty ledger: %w", err)
	}
	repo.logger.Info("repository initialized", "repo_id", cfg.RepoID, "ledger", cfg.Ledger.Type, "encryption", cfg.Encryption.Type)
	return repo.Close()
}

// Load opens the repository at basePath. It fails with ErrNotFound if no
// .vcs directory exists and with ErrLocked if another invocation holds the
// repository. The caller must call Close when done.
func Load(basePath string, opts Options) (*Repository, error) {
	basePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolving base path: %w", err)
	}

	vcsDir := filepath.Join(basePath, config.Dir)
	if info, err := os.Stat(vcsDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: no repository found in %s", vcs.ErrNotFound, basePath)
	}

	lock, err := acquireLock(filepath.Join(vcsDir, LockFileName))
	if err != nil {
		return nil, err
	}

	repo := &Repository{basePath: basePath, lock: lock}
	if err := repo.open(opts); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}

// open wires the components. On error the partially built repository is
// closed by the caller.
func (r *Repository) open(opts Options) error {
	cfg, err := config.ReadFromFile(config.PathFor(r.basePath))
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	r.cfg = cfg

	clock := opts.clock()
	name := opts.Operation
	if name == "" {
		name = "open"
	}
	r.op = NewOperation(name, clock.Now())

	var mirror io.Writer
	if opts.Verbose {
		mirror = opts.Stderr
		if mirror == nil {
			mirror = os.Stderr
		}
	}
	logger, logFile, err := newLogger(config.ResolvePath(r.basePath, cfg.LogDir), r.op.ID, cfg.LogLevel, mirror)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	r.logFile = logFile
	r.logger = &slogAdapter{l: logger.With("op", r.op.Name)}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption, r.basePath)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		return fmt.Errorf("%w: encryption keys missing", vcs.ErrNotFound)
	}

	r.store, err = store.NewStoreFromConfig(cfg, r.basePath, enc, opts.passphrase)
	if err != nil {
		return fmt.Errorf("creating object store: %w", err)
	}

	r.storage, err = ledger.NewStorageFromConfig(cfg.Ledger, r.basePath)
	if err != nil {
		return fmt.Errorf("creating ledger storage: %w", err)
	}

	r.ledger = ledger.New(r.storage, r.logger)
	r.report, err = r.ledger.Reload()
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}

	h := hasher.NewDJB2Hasher(clock)
	r.manager = vcs.NewVersionManager(r.basePath, r.ledger, r.store, h, r.logger, clock)

	r.logger.Debug("repository loaded", "base", r.basePath, "records", r.ledger.Len(), "total_versions", r.ledger.TotalVersions())
	return nil
}

// Filename turns a command-line path into a ledger filename. Relative paths
// are taken relative to the base path; absolute paths must lie inside it.
// Paths into the .vcs directory are rejected.
func (r *Repository) Filename(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: empty filename", vcs.ErrInvalidArgument)
	}

	p := raw
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.basePath, p)
		if err != nil {
			return "", fmt.Errorf("%w: %s is outside the repository", vcs.ErrInvalidArgument, raw)
		}
		p = rel
	}

	name := filepath.ToSlash(filepath.Clean(p))
	if name == config.Dir || strings.HasPrefix(name, config.Dir+"/") {
		return "", fmt.Errorf("%w: %s is inside the repository metadata", vcs.ErrInvalidArgument, raw)
	}
	if err := vcs.ValidateFilename(name); err != nil {
		return "", err
	}
	return name, nil
}

// CheckIn snapshots the working copy of rawPath and returns the new version.
func (r *Repository) CheckIn(rawPath, comment string) (int, error) {
	name, err := r.Filename(rawPath)
	if err != nil {
		return 0, err
	}
	return r.manager.CheckIn(name, comment)
}

// CheckOut restores version of rawPath over its working copy. Version 0
// selects the latest version. It returns the version restored.
func (r *Repository) CheckOut(rawPath string, version int) (int, error) {
	name, version, err := r.resolveVersion(rawPath, version)
	if err != nil {
		return 0, err
	}
	return version, r.manager.CheckOut(name, version)
}

// CheckOutTo restores version of rawPath to destPath instead of the working
// copy. Version 0 selects the latest version.
func (r *Repository) CheckOutTo(rawPath string, version int, destPath string) (int, error) {
	name, version, err := r.resolveVersion(rawPath, version)
	if err != nil {
		return 0, err
	}
	dest, err := filepath.Abs(destPath)
	if err != nil {
		return 0, fmt.Errorf("resolving output path: %w", err)
	}
	return version, r.manager.CheckOutTo(name, version, dest)
}

func (r *Repository) resolveVersion(rawPath string, version int) (string, int, error) {
	name, err := r.Filename(rawPath)
	if err != nil {
		return "", 0, err
	}
	if version == 0 {
		version = r.manager.Latest(name)
		if version == 0 {
			return "", 0, fmt.Errorf("%w: no versions found for %s", vcs.ErrNotFound, name)
		}
	}
	return name, version, nil
}

// ListVersions returns the records of rawPath, newest first.
func (r *Repository) ListVersions(rawPath string) ([]vcs.VersionRecord, error) {
	name, err := r.Filename(rawPath)
	if err != nil {
		return nil, err
	}
	return r.manager.ListVersions(name)
}

// Rollback restores version of rawPath and checks it in as a new version.
func (r *Repository) Rollback(rawPath string, version int) (int, error) {
	name, err := r.Filename(rawPath)
	if err != nil {
		return 0, err
	}
	return r.manager.Rollback(name, version)
}

// Status compares the working copy of rawPath with its latest version.
func (r *Repository) Status(rawPath string) (*vcs.FileStatus, error) {
	name, err := r.Filename(rawPath)
	if err != nil {
		return nil, err
	}
	return r.manager.Status(name)
}

// Verify checks every recorded snapshot.
func (r *Repository) Verify() ([]vcs.VerifyIssue, error) {
	return r.manager.Verify()
}

// CheckLedger reports a ledger storage whose schema is not current.
// Storages without a schema always pass.
func (r *Repository) CheckLedger() error {
	if c, ok := r.storage.(interface{ CheckSchema() error }); ok {
		if err := c.CheckSchema(); err != nil {
			return fmt.Errorf("%w: ledger schema: %w", vcs.ErrCorrupt, err)
		}
	}
	return nil
}

// Files returns every filename with recorded versions, sorted.
func (r *Repository) Files() []string {
	return r.ledger.Filenames()
}

// Config returns the loaded configuration.
func (r *Repository) Config() *config.Config {
	return r.cfg
}

// BasePath returns the absolute repository base path.
func (r *Repository) BasePath() string {
	return r.basePath
}

// LoadReport returns what the last ledger reload skipped.
func (r *Repository) LoadReport() *vcs.LoadReport {
	return r.report
}

// TotalVersions returns the ledger's display statistic.
func (r *Repository) TotalVersions() int {
	return r.ledger.TotalVersions()
}

// Finish records the outcome of the operation for the closing log line.
func (r *Repository) Finish(err error) {
	if r.op != nil {
		r.op.Finish(err)
	}
}

// Close releases every in-memory record, closes the ledger storage and the
// log file, and releases the lock. On-disk state is left as it is.
func (r *Repository) Close() error {
	var firstErr error

	if r.logger != nil && r.op != nil {
		r.logger.Info("operation finished", "status", r.op.Status)
	}

	if r.ledger != nil {
		r.ledger.Reset()
	}

	if r.storage != nil {
		if err := r.storage.Close(); err != nil {
			firstErr = fmt.Errorf("closing ledger storage: %w", err)
		}
		r.storage = nil
	}

	if r.logFile != nil {
		if err := r.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
		r.logFile = nil
	}

	if err := r.lock.release(); err != nil && firstErr == nil && !errors.Is(err, os.ErrClosed) {
		firstErr = fmt.Errorf("releasing lock: %w", err)
	}
	return firstErr
}
