package app

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vcs-go/internal/config"
	"vcs-go/internal/store"
	"vcs-go/internal/testutil"
	"vcs-go/internal/vcs"
)

func testOptions(op string) Options {
	return Options{
		Operation: op,
		Clock:     testutil.NewStubClock(time.Unix(1700000000, 0)),
		Passphrase: func() (string, error) {
			return "correct horse", nil
		},
	}
}

func initRepo(t *testing.T, mutate func(*config.Config)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.NewConfig("test-repo")
	if mutate != nil {
		mutate(cfg)
	}
	if err := Init(dir, cfg, testOptions("init")); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return dir
}

func loadRepo(t *testing.T, dir, op string) *Repository {
	t.Helper()
	repo, err := Load(dir, testOptions(op))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestInit(t *testing.T) {
	dir := initRepo(t, nil)

	for _, p := range []string{
		".vcs/config.toml",
		".vcs/versions",
		".vcs/temp",
		".vcs/log/vcs.log",
		".vcs/versions.meta",
	} {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(p))); err != nil {
			t.Errorf("%s not created: %v", p, err)
		}
	}

	meta := string(testutil.ReadFile(t, filepath.Join(dir, ".vcs", "versions.meta")))
	if !strings.Contains(meta, "TOTAL_VERSIONS=0") {
		t.Errorf("empty ledger = %q, want TOTAL_VERSIONS=0", meta)
	}

	repo := loadRepo(t, dir, "list")
	if repo.TotalVersions() != 0 {
		t.Errorf("TotalVersions() = %d, want 0", repo.TotalVersions())
	}
	if repo.Config().RepoID != "test-repo" {
		t.Errorf("RepoID = %q, want %q", repo.Config().RepoID, "test-repo")
	}
}

func TestInit_Exists(t *testing.T) {
	dir := initRepo(t, nil)

	err := Init(dir, config.NewConfig("again"), testOptions("init"))
	if !errors.Is(err, vcs.ErrExists) {
		t.Fatalf("Init() error = %v, want ErrExists", err)
	}
}

func TestInit_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig("bad")
	cfg.Ledger.Type = "csv"

	err := Init(dir, cfg, testOptions("init"))
	if !errors.Is(err, vcs.ErrInvalidArgument) {
		t.Fatalf("Init() error = %v, want ErrInvalidArgument", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".vcs")); !os.IsNotExist(err) {
		t.Errorf(".vcs exists after failed Init: %v", err)
	}
}

func TestInit_RejectsMemoryBackends(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.Store.Type = "memory" },
		func(c *config.Config) { c.Ledger.Type = "memory" },
	} {
		dir := t.TempDir()
		cfg := config.NewConfig("mem")
		mutate(cfg)

		if err := Init(dir, cfg, testOptions("init")); !errors.Is(err, vcs.ErrInvalidArgument) {
			t.Errorf("Init() error = %v, want ErrInvalidArgument", err)
		}
	}
}

func TestInit_FailureRemovesMetadataDir(t *testing.T) {
	dir := t.TempDir()
	cfg := config.NewConfig("age-repo")
	cfg.Encryption.Type = "age"

	opts := testOptions("init")
	opts.Passphrase = nil

	if err := Init(dir, cfg, opts); err == nil {
		t.Fatal("Init() expected error without a passphrase")
	}
	if _, err := os.Stat(filepath.Join(dir, ".vcs")); !os.IsNotExist(err) {
		t.Errorf(".vcs exists after failed Init: %v", err)
	}
}

func TestLoad_NoRepository(t *testing.T) {
	_, err := Load(t.TempDir(), testOptions("list"))
	if !errors.Is(err, vcs.ErrNotFound) {
		t.Fatalf("Load() error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "no repository found") {
		t.Errorf("Load() error = %q, want it to mention no repository found", err)
	}
}

func TestRepository_Scenario(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "scenario")
	path := filepath.Join(dir, "a.txt")

	testutil.WriteFile(t, path, []byte("X"))
	if v, err := repo.CheckIn("a.txt", "first"); err != nil || v != 1 {
		t.Fatalf("CheckIn() = %d, %v; want 1", v, err)
	}

	testutil.WriteFile(t, path, []byte("XY"))
	if v, err := repo.CheckIn(path, "second"); err != nil || v != 2 {
		t.Fatalf("CheckIn(abs) = %d, %v; want 2", v, err)
	}

	v, err := repo.Rollback("a.txt", 1)
	if err != nil || v != 3 {
		t.Fatalf("Rollback() = %d, %v; want 3", v, err)
	}
	if got := string(testutil.ReadFile(t, path)); got != "X" {
		t.Errorf("working copy = %q, want %q", got, "X")
	}

	records, err := repo.ListVersions("a.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(records) != 3 || records[0].Comment != "Rollback to version 1" {
		t.Fatalf("ListVersions() = %+v", records)
	}

	if err := repo.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened := loadRepo(t, dir, "list")
	if reopened.TotalVersions() != 3 {
		t.Errorf("TotalVersions() after reload = %d, want 3", reopened.TotalVersions())
	}
	records, err = reopened.ListVersions("a.txt")
	if err != nil || len(records) != 3 {
		t.Fatalf("ListVersions() after reload = %d records, %v", len(records), err)
	}
}

func TestRepository_CheckOutLatest(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "checkout")
	path := filepath.Join(dir, "notes", "b.txt")

	testutil.WriteFile(t, path, []byte("one"))
	repo.CheckIn("notes/b.txt", "")
	testutil.WriteFile(t, path, []byte("two"))
	repo.CheckIn("notes/b.txt", "")
	testutil.WriteFile(t, path, []byte("scratch"))

	v, err := repo.CheckOut("notes/b.txt", 0)
	if err != nil || v != 2 {
		t.Fatalf("CheckOut(latest) = %d, %v; want 2", v, err)
	}
	if got := string(testutil.ReadFile(t, path)); got != "two" {
		t.Errorf("working copy = %q, want %q", got, "two")
	}

	out := filepath.Join(t.TempDir(), "copy.txt")
	if _, err := repo.CheckOutTo("notes/b.txt", 1, out); err != nil {
		t.Fatalf("CheckOutTo() error = %v", err)
	}
	if got := string(testutil.ReadFile(t, out)); got != "one" {
		t.Errorf("output = %q, want %q", got, "one")
	}

	if _, err := repo.CheckOut("missing.txt", 0); !errors.Is(err, vcs.ErrNotFound) {
		t.Errorf("CheckOut(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_Filename(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "status")

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "a.txt", want: "a.txt"},
		{raw: "./dir/../a.txt", want: "a.txt"},
		{raw: filepath.Join(dir, "sub", "c.txt"), want: "sub/c.txt"},
		{raw: "", wantErr: true},
		{raw: ".", wantErr: true},
		{raw: "../outside.txt", wantErr: true},
		{raw: filepath.Join(filepath.Dir(dir), "elsewhere.txt"), wantErr: true},
		{raw: ".vcs/versions.meta", wantErr: true},
		{raw: "a|b.txt", wantErr: true},
	}
	for _, tt := range tests {
		got, err := repo.Filename(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, vcs.ErrInvalidArgument) {
				t.Errorf("Filename(%q) error = %v, want ErrInvalidArgument", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("Filename(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestRepository_SQLiteLedger(t *testing.T) {
	dir := initRepo(t, func(cfg *config.Config) {
		cfg.Ledger.Type = "sqlite"
		cfg.Ledger.Path = config.DefaultLedgerPath("sqlite")
	})

	if _, err := os.Stat(filepath.Join(dir, ".vcs", "versions.db")); err != nil {
		t.Fatalf("versions.db not created: %v", err)
	}

	repo := loadRepo(t, dir, "checkin")
	testutil.WriteFile(t, filepath.Join(dir, "a.txt"), []byte("hello"))
	if _, err := repo.CheckIn("a.txt", "via sqlite"); err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}
	repo.Close()

	reopened := loadRepo(t, dir, "list")
	records, err := reopened.ListVersions("a.txt")
	if err != nil {
		t.Fatalf("ListVersions() error = %v", err)
	}
	if len(records) != 1 || records[0].Comment != "via sqlite" || records[0].Size != 5 {
		t.Errorf("records = %+v", records)
	}
}

func TestRepository_Encrypted(t *testing.T) {
	dir := initRepo(t, func(cfg *config.Config) {
		cfg.Encryption.Type = "test"
	})
	repo := loadRepo(t, dir, "checkin")
	path := filepath.Join(dir, "secret.txt")

	testutil.WriteFile(t, path, []byte("plaintext"))
	if _, err := repo.CheckIn("secret.txt", ""); err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}

	stored := testutil.ReadFile(t, filepath.Join(dir, ".vcs", "versions", store.ContainerName("secret.txt"), "v1"))
	if bytes.Equal(stored, []byte("plaintext")) {
		t.Error("stored snapshot is plaintext")
	}

	testutil.WriteFile(t, path, []byte("changed"))
	if _, err := repo.CheckOut("secret.txt", 1); err != nil {
		t.Fatalf("CheckOut() error = %v", err)
	}
	if got := string(testutil.ReadFile(t, path)); got != "plaintext" {
		t.Errorf("working copy = %q, want %q", got, "plaintext")
	}

	status, err := repo.Status("secret.txt")
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if status.Modified {
		t.Error("Status() reports modified after checkout")
	}
}

func TestRepository_CheckLedger(t *testing.T) {
	for _, ledgerType := range []string{"text", "sqlite"} {
		t.Run(ledgerType, func(t *testing.T) {
			dir := initRepo(t, func(cfg *config.Config) {
				cfg.Ledger.Type = ledgerType
				cfg.Ledger.Path = config.DefaultLedgerPath(ledgerType)
			})
			repo := loadRepo(t, dir, "verify")

			if err := repo.CheckLedger(); err != nil {
				t.Errorf("CheckLedger() error = %v", err)
			}
		})
	}
}

func TestRepository_Files(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "list")

	for _, name := range []string{"b.txt", "a.txt", "dir/c.txt"} {
		testutil.WriteFile(t, filepath.Join(dir, filepath.FromSlash(name)), []byte(name))
		if _, err := repo.CheckIn(name, ""); err != nil {
			t.Fatalf("CheckIn(%s) error = %v", name, err)
		}
	}
	repo.CheckIn("a.txt", "again")

	got := strings.Join(repo.Files(), ",")
	if got != "a.txt,b.txt,dir/c.txt" {
		t.Errorf("Files() = %s, want a.txt,b.txt,dir/c.txt", got)
	}
}

func TestRepository_Verify(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "verify")

	testutil.WriteFile(t, filepath.Join(dir, "a.txt"), []byte("abc"))
	repo.CheckIn("a.txt", "")
	os.Remove(filepath.Join(dir, ".vcs", "versions", store.ContainerName("a.txt"), "v1"))

	issues, err := repo.Verify()
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if len(issues) != 1 || issues[0].Problem != "snapshot missing" {
		t.Errorf("Verify() = %v", issues)
	}
}

func TestRepository_LogFile(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "checkin")

	testutil.WriteFile(t, filepath.Join(dir, "a.txt"), []byte("abc"))
	_, err := repo.CheckIn("a.txt", "")
	repo.Finish(err)
	repo.Close()

	log := string(testutil.ReadFile(t, filepath.Join(dir, ".vcs", "log", LogFileName)))
	for _, want := range []string{
		"repository initialized",
		"\tchecked in\top=checkin\tfile=a.txt\tversion=1",
		"operation finished\top=checkin\tstatus=success",
	} {
		if !strings.Contains(log, want) {
			t.Errorf("log missing %q:\n%s", want, log)
		}
	}
}

func TestRepository_VerboseMirror(t *testing.T) {
	dir := initRepo(t, nil)

	var stderr bytes.Buffer
	opts := testOptions("list")
	opts.Verbose = true
	opts.Stderr = &stderr

	repo, err := Load(dir, opts)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	repo.Close()

	if !strings.Contains(stderr.String(), "operation finished") {
		t.Errorf("stderr = %q, want mirrored log lines", stderr.String())
	}
}

func TestRepository_CloseReleasesRecords(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "checkin")

	testutil.WriteFile(t, filepath.Join(dir, "a.txt"), []byte("abc"))
	repo.CheckIn("a.txt", "")

	if err := repo.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if repo.ledger.Len() != 0 {
		t.Errorf("ledger.Len() after Close = %d, want 0", repo.ledger.Len())
	}
	if _, err := os.Stat(filepath.Join(dir, ".vcs", "versions", store.ContainerName("a.txt"), "v1")); err != nil {
		t.Errorf("snapshot removed by Close: %v", err)
	}
}

func TestRepository_LongNonASCIIFilename(t *testing.T) {
	dir := initRepo(t, nil)
	repo := loadRepo(t, dir, "checkin")

	name := strings.Repeat("日", 83) + "x"
	testutil.WriteFile(t, filepath.Join(dir, name), []byte("one"))
	if _, err := repo.CheckIn(name, ""); err != nil {
		t.Fatalf("CheckIn() error = %v", err)
	}

	testutil.WriteFile(t, filepath.Join(dir, name), []byte("two"))
	if _, err := repo.CheckOut(name, 1); err != nil {
		t.Fatalf("CheckOut() error = %v", err)
	}
	if got := string(testutil.ReadFile(t, filepath.Join(dir, name))); got != "one" {
		t.Errorf("working copy = %q, want %q", got, "one")
	}
}
