package main

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"vcs-go/internal/app"
	"vcs-go/internal/config"
	"vcs-go/internal/vcs"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// passphrase reads VCS_PASSPHRASE, or prompts once on a terminal.
var passphrase = sync.OnceValues(func() (string, error) {
	if p, ok := app.PassphraseFromEnv(); ok {
		return p, nil
	}
	return promptPassphrase("Passphrase: ")
})

func promptPassphrase(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for passphrase prompt; set %s", app.EnvPassphrase)
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

// newPassphrase asks for a new passphrase twice when prompting.
func newPassphrase() (string, error) {
	if p, ok := app.PassphraseFromEnv(); ok {
		return p, nil
	}
	p, err := promptPassphrase("New passphrase: ")
	if err != nil {
		return "", err
	}
	confirm, err := promptPassphrase("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if p != confirm {
		return "", fmt.Errorf("passphrases do not match")
	}
	return p, nil
}

func options(operation string) app.Options {
	return app.Options{
		Operation:  operation,
		Verbose:    verbose,
		Stderr:     os.Stderr,
		Passphrase: passphrase,
	}
}

// withRepo loads the repository for operation, runs fn and closes it.
func withRepo(operation string, fn func(*app.Repository) error) (err error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return fmt.Errorf("getting defaults: %w", err)
	}

	repo, err := app.Load(defaults["base_dir"], options(operation))
	if err != nil {
		return err
	}
	defer func() {
		repo.Finish(err)
		if closeErr := repo.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(repo)
}

func parseVersion(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%w: version must be a positive integer, got %q", vcs.ErrInvalidArgument, s)
	}
	return v, nil
}

var rootCmd = &cobra.Command{
	Use:          "vcs",
	Short:        "Minimal local version control",
	SilenceUsage: true,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a repository in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ledgerType, _ := cmd.Flags().GetString("ledger")
		encrypt, _ := cmd.Flags().GetBool("encrypt")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}

		cfg := config.NewConfig(uuid.New().String())
		cfg.Ledger.Type = ledgerType
		cfg.Ledger.Path = config.DefaultLedgerPath(ledgerType)
		if encrypt {
			cfg.Encryption.Type = "age"
		}

		opts := options("init")
		opts.Passphrase = newPassphrase
		if err := app.Init(defaults["base_dir"], cfg, opts); err != nil {
			return fmt.Errorf("init: %w", err)
		}

		fmt.Printf("Initialized repository in %s\n", defaults["base_dir"])
		fmt.Printf("Repo ID: %s\n", cfg.RepoID)
		return nil
	},
}

var checkinCmd = &cobra.Command{
	Use:   "checkin FILE [COMMENT]",
	Short: "Record a new version of a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		comment := vcs.DefaultComment
		if len(args) > 1 {
			comment = args[1]
		}

		return withRepo("checkin", func(r *app.Repository) error {
			v, err := r.CheckIn(args[0], comment)
			if err != nil {
				return fmt.Errorf("checkin %s: %w", args[0], err)
			}
			fmt.Printf("Checked in %s as version %d\n", args[0], v)
			return nil
		})
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout FILE [VERSION]",
	Short: "Restore a version of a file",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		version := 0
		if len(args) > 1 {
			v, err := parseVersion(args[1])
			if err != nil {
				return err
			}
			version = v
		}

		return withRepo("checkout", func(r *app.Repository) error {
			var (
				v   int
				err error
			)
			if output != "" {
				v, err = r.CheckOutTo(args[0], version, output)
			} else {
				v, err = r.CheckOut(args[0], version)
			}
			if err != nil {
				return fmt.Errorf("checkout %s: %w", args[0], err)
			}

			if output != "" {
				fmt.Printf("Checked out %s version %d to %s\n", args[0], v, output)
			} else {
				fmt.Printf("Checked out %s version %d\n", args[0], v)
			}
			return nil
		})
	},
}

var listCmd = &cobra.Command{
	Use:   "list [FILE]",
	Short: "List the versions of a file, or every tracked file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo("list", func(r *app.Repository) error {
			if len(args) == 0 {
				files := r.Files()
				if len(files) == 0 {
					fmt.Println("No files tracked.")
					return nil
				}
				for _, f := range files {
					fmt.Println(f)
				}
				return nil
			}

			records, err := r.ListVersions(args[0])
			if err != nil {
				return fmt.Errorf("list %s: %w", args[0], err)
			}

			fmt.Printf("%-8s  %-16s  %10s  %-12s  %s\n", "Version", "Timestamp", "Size", "Hash", "Comment")
			for _, rec := range records {
				fmt.Printf("%-8d  %-16s  %10d  %-12s  %s\n",
					rec.Version,
					rec.Timestamp.Local().Format("2006-01-02 15:04"),
					rec.Size,
					rec.ShortHash(),
					rec.Comment,
				)
			}
			return nil
		})
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback FILE VERSION",
	Short: "Restore a version and record it as the newest",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseVersion(args[1])
		if err != nil {
			return err
		}

		return withRepo("rollback", func(r *app.Repository) error {
			v, err := r.Rollback(args[0], target)
			if err != nil {
				return fmt.Errorf("rollback %s to version %d: %w", args[0], target, err)
			}
			fmt.Printf("Rolled back %s to version %d (new version %d)\n", args[0], target, v)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status FILE",
	Short: "Compare a file with its latest version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo("status", func(r *app.Repository) error {
			s, err := r.Status(args[0])
			if err != nil {
				return fmt.Errorf("status %s: %w", args[0], err)
			}

			state := "unchanged"
			switch {
			case s.Missing:
				state = "missing"
			case s.Modified:
				state = "modified"
			}
			fmt.Printf("%s: %s since version %d\n", s.Filename, state, s.Latest)
			return nil
		})
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that every recorded version is stored intact",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo("verify", func(r *app.Repository) error {
			if err := r.CheckLedger(); err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			issues, err := r.Verify()
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			if report := r.LoadReport(); report != nil && len(report.Skipped) > 0 {
				fmt.Printf("Ledger: %d line(s) skipped on load\n", len(report.Skipped))
			}
			if len(issues) == 0 {
				fmt.Println("All versions verified.")
				return nil
			}
			for _, issue := range issues {
				fmt.Println(issue)
			}
			return fmt.Errorf("verify: %d problem(s) found", len(issues))
		})
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View the repository configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRepo("config", func(r *app.Repository) error {
			cfg := r.Config()
			fmt.Printf("Configuration from %s:\n\n", config.PathFor(r.BasePath()))
			fmt.Printf("Repo ID:    %s\n", cfg.RepoID)
			fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
			fmt.Printf("Log Level:  %s\n", cfg.LogLevel)
			fmt.Printf("Store:      %s %s\n", cfg.Store.Type, cfg.Store.Root)
			fmt.Printf("Ledger:     %s %s\n", cfg.Ledger.Type, cfg.Ledger.Path)
			fmt.Printf("Encryption: %s\n", cfg.Encryption.Type)
			fmt.Printf("Versions:   %d\n", r.TotalVersions())
			return nil
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror log output to stderr")

	rootCmd.AddCommand(initCmd)
	initCmd.Flags().String("ledger", "text", "Ledger storage: text or sqlite")
	initCmd.Flags().Bool("encrypt", false, "Encrypt stored versions with age")

	rootCmd.AddCommand(checkinCmd)
	rootCmd.AddCommand(checkoutCmd)
	checkoutCmd.Flags().StringP("output", "o", "", "Write the version to PATH instead of the working copy")
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(rollbackCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(configCmd)
}
