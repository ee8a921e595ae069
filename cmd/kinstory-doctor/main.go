// Command kinstory-doctor finds and repairs duplicate identities and
// dangling edges in a kinstory store, and backs up or restores a sqlite
// store. Repairs on a sqlite store are announced to a running kinstory-web
// through the data directory.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/scrypster/kinstory/internal/config"
	"github.com/scrypster/kinstory/internal/engine"
	"github.com/scrypster/kinstory/internal/notify"
	"github.com/scrypster/kinstory/internal/storage"
	"github.com/scrypster/kinstory/internal/storage/backends"
)

var (
	warn = color.New(color.FgYellow)
	good = color.New(color.FgGreen)
	bold = color.New(color.Bold)
)

type options struct {
	engine   string
	dataPath string
	dsn      string
	owner    string
	fix      bool

	store  storage.Store
	events notifier
}

// notifier announces a repair to other processes.
type notifier interface {
	Notify(t engine.EventType, owner string, id int64) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(engine.EventType, string, int64) error { return nil }

// skipStore marks commands that must not hold the store open.
const skipStore = "skip-store"

func (o *options) localData() bool {
	return (o.engine == "sqlite" || o.engine == "") && o.dataPath != ":memory:"
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cfg, loadErr := config.Load()
	if loadErr != nil {
		cfg = config.Default()
	}

	root := &cobra.Command{
		Use:           "kinstory-doctor",
		Short:         "Find and repair duplicate people and dangling edges",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				warn.Fprintf(cmd.ErrOrStderr(), "%v (using defaults)\n", loadErr)
			}
			if opts.events == nil {
				opts.events = nopNotifier{}
				if opts.localData() {
					opts.events = notify.NewWriter(opts.dataPath)
				}
			}
			if opts.store != nil || cmd.Annotations[skipStore] != "" {
				return nil
			}
			store, err := backends.Open(cmd.Context(), config.StorageConfig{
				Engine:      opts.engine,
				DataPath:    opts.dataPath,
				PostgresDSN: opts.dsn,
			}, nil)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			opts.store = store
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.store == nil {
				return nil
			}
			return opts.store.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.engine, "engine", cfg.Storage.Engine, "storage engine (sqlite or postgres)")
	flags.StringVar(&opts.dataPath, "data-path", cfg.Storage.DataPath, "sqlite data directory")
	flags.StringVar(&opts.dsn, "dsn", cfg.Storage.PostgresDSN, "postgres connection string")
	flags.StringVar(&opts.owner, "owner", "", "limit to one owner (default: every owner)")
	flags.BoolVar(&opts.fix, "fix", false, "repair what is found")

	backupDir := cfg.Backup.Dir
	flags.StringVar(&backupDir, "backup-dir", backupDir, "backup directory (default: {data-path}/backups)")
	dirOf := func() string {
		if backupDir != "" {
			return backupDir
		}
		return filepath.Join(opts.dataPath, "backups")
	}

	root.AddCommand(
		newDuplicatesCmd(opts),
		newDanglingCmd(opts),
		newBackupCmd(opts, dirOf),
		newRestoreCmd(opts, dirOf),
	)
	return root
}

func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
