package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/scrypster/kinstory/internal/backup"
	"github.com/scrypster/kinstory/internal/storage/backends"
)

func newBackupCmd(opts *options, dir func() string) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:         "backup",
		Short:       "Back up the sqlite store, or list existing backups",
		Annotations: map[string]string{skipStore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.localData() {
				return fmt.Errorf("backup needs a sqlite store on disk")
			}
			out := cmd.OutOrStdout()

			if list {
				backups, err := backup.List(dir())
				if err != nil {
					return err
				}
				if len(backups) == 0 {
					warn.Fprintln(out, "No backups found.")
					return nil
				}
				for _, b := range backups {
					fmt.Fprintf(out, "  %s  %s  %d bytes\n",
						b.Timestamp.Format("2006-01-02 15:04:05"), filepath.Base(b.Path), b.Size)
				}
				return nil
			}

			svc, err := backup.NewService(backup.Config{
				DBPath: filepath.Join(opts.dataPath, backends.DatabaseFile),
				Dir:    dir(),
				Verify: true,
			}, nil)
			if err != nil {
				return err
			}
			result, err := svc.BackupNow(runContext(cmd))
			if err != nil {
				return err
			}
			good.Fprintf(out, "Backed up to %s (%d bytes, verified).\n", result.Path, result.Size)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list backups instead of taking one")
	return cmd
}

func newRestoreCmd(opts *options, dir func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Replace the sqlite store with a backup",
		Long: `Replace the sqlite store with a verified backup. A bare file name is
looked up in the backup directory. Stop kinstory-web first.`,
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipStore: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !opts.localData() {
				return fmt.Errorf("restore needs a sqlite store on disk")
			}
			src := args[0]
			if filepath.Base(src) == src {
				src = filepath.Join(dir(), src)
			}
			target := filepath.Join(opts.dataPath, backends.DatabaseFile)
			if err := backup.Restore(runContext(cmd), src, target); err != nil {
				return err
			}
			good.Fprintf(cmd.OutOrStdout(), "Restored %s from %s.\n", target, src)
			return nil
		},
	}
}
