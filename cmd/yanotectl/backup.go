package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/yanote/internal/backup"
)

func newBackupCmd(withEnv envRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export all notes to the backup bucket",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			key, err := backup.NewExporter(e.db, e.store).Export(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		}),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List existing backups",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			keys, err := backup.NewExporter(e.db, e.store).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, key := range keys {
				fmt.Fprintln(cmd.OutOrStdout(), key)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show KEY",
		Short: "Print per-user note counts of a backup",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			snap, err := backup.NewExporter(e.db, e.store).Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %s\n", snap.CreatedAt.Format(time.RFC3339))
			for _, u := range snap.Users {
				fmt.Fprintf(out, "%s\t%d\n", u.Username, len(u.Notes))
			}
			return nil
		}),
	})
	return cmd
}
