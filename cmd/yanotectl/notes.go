package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kuitang/yanote/internal/auth"
	"github.com/kuitang/yanote/internal/email"
	"github.com/kuitang/yanote/internal/notes"
)

func newNotesCmd(withEnv envRunner) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "notes USERNAME",
		Short: "List a user's notes",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			users := auth.NewUserService(e.db, email.NewMockEmailService(), e.cfg.BaseURL)
			user, err := users.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			list, err := notes.NewService(e.db).List(cmd.Context(), user.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SLUG\tTITLE\tUPDATED")
			for _, n := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", n.Slug, n.Title, n.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
