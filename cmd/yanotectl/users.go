package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/yanote/internal/auth"
	"github.com/kuitang/yanote/internal/email"
	"github.com/kuitang/yanote/internal/forms"
)

func newCreateUserCmd(withEnv envRunner) *cobra.Command {
	var emailAddr, password string

	cmd := &cobra.Command{
		Use:   "createuser USERNAME",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			form := auth.SignupForm{
				Username:  strings.TrimSpace(args[0]),
				Email:     strings.TrimSpace(emailAddr),
				Password1: password,
				Password2: password,
			}
			if errs := form.Validate(); errs.Any() {
				return fmt.Errorf("invalid account: %s", formatErrors(errs))
			}

			users := auth.NewUserService(e.db, email.NewMockEmailService(), e.cfg.BaseURL)
			user, err := users.Register(cmd.Context(), form.Username, form.Email, form.Password1)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s)\n", user.Username, user.ID)
			return nil
		}),
	}

	cmd.Flags().StringVar(&emailAddr, "email", "", "Email address (optional)")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newCleanupSessionsCmd(withEnv envRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup-sessions",
		Short: "Delete expired sessions",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			n, err := auth.NewSessionService(e.db, 0, false).Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired sessions\n", n)
			return nil
		}),
	}
}

func newLogoutCmd(withEnv envRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout USERNAME",
		Short: "End every session of a user",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, args []string, e *env) error {
			users := auth.NewUserService(e.db, email.NewMockEmailService(), e.cfg.BaseURL)
			user, err := users.GetByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := auth.NewSessionService(e.db, 0, false).DeleteByUserID(cmd.Context(), user.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged out %s everywhere\n", user.Username)
			return nil
		}),
	}
}

// formatErrors renders form errors as "field: message; ..." in field order.
func formatErrors(errs forms.Errors) string {
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+strings.Join(errs[field], " "))
	}
	return strings.Join(parts, "; ")
}
