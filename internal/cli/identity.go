package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankittk/signoff/internal/config"
	"github.com/ankittk/signoff/internal/identity"
)

func newIdentityCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Manage the default user for task commands",
	}
	cmd.AddCommand(newIdentityDetectCmd())
	cmd.AddCommand(newIdentityShowCmd())
	return cmd
}

func newIdentityDetectCmd() *cobra.Command {
	var repoDir string
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect the user from git config and save it as the default",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			id, err := identity.DetectAndSave(home, repoDir)
			if err != nil {
				return err
			}
			if id.User == "" {
				return errors.New("git has no user.name or user.email configured")
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Detected: %s <%s>\n", id.User, id.Email)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved to %s\n", identity.Path(home))
			return nil
		},
	}
	cmd.Flags().StringVar(&repoDir, "repo", "", "Git repo path (default: global git config)")
	return cmd
}

func newIdentityShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the saved default user",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			id, err := identity.Load(home)
			if err != nil {
				return err
			}
			if id == nil || id.User == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No identity saved (run `signoff identity detect`)")
				return nil
			}
			if id.Email != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\n", id.User, id.Email)
			} else {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), id.User)
			}
			return nil
		},
	}
	return cmd
}
