package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"afropedia/api/internal/auth"
	"afropedia/api/internal/rbac"
)

// tokenCmd mints an identity token signed with the configured secret, for
// local development against the API.
func tokenCmd() *cobra.Command {
	var (
		subject string
		name    string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development identity token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if subject == "" {
				return fmt.Errorf("--sub is required")
			}
			parsed, err := rbac.Parse(role)
			if err != nil {
				return err
			}
			cfg := loadConfig()
			token, err := auth.IssueToken([]byte(cfg.TokenSecret), auth.Claims{
				Sub:  subject,
				Name: name,
				Role: string(parsed),
				Exp:  time.Now().Add(ttl).Unix(),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&role, "role", string(rbac.RoleEditor), "user, editor, moderator or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
