package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"recruit-comms/internal/auth"
	"recruit-comms/internal/rbac"
)

var tokenFlags struct {
	user, org, role string
	ttl             time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an access token for an operator",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := auth.NewManager(cfg.Auth)
		if err != nil {
			return err
		}
		tok, err := m.IssueAccess(time.Now(), auth.Identity{
			UserID:         tokenFlags.user,
			OrganizationID: tokenFlags.org,
			Role:           tokenFlags.role,
		}, tokenFlags.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.user, "user", "", "user id (subject)")
	f.StringVar(&tokenFlags.org, "org", "", "organization id")
	f.StringVar(&tokenFlags.role, "role", rbac.RoleAdmin, "role")
	f.DurationVar(&tokenFlags.ttl, "ttl", time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	_ = tokenCmd.MarkFlagRequired("org")
	rootCmd.AddCommand(tokenCmd)
}
