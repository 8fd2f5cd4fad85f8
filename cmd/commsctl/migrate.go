package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recruit-comms/internal/db/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or roll back the database schema",
}

func migrateDirection(direction string) *cobra.Command {
	return &cobra.Command{
		Use:   direction,
		Short: fmt.Sprintf("Run all %s migrations", direction),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if err := migrate.Run(cfg.MigrateURL(), direction); err != nil {
				return err
			}
			v, dirty, err := migrate.Version(cfg.MigrateURL())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s ok: version=%d dirty=%t\n", direction, v, dirty)
			return nil
		},
	}
}

func init() {
	migrateCmd.AddCommand(migrateDirection("up"), migrateDirection("down"))
	rootCmd.AddCommand(migrateCmd)
}
