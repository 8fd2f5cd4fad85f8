package main

import (
	"github.com/spf13/cobra"

	"recruit-comms/internal/app"
)

var twilioCmd = &cobra.Command{
	Use:   "twilio",
	Short: "Telephony gateway diagnostics",
}

var twilioStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Resolve telephony credentials and check the account live",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			return printJSON(cmd.OutOrStdout(), a.Calls.GetConnectionStatus(cmd.Context()))
		})
	},
}

func init() {
	twilioCmd.AddCommand(twilioStatusCmd)
	rootCmd.AddCommand(twilioCmd)
}
