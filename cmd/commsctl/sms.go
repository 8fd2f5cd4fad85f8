package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"recruit-comms/internal/app"
)

var (
	smsProvider string
	smsTo       string
)

var smsCmd = &cobra.Command{
	Use:   "sms",
	Short: "Notification provider diagnostics",
}

var smsTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test message through one provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app.App) error {
			provider := smsProvider
			if provider == "" {
				provider = a.Notify.DefaultProvider()
			}
			if provider == "" {
				return fmt.Errorf("no notification provider configured")
			}
			if err := a.Notify.TestProvider(cmd.Context(), provider, smsTo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent test message via %s to %s\n", provider, smsTo)
			return nil
		})
	},
}

func init() {
	smsTestCmd.Flags().StringVar(&smsProvider, "provider", "", "provider name (default: the selected default provider)")
	smsTestCmd.Flags().StringVar(&smsTo, "to", "", "recipient phone number")
	_ = smsTestCmd.MarkFlagRequired("to")
	smsCmd.AddCommand(smsTestCmd)
	rootCmd.AddCommand(smsCmd)
}
