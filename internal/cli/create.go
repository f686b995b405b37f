package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(createCmd)
}

var createCmd = &cobra.Command{
	Use:   "create <service-id>",
	Short: "Contact the provider of a service",
	Long: `Start a conversation with the provider of a service listing.

Contacting the same service again returns the existing conversation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, appOptions{})
		if err != nil {
			return err
		}
		defer a.Close()

		thread, err := a.client.CreateThread(ctx, strings.TrimSpace(args[0]))
		if err != nil {
			return describeError("create thread", err)
		}
		a.rememberThread(thread.ThreadID, thread.ServiceTitle)

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(cmd.OutOrStdout(), thread)
		}
		fmt.Fprintln(cmd.OutOrStdout(), thread.ThreadID)
		PrintNextSteps(cmd.OutOrStdout(), HintContext{Action: "create", ThreadID: thread.ThreadID})
		return nil
	},
}
