package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

// ExecuteContext runs the CLI with ctx available to commands; run stops
// when ctx is cancelled.
func ExecuteContext(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "statusbot",
		Short:         "IRC status meeting bot",
		Long:          "statusbot runs a daily status meeting in an IRC channel, mails the minutes and relays task-board activity.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newMinutesCmd(),
		newEncryptCmd(),
		newNextCmd(time.Now),
	)

	return rootCmd
}
