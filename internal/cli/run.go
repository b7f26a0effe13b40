package cli

import (
	"github.com/spf13/cobra"

	"github.com/antlu/statusbot/internal/app"
	"github.com/antlu/statusbot/internal/config"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to IRC and run the meeting schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			bot, err := app.New(cfg)
			if err != nil {
				return err
			}
			return bot.Run(cmd.Context())
		},
	}
}
