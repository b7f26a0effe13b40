package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/antlu/statusbot/internal/config"
)

const timeLayout = "Mon Jan 2 15:04 MST"

func newNextCmd(now func() time.Time) *cobra.Command {
	return &cobra.Command{
		Use:   "next",
		Short: "Print when the next meeting opens, reminds and closes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			open, remind, close := cfg.Schedule.Upcoming(now())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "opens:   %s\n", open.Format(timeLayout))
			if !remind.IsZero() {
				fmt.Fprintf(out, "reminds: %s\n", remind.Format(timeLayout))
			}
			_, err = fmt.Fprintf(out, "closes:  %s\n", close.Format(timeLayout))
			return err
		},
	}
}
