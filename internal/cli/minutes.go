package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/antlu/statusbot/internal/config"
	"github.com/antlu/statusbot/internal/meeting"
	"github.com/antlu/statusbot/internal/store"
)

func newMinutesCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "minutes",
		Short: "Print archived meeting minutes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			db, err := store.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			archived, err := db.ListMinutes(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("list minutes: %w", err)
			}
			if len(archived) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No minutes archived yet.")
				return err
			}

			out := cmd.OutOrStdout()
			for i, m := range archived {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "#%d %s, %s to %s\n", m.ID, m.Channel,
					m.OpenedAt.In(cfg.Schedule.Location).Format(time.DateTime),
					m.ClosedAt.In(cfg.Schedule.Location).Format(time.DateTime))
				fmt.Fprint(out, meeting.FormatMinutes(m.Minutes))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of meetings to show")
	return cmd
}
