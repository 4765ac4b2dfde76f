package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"lockline/internal/ipc"
)

func newEventsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the lock event journal, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Events(limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(resp.Events) == 0 {
					fmt.Fprintln(out, "No lock events recorded")
					return nil
				}

				rows := make([][]string, 0, len(resp.Events))
				for _, e := range resp.Events {
					rows = append(rows, []string{
						fmt.Sprintf("%d", e.ID),
						e.CreatedAt.Local().Format(time.DateTime),
						e.Event,
						e.Status,
						e.Detail,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]column{
						{title: "ID", numeric: true},
						{title: "Time"},
						{title: "Event"},
						{title: "Lock"},
						{title: "Detail"},
					},
					rows,
				))

				printer := message.NewPrinter(language.English)
				fmt.Fprintln(out, printer.Sprintf("%d events", len(resp.Events)))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of events to show")
	return cmd
}
