package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockline/internal/ipc"
)

func newLocateCommand(ctx *commandContext) *cobra.Command {
	var near float64

	cmd := &cobra.Command{
		Use:   "locate",
		Short: "Match the current signal against the reference spectrum",
		Long:  "Acquires one scan and cross-correlates it against the configured reference spectrum, reporting where on the reference the laser currently sits. --near biases disambiguation toward an expected position.",
		RunE: func(cmd *cobra.Command, args []string) error {
			var hint *float64
			if cmd.Flags().Changed("near") {
				hint = &near
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Locate(hint)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{
						{title: "Position", numeric: true},
						{title: "Quality", numeric: true},
						{title: "Reliability", numeric: true},
					},
					[][]string{{
						fmt.Sprintf("%.1f", resp.Position),
						fmt.Sprintf("%.3f", resp.Quality),
						fmt.Sprintf("%.3f", resp.Reliability),
					}},
				))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&near, "near", 0, "Expected position in reference units, used to break ties")
	return cmd
}
