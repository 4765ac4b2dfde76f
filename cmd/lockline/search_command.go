package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockline/internal/ipc"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "search",
		Short: "Find the target transition and center the laser on it",
		Long:  "Runs the prelock search: steps the laser across its tuning range until the target doppler line is found, then centers on it without engaging the servo.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Search()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Laser parked on target transition (residual %+.0f MHz)\n", resp.ResidualMHz)
				return nil
			})
		},
	}
}
