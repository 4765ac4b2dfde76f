package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockline/internal/ipc"
)

func newScanCommand(ctx *commandContext) *cobra.Command {
	var relRange float64

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Acquire one spectroscopy scan and report what it shows",
		RunE: func(cmd *cobra.Command, args []string) error {
			if relRange < 0 || relRange > 1 {
				return fmt.Errorf("scan range %v outside (0, 1]", relRange)
			}
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Scan(relRange)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				rows := [][]string{{
					fmt.Sprintf("%d", resp.Samples),
					fmt.Sprintf("%.2f", resp.RelRange),
					formatLine(resp.Line),
				}}
				fmt.Fprintln(out, renderTable(
					[]column{
						{title: "Samples", numeric: true},
						{title: "Range", numeric: true},
						{title: "Doppler Line"},
					},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&relRange, "range", 1, "Swept fraction of the full tuning range, (0, 1]; 0 reuses the previous range")
	return cmd
}

func formatLine(line *ipc.DopplerLine) string {
	if line == nil {
		return "none found"
	}
	return fmt.Sprintf("depth %.3f at %+.0f MHz", line.Depth, line.DistanceMHz)
}
