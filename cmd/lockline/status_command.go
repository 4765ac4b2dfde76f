package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"lockline/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon and lock status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			client, err := ctx.dialClient()
			if err != nil {
				writeSectionHeader(out, "Lockline Daemon", colorize)
				fmt.Fprintln(out, renderStatusLine("Daemon", statusError, "offline", colorize))
				fmt.Fprintln(out, renderStatusLine("Socket", statusInfo, ctx.socketPath(), colorize))
				return nil
			}
			defer client.Close()

			status, err := client.Status()
			if err != nil {
				return err
			}
			printStatus(out, ctx, client, status, colorize)
			return nil
		},
	}
}

func printStatus(out io.Writer, ctx *commandContext, client *ipc.Client, status *ipc.StatusResponse, colorize bool) {
	writeSectionHeader(out, "Lockline Daemon", colorize)
	if status.Running {
		uptime := time.Duration(status.UptimeSeconds * float64(time.Second)).Round(time.Second)
		fmt.Fprintln(out, renderStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d, up %s)", status.PID, uptime), colorize))
	} else {
		fmt.Fprintln(out, renderStatusLine("Daemon", statusWarn, "stopped", colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Socket", statusInfo, ctx.socketPath(), colorize))

	writeSectionHeader(out, "Frequency Lock", colorize)
	fmt.Fprintln(out, renderStatusLine("Lock", lockStatusKind(status.Lock), status.Lock, colorize))
	fmt.Fprintln(out, renderStatusLine("Lockbox level", statusInfo, fmt.Sprintf("%.3f", status.LockboxLevel), colorize))
	fmt.Fprintln(out, renderStatusLine("Maintenance", statusInfo, yesNo(status.Maintaining), colorize))
	daqKind := statusOK
	if !status.DAQOnline {
		daqKind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("DAQ", daqKind, yesNo(status.DAQOnline), colorize))

	health, err := client.ArchiveHealth()
	if err != nil {
		return
	}
	printer := message.NewPrinter(language.English)
	writeSectionHeader(out, "Scan Archive", colorize)
	fmt.Fprintln(out, renderStatusLine("Database", statusInfo, health.DBPath, colorize))
	fmt.Fprintln(out, renderStatusLine("Scans", statusInfo, printer.Sprintf("%d", health.Scans), colorize))
	fmt.Fprintln(out, renderStatusLine("Lock events", statusInfo, printer.Sprintf("%d", health.LockEvents), colorize))
	if !health.OldestScan.IsZero() {
		fmt.Fprintln(out, renderStatusLine("Oldest scan", statusInfo, health.OldestScan.Local().Format(time.RFC3339), colorize))
	}
}
