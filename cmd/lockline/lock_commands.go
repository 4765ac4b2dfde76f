package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lockline/internal/ipc"
)

func newLockCommand(ctx *commandContext) *cobra.Command {
	lockCmd := &cobra.Command{
		Use:   "lock",
		Short: "Frequency lock control",
	}

	engageCmd := &cobra.Command{
		Use:   "engage",
		Short: "Engage the lock and keep it maintained",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LockEngage()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Engaged {
					return fmt.Errorf("lock not engaged: %s", resp.Message)
				}
				fmt.Fprintln(out, "Lock engaged; balancer and relocker running")
				return nil
			})
		},
	}

	releaseCmd := &cobra.Command{
		Use:   "release",
		Short: "Release the lock",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.LockRelease()
				if err != nil {
					return err
				}
				if !resp.Released {
					return fmt.Errorf("lock not released")
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Lock released")
				return nil
			})
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the lock state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("Lock", lockStatusKind(resp.Lock), resp.Lock, colorize))
				fmt.Fprintln(out, renderStatusLine("Lockbox level", statusInfo, fmt.Sprintf("%.3f", resp.LockboxLevel), colorize))
				fmt.Fprintln(out, renderStatusLine("Maintenance", statusInfo, yesNo(resp.Maintaining), colorize))
				return nil
			})
		},
	}

	lockCmd.AddCommand(engageCmd)
	lockCmd.AddCommand(releaseCmd)
	lockCmd.AddCommand(statusCmd)
	return lockCmd
}
