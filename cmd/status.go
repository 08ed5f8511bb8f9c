package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <deal-id>",
	Short: "Show the current stage of a deal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initReadOnly(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		status, err := env.Pipeline.Status(ctx, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Deal:    %s\n", status.DealID)
		if status.Name != "" {
			fmt.Fprintf(out, "Name:    %s\n", status.Name)
		}
		fmt.Fprintf(out, "Stage:   %s\n", status.Stage)
		if status.FailureReason != "" {
			fmt.Fprintf(out, "Reason:  %s\n", status.FailureReason)
		}
		fmt.Fprintf(out, "Updated: %s\n", status.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
