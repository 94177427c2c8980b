package main

import (
	"fmt"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/mmynk/residuals/pkg/api"
)

func orphansCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orphans",
		Short: "Inspect and delete ledger records with no local payout",
	}
	cmd.AddCommand(orphansListCmd(opts))
	cmd.AddCommand(orphansDeleteCmd(opts))
	return cmd
}

func orphansListCmd(opts *globalOptions) *cobra.Command {
	var mid string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orphaned ledger records without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.syncClient().ListOrphans(cmd.Context(), connect.NewRequest(&api.SyncRequest{MID: mid}))
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp.Msg)
			}
			if len(resp.Msg.Orphans) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no orphaned records")
				return nil
			}
			printOrphans(cmd, resp.Msg.Orphans)
			return nil
		},
	}
	cmd.Flags().StringVar(&mid, "mid", "", "Only inspect records of this merchant ID")
	return cmd
}

func orphansDeleteCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <record-id>...",
		Short: "Delete orphaned ledger records",
		Long:  "Delete the given ledger records. Records still linked to a local payout are refused.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.syncClient().DeleteOrphans(cmd.Context(), connect.NewRequest(&api.DeleteOrphansRequest{RecordIDs: args}))
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp.Msg)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records\n", resp.Msg.Deleted)
			for _, e := range resp.Msg.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", e)
			}
			if len(resp.Msg.Errors) > 0 {
				return fmt.Errorf("%d records were not deleted", len(resp.Msg.Errors))
			}
			return nil
		},
	}
}
