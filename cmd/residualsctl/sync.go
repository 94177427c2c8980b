package main

import (
	"fmt"
	"text/tabwriter"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/mmynk/residuals/pkg/api"
)

func syncCmd(opts *globalOptions) *cobra.Command {
	var (
		mid       string
		payoutIDs []string
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile payouts with the ledger",
		Long: `Push local payouts to the ledger, collapsing duplicate records.
Without flags every payout is reconciled. Orphaned ledger records are
reported but never deleted; see "orphans delete".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := opts.syncClient().SyncNow(cmd.Context(), connect.NewRequest(&api.SyncRequest{
				MID:       mid,
				PayoutIDs: payoutIDs,
			}))
			if err != nil {
				return err
			}
			if opts.json {
				return printJSON(cmd.OutOrStdout(), resp.Msg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %d, updated %d, deleted %d, unchanged %d, duplicates %d\n",
				resp.Msg.Created, resp.Msg.Updated, resp.Msg.Deleted, resp.Msg.Unchanged, resp.Msg.Duplicates)
			if len(resp.Msg.Orphans) > 0 {
				fmt.Fprintf(out, "%d orphaned records:\n", len(resp.Msg.Orphans))
				printOrphans(cmd, resp.Msg.Orphans)
			}
			for _, e := range resp.Msg.Errors {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", e)
			}
			if len(resp.Msg.Errors) > 0 {
				return fmt.Errorf("sync finished with %d errors", len(resp.Msg.Errors))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mid, "mid", "", "Only reconcile payouts of this merchant ID")
	cmd.Flags().StringSliceVar(&payoutIDs, "payout", nil, "Only reconcile these payout IDs")
	return cmd
}

func printOrphans(cmd *cobra.Command, orphans []api.Orphan) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECORD\tPAYOUT\tMID\tPARTNER\tAMOUNT")
	for _, o := range orphans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.RecordID, o.PayoutID, o.MID, o.Partner, o.Amount)
	}
	w.Flush()
}
