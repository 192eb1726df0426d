package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/goxatu/internal/chaintime"
)

func newSlotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Slot-level analysis commands",
	}
	cmd.AddCommand(newMissedSlotsCmd())
	cmd.AddCommand(newReorgsCmd())
	return cmd
}

func newMissedSlotsCmd() *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "missed <start:end>",
		Short: "List slots with no canonical block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseSlotRange(args[0])
			if err != nil {
				return err
			}

			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			missed, err := client.Slots.MissedSlots(ctx, chaintime.Network(network), *r)
			if err != nil {
				return err
			}

			if len(missed) == 0 {
				color.Green("No missed slots in [%d, %d)", r.Start, r.End)
				return nil
			}
			for _, slot := range missed {
				fmt.Println(slot)
			}
			fmt.Fprintf(os.Stderr, "\n%d of %d slots missed\n", len(missed), r.End-r.Start)
			return nil
		},
	}

	cmd.Flags().StringVarP(&network, "network", "n", "mainnet", "network (mainnet, sepolia, holesky)")
	return cmd
}

func newReorgsCmd() *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "reorgs <start:end>",
		Short: "List slots reorged out of the chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := parseSlotRange(args[0])
			if err != nil {
				return err
			}

			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			reorgs, err := client.Slots.Reorgs(ctx, chaintime.Network(network), *r)
			if err != nil {
				return err
			}

			if len(reorgs) == 0 {
				color.Green("No reorgs in [%d, %d)", r.Start, r.End)
				return nil
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "slot\tdepth\told_head\tnew_head\tobserved")
			for _, reorg := range reorgs {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
					reorg.Slot, reorg.Depth,
					reorg.OldHeadBlock, reorg.NewHeadBlock,
					reorg.EventTime.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVarP(&network, "network", "n", "mainnet", "network (mainnet, sepolia, holesky)")
	return cmd
}
