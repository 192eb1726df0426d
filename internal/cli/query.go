package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/goxatu"
	"github.com/ethpandaops/goxatu/internal/chaintime"
	"github.com/ethpandaops/goxatu/internal/query"
)

const commandTimeout = 5 * time.Minute

// openClient loads the configuration and constructs the facade client.
func openClient() (*goxatu.Client, error) {
	client, err := goxatu.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading client: %w", err)
	}
	return client, nil
}

// printParams writes bound query parameters in sorted name order so
// dry-run output is stable run to run.
func printParams(w io.Writer, params map[string]string) {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, params[name])
	}
}

// parseSlotRange parses "start:end" as a half-open slot interval.
func parseSlotRange(s string) (*query.SlotRange, error) {
	start, end, ok := strings.Cut(s, ":")
	if !ok {
		return nil, fmt.Errorf("invalid slot range %q, expected start:end", s)
	}
	lo, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid range start %q", start)
	}
	hi, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid range end %q", end)
	}
	return &query.SlotRange{Start: lo, End: hi}, nil
}

func newQueryCmd() *cobra.Command {
	var (
		columns  []string
		slot     int64
		slotsArg string
		network  string
		where    string
		orderBy  []string
		groupBy  []string
		limit    int
		format   string
		final    bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "query <table>",
		Short: "Run a query against one dataset table",
		Long: `Runs a structured query against a table and prints the results.

Columns, filters, and ordering are validated against the table schema
before anything reaches the backend; values are always sent as bound
parameters.

Examples:
  # Ten canonical blocks from a slot range
  goxatu query canonical_beacon_block --slots 9000000:9000010 --columns slot,proposer_index

  # A single slot, all of its withdrawals as JSON
  goxatu query canonical_beacon_block_withdrawal --slot 9000000 --columns slot,withdrawal_amount --format json

  # Print the compiled SQL without executing it
  goxatu query canonical_beacon_block --slots 9000000:9000010 --columns slot --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := query.Spec{
				Table:    args[0],
				Columns:  columns,
				RawWhere: where,
				OrderBy:  orderBy,
				GroupBy:  groupBy,
				Limit:    limit,
				Network:  chaintime.Network(network),
				Final:    final,
			}
			if cmd.Flags().Changed("slot") {
				spec.Slot = &slot
			}
			if slotsArg != "" {
				r, err := parseSlotRange(slotsArg)
				if err != nil {
					return err
				}
				spec.SlotRange = r
			}

			client, err := openClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if dryRun {
				compiled, err := client.Build(spec)
				if err != nil {
					return err
				}
				fmt.Println(compiled.SQL)
				printParams(os.Stderr, compiled.Params)
				return nil
			}

			ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
			defer cancel()

			rows, err := client.Run(ctx, spec)
			if err != nil {
				return err
			}

			outCols := columns
			if len(columns) == 1 && columns[0] == "*" {
				table, ok := client.Registry().Table(spec.Table)
				if !ok {
					return fmt.Errorf("unknown table %s", spec.Table)
				}
				outCols = table.ColumnNames()
			}
			return printRows(os.Stdout, rows, outCols, format)
		},
	}

	cmd.Flags().StringSliceVarP(&columns, "columns", "c", []string{"*"}, "columns to select")
	cmd.Flags().Int64Var(&slot, "slot", 0, "restrict to a single slot")
	cmd.Flags().StringVar(&slotsArg, "slots", "", "half-open slot range start:end")
	cmd.Flags().StringVarP(&network, "network", "n", "mainnet", "network (mainnet, sepolia, holesky)")
	cmd.Flags().StringVarP(&where, "where", "w", "", "extra WHERE condition")
	cmd.Flags().StringSliceVar(&orderBy, "order-by", nil, "order by columns, '-' prefix for descending")
	cmd.Flags().StringSliceVar(&groupBy, "group-by", nil, "group by columns")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "row limit, 0 for unlimited")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table, csv, json)")
	cmd.Flags().BoolVar(&final, "final", false, "add the FINAL modifier")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the compiled SQL instead of executing")

	return cmd
}
