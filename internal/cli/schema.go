package cli

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	xerrors "github.com/ethpandaops/goxatu/internal/errors"
	"github.com/ethpandaops/goxatu/internal/schema"
)

func newSchemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema [table]",
		Short: "Show the queryable tables and their columns",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// The schema ships embedded in the binary; failing to load
			// it means the build itself is broken.
			registry, err := schema.Load()
			xerrors.Must(err, "loading embedded schema")

			if len(args) == 0 {
				return listTables(registry)
			}
			return describeTable(registry, args[0])
		},
	}
	return cmd
}

func listTables(registry *schema.Registry) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "table\tpartitioned by\tdescription")
	for _, name := range registry.TableNames() {
		table, _ := registry.Table(name)
		partition := table.PartitionColumn
		if partition == "" {
			partition = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, partition, table.Description)
	}
	return tw.Flush()
}

func describeTable(registry *schema.Registry, name string) error {
	table, ok := registry.Table(name)
	if !ok {
		return fmt.Errorf("unknown table %s, run 'goxatu schema' for the list", name)
	}

	color.New(color.Bold).Println(table.Name)
	fmt.Println(table.Description)
	fmt.Printf("networks: %s\n\n", strings.Join(table.Networks, ", "))

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "column\ttype")
	for _, col := range table.Columns {
		marker := ""
		if col.Name == table.PartitionColumn {
			marker = "  (partition)"
		}
		fmt.Fprintf(tw, "%s\t%s%s\n", col.Name, col.Type, marker)
	}
	return tw.Flush()
}
