package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ethpandaops/goxatu/internal/clickhouse"
)

// printRows renders query results in the requested format. Columns fixes
// the output order; JSONEachRow responses carry no column ordering.
func printRows(w io.Writer, rows []clickhouse.Row, columns []string, format string) error {
	switch format {
	case "table":
		return printTable(w, rows, columns)
	case "csv":
		return printCSV(w, rows, columns)
	case "json":
		return printJSON(w, rows)
	default:
		return fmt.Errorf("invalid format: %s (must be table, csv, or json)", format)
	}
}

func printTable(w io.Writer, rows []clickhouse.Row, columns []string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for i, col := range columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, col)
	}
	fmt.Fprintln(tw)

	for i := range columns {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, "---")
	}
	fmt.Fprintln(tw)

	for _, row := range rows {
		for i, col := range columns {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, formatCell(row[col]))
		}
		fmt.Fprintln(tw)
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n(%d rows)\n", len(rows))
	return nil
}

func printCSV(w io.Writer, rows []clickhouse.Row, columns []string) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, col := range columns {
			record[i] = formatCell(row[col])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	return nil
}

func printJSON(w io.Writer, rows []clickhouse.Row) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func formatCell(val any) string {
	if val == nil {
		return "NULL"
	}
	switch v := val.(type) {
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
