// Package queries provides typed, table-specific access on top of the
// generic query client. Each module covers one slice of the beacon-chain
// dataset and returns domain structs instead of raw rows.
package queries

import (
	"context"

	"github.com/ethpandaops/goxatu/internal/chaintime"
	"github.com/ethpandaops/goxatu/internal/clickhouse"
	"github.com/ethpandaops/goxatu/internal/query"
)

// Runner executes compiled query specs. *clickhouse.Client satisfies it;
// tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, spec query.Spec) ([]clickhouse.Row, error)
}

// Filter narrows a module query. The zero value selects mainnet with no
// slot restriction.
type Filter struct {
	// Slot restricts to a single slot. Mutually exclusive with Range.
	Slot *int64

	// Range restricts to a half-open [Start, End) slot interval.
	Range *query.SlotRange

	Network chaintime.Network

	// OrderBy column names, "-" prefix for descending.
	OrderBy []string

	// Limit caps the row count. Zero means unlimited.
	Limit int
}

// spec lifts a filter into a query spec for the given table and columns.
func (f Filter) spec(table string, columns []string) query.Spec {
	return query.Spec{
		Table:     table,
		Columns:   columns,
		Slot:      f.Slot,
		SlotRange: f.Range,
		Network:   f.Network,
		OrderBy:   f.OrderBy,
		Limit:     f.Limit,
	}
}

// SlotPtr is a convenience for building single-slot filters.
func SlotPtr(slot int64) *int64 { return &slot }
