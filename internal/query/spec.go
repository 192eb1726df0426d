// Package query turns structured query specifications into parameterized
// ClickHouse SQL. Identifiers are validated against the schema registry
// and caller values are always bound through placeholders, never inlined
// into the SQL text.
package query

import (
	"time"

	"github.com/ethpandaops/goxatu/internal/chaintime"
)

// Op is a comparison operator permitted in structured conditions.
type Op string

const (
	OpEq    Op = "="
	OpNotEq Op = "!="
	OpLt    Op = "<"
	OpGt    Op = ">"
	OpLtEq  Op = "<="
	OpGtEq  Op = ">="
	OpIn    Op = "IN"
	OpNotIn Op = "NOT IN"
	OpLike  Op = "LIKE"
)

var allowedOps = map[Op]bool{
	OpEq: true, OpNotEq: true, OpLt: true, OpGt: true,
	OpLtEq: true, OpGtEq: true, OpIn: true, OpNotIn: true, OpLike: true,
}

// Condition is a single structured WHERE predicate. The column is
// validated against the table's allowed-column set; the value is bound
// as a parameter. IN and NOT IN take a []any value.
type Condition struct {
	Column string
	Op     Op
	Value  any
}

// SlotRange is a half-open [Start, End) slot interval.
type SlotRange struct {
	Start int64
	End   int64
}

// TimeRange is a half-open [Start, End) time interval.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Spec describes one query request. It is a value; Build never mutates it
// and identical specs compile to byte-identical SQL.
type Spec struct {
	// Table must be present in the schema registry.
	Table string

	// Columns to select. A single "*" selects everything, permitted only
	// when the table carries no sensitive columns.
	Columns []string

	// Slot restricts to a single slot. Mutually exclusive with SlotRange.
	Slot *int64

	// SlotRange restricts to a half-open slot interval.
	SlotRange *SlotRange

	// TimeRange restricts on the table's partitioning column.
	TimeRange *TimeRange

	// Conditions are structured predicates ANDed together.
	Conditions []Condition

	// RawWhere is an opaque, pre-validated condition string appended
	// conjunctively. It is screened for statement-breaking tokens but is
	// otherwise trusted; prefer Conditions.
	RawWhere string

	GroupBy []string

	// OrderBy column names, "-" prefix for descending.
	OrderBy []string

	// Limit caps the row count. Zero means no LIMIT clause.
	Limit int

	// Network selects the target network. Defaults to mainnet.
	Network chaintime.Network

	// Final adds the FINAL modifier so merges are collapsed at read time.
	Final bool
}

func (s Spec) network() chaintime.Network {
	if s.Network == "" {
		return chaintime.Mainnet
	}
	return s.Network
}
