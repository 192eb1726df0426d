package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/goxatu/internal/chaintime"
	"github.com/ethpandaops/goxatu/internal/schema"
)

const (
	// DefaultRangeMargin widens a derived partition window on each side of
	// a slot-range query to tolerate skew between logical slot time and
	// partition boundaries.
	DefaultRangeMargin = time.Hour

	// DefaultSlotMargin widens the partition window for single-slot
	// queries.
	DefaultSlotMargin = time.Minute
)

// statement-breaking tokens rejected in raw conditions.
var forbiddenRawTokens = []string{
	";", "--", "/*", "*/",
	"DROP", "DELETE", "TRUNCATE", "ALTER", "UNION", "INSERT", "UPDATE",
}

// CompiledQuery is parameterized SQL text plus the values bound to its
// placeholders. Caller input never appears in the SQL text itself.
type CompiledQuery struct {
	SQL string
	// Params maps placeholder name to its encoded value, sent alongside
	// the query so the backend performs the substitution.
	Params map[string]string
}

// BuilderOptions tunes partition-window derivation. Zero values select
// the defaults.
type BuilderOptions struct {
	RangeMargin time.Duration
	SlotMargin  time.Duration
}

// Builder compiles Specs into CompiledQueries against a fixed registry.
// It is immutable and safe for concurrent use.
type Builder struct {
	registry    *schema.Registry
	rangeMargin time.Duration
	slotMargin  time.Duration
}

// NewBuilder creates a builder over the given registry.
func NewBuilder(registry *schema.Registry, opts BuilderOptions) *Builder {
	if opts.RangeMargin <= 0 {
		opts.RangeMargin = DefaultRangeMargin
	}
	if opts.SlotMargin <= 0 {
		opts.SlotMargin = DefaultSlotMargin
	}
	return &Builder{
		registry:    registry,
		rangeMargin: opts.RangeMargin,
		slotMargin:  opts.SlotMargin,
	}
}

// quoteIdent backtick-quotes a registry-validated column name. Some
// dataset columns ("from", "to") collide with SQL keywords.
func quoteIdent(name string) string {
	return "`" + name + "`"
}

// compilation carries the per-call mutable state so Builder itself stays
// stateless.
type compilation struct {
	params  map[string]string
	counter int
}

// bind registers a value and returns its placeholder.
func (c *compilation) bind(v any) string {
	name := "p" + strconv.Itoa(c.counter)
	c.counter++

	var chType, encoded string
	switch val := v.(type) {
	case int:
		chType, encoded = "Int64", strconv.FormatInt(int64(val), 10)
	case int32:
		chType, encoded = "Int64", strconv.FormatInt(int64(val), 10)
	case int64:
		chType, encoded = "Int64", strconv.FormatInt(val, 10)
	case uint32:
		chType, encoded = "UInt64", strconv.FormatUint(uint64(val), 10)
	case uint64:
		chType, encoded = "UInt64", strconv.FormatUint(val, 10)
	case float32:
		chType, encoded = "Float64", strconv.FormatFloat(float64(val), 'g', -1, 64)
	case float64:
		chType, encoded = "Float64", strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		chType, encoded = "Bool", strconv.FormatBool(val)
	case time.Time:
		chType, encoded = "DateTime", val.UTC().Format("2006-01-02 15:04:05")
	default:
		chType, encoded = "String", fmt.Sprintf("%v", val)
	}

	c.params[name] = encoded
	return "{" + name + ":" + chType + "}"
}

// Build compiles the spec. Clause order is fixed (select, from, where,
// group by, order by, limit) so identical specs yield byte-identical SQL.
func (b *Builder) Build(spec Spec) (CompiledQuery, error) {
	table, ok := b.registry.Table(spec.Table)
	if !ok {
		return CompiledQuery{}, validationErrf(spec.Table, "table is not in the allowed set")
	}

	network := spec.network()
	if !network.Valid() {
		return CompiledQuery{}, validationErrf(spec.Table, "unknown network %q", network)
	}
	if !table.SupportsNetwork(network.String()) {
		return CompiledQuery{}, validationErrf(spec.Table, "network %q not available for this table", network)
	}

	selectList, err := b.selectList(table, spec)
	if err != nil {
		return CompiledQuery{}, err
	}

	comp := &compilation{params: make(map[string]string)}

	where, err := b.whereClauses(table, spec, network, comp)
	if err != nil {
		return CompiledQuery{}, err
	}

	if table.Partitioned() && !b.hasPartitionBound(table, spec) {
		return CompiledQuery{}, validationErrf(spec.Table,
			"partitioned table requires a slot range, time range, or explicit %s bound", table.PartitionColumn)
	}

	parts := []string{"SELECT " + selectList}

	from := "FROM " + table.Name
	if spec.Final {
		from += " FINAL"
	}
	parts = append(parts, from)

	if len(where) > 0 {
		parts = append(parts, "WHERE "+strings.Join(where, " AND "))
	}

	if len(spec.GroupBy) > 0 {
		quoted := make([]string, 0, len(spec.GroupBy))
		for _, col := range spec.GroupBy {
			if !table.HasColumn(col) {
				return CompiledQuery{}, validationErrf(spec.Table, "group by column %q is not allowed", col)
			}
			quoted = append(quoted, quoteIdent(col))
		}
		parts = append(parts, "GROUP BY "+strings.Join(quoted, ", "))
	}

	if len(spec.OrderBy) > 0 {
		clauses := make([]string, 0, len(spec.OrderBy))
		for _, col := range spec.OrderBy {
			dir := "ASC"
			name := col
			if strings.HasPrefix(col, "-") {
				dir = "DESC"
				name = strings.TrimPrefix(col, "-")
			}
			if !table.HasColumn(name) {
				return CompiledQuery{}, validationErrf(spec.Table, "order by column %q is not allowed", name)
			}
			clauses = append(clauses, quoteIdent(name)+" "+dir)
		}
		parts = append(parts, "ORDER BY "+strings.Join(clauses, ", "))
	}

	if spec.Limit < 0 {
		return CompiledQuery{}, validationErrf(spec.Table, "limit must be non-negative, got %d", spec.Limit)
	}
	if spec.Limit > 0 {
		parts = append(parts, "LIMIT "+strconv.Itoa(spec.Limit))
	}

	return CompiledQuery{SQL: strings.Join(parts, " "), Params: comp.params}, nil
}

func (b *Builder) selectList(table schema.Table, spec Spec) (string, error) {
	if len(spec.Columns) == 0 {
		return "", validationErrf(spec.Table, "no columns requested")
	}
	if len(spec.Columns) == 1 && spec.Columns[0] == "*" {
		if !table.AllowsWildcard() {
			return "", validationErrf(spec.Table, "SELECT * not permitted, table has restricted columns")
		}
		return "*", nil
	}
	quoted := make([]string, 0, len(spec.Columns))
	for _, col := range spec.Columns {
		if col == "*" {
			return "", validationErrf(spec.Table, `"*" cannot be combined with named columns`)
		}
		if !table.HasColumn(col) {
			return "", validationErrf(spec.Table, "column %q is not allowed", col)
		}
		quoted = append(quoted, quoteIdent(col))
	}
	return strings.Join(quoted, ", "), nil
}

func (b *Builder) whereClauses(table schema.Table, spec Spec, network chaintime.Network, comp *compilation) ([]string, error) {
	var where []string

	slotWhere, err := b.slotClauses(table, spec, network, comp)
	if err != nil {
		return nil, err
	}
	where = append(where, slotWhere...)

	if spec.TimeRange != nil {
		if !table.Partitioned() {
			return nil, validationErrf(spec.Table, "time range filter requires a partitioned table")
		}
		if !spec.TimeRange.End.After(spec.TimeRange.Start) {
			return nil, validationErrf(spec.Table, "time range end must be after start")
		}
		col := quoteIdent(table.PartitionColumn)
		where = append(where, fmt.Sprintf("%s >= %s AND %s < %s",
			col, comp.bind(spec.TimeRange.Start), col, comp.bind(spec.TimeRange.End)))
	}

	for _, cond := range spec.Conditions {
		clause, err := b.conditionClause(table, spec.Table, cond, comp)
		if err != nil {
			return nil, err
		}
		where = append(where, clause)
	}

	if spec.RawWhere != "" {
		upper := strings.ToUpper(spec.RawWhere)
		for _, tok := range forbiddenRawTokens {
			if strings.Contains(upper, tok) {
				return nil, validationErrf(spec.Table, "unsafe token %q in raw condition", tok)
			}
		}
		where = append(where, "("+spec.RawWhere+")")
	}

	if table.HasColumn("meta_network_name") {
		where = append(where, quoteIdent("meta_network_name")+" = "+comp.bind(network.String()))
	}

	return where, nil
}

// slotClauses emits the slot predicate plus the derived partition window.
// The window only applies to tables partitioned on slot start time;
// event-time partitioned tables (e.g. the mempool feed) keep the bare
// slot predicate.
func (b *Builder) slotClauses(table schema.Table, spec Spec, network chaintime.Network, comp *compilation) ([]string, error) {
	if spec.Slot != nil && spec.SlotRange != nil {
		return nil, validationErrf(spec.Table, "slot and slot range are mutually exclusive")
	}
	if spec.Slot == nil && spec.SlotRange == nil {
		return nil, nil
	}
	if !table.HasColumn("slot") {
		return nil, validationErrf(spec.Table, "table has no slot column")
	}

	var where []string

	if spec.Slot != nil {
		slot := *spec.Slot
		if slot < 0 {
			return nil, validationErrf(spec.Table, "slot cannot be negative")
		}
		where = append(where, quoteIdent("slot")+" = "+comp.bind(slot))

		if table.PartitionColumn == "slot_start_date_time" {
			ts, err := chaintime.SlotTime(network, slot)
			if err != nil {
				return nil, validationErrf(spec.Table, "%v", err)
			}
			where = append(where, b.windowClause(table.PartitionColumn,
				ts.Add(-b.slotMargin), ts.Add(chaintime.SlotDuration).Add(b.slotMargin), comp))
		}
		return where, nil
	}

	r := *spec.SlotRange
	if r.Start < 0 || r.End < 0 {
		return nil, validationErrf(spec.Table, "slot values cannot be negative")
	}
	if r.Start >= r.End {
		return nil, validationErrf(spec.Table, "invalid slot range [%d, %d): start must be less than end", r.Start, r.End)
	}

	// End is exclusive; BETWEEN is inclusive on both sides.
	where = append(where, fmt.Sprintf("`slot` BETWEEN %s AND %s", comp.bind(r.Start), comp.bind(r.End-1)))

	if table.PartitionColumn == "slot_start_date_time" {
		start, err := chaintime.SlotTime(network, r.Start)
		if err != nil {
			return nil, validationErrf(spec.Table, "%v", err)
		}
		end, err := chaintime.SlotTime(network, r.End)
		if err != nil {
			return nil, validationErrf(spec.Table, "%v", err)
		}
		where = append(where, b.windowClause(table.PartitionColumn,
			start.Add(-b.rangeMargin), end.Add(b.rangeMargin), comp))
	}
	return where, nil
}

func (b *Builder) windowClause(col string, start, end time.Time, comp *compilation) string {
	q := quoteIdent(col)
	return fmt.Sprintf("%s >= %s AND %s < %s", q, comp.bind(start), q, comp.bind(end))
}

func (b *Builder) conditionClause(table schema.Table, tableName string, cond Condition, comp *compilation) (string, error) {
	if !table.HasColumn(cond.Column) {
		return "", validationErrf(tableName, "filter column %q is not allowed", cond.Column)
	}
	if !allowedOps[cond.Op] {
		return "", validationErrf(tableName, "operator %q is not allowed", cond.Op)
	}

	if cond.Op == OpIn || cond.Op == OpNotIn {
		values, ok := cond.Value.([]any)
		if !ok || len(values) == 0 {
			return "", validationErrf(tableName, "%s requires a non-empty value list", cond.Op)
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = comp.bind(v)
		}
		return fmt.Sprintf("%s %s (%s)", quoteIdent(cond.Column), cond.Op, strings.Join(placeholders, ", ")), nil
	}

	return fmt.Sprintf("%s %s %s", quoteIdent(cond.Column), cond.Op, comp.bind(cond.Value)), nil
}

// hasPartitionBound reports whether the compiled query will carry a
// predicate on the partitioning column, the invariant that keeps backend
// scans bounded.
func (b *Builder) hasPartitionBound(table schema.Table, spec Spec) bool {
	if spec.TimeRange != nil {
		return true
	}
	if (spec.Slot != nil || spec.SlotRange != nil) && table.PartitionColumn == "slot_start_date_time" {
		return true
	}
	for _, cond := range spec.Conditions {
		if cond.Column == table.PartitionColumn {
			return true
		}
	}
	return spec.RawWhere != "" && strings.Contains(spec.RawWhere, table.PartitionColumn)
}
