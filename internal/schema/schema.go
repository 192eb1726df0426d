// Package schema describes the queryable Xatu tables: which tables exist,
// which columns each exposes, column types, and the partitioning column
// used to bound scan cost. The registry is an immutable value constructed
// once and passed explicitly to the query builder and client.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

//go:embed tables.json
var tablesJSON []byte

// Kind is the Go-side type of a column after response parsing.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindUInt
	KindFloat
	KindBool
	KindDateTime
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// Column describes a single table column.
type Column struct {
	Name string `json:"name"`
	// Type is the ClickHouse type, e.g. "UInt64" or "Nullable(String)".
	Type string `json:"type"`
}

// Nullable reports whether the column type is a Nullable(...) wrapper.
func (c Column) Nullable() bool {
	return strings.HasPrefix(c.Type, "Nullable(")
}

// baseType strips the Nullable wrapper if present.
func (c Column) baseType() string {
	t := c.Type
	if c.Nullable() {
		t = strings.TrimSuffix(strings.TrimPrefix(t, "Nullable("), ")")
	}
	return t
}

// Kind maps the ClickHouse type to its parsed Go kind.
func (c Column) Kind() Kind {
	t := c.baseType()
	switch {
	case strings.HasPrefix(t, "UInt"):
		return KindUInt
	case strings.HasPrefix(t, "Int"):
		return KindInt
	case strings.HasPrefix(t, "Float"):
		return KindFloat
	case t == "Bool":
		return KindBool
	case strings.HasPrefix(t, "DateTime") || t == "Date":
		return KindDateTime
	default:
		return KindString
	}
}

// Table describes one queryable table.
type Table struct {
	Name        string
	Description string
	// PartitionColumn is the column the backend partitions on, or empty
	// for unpartitioned tables.
	PartitionColumn string
	Networks        []string
	Columns         []Column
	// SensitiveColumns, when non-empty, disallows SELECT * against the
	// table; callers must name columns explicitly.
	SensitiveColumns []string

	columnIndex map[string]Column
}

// Partitioned reports whether the table carries a partitioning column.
func (t Table) Partitioned() bool { return t.PartitionColumn != "" }

// Column returns the column definition by name.
func (t Table) Column(name string) (Column, bool) {
	c, ok := t.columnIndex[name]
	return c, ok
}

// HasColumn reports whether name is in the table's allowed-column set.
func (t Table) HasColumn(name string) bool {
	_, ok := t.columnIndex[name]
	return ok
}

// ColumnNames returns the allowed column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// AllowsWildcard reports whether SELECT * is permitted for the table.
func (t Table) AllowsWildcard() bool { return len(t.SensitiveColumns) == 0 }

// SupportsNetwork reports whether the table holds data for the network.
func (t Table) SupportsNetwork(network string) bool {
	for _, n := range t.Networks {
		if strings.EqualFold(n, network) {
			return true
		}
	}
	return false
}

// Registry is the immutable set of queryable tables.
type Registry struct {
	tables map[string]Table
}

// NewRegistry builds a registry from explicit table definitions.
// Used by tests and by callers with a non-standard backend schema.
func NewRegistry(tables []Table) *Registry {
	m := make(map[string]Table, len(tables))
	for _, t := range tables {
		t.columnIndex = make(map[string]Column, len(t.Columns))
		for _, c := range t.Columns {
			t.columnIndex[c.Name] = c
		}
		m[t.Name] = t
	}
	return &Registry{tables: m}
}

// Load builds the registry from the embedded Xatu table descriptions.
func Load() (*Registry, error) {
	var raw struct {
		Tables map[string]struct {
			Description        string   `json:"description"`
			PartitioningColumn string   `json:"partitioning_column"`
			NetworksAvailable  []string `json:"networks_available"`
			Columns            []Column `json:"columns"`
			SensitiveColumns   []string `json:"sensitive_columns"`
		} `json:"tables"`
	}
	if err := json.Unmarshal(tablesJSON, &raw); err != nil {
		return nil, fmt.Errorf("parsing embedded table schema: %w", err)
	}

	tables := make([]Table, 0, len(raw.Tables))
	for name, t := range raw.Tables {
		tables = append(tables, Table{
			Name:             name,
			Description:      t.Description,
			PartitionColumn:  t.PartitioningColumn,
			Networks:         t.NetworksAvailable,
			Columns:          t.Columns,
			SensitiveColumns: t.SensitiveColumns,
		})
	}
	return NewRegistry(tables), nil
}

// Table returns the table definition by name.
func (r *Registry) Table(name string) (Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// TableNames returns all table names, sorted.
func (r *Registry) TableNames() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
