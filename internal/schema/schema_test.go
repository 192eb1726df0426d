package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmbeddedSchema(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	names := reg.TableNames()
	assert.Contains(t, names, "canonical_beacon_block")
	assert.Contains(t, names, "mempool_transaction")

	tbl, ok := reg.Table("canonical_beacon_block")
	require.True(t, ok)
	assert.Equal(t, "slot_start_date_time", tbl.PartitionColumn)
	assert.True(t, tbl.Partitioned())
	assert.True(t, tbl.HasColumn("proposer_index"))
	assert.False(t, tbl.HasColumn("no_such_column"))
	assert.True(t, tbl.SupportsNetwork("mainnet"))
	assert.True(t, tbl.SupportsNetwork("MAINNET"))
	assert.False(t, tbl.SupportsNetwork("devnet-9"))
}

func TestLoad_UnknownTable(t *testing.T) {
	reg, err := Load()
	require.NoError(t, err)

	_, ok := reg.Table("system.tables")
	assert.False(t, ok)
}

func TestColumn_Kinds(t *testing.T) {
	tests := []struct {
		chType   string
		kind     Kind
		nullable bool
	}{
		{"UInt64", KindUInt, false},
		{"UInt32", KindUInt, false},
		{"Int64", KindInt, false},
		{"Float64", KindFloat, false},
		{"String", KindString, false},
		{"Bool", KindBool, false},
		{"DateTime", KindDateTime, false},
		{"DateTime64(3)", KindDateTime, false},
		{"Nullable(String)", KindString, true},
		{"Nullable(UInt64)", KindUInt, true},
	}

	for _, tt := range tests {
		c := Column{Name: "c", Type: tt.chType}
		assert.Equal(t, tt.kind, c.Kind(), tt.chType)
		assert.Equal(t, tt.nullable, c.Nullable(), tt.chType)
	}
}

func TestTable_Wildcard(t *testing.T) {
	reg := NewRegistry([]Table{
		{
			Name:    "open_table",
			Columns: []Column{{Name: "a", Type: "String"}},
		},
		{
			Name:             "guarded_table",
			Columns:          []Column{{Name: "a", Type: "String"}, {Name: "secret", Type: "String"}},
			SensitiveColumns: []string{"secret"},
		},
	})

	open, ok := reg.Table("open_table")
	require.True(t, ok)
	assert.True(t, open.AllowsWildcard())

	guarded, ok := reg.Table("guarded_table")
	require.True(t, ok)
	assert.False(t, guarded.AllowsWildcard())
}

func TestRegistry_TableNamesSorted(t *testing.T) {
	reg := NewRegistry([]Table{{Name: "zz"}, {Name: "aa"}, {Name: "mm"}})
	assert.Equal(t, []string{"aa", "mm", "zz"}, reg.TableNames())
}
