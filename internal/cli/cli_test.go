package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/goxatu/internal/clickhouse"
)

func TestParseSlotRange(t *testing.T) {
	r, err := parseSlotRange("9000000:9000010")
	require.NoError(t, err)
	assert.Equal(t, int64(9000000), r.Start)
	assert.Equal(t, int64(9000010), r.End)

	for _, bad := range []string{"", "100", "a:b", "100:", ":200"} {
		_, err := parseSlotRange(bad)
		assert.Error(t, err, bad)
	}
}

func sampleRows() []clickhouse.Row {
	return []clickhouse.Row{
		{"slot": uint64(9000000), "proposer_index": uint64(42), "graffiti": nil},
		{"slot": uint64(9000001), "proposer_index": uint64(43), "graffiti": "gm"},
	}
}

func TestPrintRows_Table(t *testing.T) {
	var buf bytes.Buffer
	err := printRows(&buf, sampleRows(), []string{"slot", "proposer_index", "graffiti"}, "table")
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "slot")
	assert.Contains(t, out, "9000000")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "(2 rows)")
}

func TestPrintRows_CSV(t *testing.T) {
	var buf bytes.Buffer
	err := printRows(&buf, sampleRows(), []string{"slot", "graffiti"}, "csv")
	require.NoError(t, err)

	assert.Equal(t, "slot,graffiti\n9000000,NULL\n9000001,gm\n", buf.String())
}

func TestPrintRows_JSON(t *testing.T) {
	var buf bytes.Buffer
	err := printRows(&buf, sampleRows(), []string{"slot"}, "json")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"slot": 9000000`)
}

func TestPrintRows_InvalidFormat(t *testing.T) {
	var buf bytes.Buffer
	err := printRows(&buf, nil, nil, "yaml")
	require.Error(t, err)
}

func TestPrintParams_Sorted(t *testing.T) {
	params := map[string]string{"p2": "9000010", "p0": "9000000", "p1": "9000005"}

	// Map iteration order varies, the printed order must not.
	for i := 0; i < 10; i++ {
		var buf bytes.Buffer
		printParams(&buf, params)
		assert.Equal(t, "  p0 = 9000000\n  p1 = 9000005\n  p2 = 9000010\n", buf.String())
	}
}

func TestFormatCell_Time(t *testing.T) {
	ts := time.Date(2024, 3, 5, 9, 7, 0, 0, time.UTC)
	assert.Equal(t, "2024-03-05T09:07:00Z", formatCell(ts))
}
