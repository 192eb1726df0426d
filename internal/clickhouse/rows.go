package clickhouse

import (
	"bufio"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/goxatu/internal/safe"
	"github.com/ethpandaops/goxatu/internal/schema"
)

// Row is one result row with cells converted to the schema's declared
// column types: uint64, int64, float64, string, bool, time.Time, or nil
// for SQL NULL.
type Row map[string]any

// Uint64 returns the named cell as uint64, zero when absent or NULL.
func (r Row) Uint64(col string) uint64 {
	v, _ := r[col].(uint64)
	return v
}

// Int64 returns the named cell as int64, zero when absent or NULL.
// UInt64 cells beyond the int64 range clamp to math.MaxInt64.
func (r Row) Int64(col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case uint64:
		i, _ := safe.Uint64ToInt64(v)
		return i
	default:
		return 0
	}
}

// String returns the named cell as string, empty when absent or NULL.
func (r Row) String(col string) string {
	v, _ := r[col].(string)
	return v
}

// Float64 returns the named cell as float64, zero when absent or NULL.
func (r Row) Float64(col string) float64 {
	v, _ := r[col].(float64)
	return v
}

// Bool returns the named cell as bool, false when absent or NULL.
func (r Row) Bool(col string) bool {
	v, _ := r[col].(bool)
	return v
}

// Time returns the named cell as time.Time, zero when absent or NULL.
func (r Row) Time(col string) time.Time {
	v, _ := r[col].(time.Time)
	return v
}

// IsNull reports whether the cell is present and NULL.
func (r Row) IsNull(col string) bool {
	v, ok := r[col]
	return ok && v == nil
}

const dateTimeLayout = "2006-01-02 15:04:05"

// parseRows decodes a JSONEachRow response body: one JSON object per
// line. Cells are converted using the table's declared column types;
// columns outside the schema (aliases, wildcard extras) keep their JSON
// shape with integers preferred over floats.
func parseRows(body io.Reader, table schema.Table) ([]Row, error) {
	var rows []Row

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		dec := json.NewDecoder(strings.NewReader(text))
		dec.UseNumber()
		var raw map[string]any
		if err := dec.Decode(&raw); err != nil {
			return nil, &ParseError{Msg: "response is not JSONEachRow at line " + strconv.Itoa(line), Err: err}
		}

		row := make(Row, len(raw))
		for name, value := range raw {
			cell, err := convertCell(name, value, table)
			if err != nil {
				return nil, err
			}
			row[name] = cell
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Msg: "reading response body", Err: err}
	}

	return rows, nil
}

func convertCell(name string, value any, table schema.Table) (any, error) {
	if value == nil {
		return nil, nil
	}

	col, known := table.Column(name)
	if !known {
		return convertLoose(value), nil
	}

	switch col.Kind() {
	case schema.KindUInt:
		n, ok := value.(json.Number)
		if !ok {
			return nil, typeMismatch(name, col, value)
		}
		v, err := parseUint(n)
		if err != nil {
			return nil, typeMismatch(name, col, value)
		}
		return v, nil
	case schema.KindInt:
		n, ok := value.(json.Number)
		if !ok {
			return nil, typeMismatch(name, col, value)
		}
		v, err := n.Int64()
		if err != nil {
			return nil, typeMismatch(name, col, value)
		}
		return v, nil
	case schema.KindFloat:
		n, ok := value.(json.Number)
		if !ok {
			return nil, typeMismatch(name, col, value)
		}
		v, err := n.Float64()
		if err != nil {
			return nil, typeMismatch(name, col, value)
		}
		return v, nil
	case schema.KindBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case json.Number:
			// ClickHouse renders Bool as 0/1 in some formats.
			i, err := v.Int64()
			if err != nil {
				return nil, typeMismatch(name, col, value)
			}
			return i != 0, nil
		default:
			return nil, typeMismatch(name, col, value)
		}
	case schema.KindDateTime:
		s, ok := value.(string)
		if !ok {
			return nil, typeMismatch(name, col, value)
		}
		ts, err := parseDateTime(s)
		if err != nil {
			return nil, typeMismatch(name, col, value)
		}
		return ts, nil
	default:
		s, ok := value.(string)
		if !ok {
			return nil, typeMismatch(name, col, value)
		}
		return s, nil
	}
}

// convertLoose handles cells for columns the schema does not describe.
func convertLoose(value any) any {
	n, ok := value.(json.Number)
	if !ok {
		return value
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func parseUint(n json.Number) (uint64, error) {
	return strconv.ParseUint(n.String(), 10, 64)
}

func parseDateTime(s string) (time.Time, error) {
	if ts, err := time.Parse(dateTimeLayout, s); err == nil {
		return ts.UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func typeMismatch(name string, col schema.Column, value any) *ParseError {
	return &ParseError{Msg: "column " + name + " does not match declared type " + col.Type}
}
