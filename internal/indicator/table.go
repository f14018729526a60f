package indicator

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloneexec/internal/pkg/fault"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Table is a parsed indicator file ordered as stored.
type Table struct {
	Records []Record
}

// Last returns the final bucket, ok=false for an empty table.
func (t Table) Last() (Record, bool) {
	if len(t.Records) == 0 {
		return Record{}, false
	}
	return t.Records[len(t.Records)-1], true
}

// Select picks the active bucket for tick.
//
// Ticks inside the table's range must hit a bucket, otherwise the table has a
// hole and ErrIndicatorGap is returned. Ticks past the last bucket's end get
// that bucket while tick-End <= tolerance and nil afterwards.
func (t Table) Select(tick time.Time, tolerance time.Duration) (*Record, error) {
	last, ok := t.Last()
	if !ok {
		return nil, nil
	}
	if tick.Before(last.End) {
		for i := range t.Records {
			if t.Records[i].Contains(tick) {
				rec := t.Records[i]
				return &rec, nil
			}
		}
		return nil, fault.Wrap(fault.ErrIndicatorGap, "no bucket contains %s", tick.UTC().Format(time.RFC3339Nano))
	}
	if tick.Sub(last.End) <= tolerance {
		rec := last
		return &rec, nil
	}
	return nil, nil
}

// ParseTable validates data against the row schema and decodes every row.
func ParseTable(data []byte) (Table, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Table{}, nil
	}
	if !gjson.ValidBytes(data) {
		return Table{}, fault.Malformed("indicator file is not valid json")
	}
	if err := validateRows(data); err != nil {
		return Table{}, fault.Malformed("indicator schema: %v", err)
	}
	var (
		out     Table
		walkErr error
		idx     int
	)
	gjson.ParseBytes(data).ForEach(func(_, row gjson.Result) bool {
		rec, err := decodeRecord(row)
		if err != nil {
			walkErr = fault.Malformed("row %d: %v", idx, err)
			return false
		}
		if !rec.End.After(rec.Begin) {
			walkErr = fault.Malformed("row %d: end %d not after begin %d", idx, rec.End.UnixMilli(), rec.Begin.UnixMilli())
			return false
		}
		out.Records = append(out.Records, rec)
		idx++
		return true
	})
	if walkErr != nil {
		return Table{}, walkErr
	}
	return out, nil
}

var (
	rowSchemaOnce sync.Once
	rowSchema     *jsonschema.Schema
	rowSchemaErr  error
)

func validateRows(data []byte) error {
	rowSchemaOnce.Do(func() {
		rowSchema, rowSchemaErr = compileSchema(tableSchema())
	})
	if rowSchemaErr != nil {
		return rowSchemaErr
	}
	var doc any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return rowSchema.Validate(doc)
}

// tableSchema describes an array of rows with numeric bounds at 0 and 1 and
// the packed order message array at index 25.
func tableSchema() map[string]any {
	items := make([]any, rowFieldsTotal)
	for i := range items {
		items[i] = map[string]any{}
	}
	items[fieldBegin] = map[string]any{"type": "number"}
	items[fieldEnd] = map[string]any{"type": "number"}
	items[fieldMessage] = map[string]any{"type": "array", "minItems": 6}
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"type":    "array",
		"items": map[string]any{
			"type":     "array",
			"minItems": rowFieldsTotal,
			"items":    items,
		},
	}
}

func compileSchema(data map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("indicator_table.json", strings.NewReader(string(raw))); err != nil {
		return nil, err
	}
	return compiler.Compile("indicator_table.json")
}

func itoa(i int) string {
	return strconv.Itoa(i)
}
