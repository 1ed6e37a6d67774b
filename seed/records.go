package seed

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jacentio/pointers/store"
)

// ReadRecordsFile reads records from a JSON file. See LoadRecords.
func ReadRecordsFile(path string) ([]store.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	defer f.Close()
	return LoadRecords(f)
}

// LoadRecords decodes a JSON array of records and validates each one.
// Numbers in extra attributes decode as int64 when integral and float64 otherwise.
// Duplicate ids are rejected.
func LoadRecords(r io.Reader) ([]store.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []store.Record
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}

	seen := make(map[string]int, len(records))
	for i := range records {
		rec := &records[i]
		if rec.Extra != nil {
			extra, err := normalize(rec.Extra)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			rec.Extra = extra.(map[string]any)
		}
		if err := rec.Validate(); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if j, ok := seen[rec.ID]; ok {
			return nil, fmt.Errorf("record %d: duplicate id %q (first at %d)", i, rec.ID, j)
		}
		seen[rec.ID] = i
	}
	return records, nil
}

// normalize replaces json.Number values with the int64 or float64 the
// store would read back for them.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case json.Number:
		return store.ParseNumber(val.String())
	case []any:
		for i, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			val[i] = n
		}
		return val, nil
	case map[string]any:
		for k, elem := range val {
			n, err := normalize(elem)
			if err != nil {
				return nil, err
			}
			val[k] = n
		}
		return val, nil
	default:
		return v, nil
	}
}
