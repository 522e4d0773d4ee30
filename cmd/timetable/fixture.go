package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hrygo/timetable/store"
)

// loadRecords reads a YAML (or JSON) file holding a list of schedule records.
// A mapping with a "schedules" or "data" key is unwrapped first.
func loadRecords(path string) ([]store.Record, error) {
	var doc any
	if err := decodeFile(path, &doc); err != nil {
		return nil, err
	}
	if m, ok := doc.(map[string]any); ok {
		for _, key := range []string{"schedules", "data", "items"} {
			if inner, ok := m[key]; ok {
				doc = inner
				break
			}
		}
	}
	list, ok := doc.([]any)
	if !ok {
		return nil, errors.Errorf("%s: expected a list of records", path)
	}
	records := make([]store.Record, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, errors.Errorf("%s: item %d is not a mapping", path, i)
		}
		records = append(records, store.Record(m))
	}
	return records, nil
}

// loadRecord reads a single record mapping.
func loadRecord(path string) (store.Record, error) {
	var m map[string]any
	if err := decodeFile(path, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.Errorf("%s: empty record", path)
	}
	return store.Record(m), nil
}

func decodeFile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", path)
	}
	// JSON is a subset of YAML, so one decoder serves both.
	if err := yaml.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "failed to parse %s", path)
	}
	return nil
}

func writeOutput(format string, v any) error {
	switch format {
	case "", "yaml":
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		return writeJSON(v)
	default:
		return errors.Errorf("unknown output format %q", format)
	}
}
