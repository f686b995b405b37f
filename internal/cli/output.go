package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// WriteOutput encodes v as indented JSON, or as one JSON document per element
// with --jsonl.
func WriteOutput(out io.Writer, v any) error {
	if IsJSONLOutput() {
		return writeJSONL(out, v)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func writeJSONL(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return enc.Encode(v)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := enc.Encode(rv.Index(i).Interface()); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
	}
	return nil
}
