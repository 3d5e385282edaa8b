package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// WriteOutput writes v as indented JSON, or as one JSON line per element when
// --jsonl is set and v is a slice.
func WriteOutput(out io.Writer, v any) error {
	if IsJSONLOutput() {
		return writeJSONL(out, v)
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONL(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return enc.Encode(v)
	}
	for i := 0; i < rv.Len(); i++ {
		if err := enc.Encode(rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	return nil
}

// PreflightError is a failure the user can fix before retrying.
type PreflightError struct {
	Message  string
	Hint     string
	NextStep string
}

func (e *PreflightError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	if e.NextStep != "" {
		msg += fmt.Sprintf("\n  next: %s", e.NextStep)
	}
	return msg
}
