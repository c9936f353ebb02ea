package main

import (
	"encoding/json"
	"io"
)

// writeJSON writes v as indented JSON. Results go to stdout and logs to
// stderr so output can be piped.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
