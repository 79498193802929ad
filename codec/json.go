package codec

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSON writes two-space indented JSON followed by a newline.
type JSON struct{}

func (JSON) Name() string { return "json" }

func (JSON) Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Decode reads exactly one JSON document; anything but whitespace after it
// is an error.
func (JSON) Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err != nil {
			return fmt.Errorf("trailing data after document: %w", err)
		}
		return fmt.Errorf("trailing data after document: %v", tok)
	}
	return nil
}
