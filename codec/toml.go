package codec

import (
	"io"

	"github.com/pelletier/go-toml/v2"
)

// TOML uses pelletier/go-toml. The value must encode to a table (a struct or
// a map), which is what a top-level document always is.
type TOML struct{}

func (TOML) Name() string { return "toml" }

func (TOML) Encode(w io.Writer, v any) error {
	return toml.NewEncoder(w).Encode(v)
}

func (TOML) Decode(r io.Reader, v any) error {
	return toml.NewDecoder(r).Decode(v)
}
