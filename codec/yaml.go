package codec

import (
	"io"

	"github.com/goccy/go-yaml"
)

// YAML uses goccy/go-yaml.
type YAML struct{}

func (YAML) Name() string { return "yaml" }

func (YAML) Encode(w io.Writer, v any) error {
	return yaml.NewEncoder(w, yaml.Indent(2)).Encode(v)
}

func (YAML) Decode(r io.Reader, v any) error {
	return yaml.NewDecoder(r).Decode(v)
}
