package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is a compact binary encoding (RFC 8949) via fxamacker/cbor.
type CBOR struct{}

func (CBOR) Name() string { return "cbor" }

func (CBOR) Encode(w io.Writer, v any) error {
	return cbor.NewEncoder(w).Encode(v)
}

func (CBOR) Decode(r io.Reader, v any) error {
	return cbor.NewDecoder(r).Decode(v)
}
