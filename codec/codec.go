// Package codec defines the encodings a blob can be persisted in.
//
// A Codec only needs to round-trip the value type: Decode(Encode(v)) == v.
// JSON is the default; YAML, TOML and CBOR are available for callers whose
// value types or tooling prefer them.
package codec

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

// Codec encodes and decodes a value to and from a byte stream.
type Codec interface {
	// Name is the registry key, e.g. "json".
	Name() string
	Encode(w io.Writer, v any) error
	Decode(r io.Reader, v any) error
}

var (
	mu       sync.RWMutex
	registry = map[string]Codec{}
)

func init() {
	for _, c := range []Codec{JSON{}, YAML{}, TOML{}, CBOR{}} {
		Register(c)
	}
}

// Default returns the JSON codec.
func Default() Codec { return JSON{} }

// Register adds c to the registry, replacing any codec with the same name.
func Register(c Codec) {
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(c.Name())] = c
}

// Lookup returns the codec registered under name (case-insensitive).
// An empty name selects the default.
func Lookup(name string) (Codec, error) {
	if name == "" {
		return Default(), nil
	}
	mu.RLock()
	defer mu.RUnlock()
	c, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown codec %q (available: %s)", name, strings.Join(namesLocked(), ", "))
	}
	return c, nil
}

// Names lists registered codec names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
