package types

import (
	"sort"
	"time"
)

// Document is the value the atomblob CLI keeps in a backing file: a set of
// named counters and string fields plus bookkeeping about the last write.
type Document struct {
	Counters map[string]int64  `json:"counters" yaml:"counters" toml:"counters" cbor:"counters"`
	Fields   map[string]string `json:"fields" yaml:"fields" toml:"fields" cbor:"fields"`

	// Revision increases by one on every write made through the CLI.
	Revision  int64     `json:"revision" yaml:"revision" toml:"revision" cbor:"revision"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at" toml:"updated_at" cbor:"updated_at"`
}

// Init implements storage.Initer: it initialises nil maps after decoding.
func (d *Document) Init() {
	if d.Counters == nil {
		d.Counters = make(map[string]int64)
	}
	if d.Fields == nil {
		d.Fields = make(map[string]string)
	}
}

// Touch records a write.
func (d *Document) Touch(now time.Time) {
	d.Revision++
	d.UpdatedAt = now.UTC()
}

// CounterNames returns counter names in sorted order.
func (d *Document) CounterNames() []string {
	return sortedKeys(d.Counters)
}

// FieldNames returns field names in sorted order.
func (d *Document) FieldNames() []string {
	return sortedKeys(d.Fields)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
