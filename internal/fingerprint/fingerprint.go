// Package fingerprint computes canonical, key-order-independent fingerprints
// of schedule snapshots for change detection.
package fingerprint

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/alfredjeanlab/schedview/internal/model"
)

// Fields are the snapshot members that take part in the fingerprint. Any
// other member is backend noise and is ignored.
var Fields = []string{"score", "solverStatus", "employees", "lines", "dateTimes", "orders"}

// Fingerprint is the canonical serialization of a snapshot's render-relevant
// fields. Two fingerprints are equal iff the serializations are identical.
type Fingerprint string

// Digest returns a short hex digest for logs, events and the journal.
func (f Fingerprint) Digest() string {
	if f == "" {
		return ""
	}
	sum := xxh3.HashString128(string(f)).Bytes()
	return hex.EncodeToString(sum[:])
}

// Of fingerprints a decoded snapshot.
func Of(s *model.Snapshot) Fingerprint {
	if s == nil {
		return ""
	}
	doc, err := s.Document()
	if err != nil {
		return ""
	}
	return Compute(doc)
}

// Compute fingerprints a raw snapshot document. It never fails: a document
// whose selected fields cannot be canonicalized degrades to the canonical
// form of the whole document, and bytes that are not JSON at all are used
// verbatim.
func Compute(raw []byte) Fingerprint {
	doc, err := decode(raw)
	if err != nil {
		return Fingerprint(raw)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return whole(doc, raw)
	}
	selected := make(map[string]any, len(Fields))
	for _, k := range Fields {
		selected[k] = obj[k]
	}
	var buf bytes.Buffer
	if err := Canonical(&buf, selected); err != nil {
		return whole(doc, raw)
	}
	return Fingerprint(buf.String())
}

func whole(doc any, raw []byte) Fingerprint {
	var buf bytes.Buffer
	if err := Canonical(&buf, doc); err != nil {
		return Fingerprint(raw)
	}
	return Fingerprint(buf.String())
}

func decode(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Canonical writes v as JSON with object keys sorted at every level. Arrays
// keep their element order. v must be a tree of the types produced by
// encoding/json decoding into any.
func Canonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := scalar(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := Canonical(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []any:
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := Canonical(buf, e); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case nil, bool, string, json.Number, float64:
		return scalar(buf, t)
	default:
		return fmt.Errorf("fingerprint: unsupported value of type %T", v)
	}
	return nil
}

func scalar(buf *bytes.Buffer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("fingerprint: %w", err)
	}
	buf.Write(data)
	return nil
}
