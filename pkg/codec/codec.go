// Package codec implements the self-describing document form PebbleVault
// uses to round-trip caller-defined payloads: a JSON-like tree of nulls,
// booleans, numbers, strings, arrays, and objects. The store never
// interprets a payload's contents, only its shape.
package codec

import (
	"encoding/json"

	"github.com/cuemby/pebblevault/pkg/vaulterrors"
)

// Document is the opaque tree form a payload is round-tripped through.
// The concrete Go type of a decoded value is always one of: nil, bool,
// float64, string, []any, or map[string]any, matching encoding/json's
// default unmarshal targets, so callers that already speak JSON need no
// adapter.
type Document = any

// Encode serializes a Document to its canonical UTF-8 wire form.
func Encode(doc Document) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.PayloadEncoding, err, "encode payload")
	}
	return data, nil
}

// Decode parses a Document from its wire form. A corrupt document surfaces
// as PayloadDecoding, never a raw json error.
func Decode(data []byte) (Document, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, vaulterrors.Wrap(vaulterrors.PayloadDecoding, err, "decode payload")
	}
	return doc, nil
}

// Equal reports whether two decoded Documents are structurally identical.
// It compares the decoded shapes, not the original byte encodings, so
// differing key order or numeric formatting in the source text does not
// affect the result.
func Equal(a, b Document) bool {
	encA, errA := json.Marshal(a)
	encB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(encA) == string(encB)
}
