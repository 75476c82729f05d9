package storage

import (
	"github.com/cuemby/pebblevault/pkg/codec"
	"github.com/cuemby/pebblevault/pkg/types"
)

// encodePayload and decodePayload delegate to pkg/codec, giving every
// SQL-backed implementation in sql.go the same PayloadEncoding/
// PayloadDecoding error wrapping as BoltBackend uses inline.

func encodePayload(p types.Point) ([]byte, error) {
	return codec.Encode(p.Payload)
}

func decodePayload(data []byte) (codec.Document, error) {
	return codec.Decode(data)
}
