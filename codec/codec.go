package codec

import (
	"errors"
	"fmt"
	"strings"
)

var errZeroCBOR = errors.New("codec: CBOR used without NewCBOR")

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Format names a codec family. One Format yields a codec for every cached shape.
type Format string

const (
	FormatJSON    Format = "json"
	FormatCBOR    Format = "cbor"
	FormatMsgpack Format = "msgpack"
)

// ParseFormat accepts the config spelling; "" means JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatJSON:
		return FormatJSON, nil
	case FormatCBOR, FormatMsgpack:
		return f, nil
	default:
		return "", fmt.Errorf("codec: unknown format %q (valid: json, cbor, msgpack)", s)
	}
}

// For builds a Codec[V] of format f. maxDecode > 0 wraps it in a LimitCodec.
func For[V any](f Format, maxDecode int) (Codec[V], error) {
	var c Codec[V]
	switch f {
	case "", FormatJSON:
		c = JSON[V]{}
	case FormatCBOR:
		cb, err := NewCBOR[V]()
		if err != nil {
			return nil, err
		}
		c = cb
	case FormatMsgpack:
		c = Msgpack[V]{}
	default:
		return nil, fmt.Errorf("codec: unknown format %q", f)
	}
	if maxDecode > 0 {
		c = LimitCodec[V]{Inner: c, MaxDecode: maxDecode}
	}
	return c, nil
}
