package codec

import (
	"github.com/fxamacker/cbor/v2"
)

// CBOR encodes with Core Deterministic Encoding (RFC 8949) so equal envelopes
// produce equal bytes, and times as RFC3339Nano strings. Decoding rejects
// duplicate map keys, which only a corrupt or foreign writer produces.
// Construct with NewCBOR; the zero value is not usable.
type CBOR[V any] struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

var _ Codec[struct{}] = CBOR[struct{}]{}

func NewCBOR[V any]() (CBOR[V], error) {
	eo := cbor.CoreDetEncOptions()
	eo.Time = cbor.TimeRFC3339Nano
	em, err := eo.EncMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	dm, err := cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}.DecMode()
	if err != nil {
		return CBOR[V]{}, err
	}
	return CBOR[V]{enc: em, dec: dm}, nil
}

func (c CBOR[V]) Encode(v V) ([]byte, error) {
	if c.enc == nil {
		return nil, errZeroCBOR
	}
	return c.enc.Marshal(v)
}

func (c CBOR[V]) Decode(b []byte) (V, error) {
	var v V
	if c.dec == nil {
		return v, errZeroCBOR
	}
	err := c.dec.Unmarshal(b, &v)
	return v, err
}
