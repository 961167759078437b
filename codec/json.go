package codec

import "encoding/json"

// JSON is the default codec. Cached payloads stay readable by the Node services
// sharing the Redis keyspace.
type JSON[V any] struct{}

func (JSON[V]) Encode(v V) ([]byte, error) { return json.Marshal(v) }
func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
