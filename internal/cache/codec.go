package cache

import "encoding/json"

// Codec converts values to and from the bytes held by the store.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec is the default codec.
type JSONCodec struct{}

func (JSONCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (JSONCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// codecError marks failures raised while encoding or decoding a value so they
// are reported separately from store connectivity problems.
type codecError struct {
	err error
}

func (e *codecError) Error() string { return "codec: " + e.err.Error() }

func (e *codecError) Unwrap() error { return e.err }
