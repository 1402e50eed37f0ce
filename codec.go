package cachex

import "github.com/vmihailenco/msgpack/v5"

// Codec serializes cached values to the opaque byte payloads backends store.
// Payloads must only ever be written and read by trusted callers: the codec
// is not hardened against adversarial input.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// MsgpackCodec is the default codec. Msgpack is compact, binary, and round
// trips arbitrary Go value graphs without schema registration.
type MsgpackCodec struct{}

func (MsgpackCodec) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

func (MsgpackCodec) Unmarshal(data []byte, v any) error {
	return msgpack.Unmarshal(data, v)
}
