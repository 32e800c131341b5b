package types

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Websocket subprotocols a client may ask for.
const (
	SubprotocolJSON    = "arena.json"
	SubprotocolMsgpack = "arena.msgpack"
)

type Codec interface {
	Name() string
	Binary() bool
	Marshal(v any) ([]byte, error)
	Unmarshal(b []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Name() string                    { return SubprotocolJSON }
func (jsonCodec) Binary() bool                    { return false }
func (jsonCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(b []byte, v any) error { return json.Unmarshal(b, v) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string                    { return SubprotocolMsgpack }
func (msgpackCodec) Binary() bool                    { return true }
func (msgpackCodec) Marshal(v any) ([]byte, error)   { return msgpack.Marshal(v) }
func (msgpackCodec) Unmarshal(b []byte, v any) error { return msgpack.Unmarshal(b, v) }

var JSON Codec = jsonCodec{}
var Msgpack Codec = msgpackCodec{}

// CodecFor maps a negotiated subprotocol to its codec. JSON is the default.
func CodecFor(subprotocol string) Codec {
	if subprotocol == SubprotocolMsgpack {
		return Msgpack
	}
	return JSON
}

type envelope[T any] struct {
	T string `json:"t" msgpack:"t"`
	P T      `json:"p" msgpack:"p"`
}

type header struct {
	T string `json:"t" msgpack:"t"`
}

func Encode(c Codec, t string, payload any) ([]byte, error) {
	if t == "" {
		return nil, fmt.Errorf("encode: empty envelope type")
	}
	if payload == nil {
		return nil, fmt.Errorf("encode %q: nil payload", t)
	}
	return c.Marshal(envelope[any]{T: t, P: payload})
}

// PeekType returns the envelope type without decoding the payload.
func PeekType(c Codec, b []byte) (string, error) {
	if len(b) == 0 {
		return "", fmt.Errorf("decode: empty message")
	}
	var h header
	if err := c.Unmarshal(b, &h); err != nil {
		return "", err
	}
	if h.T == "" {
		return "", fmt.Errorf("decode: missing envelope type")
	}
	return h.T, nil
}

func DecodePayload[T any](c Codec, b []byte) (T, error) {
	var e envelope[T]
	err := c.Unmarshal(b, &e)
	return e.P, err
}
