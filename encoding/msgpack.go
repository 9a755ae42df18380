// Package encoding is the msgpack wire codec for heartbeat and vote RPC
// payloads. All runtime/ transport code MUST go through this package
// rather than calling vmihailenco/msgpack directly, so a future change to
// decode options (loose interface decoding, map key ordering) only needs
// to happen in one place.
//
// Thread Safety: Marshal and Unmarshal are safe for concurrent use.
package encoding

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// Marshal encodes a value to msgpack format.
func Marshal(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Unmarshal decodes msgpack data using loose interface decoding, so a
// decoded interface{} field holds a Go string rather than []byte — the
// natural representation for the struct fields heartbeat/vote payloads
// actually carry (hosts, set names, election ids).
func Unmarshal(data []byte, v interface{}) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	return dec.Decode(v)
}
