package api

import "encoding/json"

// CodecName is the Connect codec name; requests use Content-Type
// application/json.
const CodecName = "json"

// Codec is a connect.Codec for the plain message structs in this package.
// It replaces Connect's built-in JSON codec, which only accepts protobuf
// messages.
type Codec struct{}

// Name implements connect.Codec.
func (Codec) Name() string { return CodecName }

// Marshal implements connect.Codec.
func (Codec) Marshal(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal implements connect.Codec.
func (Codec) Unmarshal(data []byte, msg any) error {
	return json.Unmarshal(data, msg)
}
