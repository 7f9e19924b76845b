package server

import (
	"github.com/fxamacker/cbor/v2"
)

// codecName selects the Connect sub-protocol. Unary requests travel as
// application/cbor; both sides must install this codec.
const codecName = "cbor"

var codecEncMode cbor.EncMode

func init() {
	var err error
	codecEncMode, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
}

// cborCodec is a connect.Codec over canonical CBOR. The inspection
// protocol has no generated protos; request and response types are plain
// structs with integer-keyed fields.
type cborCodec struct{}

func (cborCodec) Name() string { return codecName }

func (cborCodec) Marshal(msg any) ([]byte, error) {
	return codecEncMode.Marshal(msg)
}

func (cborCodec) Unmarshal(data []byte, msg any) error {
	return cbor.Unmarshal(data, msg)
}
