package auth

import "github.com/fxamacker/cbor/v2"

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// logical payload always signs to identical bytes.
var encMode cbor.EncMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("auth: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v with the deterministic encoder.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return cbor.Unmarshal(data, v)
}
