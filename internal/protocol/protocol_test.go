package protocol_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"paulette.land/internal/auth"
	"paulette.land/internal/protocol"
	"paulette.land/internal/registry"
	"paulette.land/internal/token"
)

func validate(t *testing.T, schema string, doc string) error {
	t.Helper()
	s, err := protocol.CompileSchema(schema)
	if err != nil {
		t.Fatalf("compile %s: %v", schema, err)
	}
	var v any
	if err := json.Unmarshal([]byte(doc), &v); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	return s.Validate(v)
}

func TestHelloSchema(t *testing.T) {
	good := `{"type":"HELLO","protocol_version":"1.0","client_name":"cli","identity":"` +
		"00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff" + `"}`
	if err := validate(t, "hello.schema.json", good); err != nil {
		t.Fatalf("valid hello rejected: %v", err)
	}

	bad := []string{
		`{"type":"NOPE","protocol_version":"1.0"}`,
		`{"type":"HELLO"}`,
		`{"type":"HELLO","protocol_version":"1.0","identity":"xyz"}`,
		`{"type":"HELLO","protocol_version":"1.0","extra":1}`,
	}
	for i, doc := range bad {
		if err := validate(t, "hello.schema.json", doc); err == nil {
			t.Fatalf("invalid hello %d accepted", i)
		}
	}
}

func TestReqSchema(t *testing.T) {
	good := `{"type":"REQ","protocol_version":"1.0","id":"r1","op":"get_price","params":{"office":"0f"}}`
	if err := validate(t, "req.schema.json", good); err != nil {
		t.Fatalf("valid req rejected: %v", err)
	}

	bad := []string{
		`{"type":"REQ","protocol_version":"1.0","id":"r1","op":"drop_tables"}`,
		`{"type":"REQ","protocol_version":"1.0","op":"buy"}`,
		`{"type":"REQ","protocol_version":"1.0","id":"","op":"buy"}`,
		`{"type":"REQ","protocol_version":"1.0","id":"r1","op":"buy","params":[1]}`,
	}
	for i, doc := range bad {
		if err := validate(t, "req.schema.json", doc); err == nil {
			t.Fatalf("invalid req %d accepted", i)
		}
	}
}

func TestResSchema(t *testing.T) {
	res := protocol.ResMsg{
		Type:            protocol.TypeRes,
		ProtocolVersion: protocol.Version,
		ID:              "r1",
		OK:              false,
		Code:            protocol.ErrNotForSale,
		Message:         "office is not for sale",
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal res: %v", err)
	}
	if err := validate(t, "res.schema.json", string(b)); err != nil {
		t.Fatalf("server res rejected by own schema: %v", err)
	}

	if err := validate(t, "res.schema.json", `{"type":"RES","protocol_version":"1.0","id":"r1","ok":false,"code":"whoops"}`); err == nil {
		t.Fatalf("malformed error code accepted")
	}
}

func TestDecodeBase(t *testing.T) {
	m, err := protocol.DecodeBase([]byte(`{"type":"REQ","protocol_version":"1.0","id":"x","op":"nonce"}`))
	if err != nil {
		t.Fatalf("decode base: %v", err)
	}
	if m.Type != protocol.TypeReq {
		t.Fatalf("type: got %s want %s", m.Type, protocol.TypeReq)
	}
	if _, err := protocol.DecodeBase([]byte("not json")); err == nil {
		t.Fatalf("garbage accepted")
	}
}

func TestCodeFor(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{registry.ErrNotInitialized, protocol.ErrNotInitialized},
		{registry.ErrAlreadyInitialized, protocol.ErrAlreadyInitialized},
		{registry.ErrNotForSale, protocol.ErrNotForSale},
		{registry.ErrBidRejected, protocol.ErrBidRejected},
		{registry.ErrNotExpired, protocol.ErrNotExpired},
		{fmt.Errorf("%w: allowance", registry.ErrTransferFailed), protocol.ErrTransferFailed},
		{auth.ErrUnauthorized, protocol.ErrUnauthorized},
		{auth.ErrInvalidSignature, protocol.ErrUnauthorized},
		{auth.ErrIncorrectNonce, protocol.ErrIncorrectNonce},
		{auth.ErrInvokerNonceMismatch, protocol.ErrInvokerNonce},
		{registry.ErrBadOfficeID, protocol.ErrProtoBadRequest},
		{token.ErrInsufficientBalance, protocol.ErrToken},
		{fmt.Errorf("disk on fire"), protocol.ErrInternal},
	}
	for _, c := range cases {
		if got := protocol.CodeFor(c.err); got != c.want {
			t.Fatalf("code for %v: got %s want %s", c.err, got, c.want)
		}
	}
}

func TestIsKnownCode(t *testing.T) {
	for _, code := range []string{"", protocol.ErrNotFound, protocol.ErrInternal} {
		if !protocol.IsKnownCode(code) {
			t.Fatalf("known code %q reported unknown", code)
		}
	}
	if protocol.IsKnownCode("E_MADE_UP") {
		t.Fatalf("unknown code reported known")
	}
}
