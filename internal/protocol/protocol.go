package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeReq     = "REQ"
	TypeRes     = "RES"
)

// Operation names carried by REQ messages.
const (
	OpInitialize   = "initialize"
	OpNonce        = "nonce"
	OpNewOffice    = "new_office"
	OpBuy          = "buy"
	OpPayTax       = "pay_tax"
	OpGetPrice     = "get_price"
	OpRevoke       = "revoke"
	OpHolder       = "holder"
	OpTokenCreate  = "token_create"
	OpTokenMint    = "token_mint"
	OpTokenApprove = "token_approve"
	OpTokenBalance = "token_balance"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
