package protocol

import "encoding/json"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	// Identity is the caller's claimed principal (hex Ed25519 public
	// key). It is the invoker identity for ops submitted without an
	// explicit signature proof.
	Identity string `json:"identity,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Server          string `json:"server"`
	Identity        string `json:"identity,omitempty"`
}

// REQ (client -> server): one ledger operation.
type ReqMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	Op              string          `json:"op"`
	Params          json.RawMessage `json:"params,omitempty"`
}

// RES (server -> client): outcome of the matching REQ.
type ResMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	ID              string          `json:"id"`
	OK              bool            `json:"ok"`
	Code            string          `json:"code,omitempty"`
	Message         string          `json:"message,omitempty"`
	Result          json.RawMessage `json:"result,omitempty"`
}

// ProofMsg is a detached admin signature. Fields are hex. Absent proof
// means invoker mode: the session identity from HELLO speaks.
type ProofMsg struct {
	PublicKey string `json:"public_key,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type InitializeParams struct {
	Admin string `json:"admin"`
	Token string `json:"token"` // 32-byte hex ref
	Tax   string `json:"tax"`   // decimal amount
}

type NewOfficeParams struct {
	Office  string    `json:"office"`  // 16-byte hex id
	Auction string    `json:"auction"` // 32-byte hex ref
	Start   string    `json:"start"`
	Min     string    `json:"min"`
	Slope   string    `json:"slope"`
	Nonce   uint64    `json:"nonce"`
	Proof   *ProofMsg `json:"proof,omitempty"`
}

// RevokeParams has the same shape as NewOfficeParams: a fresh auction
// for the same office id.
type RevokeParams = NewOfficeParams

type BuyParams struct {
	Office string `json:"office"`
	Buyer  string `json:"buyer,omitempty"` // defaults to session identity
}

type PayTaxParams struct {
	Office string `json:"office"`
	Payer  string `json:"payer,omitempty"` // defaults to session identity
}

type OfficeParams struct {
	Office string `json:"office"`
}

type TokenCreateParams struct {
	Token string `json:"token"`
	Admin string `json:"admin,omitempty"` // defaults to session identity
}

type TokenMintParams struct {
	Token  string `json:"token"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type TokenApproveParams struct {
	Token   string `json:"token"`
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

type TokenBalanceParams struct {
	Token string `json:"token"`
	ID    string `json:"id"`
}

type NonceResult struct {
	Nonce uint64 `json:"nonce"`
}

type PriceResult struct {
	Price string `json:"price"`
}

type HolderResult struct {
	Holder  string `json:"holder"`
	Expires uint64 `json:"expires"`
}

type BalanceResult struct {
	Balance string `json:"balance"`
}
