package ws

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"paulette.land/internal/auction"
	"paulette.land/internal/auth"
	"paulette.land/internal/protocol"
	"paulette.land/internal/registry"
	"paulette.land/internal/token"
)

var errBadParams = errors.New("ws: bad params")

func badParams(reason string) error {
	return fmt.Errorf("%w: %s", errBadParams, reason)
}

func parseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, badParams("amount must be a non-negative decimal")
	}
	return n, nil
}

func parseIdentity(s string, invoker auth.Identity) (auth.Identity, error) {
	if s != "" {
		return auth.Identity(s), nil
	}
	if invoker == "" {
		return "", badParams("no identity: sign in via HELLO or pass one explicitly")
	}
	return invoker, nil
}

// adminAuth builds the registry Auth from an optional detached proof.
// No proof means invoker mode for the session identity.
func adminAuth(p *protocol.ProofMsg, nonce uint64, invoker auth.Identity) (registry.Auth, error) {
	if p == nil {
		if invoker == "" {
			return registry.Auth{}, badParams("admin op needs a proof or a session identity")
		}
		return registry.Auth{Proof: auth.Proof{Invoker: invoker}, Nonce: nonce}, nil
	}
	pub, err := hex.DecodeString(p.PublicKey)
	if err != nil {
		return registry.Auth{}, badParams("proof.public_key is not hex")
	}
	sig, err := hex.DecodeString(p.Signature)
	if err != nil {
		return registry.Auth{}, badParams("proof.signature is not hex")
	}
	return registry.Auth{Proof: auth.Proof{PublicKey: pub, Signature: sig}, Nonce: nonce}, nil
}

func decodeParams(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return badParams("missing params")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badParams(err.Error())
	}
	return nil
}

func (s *Server) dispatch(invoker auth.Identity, req protocol.ReqMsg) (any, error) {
	switch req.Op {
	case protocol.OpInitialize:
		var p protocol.InitializeParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		tok, err := token.ParseRef(p.Token)
		if err != nil {
			return nil, err
		}
		tax, err := parseAmount(p.Tax)
		if err != nil {
			return nil, err
		}
		admin, err := parseIdentity(p.Admin, invoker)
		if err != nil {
			return nil, err
		}
		return nil, s.reg.Initialize(admin, tok, tax)

	case protocol.OpNonce:
		n, err := s.reg.Nonce()
		if err != nil {
			return nil, err
		}
		return protocol.NonceResult{Nonce: n}, nil

	case protocol.OpNewOffice, protocol.OpRevoke:
		var p protocol.NewOfficeParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		id, err := registry.ParseOfficeID(p.Office)
		if err != nil {
			return nil, err
		}
		ref, err := auction.ParseRef(p.Auction)
		if err != nil {
			return nil, err
		}
		start, err := parseAmount(p.Start)
		if err != nil {
			return nil, err
		}
		min, err := parseAmount(p.Min)
		if err != nil {
			return nil, err
		}
		slope, err := parseAmount(p.Slope)
		if err != nil {
			return nil, err
		}
		adm, err := adminAuth(p.Proof, p.Nonce, invoker)
		if err != nil {
			return nil, err
		}
		if req.Op == protocol.OpNewOffice {
			return nil, s.reg.NewOffice(adm, id, ref, start, min, slope)
		}
		return nil, s.reg.Revoke(adm, id, ref, start, min, slope)

	case protocol.OpBuy:
		var p protocol.BuyParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		id, err := registry.ParseOfficeID(p.Office)
		if err != nil {
			return nil, err
		}
		buyer, err := parseIdentity(p.Buyer, invoker)
		if err != nil {
			return nil, err
		}
		return nil, s.reg.Buy(id, buyer)

	case protocol.OpPayTax:
		var p protocol.PayTaxParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		id, err := registry.ParseOfficeID(p.Office)
		if err != nil {
			return nil, err
		}
		payer, err := parseIdentity(p.Payer, invoker)
		if err != nil {
			return nil, err
		}
		return nil, s.reg.PayTax(id, payer)

	case protocol.OpGetPrice:
		var p protocol.OfficeParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		id, err := registry.ParseOfficeID(p.Office)
		if err != nil {
			return nil, err
		}
		price, err := s.reg.GetPrice(id)
		if err != nil {
			return nil, err
		}
		return protocol.PriceResult{Price: price.String()}, nil

	case protocol.OpHolder:
		var p protocol.OfficeParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		id, err := registry.ParseOfficeID(p.Office)
		if err != nil {
			return nil, err
		}
		holder, expires, err := s.reg.Holder(id)
		if err != nil {
			return nil, err
		}
		return protocol.HolderResult{Holder: string(holder), Expires: uint64(expires)}, nil

	case protocol.OpTokenCreate:
		var p protocol.TokenCreateParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		ref, err := token.ParseRef(p.Token)
		if err != nil {
			return nil, err
		}
		admin, err := parseIdentity(p.Admin, invoker)
		if err != nil {
			return nil, err
		}
		return nil, s.reg.TokenCreate(ref, admin)

	case protocol.OpTokenMint:
		var p protocol.TokenMintParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		ref, err := token.ParseRef(p.Token)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if p.To == "" {
			return nil, badParams("missing to")
		}
		if invoker == "" {
			return nil, badParams("token_mint needs a session identity")
		}
		return nil, s.reg.TokenMint(ref, invoker, auth.Identity(p.To), amount)

	case protocol.OpTokenApprove:
		var p protocol.TokenApproveParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		ref, err := token.ParseRef(p.Token)
		if err != nil {
			return nil, err
		}
		amount, err := parseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		if p.Spender == "" {
			return nil, badParams("missing spender")
		}
		if invoker == "" {
			return nil, badParams("token_approve needs a session identity")
		}
		return nil, s.reg.TokenApprove(ref, invoker, auth.Identity(p.Spender), amount)

	case protocol.OpTokenBalance:
		var p protocol.TokenBalanceParams
		if err := decodeParams(req.Params, &p); err != nil {
			return nil, err
		}
		ref, err := token.ParseRef(p.Token)
		if err != nil {
			return nil, err
		}
		id, err := parseIdentity(p.ID, invoker)
		if err != nil {
			return nil, err
		}
		return protocol.BalanceResult{Balance: s.reg.TokenBalance(ref, id).String()}, nil

	default:
		return nil, badParams("unknown op " + req.Op)
	}
}
