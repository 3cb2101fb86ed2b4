// Package auction is the Dutch price-discovery engine. Each auction
// sells one office slot: the quoted price decays linearly from a start
// price toward a floor until a bid lands, and a successful bid settles
// through the token ledger in the same KV view as the caller's
// operation.
package auction

import (
	"encoding/hex"
	"errors"
	"math/big"

	"paulette.land/internal/auth"
	"paulette.land/internal/store"
	"paulette.land/internal/token"
)

// Ref is the opaque 32-byte handle of one auction instance.
type Ref [32]byte

func (r Ref) Hex() string { return hex.EncodeToString(r[:]) }

// ParseRef decodes a 64-char hex reference.
func ParseRef(s string) (Ref, error) {
	var r Ref
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(r) {
		return Ref{}, ErrBadRef
	}
	copy(r[:], b)
	return r, nil
}

// Identity is the principal an auction instance acts as. Buyers grant
// their payment allowance to this identity before bidding.
func (r Ref) Identity() auth.Identity { return auth.RefIdentity(r[:]) }

var (
	ErrBadRef   = errors.New("auction: malformed reference")
	ErrExists   = errors.New("auction: reference already in use")
	ErrNotFound = errors.New("auction: not found")
	ErrBadPrice = errors.New("auction: start price below minimum")
)

// record is the persisted auction state. Amounts are big.Int bytes.
type record struct {
	Seller    auth.Identity `cbor:"1,keyasint"`
	Token     []byte        `cbor:"2,keyasint"`
	Start     []byte        `cbor:"3,keyasint,omitempty"`
	Min       []byte        `cbor:"4,keyasint,omitempty"`
	Slope     []byte        `cbor:"5,keyasint,omitempty"`
	StartedAt uint64        `cbor:"6,keyasint"`
}

func key(r Ref) string { return "auction/" + r.Hex() }

func load(kv store.KV, ref Ref) (record, error) {
	b, ok := kv.Get(key(ref))
	if !ok {
		return record{}, ErrNotFound
	}
	var rec record
	if err := auth.Unmarshal(b, &rec); err != nil {
		return record{}, err
	}
	return rec, nil
}

// Create opens an auction under ref selling for seller, settled in
// tok. The quote starts at start when now is the creation time and
// decays by one unit per slope seconds, never below min.
func Create(kv store.KV, now uint64, ref Ref, seller auth.Identity, tok token.Ref, start, min, slope *big.Int) error {
	if kv.Has(key(ref)) {
		return ErrExists
	}
	if start.Cmp(min) < 0 {
		return ErrBadPrice
	}
	rec := record{
		Seller:    seller,
		Token:     tok[:],
		Start:     start.Bytes(),
		Min:       min.Bytes(),
		Slope:     slope.Bytes(),
		StartedAt: now,
	}
	b, err := auth.Marshal(rec)
	if err != nil {
		return err
	}
	kv.Set(key(ref), b)
	return nil
}

// Price returns the live, time-decayed quote.
func Price(kv store.KV, now uint64, ref Ref) (*big.Int, error) {
	rec, err := load(kv, ref)
	if err != nil {
		return nil, err
	}
	return decayed(rec, now), nil
}

func decayed(rec record, now uint64) *big.Int {
	start := new(big.Int).SetBytes(rec.Start)
	min := new(big.Int).SetBytes(rec.Min)
	slope := new(big.Int).SetBytes(rec.Slope)
	if slope.Sign() == 0 || now <= rec.StartedAt {
		return start
	}
	elapsed := new(big.Int).SetUint64(now - rec.StartedAt)
	price := start.Sub(start, elapsed.Div(elapsed, slope))
	if price.Cmp(min) < 0 {
		return min
	}
	return price
}

// Bid attempts to buy at the live price, paying the seller from
// buyer's pre-approved allowance. A rejected payment returns false
// with no state change; a successful one consumes the auction.
func Bid(kv store.KV, now uint64, ref Ref, buyer auth.Identity) (bool, error) {
	rec, err := load(kv, ref)
	if err != nil {
		return false, err
	}
	var tok token.Ref
	copy(tok[:], rec.Token)

	price := decayed(rec, now)
	err = token.TransferFrom(kv, tok, ref.Identity(), buyer, rec.Seller, price)
	switch {
	case errors.Is(err, token.ErrInsufficientBalance), errors.Is(err, token.ErrInsufficientAllowance):
		return false, nil
	case err != nil:
		return false, err
	}
	kv.Remove(key(ref))
	return true, nil
}
