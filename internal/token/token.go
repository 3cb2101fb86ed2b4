// Package token is the fungible-token ledger used for tax settlement
// and auction payments: admin-minted balances with pre-authorized
// transfer-on-behalf allowances. All state lives in the caller's KV
// view, so token mutations commit or roll back with the enclosing
// operation.
package token

import (
	"encoding/hex"
	"errors"
	"math/big"

	"paulette.land/internal/auth"
	"paulette.land/internal/store"
)

// Ref is the opaque 32-byte handle of one token ledger instance.
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

var (
	ErrBadRef                = errors.New("token: malformed reference")
	ErrExists                = errors.New("token: ledger already created")
	ErrNotFound              = errors.New("token: ledger not found")
	ErrNotAdmin              = errors.New("token: caller is not the ledger admin")
	ErrNegativeAmount        = errors.New("token: negative amount")
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
)

func adminKey(r Ref) string { return "token/" + r.Hex() + "/admin" }

func balanceKey(r Ref, id auth.Identity) string {
	return "token/" + r.Hex() + "/balance/" + string(id)
}

func allowanceKey(r Ref, owner, spender auth.Identity) string {
	return "token/" + r.Hex() + "/allow/" + string(owner) + "/" + string(spender)
}

// Create initializes a ledger under ref with admin as its minter.
func Create(kv store.KV, ref Ref, admin auth.Identity) error {
	if kv.Has(adminKey(ref)) {
		return ErrExists
	}
	kv.Set(adminKey(ref), []byte(admin))
	return nil
}

// Admin returns the minter identity of the ledger.
func Admin(kv store.KV, ref Ref) (auth.Identity, error) {
	b, ok := kv.Get(adminKey(ref))
	if !ok {
		return "", ErrNotFound
	}
	return auth.Identity(b), nil
}

func readAmount(kv store.KV, key string) *big.Int {
	b, ok := kv.Get(key)
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b)
}

// writeAmount deletes the key at zero rather than storing empty bytes.
func writeAmount(kv store.KV, key string, n *big.Int) {
	if n.Sign() == 0 {
		kv.Remove(key)
		return
	}
	kv.Set(key, n.Bytes())
}

func BalanceOf(kv store.KV, ref Ref, id auth.Identity) *big.Int {
	return readAmount(kv, balanceKey(ref, id))
}

func Allowance(kv store.KV, ref Ref, owner, spender auth.Identity) *big.Int {
	return readAmount(kv, allowanceKey(ref, owner, spender))
}

// Mint credits amount to `to`. Only the ledger admin may mint.
func Mint(kv store.KV, ref Ref, caller, to auth.Identity, amount *big.Int) error {
	admin, err := Admin(kv, ref)
	if err != nil {
		return err
	}
	if caller != admin {
		return ErrNotAdmin
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	bal := BalanceOf(kv, ref, to)
	writeAmount(kv, balanceKey(ref, to), bal.Add(bal, amount))
	return nil
}

// Approve sets spender's allowance over owner's balance to amount.
func Approve(kv store.KV, ref Ref, owner, spender auth.Identity, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	if !kv.Has(adminKey(ref)) {
		return ErrNotFound
	}
	writeAmount(kv, allowanceKey(ref, owner, spender), new(big.Int).Set(amount))
	return nil
}

// Transfer moves amount from -> to.
func Transfer(kv store.KV, ref Ref, from, to auth.Identity, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	fromBal := BalanceOf(kv, ref, from)
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	writeAmount(kv, balanceKey(ref, from), fromBal.Sub(fromBal, amount))
	toBal := BalanceOf(kv, ref, to)
	writeAmount(kv, balanceKey(ref, to), toBal.Add(toBal, amount))
	return nil
}

// TransferFrom moves amount from -> to on behalf of spender, consuming
// the allowance owner previously granted.
func TransferFrom(kv store.KV, ref Ref, spender, from, to auth.Identity, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}
	allowed := Allowance(kv, ref, from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := Transfer(kv, ref, from, to, amount); err != nil {
		return err
	}
	writeAmount(kv, allowanceKey(ref, from, spender), allowed.Sub(allowed, amount))
	return nil
}
