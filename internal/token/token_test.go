package token

import (
	"errors"
	"math/big"
	"testing"

	"paulette.land/internal/auth"
	"paulette.land/internal/store"
)

var (
	minter  = auth.Identity("ed25519:00a0")
	alice   = auth.Identity("ed25519:0001")
	bob     = auth.Identity("ed25519:0002")
	escrow  = auth.Identity("ref:0903")
	testRef = Ref{0x54}
)

func newLedger(t *testing.T) *store.Memory {
	t.Helper()
	kv := store.NewMemory()
	if err := Create(kv, testRef, minter); err != nil {
		t.Fatalf("create: %v", err)
	}
	return kv
}

func amt(n int64) *big.Int { return big.NewInt(n) }

func TestCreateTwice(t *testing.T) {
	kv := newLedger(t)
	if err := Create(kv, testRef, alice); !errors.Is(err, ErrExists) {
		t.Fatalf("second create: got %v want %v", err, ErrExists)
	}
	admin, err := Admin(kv, testRef)
	if err != nil {
		t.Fatalf("admin: %v", err)
	}
	if admin != minter {
		t.Fatalf("admin: got %s want %s", admin, minter)
	}
}

func TestMintAdminGated(t *testing.T) {
	kv := newLedger(t)
	if err := Mint(kv, testRef, minter, alice, amt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if got := BalanceOf(kv, testRef, alice).Int64(); got != 100 {
		t.Fatalf("balance: got %d want %d", got, 100)
	}
	if err := Mint(kv, testRef, alice, alice, amt(100)); !errors.Is(err, ErrNotAdmin) {
		t.Fatalf("non-admin mint: got %v want %v", err, ErrNotAdmin)
	}
	if err := Mint(kv, testRef, minter, alice, amt(-1)); !errors.Is(err, ErrNegativeAmount) {
		t.Fatalf("negative mint: got %v want %v", err, ErrNegativeAmount)
	}
}

func TestMintUnknownLedger(t *testing.T) {
	kv := store.NewMemory()
	if err := Mint(kv, testRef, minter, alice, amt(1)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mint without ledger: got %v want %v", err, ErrNotFound)
	}
}

func TestTransfer(t *testing.T) {
	kv := newLedger(t)
	if err := Mint(kv, testRef, minter, alice, amt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := Transfer(kv, testRef, alice, bob, amt(4)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if got := BalanceOf(kv, testRef, alice).Int64(); got != 6 {
		t.Fatalf("sender balance: got %d want %d", got, 6)
	}
	if got := BalanceOf(kv, testRef, bob).Int64(); got != 4 {
		t.Fatalf("receiver balance: got %d want %d", got, 4)
	}
	if err := Transfer(kv, testRef, alice, bob, amt(7)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw: got %v want %v", err, ErrInsufficientBalance)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	kv := newLedger(t)
	if err := Mint(kv, testRef, minter, alice, amt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := Approve(kv, testRef, alice, escrow, amt(6)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := TransferFrom(kv, testRef, escrow, alice, bob, amt(4)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if got := Allowance(kv, testRef, alice, escrow).Int64(); got != 2 {
		t.Fatalf("remaining allowance: got %d want %d", got, 2)
	}
	// 4 left approved minus what was spent: the next 4 exceeds it.
	err := TransferFrom(kv, testRef, escrow, alice, bob, amt(4))
	if !errors.Is(err, ErrInsufficientAllowance) {
		t.Fatalf("over-allowance: got %v want %v", err, ErrInsufficientAllowance)
	}
}

func TestTransferFromInsufficientBalance(t *testing.T) {
	kv := newLedger(t)
	if err := Mint(kv, testRef, minter, alice, amt(3)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := Approve(kv, testRef, alice, escrow, amt(10)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := TransferFrom(kv, testRef, escrow, alice, bob, amt(5))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw via allowance: got %v want %v", err, ErrInsufficientBalance)
	}
	// The allowance must survive the failed transfer.
	if got := Allowance(kv, testRef, alice, escrow).Int64(); got != 10 {
		t.Fatalf("allowance after failure: got %d want %d", got, 10)
	}
}

func TestZeroBalancesAreNotStored(t *testing.T) {
	kv := newLedger(t)
	if err := Mint(kv, testRef, minter, alice, amt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := Transfer(kv, testRef, alice, bob, amt(5)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if kv.Has(balanceKey(testRef, alice)) {
		t.Fatalf("zeroed balance key still stored")
	}
	if got := BalanceOf(kv, testRef, alice).Int64(); got != 0 {
		t.Fatalf("balance: got %d want %d", got, 0)
	}
}

func TestParseRef(t *testing.T) {
	ref := Ref{0xab, 0xcd}
	parsed, err := ParseRef(ref.Hex())
	if err != nil {
		t.Fatalf("parse ref: %v", err)
	}
	if parsed != ref {
		t.Fatalf("parse ref roundtrip: got %x want %x", parsed, ref)
	}
	if _, err := ParseRef("zz"); !errors.Is(err, ErrBadRef) {
		t.Fatalf("bad ref: got %v want %v", err, ErrBadRef)
	}
}
