package auction

import (
	"errors"
	"math/big"
	"testing"

	"paulette.land/internal/auth"
	"paulette.land/internal/store"
	"paulette.land/internal/token"
)

var (
	seller = auth.Identity("ed25519:00a0")
	buyer  = auth.Identity("ed25519:0001")
	tok    = token.Ref{0x54}
)

func amt(n int64) *big.Int { return big.NewInt(n) }

func openAuction(t *testing.T, kv store.KV, ref Ref, now uint64, start, min, slope int64) {
	t.Helper()
	if err := Create(kv, now, ref, seller, tok, amt(start), amt(min), amt(slope)); err != nil {
		t.Fatalf("create auction: %v", err)
	}
}

func quote(t *testing.T, kv store.KV, ref Ref, now uint64) int64 {
	t.Helper()
	p, err := Price(kv, now, ref)
	if err != nil {
		t.Fatalf("price: %v", err)
	}
	return p.Int64()
}

func TestPriceDecay(t *testing.T) {
	kv := store.NewMemory()
	ref := Ref{1}
	openAuction(t, kv, ref, 1000, 5, 1, 900)

	cases := []struct {
		now  uint64
		want int64
	}{
		{1000, 5},   // creation instant
		{1899, 5},   // one second short of the first step
		{1900, 4},   // first full slope interval
		{2800, 3},   // the upstream half-hour quote
		{4600, 1},   // decayed to the floor
		{90000, 1},  // never below the floor
		{500, 5},    // clock behind creation: start price
	}
	for _, c := range cases {
		if got := quote(t, kv, ref, c.now); got != c.want {
			t.Fatalf("price at %d: got %d want %d", c.now, got, c.want)
		}
	}
}

func TestPriceZeroSlope(t *testing.T) {
	kv := store.NewMemory()
	ref := Ref{1}
	openAuction(t, kv, ref, 1000, 7, 1, 0)
	if got := quote(t, kv, ref, 1_000_000); got != 7 {
		t.Fatalf("zero-slope price: got %d want %d", got, 7)
	}
}

func TestCreateGuards(t *testing.T) {
	kv := store.NewMemory()
	ref := Ref{1}
	openAuction(t, kv, ref, 1000, 5, 1, 900)

	if err := Create(kv, 1000, ref, seller, tok, amt(5), amt(1), amt(900)); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate create: got %v want %v", err, ErrExists)
	}
	if err := Create(kv, 1000, Ref{2}, seller, tok, amt(1), amt(5), amt(900)); !errors.Is(err, ErrBadPrice) {
		t.Fatalf("start below floor: got %v want %v", err, ErrBadPrice)
	}
}

func TestPriceNotFound(t *testing.T) {
	kv := store.NewMemory()
	if _, err := Price(kv, 0, Ref{9}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("price of unknown auction: got %v want %v", err, ErrNotFound)
	}
}

func TestBidSettlesAndConsumes(t *testing.T) {
	kv := store.NewMemory()
	if err := token.Create(kv, tok, seller); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := token.Mint(kv, tok, seller, buyer, amt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	ref := Ref{1}
	openAuction(t, kv, ref, 1000, 5, 1, 900)
	if err := token.Approve(kv, tok, buyer, ref.Identity(), amt(3)); err != nil {
		t.Fatalf("approve: %v", err)
	}

	accepted, err := Bid(kv, 2800, ref, buyer)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if !accepted {
		t.Fatalf("funded bid rejected")
	}
	if got := token.BalanceOf(kv, tok, seller).Int64(); got != 3 {
		t.Fatalf("seller proceeds: got %d want %d", got, 3)
	}
	if got := token.BalanceOf(kv, tok, buyer).Int64(); got != 97 {
		t.Fatalf("buyer balance: got %d want %d", got, 97)
	}
	if _, err := Price(kv, 2800, ref); !errors.Is(err, ErrNotFound) {
		t.Fatalf("auction after sale: got %v want %v", err, ErrNotFound)
	}
}

func TestBidRejectedIsNoOp(t *testing.T) {
	kv := store.NewMemory()
	if err := token.Create(kv, tok, seller); err != nil {
		t.Fatalf("create token: %v", err)
	}
	if err := token.Mint(kv, tok, seller, buyer, amt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	ref := Ref{1}
	openAuction(t, kv, ref, 1000, 5, 1, 900)

	// No allowance granted.
	accepted, err := Bid(kv, 1000, ref, buyer)
	if err != nil {
		t.Fatalf("bid: %v", err)
	}
	if accepted {
		t.Fatalf("unfunded bid accepted")
	}
	if got := token.BalanceOf(kv, tok, buyer).Int64(); got != 100 {
		t.Fatalf("buyer balance after rejection: got %d want %d", got, 100)
	}
	if got := quote(t, kv, ref, 1000); got != 5 {
		t.Fatalf("auction gone after rejected bid: price %d", got)
	}
}
