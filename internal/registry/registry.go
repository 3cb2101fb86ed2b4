// Package registry is the office-rights ledger: exclusive, time-limited
// occupancy over 16-byte identifiers, allocated through Dutch auctions
// and kept alive by periodic tax payments, with revocation-on-expiry
// gated by administrator authorization.
//
// Every office is in exactly one of three states: uninitialized (no
// record), for-sale (bound to an auction), or bought (held until an
// expiry timestamp). Each public operation runs as one atomic unit: it
// stages its writes on an overlay of the store and commits only if
// every check and every external call succeeded.
package registry

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"paulette.land/internal/auction"
	"paulette.land/internal/auth"
	"paulette.land/internal/store"
	"paulette.land/internal/token"
)

// Timestamp is monotonic seconds-since-epoch as supplied by the clock.
type Timestamp uint64

// RenewalPeriod is the occupancy extension granted on purchase and on
// each tax payment: one week.
const RenewalPeriod Timestamp = 604800

// Clock reads the authoritative "now". It is consulted exactly once
// per operation.
type Clock interface {
	Now() Timestamp
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() Timestamp { return Timestamp(time.Now().Unix()) }

// ManualClock is a settable clock for tests and deterministic replays.
type ManualClock struct {
	T Timestamp
}

func (c *ManualClock) Now() Timestamp { return c.T }

// OfficeID identifies one office slot.
type OfficeID [16]byte

func (id OfficeID) Hex() string { return hex.EncodeToString(id[:]) }

var ErrBadOfficeID = errors.New("registry: malformed office id")

// ParseOfficeID decodes a 32-char hex identifier.
func ParseOfficeID(s string) (OfficeID, error) {
	var id OfficeID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return OfficeID{}, ErrBadOfficeID
	}
	copy(id[:], b)
	return id, nil
}

// Auth carries the administrator's proof and the nonce it commits to.
type Auth struct {
	Proof auth.Proof
	Nonce uint64
}

var (
	ErrNotInitialized     = errors.New("registry: not initialized")
	ErrAlreadyInitialized = errors.New("registry: admin is already set")
	ErrNegativeTax        = errors.New("registry: tax rate must be non-negative")
	ErrDuplicateID        = errors.New("registry: office id already exists")
	ErrNotForSale         = errors.New("registry: office is not for sale")
	ErrNotFound           = errors.New("registry: office not found")
	ErrBidRejected        = errors.New("registry: bid rejected")
	ErrNotExpired         = errors.New("registry: office is not expired yet")
	ErrTransferFailed     = errors.New("registry: tax transfer failed")
)

// AuctionPort is the external price-discovery module. The KV argument
// is the caller's staged view, keeping the module's mutations inside
// the operation's transaction boundary.
type AuctionPort interface {
	Create(kv store.KV, now Timestamp, ref auction.Ref, seller auth.Identity, tok token.Ref, start, min, slope *big.Int) error
	Bid(kv store.KV, now Timestamp, ref auction.Ref, buyer auth.Identity) (bool, error)
	Price(kv store.KV, now Timestamp, ref auction.Ref) (*big.Int, error)
}

// TokenPort is the external value-transfer module used for tax
// settlement.
type TokenPort interface {
	TransferFrom(kv store.KV, ref token.Ref, spender, from, to auth.Identity, amount *big.Int) error
}

// OpRecord describes one committed mutating operation.
type OpRecord struct {
	Op     string `json:"op"`
	Office string `json:"office,omitempty"`
	Actor  string `json:"actor,omitempty"`
	Amount string `json:"amount,omitempty"`
	At     uint64 `json:"at"`
}

// AuditSink receives OpRecords after their operation has committed.
type AuditSink interface {
	RecordOp(OpRecord)
}

// Config assembles a Registry. Zero-value ports and clock fall back to
// the in-process engines and the system clock.
type Config struct {
	// Ref is the registry's own principal reference. Taxpayers grant
	// their settlement allowance to RefIdentity(Ref).
	Ref [32]byte

	Clock   Clock
	Auction AuctionPort
	Token   TokenPort
	Audit   AuditSink
}

func (c *Config) applyDefaults() {
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Auction == nil {
		c.Auction = dutchAuction{}
	}
	if c.Token == nil {
		c.Token = vaultToken{}
	}
}

type Registry struct {
	mu  sync.Mutex
	kv  store.KV
	cfg Config
}

func New(kv store.KV, cfg Config) *Registry {
	cfg.applyDefaults()
	return &Registry{kv: kv, cfg: cfg}
}

// Identity is the principal the registry acts as when collecting tax.
func (r *Registry) Identity() auth.Identity {
	return auth.RefIdentity(r.cfg.Ref[:])
}

const (
	keyAdmin  = "office/admin"
	keyToken  = "office/token"
	keyTax    = "office/tax"
	forSaleNS = "office/forsale/"
	boughtNS  = "office/bought/"
)

func forSaleKey(id OfficeID) string { return forSaleNS + id.Hex() }
func boughtKey(id OfficeID) string  { return boughtNS + id.Hex() }

// boughtRecord is the persisted state of an occupied office.
type boughtRecord struct {
	Holder  auth.Identity `cbor:"1,keyasint"`
	Expires uint64        `cbor:"2,keyasint"`
}

func readAdmin(kv store.KV) (auth.Identity, error) {
	b, ok := kv.Get(keyAdmin)
	if !ok {
		return "", ErrNotInitialized
	}
	return auth.Identity(b), nil
}

func readToken(kv store.KV) (token.Ref, error) {
	b, ok := kv.Get(keyToken)
	if !ok {
		return token.Ref{}, ErrNotInitialized
	}
	var ref token.Ref
	copy(ref[:], b)
	return ref, nil
}

func readTax(kv store.KV) (*big.Int, error) {
	b, ok := kv.Get(keyTax)
	if !ok {
		return nil, ErrNotInitialized
	}
	return new(big.Int).SetBytes(b), nil
}

func readForSale(kv store.KV, id OfficeID) (auction.Ref, error) {
	b, ok := kv.Get(forSaleKey(id))
	if !ok {
		return auction.Ref{}, ErrNotForSale
	}
	var ref auction.Ref
	copy(ref[:], b)
	return ref, nil
}

func readBought(kv store.KV, id OfficeID) (boughtRecord, error) {
	b, ok := kv.Get(boughtKey(id))
	if !ok {
		return boughtRecord{}, ErrNotFound
	}
	var rec boughtRecord
	if err := auth.Unmarshal(b, &rec); err != nil {
		return boughtRecord{}, err
	}
	return rec, nil
}

func putBought(kv store.KV, id OfficeID, rec boughtRecord) error {
	b, err := auth.Marshal(rec)
	if err != nil {
		return err
	}
	kv.Set(boughtKey(id), b)
	return nil
}

func (r *Registry) record(rec OpRecord) {
	if r.cfg.Audit != nil {
		r.cfg.Audit.RecordOp(rec)
	}
}

// Initialize persists the administrator, the settlement token and the
// tax rate. Callable exactly once for the lifetime of the store.
func (r *Registry) Initialize(admin auth.Identity, tok token.Ref, tax *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	if st.Has(keyAdmin) {
		return ErrAlreadyInitialized
	}
	if tax.Sign() < 0 {
		return ErrNegativeTax
	}
	now := r.cfg.Clock.Now()
	st.Set(keyAdmin, []byte(admin))
	st.Set(keyToken, tok[:])
	st.Set(keyTax, tax.Bytes())
	if err := st.Commit(); err != nil {
		return err
	}
	r.record(OpRecord{Op: "initialize", Actor: string(admin), Amount: tax.String(), At: uint64(now)})
	return nil
}

// Nonce returns the administrator's current replay counter, zero if
// never consumed. Read-only.
func (r *Registry) Nonce() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	admin, err := readAdmin(r.kv)
	if err != nil {
		return 0, err
	}
	return auth.NonceOf(r.kv, admin), nil
}

func payloadFor(op string, id OfficeID, ref auction.Ref, start, min, slope *big.Int, nonce uint64) auth.Payload {
	return auth.Payload{
		Op:      op,
		Office:  id[:],
		Auction: ref[:],
		Start:   start.Bytes(),
		Min:     min.Bytes(),
		Slope:   slope.Bytes(),
		Nonce:   nonce,
	}
}

// NewOffice puts a fresh office id up for sale under a newly created
// auction. Administrator-gated.
func (r *Registry) NewOffice(adm Auth, id OfficeID, ref auction.Ref, start, min, slope *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	now := r.cfg.Clock.Now()

	admin, err := readAdmin(st)
	if err != nil {
		return err
	}
	payload := payloadFor("new_office", id, ref, start, min, slope, adm.Nonce)
	if err := auth.CheckAdmin(admin, adm.Proof, payload); err != nil {
		return err
	}
	if err := auth.ConsumeNonce(st, adm.Proof, payload, adm.Nonce); err != nil {
		return err
	}

	if st.Has(forSaleKey(id)) || st.Has(boughtKey(id)) {
		return ErrDuplicateID
	}

	tok, err := readToken(st)
	if err != nil {
		return err
	}
	if err := r.cfg.Auction.Create(st, now, ref, admin, tok, start, min, slope); err != nil {
		return err
	}
	st.Set(forSaleKey(id), ref[:])

	if err := st.Commit(); err != nil {
		return err
	}
	r.record(OpRecord{Op: "new_office", Office: id.Hex(), Actor: string(admin), Amount: start.String(), At: uint64(now)})
	return nil
}

// Buy places a bid on a for-sale office on behalf of buyer. Open to
// any caller. On an accepted bid the office transitions to bought with
// an expiry one renewal period from now; on a rejected bid nothing
// changes.
func (r *Registry) Buy(id OfficeID, buyer auth.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	now := r.cfg.Clock.Now()

	ref, err := readForSale(st, id)
	if err != nil {
		return err
	}
	accepted, err := r.cfg.Auction.Bid(st, now, ref, buyer)
	if err != nil {
		return err
	}
	if !accepted {
		return ErrBidRejected
	}

	st.Remove(forSaleKey(id))
	if err := putBought(st, id, boughtRecord{
		Holder:  buyer,
		Expires: uint64(now + RenewalPeriod),
	}); err != nil {
		return err
	}

	if err := st.Commit(); err != nil {
		return err
	}
	r.record(OpRecord{Op: "buy", Office: id.Hex(), Actor: string(buyer), At: uint64(now)})
	return nil
}

// PayTax collects one tax rate from payer into the administrator's
// vault and extends the office's expiry by one renewal period. The
// extension applies even when the previous expiry is already in the
// past; an expired office stays renewable until the administrator
// revokes it.
func (r *Registry) PayTax(id OfficeID, payer auth.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	now := r.cfg.Clock.Now()

	admin, err := readAdmin(st)
	if err != nil {
		return err
	}
	tok, err := readToken(st)
	if err != nil {
		return err
	}
	tax, err := readTax(st)
	if err != nil {
		return err
	}
	if err := r.cfg.Token.TransferFrom(st, tok, r.Identity(), payer, admin, tax); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	rec, err := readBought(st, id)
	if err != nil {
		return err
	}
	rec.Expires += uint64(RenewalPeriod)
	if err := putBought(st, id, rec); err != nil {
		return err
	}

	if err := st.Commit(); err != nil {
		return err
	}
	r.record(OpRecord{Op: "pay_tax", Office: id.Hex(), Actor: string(payer), Amount: tax.String(), At: uint64(now)})
	return nil
}

// GetPrice returns the live auction quote for a for-sale office.
// Read-only.
func (r *Registry) GetPrice(id OfficeID) (*big.Int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.cfg.Clock.Now()
	ref, err := readForSale(r.kv, id)
	if err != nil {
		return nil, err
	}
	return r.cfg.Auction.Price(r.kv, now, ref)
}

// Revoke removes an expired bought office and puts it back up for sale
// under a fresh auction. Administrator-gated, and permitted only
// strictly after the stored expiry: at now == expires the holder still
// holds.
func (r *Registry) Revoke(adm Auth, id OfficeID, ref auction.Ref, start, min, slope *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	now := r.cfg.Clock.Now()

	admin, err := readAdmin(st)
	if err != nil {
		return err
	}
	payload := payloadFor("revoke", id, ref, start, min, slope, adm.Nonce)
	if err := auth.CheckAdmin(admin, adm.Proof, payload); err != nil {
		return err
	}
	if err := auth.ConsumeNonce(st, adm.Proof, payload, adm.Nonce); err != nil {
		return err
	}

	rec, err := readBought(st, id)
	if err != nil {
		return err
	}
	if uint64(now) <= rec.Expires {
		return ErrNotExpired
	}

	tok, err := readToken(st)
	if err != nil {
		return err
	}
	st.Remove(boughtKey(id))
	if err := r.cfg.Auction.Create(st, now, ref, admin, tok, start, min, slope); err != nil {
		return err
	}
	st.Set(forSaleKey(id), ref[:])

	if err := st.Commit(); err != nil {
		return err
	}
	r.record(OpRecord{Op: "revoke", Office: id.Hex(), Actor: string(admin), Amount: start.String(), At: uint64(now)})
	return nil
}

// Holder reports the current holder and expiry of a bought office.
// Read-only.
func (r *Registry) Holder(id OfficeID) (auth.Identity, Timestamp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err := readBought(r.kv, id)
	if err != nil {
		return "", 0, err
	}
	return rec.Holder, Timestamp(rec.Expires), nil
}

// dutchAuction and vaultToken bind the ports to the in-process
// engines.
type dutchAuction struct{}

func (dutchAuction) Create(kv store.KV, now Timestamp, ref auction.Ref, seller auth.Identity, tok token.Ref, start, min, slope *big.Int) error {
	return auction.Create(kv, uint64(now), ref, seller, tok, start, min, slope)
}

func (dutchAuction) Bid(kv store.KV, now Timestamp, ref auction.Ref, buyer auth.Identity) (bool, error) {
	return auction.Bid(kv, uint64(now), ref, buyer)
}

func (dutchAuction) Price(kv store.KV, now Timestamp, ref auction.Ref) (*big.Int, error) {
	return auction.Price(kv, uint64(now), ref)
}

type vaultToken struct{}

func (vaultToken) TransferFrom(kv store.KV, ref token.Ref, spender, from, to auth.Identity, amount *big.Int) error {
	return token.TransferFrom(kv, ref, spender, from, to, amount)
}
