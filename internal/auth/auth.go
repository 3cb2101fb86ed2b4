// Package auth resolves caller identities from proofs and enforces
// per-identity replay protection for administrator-gated operations.
//
// A signature proof is an Ed25519 signature over the deterministic
// CBOR encoding of the operation payload. Invoker proofs carry the
// identity the transport already authenticated and skip signature
// checking; by construction they always present nonce 0.
package auth

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/hex"
	"errors"

	"paulette.land/internal/store"
)

// Identity is an opaque principal reference: an account key or a
// contract-style reference. Comparable, usable as a map key.
type Identity string

// AccountIdentity derives the identity of an Ed25519 account key.
func AccountIdentity(pub ed25519.PublicKey) Identity {
	return Identity("ed25519:" + hex.EncodeToString(pub))
}

// RefIdentity derives the identity of a non-account principal (an
// auction instance, the registry itself) from its reference bytes.
func RefIdentity(ref []byte) Identity {
	return Identity("ref:" + hex.EncodeToString(ref))
}

var (
	ErrUnauthorized         = errors.New("auth: signer is not the administrator")
	ErrInvalidSignature     = errors.New("auth: invalid signature proof")
	ErrIncorrectNonce       = errors.New("auth: incorrect nonce")
	ErrInvokerNonceMismatch = errors.New("auth: invoker proof must present nonce 0")
)

// Payload is the byte layout a signature proof commits to. Integer
// field keys keep the encoding compact and deterministic.
type Payload struct {
	Op      string `cbor:"1,keyasint"`
	Office  []byte `cbor:"2,keyasint,omitempty"`
	Auction []byte `cbor:"3,keyasint,omitempty"`
	Start   []byte `cbor:"4,keyasint,omitempty"`
	Min     []byte `cbor:"5,keyasint,omitempty"`
	Slope   []byte `cbor:"6,keyasint,omitempty"`
	Nonce   uint64 `cbor:"7,keyasint"`
}

// Proof authenticates a caller. Exactly one mode is populated: Invoker
// for self-authorizing callers, PublicKey+Signature for signed calls.
type Proof struct {
	Invoker   Identity
	PublicKey []byte
	Signature []byte
}

func (p Proof) IsInvoker() bool { return p.Invoker != "" }

// Sign produces a signature proof for payload.
func Sign(priv ed25519.PrivateKey, payload Payload) (Proof, error) {
	msg, err := Marshal(payload)
	if err != nil {
		return Proof{}, err
	}
	pub := priv.Public().(ed25519.PublicKey)
	return Proof{
		PublicKey: append([]byte(nil), pub...),
		Signature: ed25519.Sign(priv, msg),
	}, nil
}

// Signer resolves the identity a proof speaks for. For signature
// proofs the signature must verify against the payload.
func Signer(p Proof, payload Payload) (Identity, error) {
	if p.IsInvoker() {
		return p.Invoker, nil
	}
	if len(p.PublicKey) != ed25519.PublicKeySize || len(p.Signature) != ed25519.SignatureSize {
		return "", ErrInvalidSignature
	}
	msg, err := Marshal(payload)
	if err != nil {
		return "", err
	}
	if !ed25519.Verify(ed25519.PublicKey(p.PublicKey), msg, p.Signature) {
		return "", ErrInvalidSignature
	}
	return AccountIdentity(p.PublicKey), nil
}

// CheckAdmin fails unless the proof's signer is admin. It must run
// before ConsumeNonce so an unauthorized caller never burns a nonce.
func CheckAdmin(admin Identity, p Proof, payload Payload) error {
	signer, err := Signer(p, payload)
	if err != nil {
		return err
	}
	if signer != admin {
		return ErrUnauthorized
	}
	return nil
}

const noncePrefix = "nonce/"

// NonceOf reads the stored counter for id, zero if never consumed.
func NonceOf(kv store.KV, id Identity) uint64 {
	b, ok := kv.Get(noncePrefix + string(id))
	if !ok || len(b) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// ConsumeNonce checks the supplied counter against the stored one and
// advances it by exactly one. Invoker proofs must supply 0 and consume
// nothing: the transport already serializes them, so there is nothing
// to replay.
func ConsumeNonce(kv store.KV, p Proof, payload Payload, supplied uint64) error {
	if p.IsInvoker() {
		if supplied != 0 {
			return ErrInvokerNonceMismatch
		}
		return nil
	}
	signer, err := Signer(p, payload)
	if err != nil {
		return err
	}
	stored := NonceOf(kv, signer)
	if supplied != stored {
		return ErrIncorrectNonce
	}
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], stored+1)
	kv.Set(noncePrefix+string(signer), b[:])
	return nil
}
