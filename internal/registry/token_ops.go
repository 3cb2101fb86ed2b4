package registry

import (
	"math/big"

	"paulette.land/internal/auth"
	"paulette.land/internal/store"
	"paulette.land/internal/token"
)

// Token ledger pass-throughs. The ledger is an external collaborator,
// but it shares the registry's store, so its operations go through the
// same serialized commit-or-discard boundary as everything else.

func (r *Registry) TokenCreate(ref token.Ref, admin auth.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	if err := token.Create(st, ref, admin); err != nil {
		return err
	}
	return st.Commit()
}

func (r *Registry) TokenMint(ref token.Ref, caller, to auth.Identity, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	if err := token.Mint(st, ref, caller, to, amount); err != nil {
		return err
	}
	return st.Commit()
}

func (r *Registry) TokenApprove(ref token.Ref, owner, spender auth.Identity, amount *big.Int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := store.Stage(r.kv)
	if err := token.Approve(st, ref, owner, spender, amount); err != nil {
		return err
	}
	return st.Commit()
}

func (r *Registry) TokenBalance(ref token.Ref, id auth.Identity) *big.Int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return token.BalanceOf(r.kv, ref, id)
}
