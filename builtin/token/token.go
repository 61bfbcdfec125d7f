// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package token implements the confidential asset the staking engine moves.
//
// Balances are encrypted handles in contract storage. Transfers never revert
// on insufficient balance; they cap the moved amount at the sender's balance
// under the failable subtraction, so outcomes stay hidden from observers.
package token

import (
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/log"
	"github.com/cstake/cstake/state"
)

var logger = log.WithContext("pkg", "token")

var totalSupplyKey = cstake.BytesToBytes32([]byte("total-supply"))

// Token is the confidential token bound to its contract address.
type Token struct {
	addr  cstake.Address
	state *state.State
	rt    fhe.Runtime
}

// New create a new instance.
func New(addr cstake.Address, state *state.State, rt fhe.Runtime) *Token {
	return &Token{addr, state, rt}
}

// Address returns the token identity.
func (t *Token) Address() cstake.Address {
	return t.addr
}

func balanceKey(addr cstake.Address) cstake.Bytes32 {
	return cstake.BytesToBytes32(append([]byte("b"), addr.Bytes()...))
}

// BalanceOf returns the encrypted balance handle. Uninitialized means the
// account never held the token.
func (t *Token) BalanceOf(addr cstake.Address) (fhe.Handle, error) {
	data, err := t.state.GetBytes(t.addr, balanceKey(addr))
	if err != nil {
		return fhe.Handle{}, err
	}
	if len(data) == 0 {
		return fhe.Handle{}, nil
	}
	return fhe.Handle(cstake.BytesToBytes32(data)), nil
}

func (t *Token) setBalance(addr cstake.Address, h fhe.Handle) error {
	return t.state.SetBytes(t.addr, balanceKey(addr), h.Bytes())
}

// TotalSupply returns the plaintext supply. Supply changes only through
// plaintext mints, so nothing confidential leaks here.
func (t *Token) TotalSupply() (uint64, error) {
	return t.state.GetUint64(t.addr, totalSupplyKey)
}

// Mint credits a plaintext amount to an account, encrypting it on the way
// in. Used for genesis seeding and faucets, not for user flows.
func (t *Token) Mint(to cstake.Address, amount uint64) error {
	minted, err := t.rt.Encrypt(amount)
	if err != nil {
		return err
	}
	if err := t.credit(to, minted); err != nil {
		return err
	}

	supply, err := t.TotalSupply()
	if err != nil {
		return err
	}
	if err := t.state.SetUint64(t.addr, totalSupplyKey, supply+amount); err != nil {
		return err
	}

	logger.Debug("minted", "to", to, "amount", amount)
	return nil
}

// syncAccess authorizes the token and the balance holder on a handle.
func (t *Token) syncAccess(h fhe.Handle, holder cstake.Address) error {
	if !h.Initialized() || holder.IsZero() {
		return nil
	}
	if err := t.rt.Allow(h, t.addr); err != nil {
		return err
	}
	return t.rt.Allow(h, holder)
}

func (t *Token) credit(to cstake.Address, amount fhe.Handle) error {
	balance, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if balance.Initialized() {
		if balance, err = t.rt.Add(balance, amount); err != nil {
			return err
		}
	} else {
		balance = amount
	}
	if err := t.syncAccess(balance, to); err != nil {
		return err
	}
	return t.setBalance(to, balance)
}

// Move transfers amount from one account to another, capped at the sender's
// balance. It returns the handle of the amount actually moved, which is the
// requested amount or the whole remaining balance; which one is only visible
// to holders of decrypt permission.
func (t *Token) Move(from, to cstake.Address, amount fhe.Handle) (fhe.Handle, error) {
	if !amount.Initialized() {
		return fhe.Handle{}, fhe.ErrUninitialized
	}

	balance, err := t.BalanceOf(from)
	if err != nil {
		return fhe.Handle{}, err
	}
	if !balance.Initialized() {
		// a never-funded sender spends from an encrypted zero
		if balance, err = t.rt.Encrypt(0); err != nil {
			return fhe.Handle{}, err
		}
	}

	ok, diff, err := t.rt.TrySub(balance, amount)
	if err != nil {
		return fhe.Handle{}, err
	}

	// moved = min(amount, balance): a shortfall drains the whole balance
	moved, err := t.rt.Select(ok, amount, balance)
	if err != nil {
		return fhe.Handle{}, err
	}
	zero, err := t.rt.Encrypt(0)
	if err != nil {
		return fhe.Handle{}, err
	}
	debited, err := t.rt.Select(ok, diff, zero)
	if err != nil {
		return fhe.Handle{}, err
	}

	if err := t.syncAccess(debited, from); err != nil {
		return fhe.Handle{}, err
	}
	if err := t.setBalance(from, debited); err != nil {
		return fhe.Handle{}, err
	}
	if err := t.credit(to, moved); err != nil {
		return fhe.Handle{}, err
	}
	if err := t.syncAccess(moved, from); err != nil {
		return fhe.Handle{}, err
	}
	if err := t.syncAccess(moved, to); err != nil {
		return fhe.Handle{}, err
	}

	logger.Debug("transferred", "from", from, "to", to, "moved", moved)
	return moved, nil
}
