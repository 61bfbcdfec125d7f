// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking implements the confidential staking accrual engine.
//
// Per account it keeps an encrypted principal, encrypted accrued rewards and
// a plaintext accrual boundary. Interest compounds lazily at a fixed daily
// rate whenever the position is touched; all balance arithmetic happens over
// opaque ciphertext handles so no operation branches on a plaintext amount.
package staking

import (
	"github.com/pkg/errors"

	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/log"
	"github.com/cstake/cstake/state"
)

var (
	logger = log.WithContext("pkg", "staking")

	// ErrNoRewards is returned by Claim when the account has no reward
	// history. "Never staked" is not treated as sensitive, so this is a
	// visible failure.
	ErrNoRewards = errors.New("staking: no rewards to claim")
)

// TransferGateway is the confidential token collaborator moving staked funds.
type TransferGateway interface {
	// Address is the gateway identity, granted transient decrypt access on
	// amounts it is asked to move.
	Address() cstake.Address

	// TransferFrom moves amount from 'from' to 'to'. The gateway enforces
	// sufficient balance by capping, and returns the amount actually moved.
	TransferFrom(from, to cstake.Address, amount fhe.Handle) (fhe.Handle, error)

	// Transfer moves amount out of the staking pool to 'to'. It fails only
	// on a malformed handle.
	Transfer(to cstake.Address, amount fhe.Handle) error
}

// Staking implements the staking engine over contract storage and the
// confidential runtime.
type Staking struct {
	addr    cstake.Address
	state   *state.State
	rt      fhe.Runtime
	gateway TransferGateway
}

// New create a new instance.
func New(addr cstake.Address, state *state.State, rt fhe.Runtime, gateway TransferGateway) *Staking {
	return &Staking{addr, state, rt, gateway}
}

// Address returns the engine identity.
func (s *Staking) Address() cstake.Address {
	return s.addr
}

func (s *Staking) getStake(addr cstake.Address) (*stakeInfo, error) {
	var info stakeInfo
	if err := s.state.GetStructedStorage(s.addr, stakeKey(addr), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (s *Staking) setStake(addr cstake.Address, info *stakeInfo) error {
	return s.state.SetStructedStorage(s.addr, stakeKey(addr), info)
}

// syncAccess authorizes the engine and the affected account to decrypt a
// changed handle. No-op for uninitialized handles and the null identity.
func (s *Staking) syncAccess(h fhe.Handle, addr cstake.Address) error {
	if !h.Initialized() || addr.IsZero() {
		return nil
	}
	if err := s.rt.Allow(h, s.addr); err != nil {
		return err
	}
	return s.rt.Allow(h, addr)
}

// accrue folds due interest into rewards. It runs as step one of every
// mutating operation, against the pre-operation principal.
//
// The boundary advances by exactly the credited whole days, never to now, so
// a sub-day remainder is preserved for the next accrual.
func (s *Staking) accrue(addr cstake.Address, now uint64) error {
	info, err := s.getStake(addr)
	if err != nil {
		return err
	}

	if !info.Principal.Initialized() {
		// no interest without a principal; just plant the baseline
		if info.LastAccrued == 0 {
			info.LastAccrued = now
			return s.setStake(addr, info)
		}
		return nil
	}

	if info.LastAccrued == 0 {
		info.LastAccrued = now
		return s.setStake(addr, info)
	}

	if now <= info.LastAccrued {
		// non-monotonic clock, nothing to credit
		return nil
	}

	elapsedDays := (now - info.LastAccrued) / cstake.DayLength
	if elapsedDays == 0 {
		return nil
	}

	scaled, err := s.rt.MulConst(info.Principal, elapsedDays)
	if err != nil {
		return err
	}
	interest, err := s.rt.DivConst(scaled, cstake.InterestDivisor)
	if err != nil {
		return err
	}

	if info.Rewards.Initialized() {
		if info.Rewards, err = s.rt.Add(info.Rewards, interest); err != nil {
			return err
		}
	} else {
		info.Rewards = interest
	}
	if err := s.syncAccess(info.Rewards, addr); err != nil {
		return err
	}

	info.LastAccrued += elapsedDays * cstake.DayLength
	logger.Debug("accrued interest", "account", addr, "days", elapsedDays, "boundary", info.LastAccrued)
	return s.setStake(addr, info)
}

// Stake deposits an externally encrypted amount into the caller's position.
func (s *Staking) Stake(caller cstake.Address, ext fhe.ExternalCiphertext, proof []byte, now uint64) (*Event, error) {
	if err := s.accrue(caller, now); err != nil {
		return nil, err
	}

	amount, err := s.rt.Verify(ext, proof, caller, s.addr)
	if err != nil {
		return nil, err
	}

	if err := s.rt.Allow(amount, s.gateway.Address()); err != nil {
		return nil, err
	}
	moved, err := s.gateway.TransferFrom(caller, s.addr, amount)
	if err != nil {
		return nil, err
	}

	info, err := s.getStake(caller)
	if err != nil {
		return nil, err
	}
	if info.Principal.Initialized() {
		if info.Principal, err = s.rt.Add(info.Principal, moved); err != nil {
			return nil, err
		}
	} else {
		info.Principal = moved
	}
	if err := s.syncAccess(info.Principal, caller); err != nil {
		return nil, err
	}
	if err := s.setStake(caller, info); err != nil {
		return nil, err
	}

	logger.Debug("staked", "account", caller, "amount", moved)
	return newStakedEvent(caller, moved), nil
}

// Unstake withdraws an externally encrypted requested amount.
//
// An over-withdrawal deliberately does not revert: the failable subtraction
// leaves the principal value in place under a fresh handle and the transfer
// carries an encrypted zero, so call success never reveals whether the
// request exceeded the position.
func (s *Staking) Unstake(caller cstake.Address, ext fhe.ExternalCiphertext, proof []byte, now uint64) (*Event, error) {
	if err := s.accrue(caller, now); err != nil {
		return nil, err
	}

	requested, err := s.rt.Verify(ext, proof, caller, s.addr)
	if err != nil {
		return nil, err
	}

	info, err := s.getStake(caller)
	if err != nil {
		return nil, err
	}

	if !info.Principal.Initialized() {
		// never staked: the subtraction result stays uninitialized and no
		// transfer happens, but the call still succeeds
		logger.Debug("unstake without principal", "account", caller)
		return newUnstakedEvent(caller, requested, fhe.Handle{}), nil
	}

	ok, updated, err := s.rt.TrySub(info.Principal, requested)
	if err != nil {
		return nil, err
	}

	// the principal handle is replaced unconditionally so state shape does
	// not reveal which branch fired
	info.Principal = updated
	if err := s.syncAccess(info.Principal, caller); err != nil {
		return nil, err
	}
	if err := s.setStake(caller, info); err != nil {
		return nil, err
	}

	zero, err := s.rt.Encrypt(0)
	if err != nil {
		return nil, err
	}
	toTransfer, err := s.rt.Select(ok, requested, zero)
	if err != nil {
		return nil, err
	}

	if toTransfer.Initialized() {
		if err := s.rt.Allow(toTransfer, s.gateway.Address()); err != nil {
			return nil, err
		}
		if err := s.gateway.Transfer(caller, toTransfer); err != nil {
			return nil, err
		}
	}
	if err := s.syncAccess(toTransfer, caller); err != nil {
		return nil, err
	}

	logger.Debug("unstaked", "account", caller, "requested", requested, "withdrawn", toTransfer)
	return newUnstakedEvent(caller, requested, toTransfer), nil
}

// Claim pays out all accrued rewards and resets them to a defined encrypted
// zero. Claiming with no reward history fails with ErrNoRewards.
func (s *Staking) Claim(caller cstake.Address, now uint64) (*Event, error) {
	if err := s.accrue(caller, now); err != nil {
		return nil, err
	}

	info, err := s.getStake(caller)
	if err != nil {
		return nil, err
	}
	if !info.Rewards.Initialized() {
		return nil, ErrNoRewards
	}

	toSend := info.Rewards

	// reset to a defined encrypted zero, never back to uninitialized
	if info.Rewards, err = s.rt.Encrypt(0); err != nil {
		return nil, err
	}
	if err := s.syncAccess(info.Rewards, caller); err != nil {
		return nil, err
	}
	if err := s.setStake(caller, info); err != nil {
		return nil, err
	}

	if err := s.rt.Allow(toSend, s.gateway.Address()); err != nil {
		return nil, err
	}
	if err := s.gateway.Transfer(caller, toSend); err != nil {
		return nil, err
	}

	logger.Debug("claimed rewards", "account", caller, "amount", toSend)
	return newRewardsClaimedEvent(caller, toSend), nil
}

// PendingRewards previews rewards as of now without persisting anything.
// The ephemeral result handle gets a fresh decrypt grant for the account, so
// the read is state-free but not permission-free.
func (s *Staking) PendingRewards(addr cstake.Address, now uint64) (fhe.Handle, error) {
	info, err := s.getStake(addr)
	if err != nil {
		return fhe.Handle{}, err
	}

	preview := info.Rewards
	if info.Principal.Initialized() && info.LastAccrued != 0 && now > info.LastAccrued {
		if elapsedDays := (now - info.LastAccrued) / cstake.DayLength; elapsedDays > 0 {
			scaled, err := s.rt.MulConst(info.Principal, elapsedDays)
			if err != nil {
				return fhe.Handle{}, err
			}
			interest, err := s.rt.DivConst(scaled, cstake.InterestDivisor)
			if err != nil {
				return fhe.Handle{}, err
			}
			if preview.Initialized() {
				if preview, err = s.rt.Add(preview, interest); err != nil {
					return fhe.Handle{}, err
				}
			} else {
				preview = interest
			}
		}
	}

	if err := s.syncAccess(preview, addr); err != nil {
		return fhe.Handle{}, err
	}
	return preview, nil
}

// GetStake returns the stored position of an account.
func (s *Staking) GetStake(addr cstake.Address) (principal, rewards fhe.Handle, lastAccrued uint64, err error) {
	info, err := s.getStake(addr)
	if err != nil {
		return fhe.Handle{}, fhe.Handle{}, 0, err
	}
	return info.Principal, info.Rewards, info.LastAccrued, nil
}
