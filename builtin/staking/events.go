// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
)

// Event names.
const (
	EvStaked         = "Staked"
	EvUnstaked       = "Unstaked"
	EvRewardsClaimed = "RewardsClaimed"
)

// Event is a ciphertext-valued engine event. Amounts are opaque handles;
// plaintext values never appear here.
type Event struct {
	Name    string
	Account cstake.Address

	// Amount is the staked / withdrawn / claimed amount.
	Amount fhe.Handle

	// Requested is the requested withdrawal amount, set for Unstaked only.
	// It may differ in value from Amount when the request exceeded the
	// position, but only holders of decrypt permission can tell.
	Requested fhe.Handle
}

func newStakedEvent(account cstake.Address, amount fhe.Handle) *Event {
	return &Event{Name: EvStaked, Account: account, Amount: amount}
}

func newUnstakedEvent(account cstake.Address, requested, withdrawn fhe.Handle) *Event {
	return &Event{Name: EvUnstaked, Account: account, Amount: withdrawn, Requested: requested}
}

func newRewardsClaimedEvent(account cstake.Address, amount fhe.Handle) *Event {
	return &Event{Name: EvRewardsClaimed, Account: account, Amount: amount}
}
