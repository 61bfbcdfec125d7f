// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package staking

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/state"
)

type stakeInfo struct {
	// Principal is the encrypted staked amount. Uninitialized means the
	// account never staked.
	Principal fhe.Handle

	// Rewards is the encrypted unclaimed interest. Uninitialized means
	// nothing ever accrued, which is distinct from an encryption of zero
	// (the post-claim state).
	Rewards fhe.Handle

	// LastAccrued is the unix time of the last accrual boundary. Once
	// nonzero it only advances by whole multiples of cstake.DayLength, so a
	// partial day is carried into the next accrual instead of being lost.
	LastAccrued uint64
}

var (
	_ state.StorageEncoder = (*stakeInfo)(nil)
	_ state.StorageDecoder = (*stakeInfo)(nil)
)

func (si *stakeInfo) Encode() ([]byte, error) {
	if si.isEmpty() {
		return nil, nil
	}
	return rlp.EncodeToBytes(si)
}

func (si *stakeInfo) Decode(data []byte) error {
	if len(data) == 0 {
		*si = stakeInfo{}
		return nil
	}
	return rlp.DecodeBytes(data, si)
}

func (si *stakeInfo) isEmpty() bool {
	return !si.Principal.Initialized() &&
		!si.Rewards.Initialized() &&
		si.LastAccrued == 0
}

func stakeKey(addr cstake.Address) cstake.Bytes32 {
	return cstake.BytesToBytes32(append([]byte("s"), addr.Bytes()...))
}
