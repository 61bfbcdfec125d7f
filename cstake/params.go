// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cstake

// Constants of the staking protocol.
const (
	// DayLength is the accrual granularity, in seconds. Interest is credited
	// per whole elapsed day; sub-day remainders carry over to the next accrual.
	DayLength uint64 = 86400

	// InterestDivisor fixes the daily interest rate at principal/InterestDivisor,
	// i.e. 1% per day. Nonzero by construction, so accrual has no
	// division-by-zero path.
	InterestDivisor uint64 = 100

	// TokenDecimals is the decimal scale of token amounts.
	TokenDecimals = 6

	// TokenUnit is one whole token at TokenDecimals scale.
	TokenUnit uint64 = 1_000_000
)

// Well known addresses.
var (
	// StakingAddress is the identity of the staking engine. It owns the stake
	// ledger storage and holds staked funds on the token ledger.
	StakingAddress = BytesToAddress([]byte("cstake-staking"))

	// TokenAddress is the identity of the confidential token ledger.
	TokenAddress = BytesToAddress([]byte("cstake-token"))
)
