// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/cstake/cstake/cstake"
)

// Genesis seeds token balances on first start. It is applied exactly once;
// restarting with a different file changes nothing.
type Genesis struct {
	// Accounts are the initially funded holders.
	Accounts []GenesisAccount `yaml:"accounts"`

	// Pool is the staking pool pre-funding that reward payouts draw from.
	Pool uint64 `yaml:"pool"`
}

type GenesisAccount struct {
	Address string `yaml:"address"`
	Balance uint64 `yaml:"balance"`
}

// LoadGenesis reads a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read genesis")
	}
	var gen Genesis
	if err := yaml.Unmarshal(data, &gen); err != nil {
		return nil, errors.Wrap(err, "parse genesis")
	}
	return &gen, nil
}

var genesisAppliedKey = cstake.BytesToBytes32([]byte("genesis-applied"))

func (n *Node) applyGenesis(gen *Genesis) error {
	applied, err := n.state.GetUint64(cstake.StakingAddress, genesisAppliedKey)
	if err != nil {
		return err
	}
	if applied != 0 {
		logger.Debug("genesis already applied")
		return nil
	}

	for _, acc := range gen.Accounts {
		addr, err := cstake.ParseAddress(acc.Address)
		if err != nil {
			return errors.Wrapf(err, "genesis account %q", acc.Address)
		}
		if err := n.token.Mint(addr, acc.Balance); err != nil {
			return err
		}
	}
	if gen.Pool > 0 {
		if err := n.token.Mint(cstake.StakingAddress, gen.Pool); err != nil {
			return err
		}
	}

	if err := n.state.SetUint64(cstake.StakingAddress, genesisAppliedKey, 1); err != nil {
		return err
	}
	if err := n.state.Commit(); err != nil {
		return err
	}

	logger.Info("genesis applied", "accounts", len(gen.Accounts), "pool", gen.Pool)
	return nil
}
