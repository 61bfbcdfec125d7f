// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token

import (
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
)

// Gateway adapts the token to the transfer surface the staking engine
// drives, with outbound transfers bound to a fixed pool account.
type Gateway struct {
	token *Token
	pool  cstake.Address
}

// NewGateway create a gateway paying out of the given pool account.
func NewGateway(token *Token, pool cstake.Address) *Gateway {
	return &Gateway{token, pool}
}

// Address returns the token identity.
func (g *Gateway) Address() cstake.Address {
	return g.token.Address()
}

// TransferFrom moves amount from 'from' to 'to', capped at the sender's
// balance, and returns the amount actually moved.
func (g *Gateway) TransferFrom(from, to cstake.Address, amount fhe.Handle) (fhe.Handle, error) {
	return g.token.Move(from, to, amount)
}

// Transfer pays amount out of the pool to 'to'.
func (g *Gateway) Transfer(to cstake.Address, amount fhe.Handle) error {
	_, err := g.token.Move(g.pool, to, amount)
	return err
}
