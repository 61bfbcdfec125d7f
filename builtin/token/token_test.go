// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package token_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cstake/cstake/builtin/staking"
	"github.com/cstake/cstake/builtin/token"
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/kv"
	"github.com/cstake/cstake/state"
)

func newTestToken(t *testing.T) (*token.Token, *fhe.SoftRuntime, *state.State) {
	store, err := kv.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rt, err := fhe.NewRuntime(store, [32]byte{3})
	require.NoError(t, err)

	st := state.New(store)
	return token.New(cstake.TokenAddress, st, rt), rt, st
}

func decryptBalance(t *testing.T, tok *token.Token, rt *fhe.SoftRuntime, addr cstake.Address) uint64 {
	h, err := tok.BalanceOf(addr)
	require.NoError(t, err)
	if !h.Initialized() {
		return 0
	}
	v, err := rt.Decrypt(h, tok.Address())
	require.NoError(t, err)
	return v
}

func TestMint(t *testing.T) {
	tok, rt, _ := newTestToken(t)
	alice := cstake.BytesToAddress([]byte("alice"))

	h, err := tok.BalanceOf(alice)
	require.NoError(t, err)
	assert.False(t, h.Initialized())

	require.NoError(t, tok.Mint(alice, 100*cstake.TokenUnit))
	require.NoError(t, tok.Mint(alice, 20*cstake.TokenUnit))
	assert.Equal(t, uint64(120*cstake.TokenUnit), decryptBalance(t, tok, rt, alice))

	supply, err := tok.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(120*cstake.TokenUnit), supply)
}

func TestMove(t *testing.T) {
	tok, rt, _ := newTestToken(t)
	alice := cstake.BytesToAddress([]byte("alice"))
	bob := cstake.BytesToAddress([]byte("bob"))

	require.NoError(t, tok.Mint(alice, 100))

	amount, err := rt.Encrypt(60)
	require.NoError(t, err)
	moved, err := tok.Move(alice, bob, amount)
	require.NoError(t, err)

	v, err := rt.Decrypt(moved, tok.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(60), v)
	assert.Equal(t, uint64(40), decryptBalance(t, tok, rt, alice))
	assert.Equal(t, uint64(60), decryptBalance(t, tok, rt, bob))

	// both parties may decrypt what moved
	for _, who := range []cstake.Address{alice, bob} {
		ok, err := rt.IsAllowed(moved, who)
		require.NoError(t, err)
		assert.True(t, ok)
	}
}

func TestMoveCapsAtBalance(t *testing.T) {
	tok, rt, _ := newTestToken(t)
	alice := cstake.BytesToAddress([]byte("alice"))
	bob := cstake.BytesToAddress([]byte("bob"))

	require.NoError(t, tok.Mint(alice, 50))

	// an over-spend succeeds and moves the whole remaining balance
	amount, err := rt.Encrypt(80)
	require.NoError(t, err)
	moved, err := tok.Move(alice, bob, amount)
	require.NoError(t, err)

	v, err := rt.Decrypt(moved, tok.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(50), v)
	assert.Equal(t, uint64(0), decryptBalance(t, tok, rt, alice))
	assert.Equal(t, uint64(50), decryptBalance(t, tok, rt, bob))

	// spending from the drained account now moves zero
	amount, err = rt.Encrypt(1)
	require.NoError(t, err)
	moved, err = tok.Move(alice, bob, amount)
	require.NoError(t, err)

	v, err = rt.Decrypt(moved, tok.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)
	assert.Equal(t, uint64(50), decryptBalance(t, tok, rt, bob))
}

func TestMoveFromUnfunded(t *testing.T) {
	tok, rt, _ := newTestToken(t)
	alice := cstake.BytesToAddress([]byte("alice"))
	bob := cstake.BytesToAddress([]byte("bob"))

	amount, err := rt.Encrypt(10)
	require.NoError(t, err)
	moved, err := tok.Move(alice, bob, amount)
	require.NoError(t, err)

	v, err := rt.Decrypt(moved, tok.Address())
	require.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	_, err = tok.Move(alice, bob, fhe.Handle{})
	assert.ErrorIs(t, err, fhe.ErrUninitialized)
}

// TestGateway runs the staking engine against the real token and checks that
// token units are conserved across stake, unstake and claim.
func TestGateway(t *testing.T) {
	store, err := kv.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rt, err := fhe.NewRuntime(store, [32]byte{9})
	require.NoError(t, err)
	st := state.New(store)

	tok := token.New(cstake.TokenAddress, st, rt)
	gateway := token.NewGateway(tok, cstake.StakingAddress)
	engine := staking.New(cstake.StakingAddress, st, rt, gateway)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	alice := fhe.AddressOfKey(key)

	require.NoError(t, tok.Mint(alice, 100*cstake.TokenUnit))
	// the pool is pre-funded to cover reward payouts
	require.NoError(t, tok.Mint(cstake.StakingAddress, 1000*cstake.TokenUnit))

	seal := func(v uint64) (fhe.ExternalCiphertext, []byte) {
		ext, err := rt.Seal(v)
		require.NoError(t, err)
		proof, err := fhe.SignInput(ext, engine.Address(), key)
		require.NoError(t, err)
		return ext, proof
	}
	balances := func() (holder, pool uint64) {
		return decryptBalance(t, tok, rt, alice), decryptBalance(t, tok, rt, cstake.StakingAddress)
	}

	t0 := uint64(1_700_000_000)

	ext, proof := seal(50 * cstake.TokenUnit)
	_, err = engine.Stake(alice, ext, proof, t0)
	require.NoError(t, err)

	a, p := balances()
	assert.Equal(t, uint64(50*cstake.TokenUnit), a)
	assert.Equal(t, uint64(1050*cstake.TokenUnit), p)

	ext, proof = seal(20 * cstake.TokenUnit)
	_, err = engine.Unstake(alice, ext, proof, t0)
	require.NoError(t, err)

	a, p = balances()
	assert.Equal(t, uint64(70*cstake.TokenUnit), a)
	assert.Equal(t, uint64(1030*cstake.TokenUnit), p)

	// one day of interest on the remaining 30 principal
	ev, err := engine.Claim(alice, t0+cstake.DayLength)
	require.NoError(t, err)
	reward, err := rt.Decrypt(ev.Amount, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(30*cstake.TokenUnit/100), reward)

	a, p = balances()
	assert.Equal(t, uint64(70*cstake.TokenUnit)+reward, a)
	assert.Equal(t, uint64(1030*cstake.TokenUnit)-reward, p)

	supply, err := tok.TotalSupply()
	require.NoError(t, err)
	assert.Equal(t, uint64(1100*cstake.TokenUnit), supply)
}
