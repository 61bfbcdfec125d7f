// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fhe_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/kv"
)

func newTestRuntime(t *testing.T) *fhe.SoftRuntime {
	store, err := kv.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	rt, err := fhe.NewRuntime(store, [32]byte{1})
	require.NoError(t, err)
	return rt
}

func TestArithmetic(t *testing.T) {
	rt := newTestRuntime(t)
	engine := cstake.BytesToAddress([]byte("engine"))

	a, err := rt.Encrypt(50)
	require.NoError(t, err)
	b, err := rt.Encrypt(20)
	require.NoError(t, err)

	require.NoError(t, rt.Allow(a, engine))

	sum, err := rt.Add(a, b)
	require.NoError(t, err)
	require.NoError(t, rt.Allow(sum, engine))
	v, err := rt.Decrypt(sum, engine)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), v)

	scaled, err := rt.MulConst(a, 3)
	require.NoError(t, err)
	require.NoError(t, rt.Allow(scaled, engine))
	v, _ = rt.Decrypt(scaled, engine)
	assert.Equal(t, uint64(150), v)

	div, err := rt.DivConst(a, 100)
	require.NoError(t, err)
	require.NoError(t, rt.Allow(div, engine))
	v, _ = rt.Decrypt(div, engine)
	assert.Equal(t, uint64(0), v) // truncation toward zero

	_, err = rt.DivConst(a, 0)
	assert.ErrorIs(t, err, fhe.ErrDivisionByZero)
}

func TestTrySubSelect(t *testing.T) {
	rt := newTestRuntime(t)
	engine := cstake.BytesToAddress([]byte("engine"))

	decrypt := func(h fhe.Handle) uint64 {
		require.NoError(t, rt.Allow(h, engine))
		v, err := rt.Decrypt(h, engine)
		require.NoError(t, err)
		return v
	}

	a, _ := rt.Encrypt(30)
	b, _ := rt.Encrypt(40)
	zero, _ := rt.Encrypt(0)

	// insufficient: diff keeps a's value, flag encrypts false
	ok, diff, err := rt.TrySub(a, b)
	require.NoError(t, err)
	assert.NotEqual(t, a, diff) // fresh handle, not a state-shape leak
	assert.Equal(t, uint64(0), decrypt(ok))
	assert.Equal(t, uint64(30), decrypt(diff))

	sel, err := rt.Select(ok, b, zero)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), decrypt(sel))

	// sufficient
	ok, diff, err = rt.TrySub(b, a)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), decrypt(ok))
	assert.Equal(t, uint64(10), decrypt(diff))

	sel, err = rt.Select(ok, a, zero)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), decrypt(sel))
}

func TestACL(t *testing.T) {
	rt := newTestRuntime(t)
	alice := cstake.BytesToAddress([]byte("alice"))
	bob := cstake.BytesToAddress([]byte("bob"))

	h, err := rt.Encrypt(99)
	require.NoError(t, err)

	_, err = rt.Decrypt(h, alice)
	assert.ErrorIs(t, err, fhe.ErrNotAllowed)

	require.NoError(t, rt.Allow(h, alice))
	v, err := rt.Decrypt(h, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), v)

	allowed, err := rt.IsAllowed(h, bob)
	require.NoError(t, err)
	assert.False(t, allowed)

	// zero identity and uninitialized handles are no-ops
	assert.NoError(t, rt.Allow(h, cstake.Address{}))
	assert.ErrorIs(t, rt.Allow(fhe.Handle{}, alice), fhe.ErrUninitialized)
}

func TestUninitialized(t *testing.T) {
	rt := newTestRuntime(t)

	var none fhe.Handle
	assert.False(t, none.Initialized())

	h, _ := rt.Encrypt(0)
	assert.True(t, h.Initialized()) // encrypted zero is initialized

	_, err := rt.Add(none, h)
	assert.ErrorIs(t, err, fhe.ErrUninitialized)
}

func TestVerify(t *testing.T) {
	rt := newTestRuntime(t)
	scope := cstake.BytesToAddress([]byte("staking"))

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := fhe.AddressOfKey(key)

	ext, err := rt.Seal(12345)
	require.NoError(t, err)
	proof, err := fhe.SignInput(ext, scope, key)
	require.NoError(t, err)

	h, err := rt.Verify(ext, proof, caller, scope)
	require.NoError(t, err)
	require.NoError(t, rt.Allow(h, caller))
	v, err := rt.Decrypt(h, caller)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), v)

	// wrong submitter
	_, err = rt.Verify(ext, proof, cstake.BytesToAddress([]byte("mallory")), scope)
	assert.ErrorIs(t, err, fhe.ErrInvalidProof)

	// proof bound to another contract
	otherScope := cstake.BytesToAddress([]byte("other"))
	_, err = rt.Verify(ext, proof, caller, otherScope)
	assert.ErrorIs(t, err, fhe.ErrInvalidProof)

	// mangled ciphertext
	mangled := append(fhe.ExternalCiphertext(nil), ext...)
	mangled[len(mangled)-1] ^= 0xff
	proof2, _ := fhe.SignInput(mangled, scope, key)
	_, err = rt.Verify(mangled, proof2, caller, scope)
	assert.ErrorIs(t, err, fhe.ErrInvalidProof)

	// truncated proof
	_, err = rt.Verify(ext, proof[:10], caller, scope)
	assert.ErrorIs(t, err, fhe.ErrInvalidProof)
}

func TestArithmeticRandomized(t *testing.T) {
	rt := newTestRuntime(t)
	engine := cstake.BytesToAddress([]byte("engine"))

	decrypt := func(h fhe.Handle) uint64 {
		require.NoError(t, rt.Allow(h, engine))
		v, err := rt.Decrypt(h, engine)
		require.NoError(t, err)
		return v
	}

	f := fuzz.New().NilChance(0)
	for i := 0; i < 100; i++ {
		var av, bv uint64
		f.Fuzz(&av)
		f.Fuzz(&bv)
		// keep sums inside uint64
		av >>= 1
		bv >>= 1

		a, err := rt.Encrypt(av)
		require.NoError(t, err)
		b, err := rt.Encrypt(bv)
		require.NoError(t, err)

		sum, err := rt.Add(a, b)
		require.NoError(t, err)
		assert.Equal(t, av+bv, decrypt(sum))

		ok, diff, err := rt.TrySub(a, b)
		require.NoError(t, err)
		if bv <= av {
			assert.Equal(t, uint64(1), decrypt(ok))
			assert.Equal(t, av-bv, decrypt(diff))
		} else {
			assert.Equal(t, uint64(0), decrypt(ok))
			assert.Equal(t, av, decrypt(diff))
		}

		sel, err := rt.Select(ok, a, b)
		require.NoError(t, err)
		if bv <= av {
			assert.Equal(t, av, decrypt(sel))
		} else {
			assert.Equal(t, bv, decrypt(sel))
		}
	}
}
