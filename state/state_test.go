// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/kv"
	"github.com/cstake/cstake/state"
)

func newTestState(t *testing.T) (*state.State, kv.GetPutCloser) {
	store, err := kv.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return state.New(store), store
}

func TestStorage(t *testing.T) {
	st, _ := newTestState(t)

	addr := cstake.BytesToAddress([]byte("a1"))
	key := cstake.BytesToBytes32([]byte("k1"))

	v, err := st.GetUint64(addr, key)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), v)

	require.NoError(t, st.SetUint64(addr, key, 42))
	v, err = st.GetUint64(addr, key)
	assert.NoError(t, err)
	assert.Equal(t, uint64(42), v)

	require.NoError(t, st.SetBytes(addr, key, []byte("raw")))
	b, err := st.GetBytes(addr, key)
	assert.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)
}

func TestCheckpointRevert(t *testing.T) {
	st, _ := newTestState(t)

	addr := cstake.BytesToAddress([]byte("a1"))
	key := cstake.BytesToBytes32([]byte("k1"))

	require.NoError(t, st.SetUint64(addr, key, 1))

	cp := st.NewCheckpoint()
	require.NoError(t, st.SetUint64(addr, key, 2))

	v, _ := st.GetUint64(addr, key)
	assert.Equal(t, uint64(2), v)

	st.RevertTo(cp)
	v, _ = st.GetUint64(addr, key)
	assert.Equal(t, uint64(1), v)
}

func TestCommit(t *testing.T) {
	store, err := kv.NewMem()
	require.NoError(t, err)
	defer store.Close()

	addr := cstake.BytesToAddress([]byte("a1"))
	key := cstake.BytesToBytes32([]byte("k1"))

	st := state.New(store)
	require.NoError(t, st.SetUint64(addr, key, 7))

	// reverted checkpoint writes never reach the store
	cp := st.NewCheckpoint()
	require.NoError(t, st.SetUint64(addr, key, 8))
	st.RevertTo(cp)

	require.NoError(t, st.Commit())

	// a fresh state over the same store sees the committed value
	st2 := state.New(store)
	v, err := st2.GetUint64(addr, key)
	assert.NoError(t, err)
	assert.Equal(t, uint64(7), v)
}
