// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cstake/cstake/builtin/staking"
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/logdb"
)

func newTestDB(t *testing.T) *logdb.LogDB {
	db, err := logdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func handleOf(b byte) fhe.Handle {
	var h fhe.Handle
	h[0] = b
	return h
}

func TestInsertAndFilter(t *testing.T) {
	db := newTestDB(t)

	alice := cstake.BytesToAddress([]byte("alice"))
	bob := cstake.BytesToAddress([]byte("bob"))

	events := []*logdb.Event{
		{Time: 100, Name: staking.EvStaked, Account: alice, Amount: handleOf(1)},
		{Time: 200, Name: staking.EvStaked, Account: bob, Amount: handleOf(2)},
		{Time: 300, Name: staking.EvUnstaked, Account: alice, Amount: handleOf(3), Requested: handleOf(4)},
		{Time: 400, Name: staking.EvRewardsClaimed, Account: alice, Amount: handleOf(5)},
	}
	for i, ev := range events {
		seq, err := db.Insert(ev)
		require.NoError(t, err)
		assert.Equal(t, uint64(i+1), seq)
	}

	// nil filter returns everything in insertion order
	got, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, events, got)

	// by account
	got, err = db.Filter(context.Background(), &logdb.Filter{
		CriteriaSet: []*logdb.Criteria{{Account: &alice}},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	for _, ev := range got {
		assert.Equal(t, alice, ev.Account)
	}

	// by account and name
	name := staking.EvUnstaked
	got, err = db.Filter(context.Background(), &logdb.Filter{
		CriteriaSet: []*logdb.Criteria{{Account: &alice, Name: &name}},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, handleOf(4), got[0].Requested)

	// criteria union
	staked := staking.EvStaked
	got, err = db.Filter(context.Background(), &logdb.Filter{
		CriteriaSet: []*logdb.Criteria{
			{Account: &bob},
			{Name: &staked},
		},
	})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFilterRangeOrderLimit(t *testing.T) {
	db := newTestDB(t)
	alice := cstake.BytesToAddress([]byte("alice"))

	for i := uint64(1); i <= 10; i++ {
		_, err := db.Insert(&logdb.Event{Time: i * 100, Name: staking.EvStaked, Account: alice, Amount: handleOf(byte(i))})
		require.NoError(t, err)
	}

	got, err := db.Filter(context.Background(), &logdb.Filter{
		Range: &logdb.Range{From: 300, To: 700},
	})
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, uint64(300), got[0].Time)
	assert.Equal(t, uint64(700), got[4].Time)

	got, err = db.Filter(context.Background(), &logdb.Filter{
		Order:   logdb.DESC,
		Options: &logdb.Options{Offset: 1, Limit: 3},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, uint64(900), got[0].Time)
	assert.Equal(t, uint64(700), got[2].Time)
}

func TestUninitializedHandlesRoundTrip(t *testing.T) {
	db := newTestDB(t)
	alice := cstake.BytesToAddress([]byte("alice"))

	ev := logdb.NewEvent(&staking.Event{
		Name:    staking.EvUnstaked,
		Account: alice,
		Amount:  fhe.Handle{},
	}, 100)
	_, err := db.Insert(ev)
	require.NoError(t, err)

	got, err := db.Filter(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].Amount.Initialized())
	assert.False(t, got[0].Requested.Initialized())
}

func TestFilterCancel(t *testing.T) {
	db := newTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Filter(ctx, nil)
	assert.Error(t, err)
}
