// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api_test

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cstake/cstake/api"
	apistaking "github.com/cstake/cstake/api/staking"
	"github.com/cstake/cstake/builtin/staking"
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/kv"
	"github.com/cstake/cstake/logdb"
	"github.com/cstake/cstake/node"
)

type testServer struct {
	url    string
	node   *node.Node
	clock  *uint64
	key    *ecdsa.PrivateKey
	caller cstake.Address
}

func newTestServer(t *testing.T) *testServer {
	store, err := kv.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logDB, err := logdb.NewMem()
	require.NoError(t, err)
	t.Cleanup(logDB.Close)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	caller := fhe.AddressOfKey(key)

	clock := uint64(1_700_000_000)
	n, err := node.New(store, logDB, node.Options{
		MasterKey: [32]byte{6},
		Genesis: &node.Genesis{
			Accounts: []node.GenesisAccount{{Address: caller.String(), Balance: 100 * cstake.TokenUnit}},
			Pool:     1000 * cstake.TokenUnit,
		},
		Now: func() uint64 { return clock },
	})
	require.NoError(t, err)

	handler, closer := api.New(n, api.Options{
		AllowedOrigins: "*",
		LogsLimit:      100,
	})
	t.Cleanup(closer)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{srv.URL, n, &clock, key, caller}
}

func (ts *testServer) get(t *testing.T, path string, status int) []byte {
	res, err := http.Get(ts.url + path)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, status, res.StatusCode, "GET %s: %s", path, body)
	return body
}

func (ts *testServer) post(t *testing.T, path string, payload interface{}, status int) []byte {
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	res, err := http.Post(ts.url+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Equal(t, status, res.StatusCode, "POST %s: %s", path, body)
	return body
}

func (ts *testServer) opRequest(t *testing.T, amount uint64) *apistaking.OpRequest {
	ext, err := ts.node.Seal(amount)
	require.NoError(t, err)
	proof, err := fhe.SignInput(ext, cstake.StakingAddress, ts.key)
	require.NoError(t, err)
	return &apistaking.OpRequest{Ciphertext: hexutil.Bytes(ext), Proof: proof}
}

func (ts *testServer) reveal(t *testing.T, h fhe.Handle) uint64 {
	body := ts.get(t, fmt.Sprintf("/staking/handles/%v/value?as=%v", h, ts.caller), http.StatusOK)
	var out struct {
		Value uint64 `json:"value"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Value
}

func TestStakingEndpoints(t *testing.T) {
	ts := newTestServer(t)

	// empty position
	body := ts.get(t, "/staking/"+ts.caller.String(), http.StatusOK)
	var pos node.StakePosition
	require.NoError(t, json.Unmarshal(body, &pos))
	assert.False(t, pos.Principal.Initialized())
	assert.Zero(t, pos.LastAccrued)

	// stake
	body = ts.post(t, "/staking/"+ts.caller.String()+"/stake", ts.opRequest(t, 50*cstake.TokenUnit), http.StatusOK)
	var ev logdb.Event
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, staking.EvStaked, ev.Name)
	assert.Equal(t, uint64(50*cstake.TokenUnit), ts.reveal(t, ev.Amount))

	// position reflects the deposit
	body = ts.get(t, "/staking/"+ts.caller.String(), http.StatusOK)
	require.NoError(t, json.Unmarshal(body, &pos))
	assert.Equal(t, uint64(50*cstake.TokenUnit), ts.reveal(t, pos.Principal))

	// a day later rewards are pending
	*ts.clock += cstake.DayLength
	body = ts.get(t, "/staking/"+ts.caller.String()+"/rewards", http.StatusOK)
	var rewards struct {
		Rewards fhe.Handle `json:"rewards"`
	}
	require.NoError(t, json.Unmarshal(body, &rewards))
	assert.Equal(t, uint64(50*cstake.TokenUnit/100), ts.reveal(t, rewards.Rewards))

	// claim them
	body = ts.post(t, "/staking/"+ts.caller.String()+"/claim", nil, http.StatusOK)
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, staking.EvRewardsClaimed, ev.Name)

	// unstake everything
	body = ts.post(t, "/staking/"+ts.caller.String()+"/unstake", ts.opRequest(t, 50*cstake.TokenUnit), http.StatusOK)
	require.NoError(t, json.Unmarshal(body, &ev))
	assert.Equal(t, staking.EvUnstaked, ev.Name)
	assert.Equal(t, uint64(50*cstake.TokenUnit), ts.reveal(t, ev.Amount))

	// balance is whole again plus the claimed reward
	body = ts.get(t, "/staking/"+ts.caller.String()+"/balance", http.StatusOK)
	var balance struct {
		Balance fhe.Handle `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(body, &balance))
	assert.Equal(t, uint64(100*cstake.TokenUnit+50*cstake.TokenUnit/100), ts.reveal(t, balance.Balance))
}

func TestStakingEndpointErrors(t *testing.T) {
	ts := newTestServer(t)

	// malformed address
	ts.get(t, "/staking/nonsense", http.StatusBadRequest)

	// claim without history
	ts.post(t, "/staking/"+ts.caller.String()+"/claim", nil, http.StatusBadRequest)

	// proof signed by somebody else
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	ext, err := ts.node.Seal(1000)
	require.NoError(t, err)
	proof, err := fhe.SignInput(ext, cstake.StakingAddress, otherKey)
	require.NoError(t, err)
	ts.post(t, "/staking/"+ts.caller.String()+"/stake",
		&apistaking.OpRequest{Ciphertext: hexutil.Bytes(ext), Proof: proof}, http.StatusForbidden)

	// missing ciphertext
	ts.post(t, "/staking/"+ts.caller.String()+"/stake", &apistaking.OpRequest{}, http.StatusBadRequest)
}

func TestRevealEndpoint(t *testing.T) {
	ts := newTestServer(t)

	body := ts.post(t, "/staking/"+ts.caller.String()+"/stake", ts.opRequest(t, 10*cstake.TokenUnit), http.StatusOK)
	var ev logdb.Event
	require.NoError(t, json.Unmarshal(body, &ev))

	// the staker can reveal
	assert.Equal(t, uint64(10*cstake.TokenUnit), ts.reveal(t, ev.Amount))

	// a stranger cannot
	stranger := cstake.BytesToAddress([]byte("stranger"))
	ts.get(t, fmt.Sprintf("/staking/handles/%v/value?as=%v", ev.Amount, stranger), http.StatusForbidden)

	// unknown handles look exactly like denied ones
	unknown := fhe.Handle(cstake.BytesToBytes32([]byte("unknown")))
	ts.get(t, fmt.Sprintf("/staking/handles/%v/value?as=%v", unknown, ts.caller), http.StatusForbidden)
}

func TestEventsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	for i := 0; i < 3; i++ {
		ts.post(t, "/staking/"+ts.caller.String()+"/stake", ts.opRequest(t, 1000), http.StatusOK)
	}

	body := ts.post(t, "/events", &logdb.Filter{
		CriteriaSet: []*logdb.Criteria{{Account: &ts.caller}},
	}, http.StatusOK)
	var events []*logdb.Event
	require.NoError(t, json.Unmarshal(body, &events))
	assert.Len(t, events, 3)

	// over-limit requests are refused
	ts.post(t, "/events", &logdb.Filter{
		Options: &logdb.Options{Limit: 10_000},
	}, http.StatusForbidden)

	// null criteria are rejected
	ts.post(t, "/events", map[string]interface{}{
		"criteriaSet": []interface{}{nil},
	}, http.StatusBadRequest)
}

func TestSubscriptionsEndpoint(t *testing.T) {
	ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.url, "http") + "/subscriptions/event?account=" + ts.caller.String()
	conn, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	defer res.Body.Close()

	// the subscription registers asynchronously with the upgrade
	time.Sleep(100 * time.Millisecond)

	ts.post(t, "/staking/"+ts.caller.String()+"/stake", ts.opRequest(t, 1000), http.StatusOK)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var ev logdb.Event
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, staking.EvStaked, ev.Name)
	assert.Equal(t, ts.caller, ev.Account)
}
