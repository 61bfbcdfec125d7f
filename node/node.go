// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package node wires storage, the confidential runtime, the token and the
// staking engine into one local service and serializes access to them.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/cstake/cstake/builtin/staking"
	"github.com/cstake/cstake/builtin/token"
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/kv"
	"github.com/cstake/cstake/log"
	"github.com/cstake/cstake/logdb"
	"github.com/cstake/cstake/metrics"
	"github.com/cstake/cstake/state"
)

var (
	logger = log.WithContext("pkg", "node")

	metricOpCount    = metrics.LazyLoadCounterVec("node_op_count", []string{"op", "status"})
	metricOpDuration = metrics.LazyLoadHistogramVec("node_op_duration_ms", []string{"op"}, metrics.BucketHTTPReqs)
)

// Options configure a Node.
type Options struct {
	// MasterKey seals all ciphertexts. Losing it loses every balance.
	MasterKey [32]byte

	// Genesis optionally seeds token balances on first start.
	Genesis *Genesis

	// Now overrides the clock, for tests and solo mode.
	Now func() uint64
}

// Node is the local staking service.
type Node struct {
	store   kv.GetPutter
	state   *state.State
	rt      *fhe.SoftRuntime
	token   *token.Token
	staking *staking.Staking
	logDB   *logdb.LogDB
	now     func() uint64

	// one writer at a time; the state journal is not safe for concurrent
	// mutation
	mu sync.Mutex

	subsMu sync.Mutex
	subs   map[chan *logdb.Event]struct{}
}

// New builds a node over the given stores and applies genesis if it has not
// been applied yet.
func New(store kv.GetPutter, logDB *logdb.LogDB, opts Options) (*Node, error) {
	rt, err := fhe.NewRuntime(store, opts.MasterKey)
	if err != nil {
		return nil, err
	}

	st := state.New(store)
	tok := token.New(cstake.TokenAddress, st, rt)
	gateway := token.NewGateway(tok, cstake.StakingAddress)

	now := opts.Now
	if now == nil {
		now = func() uint64 { return uint64(time.Now().Unix()) }
	}

	n := &Node{
		store:   store,
		state:   st,
		rt:      rt,
		token:   tok,
		staking: staking.New(cstake.StakingAddress, st, rt, gateway),
		logDB:   logDB,
		now:     now,
		subs:    make(map[chan *logdb.Event]struct{}),
	}

	if opts.Genesis != nil {
		if err := n.applyGenesis(opts.Genesis); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// mutate runs op against the state under the write lock, committing on
// success and rolling back on failure.
func (n *Node) mutate(name string, op func(now uint64) (*staking.Event, error)) (*logdb.Event, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	startTime := time.Now()
	now := n.now()
	checkpoint := n.state.NewCheckpoint()

	ev, err := op(now)
	if err != nil {
		n.state.RevertTo(checkpoint)
		metricOpCount().AddWithLabel(1, map[string]string{"op": name, "status": "reverted"})
		return nil, err
	}
	if err := n.state.Commit(); err != nil {
		// drop the journaled writes, otherwise the next operation would
		// silently retry them
		n.state.RevertTo(checkpoint)
		logger.Error("state commit failed", "op", name, "err", err)
		metricOpCount().AddWithLabel(1, map[string]string{"op": name, "status": "reverted"})
		return nil, err
	}

	metricOpCount().AddWithLabel(1, map[string]string{"op": name, "status": "committed"})
	metricOpDuration().ObserveWithLabels(time.Since(startTime).Milliseconds(), map[string]string{"op": name})

	logged := logdb.NewEvent(ev, now)
	if _, err := n.logDB.Insert(logged); err != nil {
		logger.Warn("failed to persist event", "name", ev.Name, "err", err)
	}
	n.publish(logged)
	return logged, nil
}

// Stake deposits an externally encrypted amount into the caller's position.
func (n *Node) Stake(caller cstake.Address, ext fhe.ExternalCiphertext, proof []byte) (*logdb.Event, error) {
	return n.mutate("stake", func(now uint64) (*staking.Event, error) {
		return n.staking.Stake(caller, ext, proof, now)
	})
}

// Unstake withdraws an externally encrypted requested amount.
func (n *Node) Unstake(caller cstake.Address, ext fhe.ExternalCiphertext, proof []byte) (*logdb.Event, error) {
	return n.mutate("unstake", func(now uint64) (*staking.Event, error) {
		return n.staking.Unstake(caller, ext, proof, now)
	})
}

// Claim pays out all accrued rewards.
func (n *Node) Claim(caller cstake.Address) (*logdb.Event, error) {
	return n.mutate("claim", func(now uint64) (*staking.Event, error) {
		return n.staking.Claim(caller, now)
	})
}

// StakePosition is the stored position of an account.
type StakePosition struct {
	Principal   fhe.Handle `json:"principal"`
	Rewards     fhe.Handle `json:"rewards"`
	LastAccrued uint64     `json:"lastAccrued"`
}

// GetStake returns the stored position of an account.
func (n *Node) GetStake(addr cstake.Address) (*StakePosition, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	principal, rewards, lastAccrued, err := n.staking.GetStake(addr)
	if err != nil {
		return nil, err
	}
	return &StakePosition{principal, rewards, lastAccrued}, nil
}

// PendingRewards previews rewards as of now without changing state.
func (n *Node) PendingRewards(addr cstake.Address) (fhe.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.staking.PendingRewards(addr, n.now())
}

// BalanceOf returns the encrypted token balance handle of an account.
func (n *Node) BalanceOf(addr cstake.Address) (fhe.Handle, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.token.BalanceOf(addr)
}

// Reveal decrypts a handle on behalf of an identity. It fails unless the
// identity holds a decrypt grant on the handle.
func (n *Node) Reveal(h fhe.Handle, as cstake.Address) (uint64, error) {
	return n.rt.Decrypt(h, as)
}

// Seal locally encrypts a plaintext into an external ciphertext. Solo-mode
// convenience; real clients seal on their own side.
func (n *Node) Seal(v uint64) (fhe.ExternalCiphertext, error) {
	return n.rt.Seal(v)
}

// FilterEvents queries the persisted event log.
func (n *Node) FilterEvents(ctx context.Context, filter *logdb.Filter) ([]*logdb.Event, error) {
	return n.logDB.Filter(ctx, filter)
}

// SubscribeEvents registers a live event channel. Slow consumers drop
// events rather than stall the writer.
func (n *Node) SubscribeEvents() (<-chan *logdb.Event, func()) {
	ch := make(chan *logdb.Event, 64)

	n.subsMu.Lock()
	n.subs[ch] = struct{}{}
	n.subsMu.Unlock()

	return ch, func() {
		n.subsMu.Lock()
		delete(n.subs, ch)
		n.subsMu.Unlock()
	}
}

func (n *Node) publish(ev *logdb.Event) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()

	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
			logger.Debug("dropping event for slow subscriber", "name", ev.Name)
		}
	}
}
