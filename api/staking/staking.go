// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package staking exposes the staking engine over REST.
package staking

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/cstake/cstake/api/restutil"
	restaking "github.com/cstake/cstake/builtin/staking"
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
	"github.com/cstake/cstake/node"
)

type Staking struct {
	node *node.Node
}

func New(node *node.Node) *Staking {
	return &Staking{node}
}

// OpRequest carries an externally encrypted amount with its input proof.
type OpRequest struct {
	Ciphertext hexutil.Bytes `json:"ciphertext"`
	Proof      hexutil.Bytes `json:"proof"`
}

func parseAddressParam(req *http.Request) (cstake.Address, error) {
	addr, err := cstake.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return cstake.Address{}, restutil.BadRequest(errors.WithMessage(err, "address"))
	}
	return addr, nil
}

func (s *Staking) handleGetStake(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddressParam(req)
	if err != nil {
		return err
	}
	pos, err := s.node.GetStake(addr)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, pos)
}

func (s *Staking) handlePendingRewards(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddressParam(req)
	if err != nil {
		return err
	}
	pending, err := s.node.PendingRewards(addr)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, restutil.M{"rewards": &pending})
}

func (s *Staking) handleBalance(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddressParam(req)
	if err != nil {
		return err
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		return err
	}
	return restutil.WriteJSON(w, restutil.M{"balance": &balance})
}

func (s *Staking) parseOpRequest(req *http.Request) (cstake.Address, fhe.ExternalCiphertext, []byte, error) {
	addr, err := parseAddressParam(req)
	if err != nil {
		return cstake.Address{}, nil, nil, err
	}
	var body OpRequest
	if err := restutil.ParseJSON(req.Body, &body); err != nil {
		return cstake.Address{}, nil, nil, restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if len(body.Ciphertext) == 0 {
		return cstake.Address{}, nil, nil, restutil.BadRequest(errors.New("ciphertext: empty"))
	}
	return addr, fhe.ExternalCiphertext(body.Ciphertext), body.Proof, nil
}

func opError(err error) error {
	switch {
	case errors.Is(err, fhe.ErrInvalidProof):
		return restutil.Forbidden(err)
	case errors.Is(err, restaking.ErrNoRewards):
		return restutil.BadRequest(err)
	default:
		return err
	}
}

func (s *Staking) handleStake(w http.ResponseWriter, req *http.Request) error {
	addr, ext, proof, err := s.parseOpRequest(req)
	if err != nil {
		return err
	}
	ev, err := s.node.Stake(addr, ext, proof)
	if err != nil {
		return opError(err)
	}
	return restutil.WriteJSON(w, ev)
}

func (s *Staking) handleUnstake(w http.ResponseWriter, req *http.Request) error {
	addr, ext, proof, err := s.parseOpRequest(req)
	if err != nil {
		return err
	}
	ev, err := s.node.Unstake(addr, ext, proof)
	if err != nil {
		return opError(err)
	}
	return restutil.WriteJSON(w, ev)
}

func (s *Staking) handleClaim(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddressParam(req)
	if err != nil {
		return err
	}
	ev, err := s.node.Claim(addr)
	if err != nil {
		return opError(err)
	}
	return restutil.WriteJSON(w, ev)
}

// handleReveal decrypts a handle for a declared identity. The runtime still
// enforces the per-handle grant, so a foreign identity gets 403.
func (s *Staking) handleReveal(w http.ResponseWriter, req *http.Request) error {
	raw, err := cstake.ParseBytes32(mux.Vars(req)["handle"])
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "handle"))
	}
	h := fhe.Handle(raw)
	as, err := cstake.ParseAddress(req.URL.Query().Get("as"))
	if err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "as"))
	}
	v, err := s.node.Reveal(h, as)
	if err != nil {
		if errors.Is(err, fhe.ErrNotAllowed) {
			return restutil.Forbidden(err)
		}
		if errors.Is(err, fhe.ErrUnknownHandle) || errors.Is(err, fhe.ErrUninitialized) {
			return restutil.NotFound(err)
		}
		return err
	}
	return restutil.WriteJSON(w, restutil.M{"value": v})
}

func (s *Staking) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("GET /staking/{address}").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleGetStake))
	sub.Path("/{address}/rewards").
		Methods(http.MethodGet).
		Name("GET /staking/{address}/rewards").
		HandlerFunc(restutil.WrapHandlerFunc(s.handlePendingRewards))
	sub.Path("/{address}/balance").
		Methods(http.MethodGet).
		Name("GET /staking/{address}/balance").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleBalance))
	sub.Path("/{address}/stake").
		Methods(http.MethodPost).
		Name("POST /staking/{address}/stake").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleStake))
	sub.Path("/{address}/unstake").
		Methods(http.MethodPost).
		Name("POST /staking/{address}/unstake").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleUnstake))
	sub.Path("/{address}/claim").
		Methods(http.MethodPost).
		Name("POST /staking/{address}/claim").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleClaim))
	sub.Path("/handles/{handle}/value").
		Methods(http.MethodGet).
		Name("GET /staking/handles/{handle}/value").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleReveal))
}
