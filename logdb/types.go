// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package logdb

import (
	"github.com/cstake/cstake/builtin/staking"
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/fhe"
)

// Event represents an engine event that can be stored in db.
//
// Amount handles are recorded verbatim. The log therefore reveals who acted
// and when, but never how much.
type Event struct {
	Seq       uint64         `json:"seq"`
	Time      uint64         `json:"time"`
	Name      string         `json:"name"`
	Account   cstake.Address `json:"account"`
	Amount    fhe.Handle     `json:"amount"`
	Requested fhe.Handle     `json:"requested"`
}

// NewEvent converts an engine event for storage.
func NewEvent(ev *staking.Event, ts uint64) *Event {
	return &Event{
		Time:      ts,
		Name:      ev.Name,
		Account:   ev.Account,
		Amount:    ev.Amount,
		Requested: ev.Requested,
	}
}

type Order string

const (
	ASC  Order = "asc"
	DESC Order = "desc"
)

// Range is a closed time range in unix seconds.
type Range struct {
	From uint64 `json:"from"`
	To   uint64 `json:"to"`
}

// Options limits the result set.
type Options struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

// Criteria matches events by account and/or name.
type Criteria struct {
	Account *cstake.Address `json:"account"`
	Name    *string         `json:"name"`
}

// Filter describes an event query.
type Filter struct {
	CriteriaSet []*Criteria `json:"criteriaSet"`
	Range       *Range      `json:"range"`
	Options     *Options    `json:"options"`
	Order       Order       `json:"order"`
}
