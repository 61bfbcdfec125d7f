// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package events exposes the persisted event log over REST.
package events

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/cstake/cstake/api/restutil"
	"github.com/cstake/cstake/logdb"
	"github.com/cstake/cstake/node"
)

type Events struct {
	node  *node.Node
	limit uint64
}

func New(node *node.Node, logsLimit uint64) *Events {
	return &Events{
		node,
		logsLimit,
	}
}

func (e *Events) handleFilter(w http.ResponseWriter, req *http.Request) error {
	var filter logdb.Filter
	if err := restutil.ParseJSON(req.Body, &filter); err != nil {
		return restutil.BadRequest(errors.WithMessage(err, "body"))
	}
	if filter.Options != nil && filter.Options.Limit > e.limit {
		return restutil.Forbidden(fmt.Errorf("options.limit exceeds the maximum allowed value of %d", e.limit))
	}
	if filter.Options != nil && filter.Options.Offset > math.MaxInt64 {
		return restutil.BadRequest(fmt.Errorf("options.offset exceeds the maximum allowed value of %d", int64(math.MaxInt64)))
	}
	if filter.Range != nil && filter.Range.To != 0 && filter.Range.From > filter.Range.To {
		return restutil.BadRequest(errors.New("range.to must be greater than or equal to range.from"))
	}
	// reject null elements in CriteriaSet, {} is acceptable and matches all
	for i, criterion := range filter.CriteriaSet {
		if criterion == nil {
			return restutil.BadRequest(fmt.Errorf("criteriaSet[%d]: null not allowed", i))
		}
	}
	if filter.Options == nil {
		// cap the unpaginated result, +1 to detect truncation below
		filter.Options = &logdb.Options{
			Offset: 0,
			Limit:  e.limit + 1,
		}
	}

	events, err := e.node.FilterEvents(req.Context(), &filter)
	if err != nil {
		return err
	}
	if len(events) > int(e.limit) {
		return restutil.Forbidden(fmt.Errorf("the number of filtered events exceeds the maximum allowed value of %d, please use pagination", e.limit))
	}
	return restutil.WriteJSON(w, events)
}

func (e *Events) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodPost).
		Name("POST /events").
		HandlerFunc(restutil.WrapHandlerFunc(e.handleFilter))
}
