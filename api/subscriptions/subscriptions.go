// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package subscriptions streams live engine events over websocket.
package subscriptions

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/cstake/cstake/api/restutil"
	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/log"
	"github.com/cstake/cstake/node"
)

const (
	pingPeriod = 10 * time.Second
	writeWait  = 5 * time.Second
)

var logger = log.WithContext("pkg", "subscriptions")

type Subscriptions struct {
	node     *node.Node
	upgrader *websocket.Upgrader

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

func New(node *node.Node, allowedOrigins []string) *Subscriptions {
	return &Subscriptions{
		node: node,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(req *http.Request) bool {
				origin := req.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
		done: make(chan struct{}),
	}
}

// handleSubscribeEvents upgrades to websocket and pushes every engine event
// as a JSON message. An optional 'account' query parameter narrows the
// stream to one account.
func (s *Subscriptions) handleSubscribeEvents(w http.ResponseWriter, req *http.Request) error {
	var account *cstake.Address
	if q := req.URL.Query().Get("account"); q != "" {
		addr, err := cstake.ParseAddress(q)
		if err != nil {
			return restutil.BadRequest(err)
		}
		account = &addr
	}

	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrade library has already replied
		logger.Debug("upgrade failed", "err", err)
		return nil
	}

	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	events, unsubscribe := s.node.SubscribeEvents()
	defer unsubscribe()

	// drain the read side to detect client close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-s.done:
			return nil
		case <-closed:
			return nil
		case <-req.Context().Done():
			return nil
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case ev := <-events:
			if account != nil && ev.Account != *account {
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug("write to subscriber failed", "err", err)
				return nil
			}
		}
	}
}

// Close signals all hijacked websocket connections to terminate and waits
// for them.
func (s *Subscriptions) Close() {
	s.once.Do(func() { close(s.done) })
	s.wg.Wait()
}

func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/event").
		Methods(http.MethodGet).
		Name("GET /subscriptions/event").
		HandlerFunc(restutil.WrapHandlerFunc(s.handleSubscribeEvents))
}
