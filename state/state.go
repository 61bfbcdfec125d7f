// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package state provides contract storage with checkpoint-revert manner.
package state

import (
	"fmt"

	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/kv"
	"github.com/cstake/cstake/stackedmap"
)

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

// storageKey locates one storage slot.
type storageKey struct {
	addr cstake.Address
	key  cstake.Bytes32
}

// State manages contract storage.
// Writes are journaled and become persistent only on Commit; RevertTo drops
// everything written after the matching NewCheckpoint.
type State struct {
	store kv.GetPutter
	sm    *stackedmap.StackedMap[storageKey, []byte]
}

// New create state object with the given backing store.
func New(store kv.GetPutter) *State {
	sm := stackedmap.New(func(k storageKey) ([]byte, bool, error) {
		raw, err := store.Get(append(k.addr.Bytes(), k.key.Bytes()...))
		if err != nil {
			if store.IsNotFound(err) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return raw, true, nil
	})
	// the base level holds committed-but-unflushed writes
	sm.Push()
	return &State{store, sm}
}

// GetRawStorage returns storage value in rlp raw for given address and key.
func (s *State) GetRawStorage(addr cstake.Address, key cstake.Bytes32) ([]byte, error) {
	raw, _, err := s.sm.Get(storageKey{addr, key})
	if err != nil {
		return nil, &Error{err}
	}
	return raw, nil
}

// SetRawStorage set storage value in rlp raw.
func (s *State) SetRawStorage(addr cstake.Address, key cstake.Bytes32, raw []byte) {
	s.sm.Put(storageKey{addr, key}, raw)
}

// EncodeStorage set storage value encoded by given enc method.
// An empty encoded value deletes the storage slot.
func (s *State) EncodeStorage(addr cstake.Address, key cstake.Bytes32, enc func() ([]byte, error)) error {
	raw, err := enc()
	if err != nil {
		return &Error{err}
	}
	s.SetRawStorage(addr, key, raw)
	return nil
}

// DecodeStorage get and decode storage value.
func (s *State) DecodeStorage(addr cstake.Address, key cstake.Bytes32, dec func([]byte) error) error {
	raw, err := s.GetRawStorage(addr, key)
	if err != nil {
		return err
	}
	if err := dec(raw); err != nil {
		return &Error{err}
	}
	return nil
}

// GetStructedStorage get and decode structed storage value.
func (s *State) GetStructedStorage(addr cstake.Address, key cstake.Bytes32, val StorageDecoder) error {
	return s.DecodeStorage(addr, key, val.Decode)
}

// SetStructedStorage encode and set structed storage value.
func (s *State) SetStructedStorage(addr cstake.Address, key cstake.Bytes32, val StorageEncoder) error {
	return s.EncodeStorage(addr, key, val.Encode)
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo reverts state to the given revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Commit flushes journaled writes into the backing store and resets the
// journal. Uncheckpointed reverted writes never reach the store.
func (s *State) Commit() error {
	batch := s.store.NewBatch()
	var jerr error
	s.sm.Journal(func(k storageKey, raw []byte) bool {
		full := append(k.addr.Bytes(), k.key.Bytes()...)
		if len(raw) == 0 {
			jerr = batch.Delete(full)
		} else {
			jerr = batch.Put(full, raw)
		}
		return jerr == nil
	})
	if jerr != nil {
		return &Error{jerr}
	}
	if err := batch.Write(); err != nil {
		return &Error{err}
	}
	s.sm.PopTo(0)
	s.sm.Push()
	return nil
}
