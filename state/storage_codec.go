// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/cstake/cstake/cstake"
)

// StorageEncoder defines the interface of storage encoding.
type StorageEncoder interface {
	// Encode encodes the storage value.
	// An error returned if the value cannot be encoded.
	// The empty encoded value will be treated as storage deletion.
	Encode() ([]byte, error)
}

// StorageDecoder defines the interface of storage decoding.
type StorageDecoder interface {
	// Decode decodes the storage value.
	// The empty data means the storage slot was never written.
	Decode([]byte) error
}

type (
	uint64Storage uint64
	bytesStorage  []byte
)

var (
	_ StorageEncoder = (*uint64Storage)(nil)
	_ StorageDecoder = (*uint64Storage)(nil)
)

func (u *uint64Storage) Encode() ([]byte, error) {
	if *u == 0 {
		return nil, nil
	}
	return rlp.EncodeToBytes(uint64(*u))
}

func (u *uint64Storage) Decode(data []byte) error {
	if len(data) == 0 {
		*u = 0
		return nil
	}
	var v uint64
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return err
	}
	*u = uint64Storage(v)
	return nil
}

func (b *bytesStorage) Encode() ([]byte, error) {
	if len(*b) == 0 {
		return nil, nil
	}
	return rlp.EncodeToBytes([]byte(*b))
}

func (b *bytesStorage) Decode(data []byte) error {
	if len(data) == 0 {
		*b = nil
		return nil
	}
	var v []byte
	if err := rlp.DecodeBytes(data, &v); err != nil {
		return err
	}
	*b = v
	return nil
}

// GetUint64 get uint64 storage value for given address and key.
func (s *State) GetUint64(addr cstake.Address, key cstake.Bytes32) (uint64, error) {
	var v uint64Storage
	if err := s.GetStructedStorage(addr, key, &v); err != nil {
		return 0, err
	}
	return uint64(v), nil
}

// SetUint64 set uint64 storage value for given address and key.
func (s *State) SetUint64(addr cstake.Address, key cstake.Bytes32, v uint64) error {
	u := uint64Storage(v)
	return s.SetStructedStorage(addr, key, &u)
}

// GetBytes get bytes storage value for given address and key.
func (s *State) GetBytes(addr cstake.Address, key cstake.Bytes32) ([]byte, error) {
	var v bytesStorage
	if err := s.GetStructedStorage(addr, key, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// SetBytes set bytes storage value for given address and key.
func (s *State) SetBytes(addr cstake.Address, key cstake.Bytes32, v []byte) error {
	b := bytesStorage(v)
	return s.SetStructedStorage(addr, key, &b)
}
