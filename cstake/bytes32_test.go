// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package cstake

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytes32(t *testing.T) {
	b32 := BytesToBytes32([]byte("cstake"))
	assert.False(t, b32.IsZero())
	assert.True(t, Bytes32{}.IsZero())

	parsed, err := ParseBytes32(b32.String())
	assert.NoError(t, err)
	assert.Equal(t, b32, parsed)

	_, err = ParseBytes32("0xzz")
	assert.Error(t, err)

	data, err := json.Marshal(&b32)
	assert.NoError(t, err)

	var unmarshaled Bytes32
	assert.NoError(t, json.Unmarshal(data, &unmarshaled))
	assert.Equal(t, b32, unmarshaled)
}

func TestAddress(t *testing.T) {
	addr := BytesToAddress([]byte("a1"))
	assert.False(t, addr.IsZero())
	assert.True(t, Address{}.IsZero())

	parsed, err := ParseAddress(addr.String())
	assert.NoError(t, err)
	assert.Equal(t, addr, parsed)

	_, err = ParseAddress("short")
	assert.Error(t, err)

	// cropped from the left when oversized
	long := append([]byte("prefix"), addr.Bytes()...)
	cropped := BytesToAddress(long)
	assert.Equal(t, addr[AddressLength-2:], cropped[AddressLength-2:])
}

func TestHash(t *testing.T) {
	assert.Equal(t, Blake2b([]byte("ab")), Blake2b([]byte("a"), []byte("b")))
	assert.NotEqual(t, Blake2b([]byte("a")), Keccak256([]byte("a")))
	assert.Equal(t, Keccak256([]byte("ab")), Keccak256([]byte("a"), []byte("b")))
}
