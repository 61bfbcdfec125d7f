// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fhe models the confidential arithmetic capability the staking
// engine computes on.
//
// Values are referenced by opaque handles. The runtime can add two encrypted
// values, scale or divide one by a plaintext constant, subtract with an
// encrypted success flag, and select between two values by an encrypted
// condition, all without revealing the operands. Decryption is gated by a
// per-handle access control list.
//
// The shipped runtime is a software one: values are sealed with
// XChaCha20-Poly1305 and live in a kv store. A production deployment would
// back the same interface with a confidential-compute runtime instead.
package fhe

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/cstake/cstake/cstake"
)

var (
	// ErrUninitialized is returned when an operation reads an uninitialized handle.
	ErrUninitialized = errors.New("fhe: uninitialized handle")

	// ErrUnknownHandle is returned when a handle does not resolve to a ciphertext.
	ErrUnknownHandle = errors.New("fhe: unknown handle")

	// ErrInvalidProof is returned when an external ciphertext import proof fails
	// to verify.
	ErrInvalidProof = errors.New("fhe: invalid input proof")

	// ErrNotAllowed is returned when the identity is not authorized to decrypt
	// the handle.
	ErrNotAllowed = errors.New("fhe: decrypt not allowed")

	// ErrDivisionByZero is returned on division by plaintext zero.
	ErrDivisionByZero = errors.New("fhe: division by zero")
)

// Handle is an opaque reference to an encrypted uint64.
// The zero handle is the uninitialized state, distinct from an encryption of
// zero.
type Handle cstake.Bytes32

var (
	_ json.Marshaler   = (*Handle)(nil)
	_ json.Unmarshaler = (*Handle)(nil)
)

// Initialized returns whether the handle refers to a ciphertext.
func (h Handle) Initialized() bool {
	return h != Handle{}
}

// Bytes returns byte slice form of the handle.
func (h Handle) Bytes() []byte {
	return h[:]
}

// String implements stringer.
func (h Handle) String() string {
	return cstake.Bytes32(h).String()
}

// MarshalJSON implements json.Marshaler.
func (h *Handle) MarshalJSON() ([]byte, error) {
	return (*cstake.Bytes32)(h).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (h *Handle) UnmarshalJSON(data []byte) error {
	return (*cstake.Bytes32)(h).UnmarshalJSON(data)
}

// ExternalCiphertext is a ciphertext produced outside the runtime, to be
// imported via Runtime.Verify together with a proof binding it to the
// submitting account and the consuming contract.
type ExternalCiphertext []byte

// Runtime is the confidential arithmetic capability.
//
// All arithmetic is over encrypted uint64 with wrap-around semantics;
// divisions truncate toward zero like their plaintext counterparts.
type Runtime interface {
	// Encrypt trivially encrypts a plaintext value into a fresh handle.
	Encrypt(v uint64) (Handle, error)

	// Add returns a handle encrypting a+b.
	Add(a, b Handle) (Handle, error)

	// MulConst returns a handle encrypting a*k.
	MulConst(a Handle, k uint64) (Handle, error)

	// DivConst returns a handle encrypting a/k, truncated toward zero.
	DivConst(a Handle, k uint64) (Handle, error)

	// TrySub is the failable subtraction. If b <= a, diff encrypts a-b and ok
	// encrypts 1; otherwise diff re-encrypts a and ok encrypts 0. Both paths
	// produce fresh handles, so the outcome is not observable from outside.
	TrySub(a, b Handle) (ok Handle, diff Handle, err error)

	// Select returns a handle encrypting then's value if cond encrypts a
	// nonzero value, otherwise els's value. The result is a fresh handle
	// either way.
	Select(cond, then, els Handle) (Handle, error)

	// Verify imports an externally encrypted value. The proof must bind the
	// ciphertext to the caller and the consuming contract; ErrInvalidProof
	// otherwise.
	Verify(ext ExternalCiphertext, proof []byte, caller, scope cstake.Address) (Handle, error)

	// Allow grants who permission to decrypt h.
	Allow(h Handle, who cstake.Address) error

	// IsAllowed reports whether who may decrypt h.
	IsAllowed(h Handle, who cstake.Address) (bool, error)

	// Decrypt reveals the value behind h to an allowed identity.
	Decrypt(h Handle, who cstake.Address) (uint64, error)
}
