// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fhe

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/cstake/cstake/cstake"
)

// input proofs are secp256k1 signatures over the ciphertext bound to the
// consuming contract, recovered to the submitting account

var inputDomain = []byte("cstake-input-v1")

func inputHash(ext ExternalCiphertext, scope cstake.Address) cstake.Bytes32 {
	return cstake.Keccak256(inputDomain, ext, scope.Bytes())
}

// SignInput produces the validity proof for an external ciphertext, binding
// it to the consuming contract identified by scope. The signer must be the
// account that will submit the ciphertext.
func SignInput(ext ExternalCiphertext, scope cstake.Address, key *ecdsa.PrivateKey) ([]byte, error) {
	hash := inputHash(ext, scope)
	return crypto.Sign(hash.Bytes(), key)
}

// AddressOfKey derives the account address of a secp256k1 key.
func AddressOfKey(key *ecdsa.PrivateKey) cstake.Address {
	return cstake.BytesToAddress(crypto.PubkeyToAddress(key.PublicKey).Bytes())
}

// Seal encrypts a plaintext value into an external ciphertext outside the
// runtime's handle space. It stands in for client-side encryption under the
// runtime's public key.
func (r *SoftRuntime) Seal(v uint64) (ExternalCiphertext, error) {
	blob, err := r.seal(v)
	if err != nil {
		return nil, err
	}
	return ExternalCiphertext(blob), nil
}

// Verify imports an external ciphertext. The proof must recover to the
// caller over the ciphertext and scope; a malformed ciphertext or a
// signature by anyone else fails with ErrInvalidProof.
func (r *SoftRuntime) Verify(ext ExternalCiphertext, proof []byte, caller, scope cstake.Address) (Handle, error) {
	if len(proof) != crypto.SignatureLength {
		return Handle{}, ErrInvalidProof
	}
	hash := inputHash(ext, scope)
	pub, err := crypto.SigToPub(hash.Bytes(), proof)
	if err != nil {
		return Handle{}, ErrInvalidProof
	}
	if cstake.BytesToAddress(crypto.PubkeyToAddress(*pub).Bytes()) != caller {
		return Handle{}, ErrInvalidProof
	}

	v, err := r.open(ext)
	if err != nil {
		return Handle{}, ErrInvalidProof
	}
	// re-encrypt into the internal handle space, never reuse the external blob
	return r.put(v)
}
