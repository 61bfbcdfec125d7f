// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fhe

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cstake/cstake/cstake"
	"github.com/cstake/cstake/kv"
)

const plainCacheSize = 65536

var (
	ctBucket  = kv.Bucket("fhe-ct-")
	aclBucket = kv.Bucket("fhe-acl-")
)

// SoftRuntime is the software implementation of Runtime.
// Ciphertexts are sealed with XChaCha20-Poly1305 under a runtime master key
// and persisted in a kv store; a small plaintext cache keeps hot operands out
// of the AEAD path.
type SoftRuntime struct {
	aead  cipher.AEAD
	cts   kv.GetPutter
	acl   kv.GetPutter
	cache *lru.Cache
}

var _ Runtime = (*SoftRuntime)(nil)

// NewRuntime creates a software runtime over the given store.
// masterKey seals every ciphertext; losing it loses all values.
func NewRuntime(store kv.GetPutter, masterKey [32]byte) (*SoftRuntime, error) {
	aead, err := chacha20poly1305.NewX(masterKey[:])
	if err != nil {
		return nil, errors.Wrap(err, "init aead")
	}
	cache, err := lru.New(plainCacheSize)
	if err != nil {
		return nil, err
	}
	return &SoftRuntime{
		aead:  aead,
		cts:   ctBucket.NewStore(store),
		acl:   aclBucket.NewStore(store),
		cache: cache,
	}, nil
}

// seal encrypts v into a blob of nonce||ciphertext.
func (r *SoftRuntime) seal(v uint64) ([]byte, error) {
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "nonce")
	}
	var plain [8]byte
	binary.BigEndian.PutUint64(plain[:], v)
	return r.aead.Seal(nonce, nonce, plain[:], nil), nil
}

// open decrypts a blob produced by seal.
func (r *SoftRuntime) open(blob []byte) (uint64, error) {
	if len(blob) < chacha20poly1305.NonceSizeX {
		return 0, ErrUnknownHandle
	}
	nonce, ct := blob[:chacha20poly1305.NonceSizeX], blob[chacha20poly1305.NonceSizeX:]
	plain, err := r.aead.Open(nil, nonce, ct, nil)
	if err != nil || len(plain) != 8 {
		return 0, ErrUnknownHandle
	}
	return binary.BigEndian.Uint64(plain), nil
}

// put stores a sealed value and returns its handle.
func (r *SoftRuntime) put(v uint64) (Handle, error) {
	blob, err := r.seal(v)
	if err != nil {
		return Handle{}, err
	}
	h := Handle(cstake.Blake2b(blob))
	if err := r.cts.Put(h.Bytes(), blob); err != nil {
		return Handle{}, err
	}
	r.cache.Add(h, v)
	return h, nil
}

// value resolves a handle to its plaintext for runtime-internal arithmetic.
func (r *SoftRuntime) value(h Handle) (uint64, error) {
	if !h.Initialized() {
		return 0, ErrUninitialized
	}
	if v, ok := r.cache.Get(h); ok {
		return v.(uint64), nil
	}
	blob, err := r.cts.Get(h.Bytes())
	if err != nil {
		if r.cts.IsNotFound(err) {
			return 0, ErrUnknownHandle
		}
		return 0, err
	}
	v, err := r.open(blob)
	if err != nil {
		return 0, err
	}
	r.cache.Add(h, v)
	return v, nil
}

func (r *SoftRuntime) Encrypt(v uint64) (Handle, error) {
	return r.put(v)
}

func (r *SoftRuntime) Add(a, b Handle) (Handle, error) {
	av, err := r.value(a)
	if err != nil {
		return Handle{}, err
	}
	bv, err := r.value(b)
	if err != nil {
		return Handle{}, err
	}
	return r.put(av + bv)
}

func (r *SoftRuntime) MulConst(a Handle, k uint64) (Handle, error) {
	av, err := r.value(a)
	if err != nil {
		return Handle{}, err
	}
	return r.put(av * k)
}

func (r *SoftRuntime) DivConst(a Handle, k uint64) (Handle, error) {
	if k == 0 {
		return Handle{}, ErrDivisionByZero
	}
	av, err := r.value(a)
	if err != nil {
		return Handle{}, err
	}
	return r.put(av / k)
}

func (r *SoftRuntime) TrySub(a, b Handle) (Handle, Handle, error) {
	av, err := r.value(a)
	if err != nil {
		return Handle{}, Handle{}, err
	}
	bv, err := r.value(b)
	if err != nil {
		return Handle{}, Handle{}, err
	}

	// both branches produce fresh handles so the flag is the only place the
	// outcome lives, and it is encrypted
	var okv, diffv uint64
	if bv <= av {
		okv, diffv = 1, av-bv
	} else {
		okv, diffv = 0, av
	}
	ok, err := r.put(okv)
	if err != nil {
		return Handle{}, Handle{}, err
	}
	diff, err := r.put(diffv)
	if err != nil {
		return Handle{}, Handle{}, err
	}
	return ok, diff, nil
}

func (r *SoftRuntime) Select(cond, then, els Handle) (Handle, error) {
	cv, err := r.value(cond)
	if err != nil {
		return Handle{}, err
	}
	tv, err := r.value(then)
	if err != nil {
		return Handle{}, err
	}
	ev, err := r.value(els)
	if err != nil {
		return Handle{}, err
	}
	if cv != 0 {
		return r.put(tv)
	}
	return r.put(ev)
}

func aclKey(h Handle, who cstake.Address) []byte {
	return append(h.Bytes(), who.Bytes()...)
}

func (r *SoftRuntime) Allow(h Handle, who cstake.Address) error {
	if !h.Initialized() {
		return ErrUninitialized
	}
	if who.IsZero() {
		return nil
	}
	return r.acl.Put(aclKey(h, who), []byte{1})
}

func (r *SoftRuntime) IsAllowed(h Handle, who cstake.Address) (bool, error) {
	if !h.Initialized() || who.IsZero() {
		return false, nil
	}
	return r.acl.Has(aclKey(h, who))
}

func (r *SoftRuntime) Decrypt(h Handle, who cstake.Address) (uint64, error) {
	allowed, err := r.IsAllowed(h, who)
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, ErrNotAllowed
	}
	return r.value(h)
}
