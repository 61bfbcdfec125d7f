// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package kv

import "sync"

type buf struct {
	k []byte
}

var bufPool = sync.Pool{
	New: func() any {
		return &buf{}
	},
}

// Bucket provides logical bucket for kv store.
type Bucket string

// NewGetter creates a bucket getter from the source getter.
func (b Bucket) NewGetter(src Getter) Getter {
	return &struct {
		GetFunc
		HasFunc
		IsNotFoundFunc
	}{
		func(key []byte) ([]byte, error) {
			buf := bufPool.Get().(*buf)
			defer bufPool.Put(buf)
			buf.k = append(append(buf.k[:0], b...), key...)

			return src.Get(buf.k)
		},
		func(key []byte) (bool, error) {
			buf := bufPool.Get().(*buf)
			defer bufPool.Put(buf)
			buf.k = append(append(buf.k[:0], b...), key...)

			return src.Has(buf.k)
		},
		src.IsNotFound,
	}
}

// NewPutter creates a bucket putter from the source putter.
func (b Bucket) NewPutter(src Putter) Putter {
	return &struct {
		PutFunc
		DeleteFunc
	}{
		func(key, val []byte) error {
			buf := bufPool.Get().(*buf)
			defer bufPool.Put(buf)
			buf.k = append(append(buf.k[:0], b...), key...)

			return src.Put(buf.k, val)
		},
		func(key []byte) error {
			buf := bufPool.Get().(*buf)
			defer bufPool.Put(buf)
			buf.k = append(append(buf.k[:0], b...), key...)

			return src.Delete(buf.k)
		},
	}
}

type bucketStore struct {
	Getter
	Putter
	src GetPutter
	b   Bucket
}

func (s *bucketStore) NewBatch() Batch {
	return &bucketBatch{s.src.NewBatch(), s.b}
}

type bucketBatch struct {
	src Batch
	b   Bucket
}

func (bb *bucketBatch) Put(key, val []byte) error {
	return bb.src.Put(append(append([]byte(nil), bb.b...), key...), val)
}

func (bb *bucketBatch) Delete(key []byte) error {
	return bb.src.Delete(append(append([]byte(nil), bb.b...), key...))
}

func (bb *bucketBatch) Len() int { return bb.src.Len() }

func (bb *bucketBatch) Write() error { return bb.src.Write() }

// NewStore creates a bucket store from the source store.
func (b Bucket) NewStore(src GetPutter) GetPutter {
	return &bucketStore{
		b.NewGetter(src),
		b.NewPutter(src),
		src,
		b,
	}
}
