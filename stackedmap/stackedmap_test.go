// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package stackedmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cstake/cstake/stackedmap"
)

func TestStackedMap(t *testing.T) {
	assert := assert.New(t)
	src := make(map[string]string)
	src["base"] = "from src"

	sm := stackedmap.New(func(key string) (string, bool, error) {
		v, r := src[key]
		return v, r, nil
	})

	tests := []struct {
		f         func()
		depth     int
		putKey    string
		putValue  string
		getKey    string
		getReturn []any
	}{
		{func() { sm.Push() }, 1, "a", "a0", "a", []any{"a0", true, nil}},
		{func() { sm.Push() }, 2, "a", "a1", "a", []any{"a1", true, nil}},
		{func() { sm.Push() }, 3, "a", "a2", "a", []any{"a2", true, nil}},
		{func() { sm.Pop() }, 2, "", "", "a", []any{"a1", true, nil}},
		{func() { sm.Pop() }, 1, "", "", "a", []any{"a0", true, nil}},

		{func() { sm.Push() }, 2, "b", "b1", "b", []any{"b1", true, nil}},
		{func() { sm.Push() }, 3, "b", "b2", "b", []any{"b2", true, nil}},
		{func() { sm.PopTo(1) }, 1, "", "", "b", []any{"", false, nil}},

		{func() {}, 1, "", "", "base", []any{"from src", true, nil}},
	}

	for _, test := range tests {
		test.f()
		assert.Equal(test.depth, sm.Depth())
		if test.putKey != "" {
			sm.Put(test.putKey, test.putValue)
		}
		if test.getKey != "" {
			v, ok, err := sm.Get(test.getKey)
			assert.Equal(test.getReturn, []any{v, ok, err})
		}
	}
}

func TestStackedMapRepeatedPut(t *testing.T) {
	sm := stackedmap.New(func(_ string) (string, bool, error) {
		return "", false, nil
	})

	sm.Push()
	sm.Put("a", "a0")
	sm.Push()
	// same key written twice at the same level
	sm.Put("a", "a1")
	sm.Put("a", "a2")
	sm.Pop()

	v, ok, err := sm.Get("a")
	assert.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a0", v)
}

func TestStackedMapJournal(t *testing.T) {
	sm := stackedmap.New(func(_ string) (string, bool, error) {
		return "", false, nil
	})

	sm.Push()
	sm.Put("a", "a0")
	sm.Push()
	sm.Put("a", "a1")
	sm.Put("b", "b1")
	sm.PopTo(1)
	sm.Put("c", "c0")

	var journal [][2]string
	sm.Journal(func(k, v string) bool {
		journal = append(journal, [2]string{k, v})
		return true
	})
	assert.Equal(t, [][2]string{{"a", "a0"}, {"c", "c0"}}, journal)
}
