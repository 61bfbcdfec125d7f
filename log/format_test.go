// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

var sink []byte

func TestPrettyUint64(t *testing.T) {
	tests := []struct {
		n        uint64
		expected string
	}{
		{0, "0"},
		{99999, "99999"},
		{100000, "100,000"},
		{500000, "500,000"},
		{50000000, "50,000,000"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, string(appendUint64(nil, tt.n, false)))
	}
	assert.Equal(t, "-1,000,000", string(appendInt64(nil, -1000000)))
}

func TestEscapeMessage(t *testing.T) {
	assert.Equal(t, "plain", escapeMessage("plain"))
	assert.Equal(t, "multi\nline", escapeMessage("multi\nline"))
	assert.Equal(t, `"key=value"`, escapeMessage("key=value"))
}

func BenchmarkPrettyInt64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sink = appendInt64(buf, rand.Int63()) //#nosec G404
	}
}

func BenchmarkPrettyUint64Logfmt(b *testing.B) {
	buf := make([]byte, 100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		sink = appendUint64(buf, rand.Uint64(), false) //#nosec G404
	}
}
