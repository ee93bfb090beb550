package rpc

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeCompact(t *testing.T) {
	cases := []struct {
		name     string
		in       []byte
		value    uint64
		consumed int
	}{
		{"single byte zero", []byte{0x00}, 0, 1},
		{"single byte three", []byte{0x0c}, 3, 1},
		{"single byte max", []byte{0xfc}, 63, 1},
		{"two bytes", []byte{0x01, 0x01}, 64, 2},
		{"two bytes larger", []byte{0xfd, 0xff}, 16383, 2},
		{"four bytes", []byte{0x02, 0x00, 0x01, 0x00}, 16384, 4},
		{"big integer u64", append([]byte{0x13}, bytes.Repeat([]byte{0xff}, 8)...), ^uint64(0), 9},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, n, err := DecodeCompact(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.value, v)
			assert.Equal(t, tc.consumed, n)
		})
	}
}

func TestDecodeCompactErrors(t *testing.T) {
	_, _, err := DecodeCompact(nil)
	assert.Error(t, err)

	_, _, err = DecodeCompact([]byte{0x01}) // two-byte mode, one byte present
	assert.Error(t, err)

	_, _, err = DecodeCompact([]byte{0x37}) // big-integer mode wider than u64
	assert.Error(t, err)
}

func TestDecodeAuthorityList(t *testing.T) {
	keyA := bytes.Repeat([]byte{0xaa}, 32)
	keyB := bytes.Repeat([]byte{0xbb}, 32)
	encoded := append([]byte{0x08}, append(keyA, keyB...)...) // compact(2) + two keys

	keys, err := DecodeAuthorityList(encoded, 32)
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, "0x"+repeatHex("aa", 32), keys[0])
	assert.Equal(t, "0x"+repeatHex("bb", 32), keys[1])
}

func TestDecodeAuthorityListTruncated(t *testing.T) {
	encoded := append([]byte{0x08}, bytes.Repeat([]byte{0xaa}, 32)...) // claims 2, holds 1
	_, err := DecodeAuthorityList(encoded, 32)
	assert.Error(t, err)
}

// A byzantine node can claim an astronomical key count in a tiny payload; the
// decoder must reject it instead of allocating for it.
func TestDecodeAuthorityListHugeCount(t *testing.T) {
	// Big-integer compact encoding of 2^59 followed by no key bytes.
	encoded := append([]byte{0x13}, []byte{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x08}...)
	assert.NotPanics(t, func() {
		_, err := DecodeAuthorityList(encoded, 32)
		assert.Error(t, err)
	})
}

func TestParseHexUint(t *testing.T) {
	n, err := ParseHexUint("0x2a")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)

	_, err = ParseHexUint("0x")
	assert.Error(t, err)

	_, err = ParseHexUint("0xzz")
	assert.Error(t, err)
}

func repeatHex(b string, n int) string {
	out := ""
	for i := 0; i < n; i++ {
		out += b
	}
	return out
}
