// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() []byte {
	return bytes.Repeat([]byte("data/language/version.ini=1.0;"), 200)
}

func TestCodecRoundTrip(t *testing.T) {
	t.Parallel()

	src := sampleData()
	for _, method := range []Method{Store, Zlib, Zstd, LZ4} {
		t.Run(method.String(), func(t *testing.T) {
			t.Parallel()

			for _, level := range []int{0, 1, 9} {
				encoded, err := Encode(method, src, level)
				require.NoError(t, err)
				if method != Store {
					assert.Less(t, len(encoded), len(src), "level %d", level)
				}

				decoded, err := Decode(method, bytes.NewReader(encoded), int64(len(encoded)))
				require.NoError(t, err)
				assert.Equal(t, src, decoded, "level %d", level)
			}
		})
	}
}

func TestDecodeStopsAtCompressedLength(t *testing.T) {
	t.Parallel()

	payload := []byte("stored payload")
	stream := append(bytes.Clone(payload), []byte("trailing record")...)

	decoded, err := Decode(Store, bytes.NewReader(stream), int64(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, decoded)
}

func TestDecodeCorruptZlib(t *testing.T) {
	t.Parallel()

	garbage := []byte{0x00, 0x01, 0x02, 0x03, 0x04}
	_, err := Decode(Zlib, bytes.NewReader(garbage), int64(len(garbage)))
	require.ErrorIs(t, err, ErrCorrupt)
}

func TestDecodeToLimit(t *testing.T) {
	t.Parallel()

	src := sampleData()
	for _, method := range []Method{Store, Zlib, Zstd, LZ4} {
		t.Run(method.String(), func(t *testing.T) {
			t.Parallel()

			encoded, err := Encode(method, src, 9)
			require.NoError(t, err)

			var out bytes.Buffer
			n, err := DecodeToLimit(&out, method, bytes.NewReader(encoded), int64(len(encoded)), 100)
			require.ErrorIs(t, err, ErrDecodedTooLarge)
			assert.NotErrorIs(t, err, ErrCorrupt)
			assert.LessOrEqual(t, n, int64(100))
			assert.LessOrEqual(t, out.Len(), 100)

			out.Reset()
			n, err = DecodeToLimit(&out, method, bytes.NewReader(encoded), int64(len(encoded)), int64(len(src)))
			require.NoError(t, err)
			assert.Equal(t, int64(len(src)), n)
			assert.Equal(t, src, out.Bytes())
		})
	}
}

func TestGetUnknownMethod(t *testing.T) {
	t.Parallel()

	_, err := Get(Method(42))
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = Encode(Method(42), []byte("x"), 1)
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestParseMethod(t *testing.T) {
	t.Parallel()

	cases := map[string]Method{
		"store":   Store,
		"none":    Store,
		"ZLIB":    Zlib,
		"deflate": Zlib,
		"zstd":    Zstd,
		" lz4 ":   LZ4,
	}
	for name, want := range cases {
		got, err := ParseMethod(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseMethod("lzss")
	require.ErrorIs(t, err, ErrUnknownMethod)
}

func TestMethodText(t *testing.T) {
	t.Parallel()

	text, err := Zstd.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "zstd", string(text))

	var m Method
	require.NoError(t, m.UnmarshalText([]byte("lz4")))
	assert.Equal(t, LZ4, m)

	assert.Equal(t, "method(9)", Method(9).String())
}

func TestEncodeEmpty(t *testing.T) {
	t.Parallel()

	for _, method := range []Method{Zlib, Zstd, LZ4} {
		encoded, err := Encode(method, nil, 6)
		require.NoError(t, err, method.String())

		decoded, err := Decode(method, bytes.NewReader(encoded), int64(len(encoded)))
		require.NoError(t, err, method.String())
		assert.Empty(t, decoded, method.String())
	}
}
