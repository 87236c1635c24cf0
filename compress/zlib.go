// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package compress

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// zlibLevel clamps level into the range accepted by the zlib writer.
func zlibLevel(level int) int {
	switch {
	case level <= 0:
		return zlib.DefaultCompression
	case level > zlib.BestCompression:
		return zlib.BestCompression
	default:
		return level
	}
}

// zlibCodec handles the official deflate method.
type zlibCodec struct{}

func (zlibCodec) Method() Method { return Zlib }

func (zlibCodec) Encode(src []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(src)/2 + 64)

	zw, err := zlib.NewWriterLevel(&buf, zlibLevel(level))
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("zlib write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib close: %w", err)
	}

	return buf.Bytes(), nil
}

func (zlibCodec) Decode(dst io.Writer, src io.Reader) (int64, error) {
	zr, err := zlib.NewReader(src)
	if err != nil {
		return 0, corruptf("zlib", err)
	}
	defer func() { _ = zr.Close() }()

	n, err := io.Copy(dst, zr)
	if err != nil {
		return n, corruptf("zlib", err)
	}

	return n, nil
}
