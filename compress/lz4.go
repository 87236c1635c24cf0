// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package compress

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/pierrec/lz4/v4"
)

// lz4ReaderPool pools frame readers between decode calls.
var lz4ReaderPool = sync.Pool{
	New: func() any {
		return lz4.NewReader(nil)
	},
}

// lz4Levels maps numeric levels 0..9 to frame compression levels.
var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1,
	lz4.Level2,
	lz4.Level3,
	lz4.Level4,
	lz4.Level5,
	lz4.Level6,
	lz4.Level7,
	lz4.Level8,
	lz4.Level9,
}

// lz4Level clamps level into the frame level table.
func lz4Level(level int) lz4.CompressionLevel {
	if level < 0 {
		level = 0
	}
	if level >= len(lz4Levels) {
		level = len(lz4Levels) - 1
	}

	return lz4Levels[level]
}

// lz4Codec handles the unofficial LZ4 frame method.
type lz4Codec struct{}

func (lz4Codec) Method() Method { return LZ4 }

func (lz4Codec) Encode(src []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(src)/2 + 64)

	zw := lz4.NewWriter(&buf)
	if err := zw.Apply(lz4.CompressionLevelOption(lz4Level(level))); err != nil {
		return nil, fmt.Errorf("lz4 options: %w", err)
	}
	if _, err := zw.Write(src); err != nil {
		_ = zw.Close()
		return nil, fmt.Errorf("lz4 write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}

	return buf.Bytes(), nil
}

func (lz4Codec) Decode(dst io.Writer, src io.Reader) (int64, error) {
	zr := lz4ReaderPool.Get().(*lz4.Reader) //nolint:forcetypeassert // pool contains only readers
	zr.Reset(src)
	defer func() {
		zr.Reset(nil)
		lz4ReaderPool.Put(zr)
	}()

	n, err := io.Copy(dst, zr)
	if err != nil {
		return n, corruptf("lz4", err)
	}

	return n, nil
}
