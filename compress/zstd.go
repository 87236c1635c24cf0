// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package compress

import (
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// zstdDecoderPool pools single-threaded decoders; they are reusable after warmup.
var zstdDecoderPool = sync.Pool{
	New: func() any {
		decoder, err := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(uint64(MaxDecodedSize)),
		)
		if err != nil {
			panic(fmt.Sprintf("create zstd decoder: %v", err))
		}

		return decoder
	},
}

// zstdEncoderPools holds one encoder pool per speed level.
var zstdEncoderPools = newZstdEncoderPools()

// newZstdEncoderPools builds encoder pools indexed by zstd.EncoderLevel.
func newZstdEncoderPools() []*sync.Pool {
	pools := make([]*sync.Pool, zstd.SpeedBestCompression+1)
	for level := zstd.SpeedFastest; level <= zstd.SpeedBestCompression; level++ {
		pools[level] = &sync.Pool{
			New: func() any {
				encoder, err := zstd.NewWriter(nil,
					zstd.WithEncoderLevel(level),
					zstd.WithEncoderConcurrency(1),
				)
				if err != nil {
					panic(fmt.Sprintf("create zstd encoder: %v", err))
				}

				return encoder
			},
		}
	}

	return pools
}

// zstdCodec handles the unofficial Zstandard method.
type zstdCodec struct{}

func (zstdCodec) Method() Method { return Zstd }

func (zstdCodec) Encode(src []byte, level int) ([]byte, error) {
	speed := zstd.SpeedDefault
	if level > 0 {
		speed = zstd.EncoderLevelFromZstd(level)
	}

	pool := zstdEncoderPools[speed]
	encoder := pool.Get().(*zstd.Encoder) //nolint:forcetypeassert // pool contains only encoders
	defer pool.Put(encoder)

	return encoder.EncodeAll(src, make([]byte, 0, len(src)/2+64)), nil
}

func (zstdCodec) Decode(dst io.Writer, src io.Reader) (int64, error) {
	decoder := zstdDecoderPool.Get().(*zstd.Decoder) //nolint:forcetypeassert // pool contains only decoders
	defer zstdDecoderPool.Put(decoder)

	if err := decoder.Reset(src); err != nil {
		return 0, corruptf("zstd", err)
	}
	defer func() { _ = decoder.Reset(nil) }()

	n, err := decoder.WriteTo(dst)
	if err != nil {
		return n, corruptf("zstd", err)
	}

	return n, nil
}
