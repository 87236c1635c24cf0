// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package compress

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrUnknownMethod means the method tag is outside the supported set.
	ErrUnknownMethod = errors.New("unknown compression method")
	// ErrCorrupt means a compressed stream could not be decoded.
	ErrCorrupt = errors.New("corrupt compressed stream")
	// ErrDecodedTooLarge means a stream decodes past the allowed output size.
	ErrDecodedTooLarge = errors.New("decoded payload exceeds size limit")
)

// MaxDecodedSize caps DecodeTo output; archive size fields are 32-bit.
const MaxDecodedSize int64 = math.MaxUint32

// Codec encodes and decodes one storage method.
// Implementations are safe for concurrent use.
type Codec interface {
	// Method returns the tag this codec handles.
	Method() Method
	// Encode returns a newly allocated encoded copy of src.
	Encode(src []byte, level int) ([]byte, error)
	// Decode streams decoded bytes from src into dst and returns the decoded length.
	Decode(dst io.Writer, src io.Reader) (int64, error)
}

// registry holds the codec for each method in the closed set.
var registry = [...]Codec{
	Store: storeCodec{},
	Zlib:  zlibCodec{},
	Zstd:  zstdCodec{},
	LZ4:   lz4Codec{},
}

// Get returns the codec registered for method.
func Get(method Method) (Codec, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, uint8(method))
	}

	return registry[method], nil
}

// Encode encodes src with the given method and level.
func Encode(method Method, src []byte, level int) ([]byte, error) {
	codec, err := Get(method)
	if err != nil {
		return nil, err
	}

	return codec.Encode(src, level)
}

// Decode reads exactly compressedLen bytes from r and returns the decoded payload.
func Decode(method Method, r io.Reader, compressedLen int64) ([]byte, error) {
	var out bytes.Buffer
	if _, err := DecodeTo(&out, method, r, compressedLen); err != nil {
		return nil, err
	}

	return out.Bytes(), nil
}

// DecodeTo decodes compressedLen bytes from r into dst and returns the decoded length.
// Output beyond MaxDecodedSize fails with ErrDecodedTooLarge.
func DecodeTo(dst io.Writer, method Method, r io.Reader, compressedLen int64) (int64, error) {
	return DecodeToLimit(dst, method, r, compressedLen, MaxDecodedSize)
}

// DecodeToLimit is DecodeTo with an explicit cap on decoded bytes.
func DecodeToLimit(dst io.Writer, method Method, r io.Reader, compressedLen, maxDecoded int64) (int64, error) {
	codec, err := Get(method)
	if err != nil {
		return 0, err
	}
	if compressedLen < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrCorrupt, compressedLen)
	}

	capped := &cappedWriter{w: dst, remaining: max(maxDecoded, 0)}
	return codec.Decode(capped, io.LimitReader(r, compressedLen))
}

// cappedWriter forwards at most remaining bytes and then fails.
type cappedWriter struct {
	w         io.Writer
	remaining int64
}

func (c *cappedWriter) Write(p []byte) (int, error) {
	if int64(len(p)) <= c.remaining {
		n, err := c.w.Write(p)
		c.remaining -= int64(n)
		return n, err
	}

	n, err := c.w.Write(p[:c.remaining])
	c.remaining -= int64(n)
	if err != nil {
		return n, err
	}

	return n, ErrDecodedTooLarge
}

// corruptf wraps a codec failure in ErrCorrupt unless the output cap tripped.
func corruptf(codec string, err error) error {
	if errors.Is(err, ErrDecodedTooLarge) {
		return err
	}

	return fmt.Errorf("%w: %s: %w", ErrCorrupt, codec, err)
}

// storeCodec passes bytes through unchanged.
type storeCodec struct{}

func (storeCodec) Method() Method { return Store }

func (storeCodec) Encode(src []byte, _ int) ([]byte, error) {
	return bytes.Clone(src), nil
}

func (storeCodec) Decode(dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, src)
}
