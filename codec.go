// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"sync"
)

// fieldReaderBufferSize is the sequential read buffer for index parsing.
const fieldReaderBufferSize = 64 * 1024

var (
	// fieldReaderPool reuses buffered readers for index parsing.
	fieldReaderPool = sync.Pool{
		New: func() any {
			return bufio.NewReaderSize(bytes.NewReader(nil), fieldReaderBufferSize)
		},
	}
)

// fieldReader is a little-endian cursor over a random-access source.
// The first failure sticks; later reads return zero values.
type fieldReader struct {
	ra      io.ReaderAt
	br      *bufio.Reader
	err     error
	section string
	size    int64
	off     int64
	scratch [4]byte
}

// newFieldReader returns a cursor positioned at offset zero.
func newFieldReader(ra io.ReaderAt, size int64) *fieldReader {
	br := fieldReaderPool.Get().(*bufio.Reader) //nolint:forcetypeassert // pool contains only *bufio.Reader
	fr := &fieldReader{ra: ra, br: br, size: size}
	fr.seek("header", 0)
	return fr
}

// release returns the buffered reader to the pool.
func (fr *fieldReader) release() {
	if fr.br == nil {
		return
	}

	fr.br.Reset(bytes.NewReader(nil))
	fieldReaderPool.Put(fr.br)
	fr.br = nil
}

// seek moves the cursor to an absolute offset and names the region being read.
func (fr *fieldReader) seek(section string, off int64) {
	fr.section = section
	if fr.err != nil {
		return
	}
	if off < 0 || off > fr.size {
		fr.fail("seek to 0x%x outside %d byte stream", off, fr.size)
		return
	}

	fr.off = off
	fr.br.Reset(io.NewSectionReader(fr.ra, off, fr.size-off))
}

// fail records a structural error at the current offset.
func (fr *fieldReader) fail(format string, args ...any) {
	if fr.err == nil {
		fr.err = structuralf(fr.section, fr.off, format, args...)
	}
}

// remaining returns unread bytes in the stream.
func (fr *fieldReader) remaining() int64 {
	return fr.size - fr.off
}

// need verifies count elements of elemSize bytes still fit in the stream.
func (fr *fieldReader) need(count uint64, elemSize int) bool {
	if fr.err != nil {
		return false
	}

	if count > uint64(fr.remaining())/uint64(elemSize) { //nolint:gosec // remaining is never negative
		fr.fail("%d records of %d bytes exceed %d remaining bytes", count, elemSize, fr.remaining())
		return false
	}

	return true
}

// fill reads exactly len(dst) bytes.
func (fr *fieldReader) fill(dst []byte) bool {
	if fr.err != nil {
		return false
	}
	if int64(len(dst)) > fr.remaining() {
		fr.fail("need %d bytes, %d remaining", len(dst), fr.remaining())
		return false
	}

	if _, err := io.ReadFull(fr.br, dst); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			fr.fail("short read: %w", err)
		} else {
			fr.err = fmt.Errorf("read %s: %w", fr.section, err)
		}

		return false
	}

	fr.off += int64(len(dst))
	return true
}

// u8 reads one byte.
func (fr *fieldReader) u8() uint8 {
	if !fr.fill(fr.scratch[:1]) {
		return 0
	}

	return fr.scratch[0]
}

// u16 reads a little-endian uint16.
func (fr *fieldReader) u16() uint16 {
	if !fr.fill(fr.scratch[:2]) {
		return 0
	}

	return binary.LittleEndian.Uint16(fr.scratch[:2])
}

// u32 reads a little-endian uint32.
func (fr *fieldReader) u32() uint32 {
	if !fr.fill(fr.scratch[:4]) {
		return 0
	}

	return binary.LittleEndian.Uint32(fr.scratch[:4])
}

// bytes reads n bytes into a new slice.
func (fr *fieldReader) bytes(n int) []byte {
	if n == 0 || !fr.need(uint64(n), 1) { //nolint:gosec // n is a decoded unsigned field
		return nil
	}

	out := make([]byte, n)
	if !fr.fill(out) {
		return nil
	}

	return out
}

// skip discards n bytes.
func (fr *fieldReader) skip(n int) {
	if fr.err != nil || n == 0 {
		return
	}
	if int64(n) > fr.remaining() {
		fr.fail("skip %d bytes, %d remaining", n, fr.remaining())
		return
	}

	discarded, err := fr.br.Discard(n)
	fr.off += int64(discarded)
	if err != nil {
		fr.fail("skip: %w", err)
	}
}

// fieldWriter appends little-endian fields to a growing buffer.
type fieldWriter struct {
	buf []byte
}

func (fw *fieldWriter) u8(v uint8) { fw.buf = append(fw.buf, v) }

func (fw *fieldWriter) u16(v uint16) { fw.buf = binary.LittleEndian.AppendUint16(fw.buf, v) }

func (fw *fieldWriter) u32(v uint32) { fw.buf = binary.LittleEndian.AppendUint32(fw.buf, v) }

func (fw *fieldWriter) bytes(b []byte) { fw.buf = append(fw.buf, b...) }

// zeros appends n zero bytes.
func (fw *fieldWriter) zeros(n int) {
	for range n {
		fw.buf = append(fw.buf, 0)
	}
}

// size returns the number of bytes written so far.
func (fw *fieldWriter) size() int { return len(fw.buf) }

// jamCRC returns the CRC-32/JAMCRC of data: IEEE CRC-32 without the final inversion.
func jamCRC(data []byte) uint32 {
	return ^crc32.ChecksumIEEE(data)
}
