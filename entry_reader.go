// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bytes"
	"fmt"
	"io"

	"github.com/woozymasta/bfs/compress"
)

// findEntryByName resolves the first record stored under name.
func (r *Reader) findEntryByName(name string) *Entry {
	matches := r.lookup(name)
	if len(matches) == 0 {
		return nil
	}

	return &r.entries[matches[0]]
}

// readStored reads the stored bytes of one record with a single ReadAt.
// io.ReaderAt permits parallel calls, so no cursor lock is held.
func (r *Reader) readStored(entry *Entry) ([]byte, error) {
	stored := make([]byte, entry.CompressedSize)
	n, err := r.ra.ReadAt(stored, int64(entry.Offset)) //nolint:gosec // bounded by stream size at parse
	if n == len(stored) {
		return stored, nil
	}
	if err == nil || err == io.EOF {
		err = io.ErrUnexpectedEOF
	}

	return nil, fmt.Errorf("read %s: %w", entry.Name, err)
}

// OpenEntry opens named entry for reading.
// The returned stream yields decoded content.
func (r *Reader) OpenEntry(name string) (io.ReadCloser, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	entry := r.findEntryByName(name)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	return r.openEntry(entry), nil
}

// openEntry opens a decoded stream over one resolved record.
func (r *Reader) openEntry(entry *Entry) io.ReadCloser {
	sr := io.NewSectionReader(r.ra, int64(entry.Offset), int64(entry.CompressedSize)) //nolint:gosec // bounded by stream size at parse
	if entry.Method == compress.Store {
		return io.NopCloser(sr)
	}

	pr, pw := io.Pipe()
	go streamDecodeEntry(entry.Name, pw, sr, entry.Method, int64(entry.CompressedSize)) //nolint:gosec // see above

	return pr
}

// ReadEntry reads full decoded content of the named entry.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}

	entry := r.findEntryByName(name)
	if entry == nil {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
	}

	stored, err := r.readStored(entry)
	if err != nil {
		return nil, err
	}

	return decodeStored(entry, stored)
}

// decodeStored decodes already read stored bytes of entry.
func decodeStored(entry *Entry, stored []byte) ([]byte, error) {
	if entry.Method == compress.Store {
		return stored, nil
	}

	out, err := compress.Decode(entry.Method, bytes.NewReader(stored), int64(len(stored)))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", entry.Name, err)
	}

	return out, nil
}

// streamDecodeEntry decodes one compressed entry stream into pipe writer.
func streamDecodeEntry(name string, dst *io.PipeWriter, src io.Reader, method compress.Method, packed int64) {
	if _, err := compress.DecodeTo(dst, method, src, packed); err != nil {
		_ = dst.CloseWithError(fmt.Errorf("decode entry %s: %w", name, err))
		return
	}

	_ = dst.Close()
}
