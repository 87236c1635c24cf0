// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// detectProbeSize covers the header plus the first index word of bfs1 archives.
const detectProbeSize = 20

// ListFiles opens an archive and returns entry metadata without payload reads.
func ListFiles(path string, format Format) ([]Entry, error) {
	return ListFilesWithOptions(path, ListOptions{ReaderOptions: ReaderOptions{Format: format}})
}

// ListFilesWithOptions opens an archive and returns filtered entry metadata.
func ListFilesWithOptions(path string, opts ListOptions) ([]Entry, error) {
	r, err := OpenWithOptions(path, opts.ReaderOptions)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()

	return r.ListEntries(opts)
}

// ListEntries returns parsed entries filtered by opts. Reader options in opts are ignored.
func (r *Reader) ListEntries(opts ListOptions) ([]Entry, error) {
	entries := r.Entries()
	if opts.SkipSynthesized {
		entries = filterSynthesizedEntries(entries)
	}

	entries = filterEntriesByPrefix(entries, opts.Prefix)
	return filterEntriesByRules(entries, opts.Rules)
}

// DetectFormat identifies the revision of an archive from its header.
// bfs2004a and bfs2004b share magic and version; a bucket count of 997 right
// after the header marks the bfs2004b layout, where the 2004a offset table would start.
func DetectFormat(ra io.ReaderAt, size int64) (Format, error) {
	if ra == nil {
		return FormatUnknown, ErrNilReader
	}

	var probe [detectProbeSize]byte
	n, err := ra.ReadAt(probe[:min(int64(len(probe)), max(size, 0))], 0)
	if n < 12 {
		if err == nil || err == io.EOF {
			return FormatUnknown, structuralf("header", 0, "stream of %d bytes is shorter than any header", size)
		}

		return FormatUnknown, fmt.Errorf("read header: %w", err)
	}

	magic := binary.LittleEndian.Uint32(probe[0:4])
	version := binary.LittleEndian.Uint32(probe[4:8])
	for _, f := range Formats() {
		d := descriptors[f]
		if d.Magic != magic || d.Version != version {
			continue
		}

		switch f {
		case FormatBfs2004a, FormatBfs2004b:
			if n >= detectProbeSize && binary.LittleEndian.Uint32(probe[16:20]) == DefaultBucketCount {
				if isEmptyOffsetTable(probe[:]) {
					return FormatBfs2004a, nil
				}

				return FormatBfs2004b, nil
			}

			return FormatBfs2004a, nil
		default:
			return f, nil
		}
	}

	tag := magicBytes(magic)
	return FormatUnknown, fmt.Errorf("%w: magic %q version 0x%08x", ErrUnknownFormat, tag[:], version)
}

// isEmptyOffsetTable reports a bfs2004a header with no files, whose bucket
// count sits at 0x10 exactly where bfs2004b stores it.
func isEmptyOffsetTable(probe []byte) bool {
	d := descriptors[FormatBfs2004a]
	headerEnd := binary.LittleEndian.Uint32(probe[8:12])
	fileCount := binary.LittleEndian.Uint32(probe[12:16])

	return fileCount == 0 && int64(headerEnd) == int64(d.index.prefixSize(d, 0, nil))
}

// openFileWithSize opens a file and returns a handle plus current size.
func openFileWithSize(path string) (*os.File, int64, error) {
	f, err := os.Open(path) //nolint:gosec // caller-selected archive path
	if err != nil {
		return nil, 0, fmt.Errorf("open archive: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, fmt.Errorf("stat: %w", err)
	}

	return f, fi.Size(), nil
}
