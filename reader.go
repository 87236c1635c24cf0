// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Reader provides read-only access to a parsed archive.
type Reader struct {
	// ra is the underlying random-access reader used for payload reads.
	ra io.ReaderAt
	// file is set when Reader owns an *os.File opened via Open.
	file *os.File
	// desc is the revision the archive was parsed with.
	desc *Descriptor
	// logger receives parse warnings.
	logger *slog.Logger
	// byName maps logical names to entry indices in on-disk order.
	byName map[string][]int
	// entries stores parsed immutable entry metadata in on-disk order.
	entries []Entry
	// header is the parsed archive header.
	header ArchiveHeader
	// size is total source size in bytes.
	size int64
	// mu guards closed state and close operation.
	mu sync.Mutex
	// closed reports whether Close was already called.
	closed bool
}

// Open opens an archive file of the given revision. FormatUnknown detects it.
func Open(path string, format Format) (*Reader, error) {
	return OpenWithOptions(path, ReaderOptions{Format: format})
}

// OpenWithOptions opens an archive file by path using explicit reader options.
func OpenWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	f, size, err := openFileWithSize(path)
	if err != nil {
		return nil, err
	}

	r, err := NewReader(f, size, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	r.file = f
	return r, nil
}

// NewReader parses an archive from an existing ReaderAt of known size.
// The caller keeps ownership of ra.
func NewReader(ra io.ReaderAt, size int64, opts ReaderOptions) (*Reader, error) {
	if ra == nil {
		return nil, ErrNilReader
	}

	r := &Reader{
		ra:     ra,
		size:   size,
		logger: discardLogger(opts.Logger),
	}
	if err := r.parse(opts); err != nil {
		return nil, err
	}

	return r, nil
}

// parse decodes header, index, and names; nothing is kept on failure.
func (r *Reader) parse(opts ReaderOptions) error {
	format := opts.Format
	if format == FormatUnknown {
		detected, err := DetectFormat(r.ra, r.size)
		if err != nil {
			return err
		}

		format = detected
	}

	desc, err := Lookup(format)
	if err != nil {
		return err
	}

	fr := newFieldReader(r.ra, r.size)
	defer fr.release()

	raw := &rawArchive{header: desc.header.read(fr)}
	if fr.err != nil {
		return fr.err
	}

	if !opts.Force {
		if err := desc.Validate(raw.header); err != nil {
			return err
		}
	}

	if err := desc.index.parse(fr, desc, raw, opts.Force); err != nil {
		return err
	}

	names, err := desc.names.resolve(raw)
	if err != nil {
		return err
	}

	entries := make([]Entry, len(raw.records))
	byName := make(map[string][]int, len(raw.records))
	for i := range raw.records {
		rec := &raw.records[i]
		if err := r.checkPayloadBounds(rec, names[i]); err != nil {
			return err
		}

		entry := Entry{
			Name:             names[i],
			CopyOffsets:      rec.copyOffsets,
			ArchivedFileInfo: desc.project(rec),
			Flags:            rec.flags,
		}
		if entry.Name == "" || !isPrintableASCII(entry.Name) {
			entry.Name = synthesizedName(rec.dataOffset)
			entry.Synthesized = true
			r.logger.Warn("unreadable file name replaced",
				slog.Int("record", i),
				slog.String("raw", fmt.Sprintf("%q", names[i])),
				slog.String("name", entry.Name))
		}

		entries[i] = entry
		byName[entry.Name] = append(byName[entry.Name], i)
	}

	r.desc = desc
	r.header = raw.header
	r.entries = entries
	r.byName = byName

	r.logger.Debug("archive parsed",
		slog.String("format", desc.Format.String()),
		slog.Int("files", len(entries)),
		slog.Bool("force", opts.Force))

	return nil
}

// checkPayloadBounds verifies every stored copy of a record lies inside the stream.
func (r *Reader) checkPayloadBounds(rec *fileRecord, name string) error {
	check := func(off uint32) error {
		end := int64(off) + int64(rec.packedSize)
		if end > r.size {
			return structuralf("payload", int64(off), "%q needs %d bytes, stream is %d bytes", name, rec.packedSize, r.size)
		}

		return nil
	}

	if err := check(rec.dataOffset); err != nil {
		return err
	}
	for _, off := range rec.copyOffsets {
		if err := check(off); err != nil {
			return err
		}
	}

	return nil
}

// Descriptor returns the revision descriptor the archive was parsed with.
func (r *Reader) Descriptor() *Descriptor {
	if r == nil {
		return nil
	}

	return r.desc
}

// Header returns the parsed archive header.
func (r *Reader) Header() ArchiveHeader {
	if r == nil {
		return ArchiveHeader{}
	}

	return r.header
}

// FileCount returns the number of file records.
func (r *Reader) FileCount() uint64 {
	if r == nil {
		return 0
	}

	return uint64(len(r.entries))
}

// FileNames returns logical names in on-disk record order.
func (r *Reader) FileNames() []string {
	if r == nil {
		return nil
	}

	return namesOf(r.entries)
}

// Entries returns a copy of parsed entries.
func (r *Reader) Entries() []Entry {
	if r == nil {
		return nil
	}

	entries := make([]Entry, len(r.entries))
	copy(entries, r.entries)
	return entries
}

// FileInfo returns projections of every record stored under name.
// More than one result means the archive repeats the path.
func (r *Reader) FileInfo(name string) []ArchivedFileInfo {
	matches := r.lookup(name)
	if len(matches) == 0 {
		return nil
	}

	out := make([]ArchivedFileInfo, len(matches))
	for i, idx := range matches {
		out[i] = r.entries[idx].ArchivedFileInfo
	}

	return out
}

// MultipleFileInfo resolves several names at once. Unknown names are skipped.
func (r *Reader) MultipleFileInfo(names []string) []NamedFileInfo {
	out := make([]NamedFileInfo, 0, len(names))
	for _, name := range names {
		for _, idx := range r.lookup(name) {
			out = append(out, NamedFileInfo{Name: r.entries[idx].Name, ArchivedFileInfo: r.entries[idx].ArchivedFileInfo})
		}
	}

	return out
}

// lookup resolves name exactly first, then in normalized slash form.
func (r *Reader) lookup(name string) []int {
	if r == nil {
		return nil
	}

	if matches, ok := r.byName[name]; ok {
		return matches
	}

	return r.byName[NormalizePath(name)]
}

// Close closes the underlying file if reader owns one.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true
	if r.file != nil {
		return r.file.Close()
	}

	return nil
}

// checkOpen returns an error when the reader cannot serve payload reads.
func (r *Reader) checkOpen() error {
	if r == nil || r.ra == nil {
		return ErrNilReader
	}

	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}

	return nil
}
