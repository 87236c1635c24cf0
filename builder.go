// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/woozymasta/bfs/compress"
)

var (
	// defaultBuildWriterPool reuses default-sized bufio writers between Build calls.
	defaultBuildWriterPool = sync.Pool{
		New: func() any {
			return bufio.NewWriterSize(io.Discard, DefaultWriteBuffer)
		},
	}
)

// buildCopyBufferSize is the chunk size used when reading inputs.
const buildCopyBufferSize = 64 * 1024

// buildItem is one input after name normalization and bucket assignment.
type buildItem struct {
	input  *Input
	name   string
	bucket uint32
	copies int
	method compress.Method
}

// payloadKey identifies identical payloads for deduplication.
type payloadKey struct {
	sum        uint64
	size       int
	compressed bool
	method     compress.Method
}

// storedPayload is where and how one unique payload was written.
type storedPayload struct {
	copyOffsets []uint32
	offset      uint32
	packedSize  uint32
	crc         uint32
	flags       uint8
	method      compress.Method
}

// builder carries state shared by both build passes.
type builder struct {
	out      io.WriteSeeker
	w        *bufio.Writer
	desc     *Descriptor
	logger   *slog.Logger
	payloads map[payloadKey]*storedPayload
	opts     BuildOptions
	copyBuf  []byte
	result   BuildResult
	offset   int64
}

// Build writes an archive to out from the given inputs.
// out is written from offset zero; the index is patched in after all payloads.
func Build(ctx context.Context, out io.WriteSeeker, inputs []Input, opts BuildOptions) (*BuildResult, error) {
	startedAt := time.Now()

	if out == nil {
		return nil, ErrNilWriter
	}
	if len(inputs) == 0 {
		return nil, ErrEmptyInputs
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	desc, err := Lookup(opts.Format)
	if err != nil {
		return nil, err
	}

	if !desc.SupportsMethod(opts.Method) {
		return nil, fmt.Errorf("%w: %s cannot store %s payloads", ErrUnsupportedCombination, desc.Format, opts.Method)
	}

	items, err := planBuildItems(desc, inputs, opts)
	if err != nil {
		return nil, err
	}

	b := &builder{
		out:      out,
		desc:     desc,
		opts:     opts,
		logger:   discardLogger(opts.Logger),
		payloads: make(map[payloadKey]*storedPayload),
		copyBuf:  make([]byte, buildCopyBufferSize),
	}

	return b.run(ctx, items, startedAt)
}

// BuildFile writes an archive to outPath. A failed build removes the partial file.
func BuildFile(ctx context.Context, outPath string, inputs []Input, opts BuildOptions) (res *BuildResult, err error) {
	f, err := os.OpenFile(outPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // caller-selected output path
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		if f != nil {
			_ = f.Close()
		}
		if err != nil {
			_ = os.Remove(outPath)
		}
	}()

	res, err = Build(ctx, f, inputs, opts)
	if err != nil {
		return nil, err
	}

	if err := f.Sync(); err != nil {
		return nil, fmt.Errorf("sync archive file: %w", err)
	}

	closeErr := f.Close()
	f = nil
	if closeErr != nil {
		return nil, fmt.Errorf("close archive file: %w", closeErr)
	}

	return res, nil
}

// planBuildItems normalizes names, applies the copy policy, and sorts into on-disk order:
// bucket then name for hashed revisions, name only otherwise.
func planBuildItems(desc *Descriptor, inputs []Input, opts BuildOptions) ([]buildItem, error) {
	if len(inputs) > desc.index.maxFiles() {
		return nil, fmt.Errorf("%w: %d files, %s stores at most %d", ErrSizeOverflow, len(inputs), desc.Format, desc.index.maxFiles())
	}

	items := make([]buildItem, len(inputs))
	for i := range inputs {
		name, err := desc.archiveName(inputs[i].Path)
		if err != nil {
			return nil, err
		}

		copies := opts.Copies(name)
		if copies < 0 || copies > desc.MaxCopies() {
			return nil, fmt.Errorf("%w: %d copies of %s, %s stores at most %d",
				ErrUnsupportedCombination, copies, name, desc.Format, desc.MaxCopies())
		}

		method := opts.Method
		if opts.MethodFor != nil {
			if m := opts.MethodFor(name); m != compress.Store {
				method = m
			}
		}
		if !desc.SupportsMethod(method) {
			return nil, fmt.Errorf("%w: %s cannot store %s payloads (%s)", ErrUnsupportedCombination, desc.Format, method, name)
		}

		items[i] = buildItem{input: &inputs[i], name: name, copies: copies, method: method}
		if desc.BucketCount > 0 {
			items[i].bucket = Bucket(name, desc.BucketCount)
		}
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].bucket != items[j].bucket {
			return items[i].bucket < items[j].bucket
		}

		return items[i].name < items[j].name
	})

	if err := validateUniqueEntryPaths(items); err != nil {
		return nil, err
	}

	return items, nil
}

// run executes both passes: offsets and names first, then payloads and index patch.
func (b *builder) run(ctx context.Context, items []buildItem, startedAt time.Time) (*BuildResult, error) {
	desc := b.desc

	records := make([]fileRecord, len(items))
	names := make([]string, len(items))
	buckets := make([]uint32, len(items))
	for i := range items {
		names[i] = items[i].name
		buckets[i] = items[i].bucket
		if items[i].copies > 0 {
			records[i].copyOffsets = make([]uint32, items[i].copies)
		}
	}

	table, err := desc.names.assign(records, names)
	if err != nil {
		return nil, err
	}

	// Pass 1: every record offset and the data start, before any byte is written.
	recordOffsets := make([]uint32, len(records))
	headerEnd := int64(desc.index.prefixSize(desc, len(records), table))
	for i := range records {
		recordOffsets[i] = uint32(min(headerEnd, maxArchiveBytes)) //nolint:gosec // checked below
		headerEnd += int64(desc.record.size(&records[i]))
	}
	if headerEnd > maxArchiveBytes {
		return nil, fmt.Errorf("%w: index of %d bytes", ErrSizeOverflow, headerEnd)
	}

	dataStart := alignOffset(headerEnd, int64(desc.dataAlign))
	b.result.IndexSize = headerEnd

	if _, err := b.out.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to start: %w", err)
	}

	w, releaseWriter := acquireBuildWriter(b.out, b.opts.WriterBufferSize)
	defer releaseWriter()
	b.w = w

	if err := b.pad(dataStart); err != nil {
		return nil, fmt.Errorf("write index placeholder: %w", err)
	}

	// Pass 2: payloads in record order.
	for i := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := b.writeItem(&items[i], &records[i]); err != nil {
			return nil, err
		}
	}

	if err := b.w.Flush(); err != nil {
		return nil, fmt.Errorf("flush payloads: %w", err)
	}

	plan := &indexPlan{
		header: ArchiveHeader{
			Magic:     desc.Magic,
			Version:   desc.Version,
			HeaderEnd: uint32(headerEnd),    //nolint:gosec // checked above
			FileCount: uint32(len(records)), //nolint:gosec // bounded by maxFiles
		},
		records:       records,
		recordOffsets: recordOffsets,
		recordBuckets: buckets,
		table:         table,
	}

	fw := &fieldWriter{buf: make([]byte, 0, headerEnd)}
	desc.index.encode(fw, desc, plan)
	if int64(fw.size()) != headerEnd {
		return nil, fmt.Errorf("index encoded to %d bytes, planned %d", fw.size(), headerEnd)
	}

	if _, err := b.out.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to index: %w", err)
	}
	if _, err := b.out.Write(fw.buf); err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	if _, err := b.out.Seek(b.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to end: %w", err)
	}

	b.result.Files = len(records)
	b.result.Size = b.offset
	b.result.Duration = time.Since(startedAt)

	b.logger.Debug("archive built",
		slog.String("format", desc.Format.String()),
		slog.Int("files", b.result.Files),
		slog.Int("dedup_hits", b.result.DedupHits),
		slog.Int64("size", b.result.Size))

	res := b.result
	return &res, nil
}

// writeItem reads one input, stores or reuses its payload, and fills rec.
func (b *builder) writeItem(item *buildItem, rec *fileRecord) error {
	raw, err := b.readInput(item)
	if err != nil {
		return err
	}

	candidate := b.opts.Level > 0 && len(raw) > 0 && b.opts.Compress(item.name)
	key := payloadKey{sum: xxhash.Sum64(raw), size: len(raw), compressed: candidate, method: item.method}

	var payload *storedPayload
	var stored []byte
	deduplicated := false
	if b.opts.Deduplicate {
		payload = b.payloads[key]
	}

	if payload != nil {
		deduplicated = true
		b.result.DedupHits++
	} else {
		stored, payload, err = b.storePayload(item.name, raw, item.method, candidate)
		if err != nil {
			return err
		}

		if b.opts.Deduplicate {
			b.payloads[key] = payload
		}
	}

	// Reuse copies an earlier identical payload already has, write the rest.
	for c := range rec.copyOffsets {
		if c < len(payload.copyOffsets) {
			rec.copyOffsets[c] = payload.copyOffsets[c]
			continue
		}

		if stored == nil {
			if stored, _, err = encodePayload(item.method, b.opts.Level, raw, candidate); err != nil {
				return fmt.Errorf("encode %s: %w", item.name, err)
			}
		}

		off, err := b.writeStored(item.name, stored)
		if err != nil {
			return err
		}

		rec.copyOffsets[c] = off
		payload.copyOffsets = append(payload.copyOffsets, off)
		b.result.CopiesWritten++
	}

	rec.flags = payload.flags
	rec.dataOffset = payload.offset
	rec.unpackedSize = uint32(len(raw)) //nolint:gosec // bounded by readInput
	rec.packedSize = payload.packedSize
	rec.crc = payload.crc

	b.result.RawBytes += int64(len(raw))
	if payload.method != compress.Store {
		b.result.CompressedFiles++
	}

	progress := FileProgress{
		Name:                 item.name,
		ArchivedFileInfo:     b.desc.project(rec),
		CompressionCandidate: candidate,
		Deduplicated:         deduplicated,
	}
	b.logger.Debug("file stored",
		slog.String("name", item.name),
		slog.String("method", progress.Method.String()),
		slog.Uint64("size", progress.Size),
		slog.Uint64("stored", progress.CompressedSize),
		slog.Bool("dedup", deduplicated))

	if b.opts.OnFileDone != nil {
		b.opts.OnFileDone(progress)
	}

	return nil
}

// storePayload encodes raw, writes it once, and returns the stored bytes and placement.
func (b *builder) storePayload(name string, raw []byte, method compress.Method, candidate bool) ([]byte, *storedPayload, error) {
	stored, method, err := encodePayload(method, b.opts.Level, raw, candidate)
	if err != nil {
		return nil, nil, fmt.Errorf("encode %s: %w", name, err)
	}

	off, err := b.writeStored(name, stored)
	if err != nil {
		return nil, nil, err
	}

	b.result.UniquePayloads++
	return stored, &storedPayload{
		offset:     off,
		packedSize: uint32(len(stored)), //nolint:gosec // bounded by writeStored
		crc:        jamCRC(stored),
		flags:      b.desc.flagsFor(method),
		method:     method,
	}, nil
}

// encodePayload compresses raw when selected and smaller; otherwise it is stored as is.
func encodePayload(method compress.Method, level int, raw []byte, candidate bool) ([]byte, compress.Method, error) {
	if !candidate {
		return raw, compress.Store, nil
	}

	encoded, err := compress.Encode(method, raw, level)
	if err != nil {
		return nil, compress.Store, err
	}
	if len(encoded) >= len(raw) {
		return raw, compress.Store, nil
	}

	return encoded, method, nil
}

// writeStored writes one aligned payload copy and returns its absolute offset.
func (b *builder) writeStored(name string, stored []byte) (uint32, error) {
	if b.opts.Alignment > 1 {
		if err := b.pad(alignOffset(b.offset, int64(b.opts.Alignment))); err != nil {
			return 0, fmt.Errorf("pad before %s: %w", name, err)
		}
	}

	start := b.offset
	if start+int64(len(stored)) > maxArchiveBytes {
		return 0, fmt.Errorf("%w: %s would end past 4 GiB", ErrSizeOverflow, name)
	}

	if _, err := b.w.Write(stored); err != nil {
		return 0, fmt.Errorf("write payload %s: %w", name, err)
	}

	b.offset += int64(len(stored))
	b.result.StoredBytes += int64(len(stored))
	return uint32(start), nil //nolint:gosec // bounded above
}

// pad writes zero bytes until the stream reaches offset.
func (b *builder) pad(offset int64) error {
	var zeros [512]byte
	for b.offset < offset {
		n := min(offset-b.offset, int64(len(zeros)))
		if _, err := b.w.Write(zeros[:n]); err != nil {
			return err
		}

		b.offset += n
	}

	return nil
}

// readInput reads one input fully; size is limited by the remaining 32-bit offset space.
func (b *builder) readInput(item *buildItem) ([]byte, error) {
	rc, err := openInputReader(*item.input)
	if err != nil {
		return nil, err
	}

	raw, readErr := readPayloadBounded(rc, maxArchiveBytes-b.offset, item.input.SizeHint, b.copyBuf)
	closeErr := rc.Close()
	if readErr != nil {
		return nil, fmt.Errorf("read input %s: %w", item.input.Path, readErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close input %s: %w", item.input.Path, closeErr)
	}

	return raw, nil
}

// alignOffset rounds off up to a multiple of align.
func alignOffset(off, align int64) int64 {
	if align <= 1 {
		return off
	}

	return (off + align - 1) / align * align
}

// acquireBuildWriter returns a buffered writer and release callback for Build.
func acquireBuildWriter(out io.Writer, size int) (*bufio.Writer, func()) {
	if size == DefaultWriteBuffer {
		w := defaultBuildWriterPool.Get().(*bufio.Writer) //nolint:forcetypeassert // pool contains only *bufio.Writer
		w.Reset(out)

		return w, func() {
			w.Reset(io.Discard)
			defaultBuildWriterPool.Put(w)
		}
	}

	return bufio.NewWriterSize(out, size), func() {}
}

// openInputReader opens source stream for one input.
func openInputReader(in Input) (io.ReadCloser, error) {
	if in.Open == nil {
		return nil, fmt.Errorf("input %s: Open is nil", in.Path)
	}

	rc, err := in.Open()
	if err != nil {
		return nil, fmt.Errorf("open input %s: %w", in.Path, err)
	}

	return rc, nil
}

// readPayloadBounded reads whole payload into memory with strict max-size enforcement.
func readPayloadBounded(src io.Reader, limit int64, sizeHint int64, copyBuf []byte) ([]byte, error) {
	var dst bytes.Buffer
	if sizeHint > 0 && sizeHint <= limit && sizeHint <= math.MaxInt32 {
		dst.Grow(int(sizeHint))
	}

	written, err := copyPayloadBounded(&dst, src, limit, copyBuf)
	if err != nil {
		return nil, err
	}
	if int64(dst.Len()) != written {
		return nil, fmt.Errorf("short read into memory (%d/%d)", dst.Len(), written)
	}

	return dst.Bytes(), nil
}

// copyPayloadBounded streams payload from src to dst and enforces strict size limit.
func copyPayloadBounded(dst io.Writer, src io.Reader, limit int64, buf []byte) (int64, error) {
	if dst == nil {
		return 0, ErrNilWriter
	}
	if src == nil {
		return 0, ErrNilReader
	}
	if limit < 0 {
		return 0, ErrSizeOverflow
	}
	if len(buf) == 0 {
		buf = make([]byte, 32*1024)
	}

	var written int64
	emptyReads := 0
	for written < limit {
		chunkSize := len(buf)
		remaining := limit - written
		if int64(chunkSize) > remaining {
			chunkSize = int(remaining)
		}

		n, readErr := src.Read(buf[:chunkSize])
		if n > 0 {
			emptyReads = 0
			nw, writeErr := dst.Write(buf[:n])
			written += int64(nw)

			if writeErr != nil {
				return written, writeErr
			}
			if nw != n {
				return written, io.ErrShortWrite
			}
		}
		if n == 0 && readErr == nil {
			emptyReads++
			if emptyReads > 100 {
				return written, io.ErrNoProgress
			}

			continue
		}

		if readErr != nil {
			if readErr == io.EOF {
				break
			}

			return written, readErr
		}
	}

	// If we consumed exactly the limit, probe one extra byte to ensure source is not longer.
	if written == limit {
		var probe [1]byte
		n, err := src.Read(probe[:])
		if n > 0 {
			return written, ErrSizeOverflow
		}
		if err != nil && err != io.EOF {
			return written, err
		}
	}

	return written, nil
}

// validateUniqueEntryPaths ensures no two items share a logical name, ignoring case.
func validateUniqueEntryPaths(items []buildItem) error {
	seen := make(map[string]string, len(items))
	for _, item := range items {
		key := strings.ToLower(item.name)
		if existing, ok := seen[key]; ok {
			return fmt.Errorf("%w: %q conflicts with %q", ErrDuplicateEntryPath, item.name, existing)
		}

		seen[key] = item.name
	}

	return nil
}
