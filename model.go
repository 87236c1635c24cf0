// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"io"
	"log/slog"
	"time"

	"github.com/woozymasta/pathrules"

	"github.com/woozymasta/bfs/compress"
)

// Internal binary layout and format limits.
const (
	dataAlignment   = 4          // payload region starts on a 4-byte boundary
	maxArchiveBytes = 1<<32 - 1  // every offset field is 32-bit
	fixedNameWidth  = 0x28       // bzf2001 inline name width
	maxInlineName   = 1<<16 - 1  // u16 length prefix
	dataPrefix      = "data/"    // required logical prefix for bfs revisions
	synthNameFormat = "%08x.dat" // placeholder for unreadable names
)

// Default build tuning values.
const (
	DefaultLevel       = 9
	DefaultWriteBuffer = 4 * 1024 * 1024
)

// Record flag bits.
const (
	flagCompressed uint8 = 0x01
	flagChecksum   uint8 = 0x04
	flagZstd       uint8 = 0x08
	flagLZ4        uint8 = 0x10
)

// ArchiveHeader is the fixed block at the start of every archive.
type ArchiveHeader struct {
	// Magic is the little-endian value of the 4-byte tag.
	Magic uint32 `json:"magic" yaml:"magic"`
	// Version is the date-coded revision number.
	Version uint32 `json:"version" yaml:"version"`
	// HeaderEnd is the end of the index region; zero for revisions without the field.
	HeaderEnd uint32 `json:"header_end,omitempty" yaml:"header_end,omitempty"`
	// FileCount is the number of file records.
	FileCount uint32 `json:"file_count" yaml:"file_count"`
}

// ArchivedFileInfo is the revision-independent view of one file record.
type ArchivedFileInfo struct {
	// Offset is the absolute offset of the primary payload.
	Offset uint64 `json:"offset" yaml:"offset"`
	// Size is the decoded payload size.
	Size uint64 `json:"size" yaml:"size"`
	// CompressedSize is the stored payload size.
	CompressedSize uint64 `json:"compressed_size" yaml:"compressed_size"`
	// Copies is the number of extra physical copies.
	Copies uint64 `json:"copies,omitempty" yaml:"copies,omitempty"`
	// Checksum is the JAM-CRC32 of the stored bytes when HasChecksum is set.
	Checksum uint32 `json:"checksum,omitempty" yaml:"checksum,omitempty"`
	// Method is the storage method of the payload.
	Method compress.Method `json:"method" yaml:"method"`
	// HasChecksum reports whether the record carries a checksum.
	HasChecksum bool `json:"has_checksum,omitempty" yaml:"has_checksum,omitempty"`
}

// NamedFileInfo pairs a record projection with its logical name.
type NamedFileInfo struct {
	Name string `json:"name" yaml:"name"`
	ArchivedFileInfo
}

// Entry is one parsed file record with its resolved name.
type Entry struct {
	// Name is the logical path, or a synthesized placeholder for unreadable names.
	Name string `json:"name" yaml:"name"`
	// CopyOffsets are the absolute offsets of the extra copies.
	CopyOffsets []uint32 `json:"copy_offsets,omitempty" yaml:"copy_offsets,omitempty"`
	ArchivedFileInfo
	// Flags is the raw flag byte.
	Flags uint8 `json:"flags" yaml:"flags"`
	// Synthesized reports whether Name was generated from the data offset.
	Synthesized bool `json:"synthesized,omitempty" yaml:"synthesized,omitempty"`
}

// Input describes one source stream to be stored in an archive.
type Input struct {
	// Open returns raw source stream for this entry.
	Open func() (io.ReadCloser, error) `json:"-" yaml:"-"`
	// Path is the logical path inside the archive.
	Path string `json:"path" yaml:"path"`
	// SizeHint is expected size in bytes (zero when unknown).
	SizeHint int64 `json:"size_hint,omitempty" yaml:"size_hint,omitempty"`
}

// FileProgress is one completed file write event from the build flow.
type FileProgress struct {
	// Name is the logical path written.
	Name string `json:"name" yaml:"name"`
	ArchivedFileInfo
	// CompressionCandidate reports whether the compress policy selected this file.
	CompressionCandidate bool `json:"compression_candidate,omitempty" yaml:"compression_candidate,omitempty"`
	// Deduplicated reports whether the payload reused an earlier file's bytes.
	Deduplicated bool `json:"deduplicated,omitempty" yaml:"deduplicated,omitempty"`
}

// BuildOptions configures archive build behavior.
type BuildOptions struct {
	// Compress decides per logical path whether compression is attempted.
	// Nil means never.
	Compress func(path string) bool `json:"-" yaml:"-"`
	// Copies returns how many extra physical copies a path gets. Nil means none.
	Copies func(path string) int `json:"-" yaml:"-"`
	// MethodFor overrides Method per logical path. compress.Store keeps Method.
	MethodFor func(path string) compress.Method `json:"-" yaml:"-"`
	// OnFileDone is called after one file is fully written.
	OnFileDone func(progress FileProgress) `json:"-" yaml:"-"`
	// Logger receives debug and warning events. Nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Format selects the on-disk revision. Default is bfs2004b.
	Format Format `json:"format,omitempty" yaml:"format,omitempty"`
	// Level is the compression level; zero disables compression globally
	// and a negative value selects DefaultLevel.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`
	// Alignment pads every payload start to a multiple of this many bytes.
	Alignment uint32 `json:"alignment,omitempty" yaml:"alignment,omitempty"`
	// WriterBufferSize is buffered writer size in bytes.
	WriterBufferSize int `json:"writer_buffer_size,omitempty" yaml:"writer_buffer_size,omitempty"`
	// Method is the codec used for compressed files. Default is zlib.
	Method compress.Method `json:"method,omitempty" yaml:"method,omitempty"`
	// Deduplicate stores byte-identical payloads once.
	Deduplicate bool `json:"deduplicate,omitempty" yaml:"deduplicate,omitempty"`
}

// BuildResult contains build output statistics.
type BuildResult struct {
	// Files is number of file records written.
	Files int `json:"files" yaml:"files"`
	// UniquePayloads is number of payloads physically written once or more.
	UniquePayloads int `json:"unique_payloads" yaml:"unique_payloads"`
	// DedupHits is number of files that reused an earlier payload.
	DedupHits int `json:"dedup_hits,omitempty" yaml:"dedup_hits,omitempty"`
	// CopiesWritten is number of extra physical copies written.
	CopiesWritten int `json:"copies_written,omitempty" yaml:"copies_written,omitempty"`
	// CompressedFiles is number of files stored compressed.
	CompressedFiles int `json:"compressed_files,omitempty" yaml:"compressed_files,omitempty"`
	// IndexSize is size of the header and index region.
	IndexSize int64 `json:"index_size" yaml:"index_size"`
	// RawBytes is total input bytes.
	RawBytes int64 `json:"raw_bytes" yaml:"raw_bytes"`
	// StoredBytes is total payload bytes written, copies included.
	StoredBytes int64 `json:"stored_bytes" yaml:"stored_bytes"`
	// Size is the final archive size.
	Size int64 `json:"size" yaml:"size"`
	// Duration is end-to-end build duration.
	Duration time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// ReaderOptions configures archive parsing.
type ReaderOptions struct {
	// Logger receives debug and warning events. Nil discards them.
	Logger *slog.Logger `json:"-" yaml:"-"`
	// Format selects the on-disk revision. Zero means detect from the stream.
	Format Format `json:"format,omitempty" yaml:"format,omitempty"`
	// Force skips header validation and bucket consistency checks.
	Force bool `json:"force,omitempty" yaml:"force,omitempty"`
}

// ListOptions configures ListFilesWithOptions.
type ListOptions struct {
	// Rules keeps only paths included by these glob rules. Empty keeps all.
	Rules []pathrules.Rule `json:"rules,omitempty" yaml:"rules,omitempty"`
	// Prefix keeps only paths under this directory, or the exact file.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	ReaderOptions
	// SkipSynthesized drops records whose stored name was unreadable.
	SkipSynthesized bool `json:"skip_synthesized,omitempty" yaml:"skip_synthesized,omitempty"`
}

// ExtractStats describes one extracted file.
type ExtractStats struct {
	// OutputPath is the written file path.
	OutputPath string `json:"output_path" yaml:"output_path"`
	// Written is the number of decoded bytes written.
	Written int64 `json:"written" yaml:"written"`
	// SizeMismatch is set when Written differs from the stored unpacked size.
	SizeMismatch bool `json:"size_mismatch,omitempty" yaml:"size_mismatch,omitempty"`
	// ChecksumMismatch is set when the record checksum differs from the stored bytes.
	ChecksumMismatch bool `json:"checksum_mismatch,omitempty" yaml:"checksum_mismatch,omitempty"`
}

// ExtractOptions configures Extract behavior.
type ExtractOptions struct {
	// OnFile is called after one file is fully written to disk.
	OnFile func(name string, info ArchivedFileInfo, stats ExtractStats) `json:"-" yaml:"-"`
	// FileMode controls output file creation policy.
	FileMode ExtractFileMode `json:"file_mode,omitempty" yaml:"file_mode,omitempty"`
	// MaxWorkers is number of extraction workers (zero means GOMAXPROCS).
	MaxWorkers int `json:"max_workers,omitempty" yaml:"max_workers,omitempty"`
}

// ExtractFileMode controls output file open behavior during extraction.
type ExtractFileMode string

// Output file creation policies for extraction.
const (
	// ExtractFileModeTruncate opens existing files with truncate and creates missing files.
	ExtractFileModeTruncate ExtractFileMode = "truncate"
	// ExtractFileModeCreateOnly creates files only when absent and fails on existing files.
	ExtractFileModeCreateOnly ExtractFileMode = "create_only"
)

// EditOptions configures Editor behavior.
type EditOptions struct {
	// Build configures the rewrite. A zero Format keeps the source revision,
	// nil Compress keeps each source file's compression state, and nil Copies
	// keeps source copy counts.
	Build BuildOptions `json:"build" yaml:"build"`
	// Reader configures parsing of the source archive.
	Reader ReaderOptions `json:"reader" yaml:"reader"`
	// BackupKeep is number of ".bak" generations kept after commit (0 removes backup).
	BackupKeep int `json:"backup_keep,omitempty" yaml:"backup_keep,omitempty"`
}

// applyDefaults fills zero-valued edit options with defaults.
func (opts *EditOptions) applyDefaults() {
	if opts.BackupKeep < 0 {
		opts.BackupKeep = 0
	}
}

// applyDefaults fills zero-valued build options with defaults.
func (opts *BuildOptions) applyDefaults() {
	if opts.Format == FormatUnknown {
		opts.Format = FormatBfs2004b
	}

	if opts.Level < 0 {
		opts.Level = DefaultLevel
	}

	if opts.Method == compress.Store {
		opts.Method = compress.Zlib
	}

	if opts.WriterBufferSize < 4096 {
		opts.WriterBufferSize = DefaultWriteBuffer
	}

	if opts.Compress == nil {
		opts.Compress = func(string) bool { return false }
	}

	if opts.Copies == nil {
		opts.Copies = func(string) int { return 0 }
	}
}

// applyDefaults fills zero-valued extract options with defaults.
func (opts *ExtractOptions) applyDefaults() {
	if opts.FileMode == "" {
		opts.FileMode = ExtractFileModeTruncate
	}
}

// discardLogger returns logger, or a logger that drops everything when nil.
func discardLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}

	return slog.New(slog.DiscardHandler)
}
