// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/woozymasta/bfs/compress"
)

// Format identifies one on-disk archive revision.
type Format uint8

// Supported revisions.
const (
	// FormatUnknown is the zero value; readers detect the revision from the stream.
	FormatUnknown Format = iota
	// FormatBzf2001 is the 2001 "bbzf" layout with fixed-width names.
	FormatBzf2001
	// FormatBzf2002 is the 2002 "bzf2" layout with inline names and checksums.
	FormatBzf2002
	// FormatBfs2004a is the 2004 "bfs1" layout with a hash index and inline names.
	FormatBfs2004a
	// FormatBfs2004b is the 2004 "bfs1" layout with a hash index and a shared name table.
	FormatBfs2004b
	// FormatBfs2007 is the 2007 "bfs1" layout with 16-bit copy counts.
	FormatBfs2007
)

// formatNames maps formats to their stable text form.
var formatNames = [...]string{
	FormatUnknown:  "unknown",
	FormatBzf2001:  "bzf2001",
	FormatBzf2002:  "bzf2002",
	FormatBfs2004a: "bfs2004a",
	FormatBfs2004b: "bfs2004b",
	FormatBfs2007:  "bfs2007",
}

// String returns the stable text name of the format.
func (f Format) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}

	return fmt.Sprintf("format(%d)", uint8(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if _, err := Lookup(f); err != nil && f != FormatUnknown {
		return nil, err
	}

	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}

	*f = parsed
	return nil
}

// ParseFormat parses a format name such as "bfs2004b".
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, known := range formatNames {
		if f != int(FormatUnknown) && known == name {
			return Format(f), nil //nolint:gosec // bounded by table size
		}
	}

	return FormatUnknown, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
}

// Formats returns every supported revision in chronological order.
func Formats() []Format {
	return []Format{FormatBzf2001, FormatBzf2002, FormatBfs2004a, FormatBfs2004b, FormatBfs2007}
}

// Descriptor bundles the constants and layout strategies of one revision.
type Descriptor struct {
	header  headerShape
	record  recordShape
	index   indexLayout
	names   nameStrategy
	methods []compress.Method
	// namePrefix is prepended to logical names that lack it on build.
	namePrefix string
	// Magic is the little-endian value of the 4-byte tag.
	Magic uint32
	// Version is the date-coded revision number.
	Version uint32
	// BucketCount is the hash bucket count; zero for unhashed revisions.
	BucketCount uint32
	// dataAlign is the alignment of the first payload after the index.
	dataAlign uint32
	// Format is the revision this descriptor describes.
	Format Format
}

// magicOf returns the little-endian value of a 4-byte tag.
func magicOf(tag string) uint32 {
	return binary.LittleEndian.Uint32([]byte(tag))
}

// descriptors holds one immutable descriptor per revision.
var descriptors = map[Format]*Descriptor{
	FormatBzf2001: {
		Format:    FormatBzf2001,
		Magic:     magicOf("bbzf"),
		Version:   0x06062001,
		dataAlign: 1,
		header:    shortHeader{},
		record:    recordShape{copies: noCopies{}, name: fixedName{width: fixedNameWidth}},
		index:     flatIndex{},
		names:     inlineNames{},
		methods:   []compress.Method{compress.Store, compress.Zlib},
	},
	FormatBzf2002: {
		Format:    FormatBzf2002,
		Magic:     magicOf("bzf2"),
		Version:   0x20021011,
		dataAlign: dataAlignment,
		header:    fullHeader{},
		record:    recordShape{copies: noCopies{}, name: inlineName{}, checksum: true},
		index:     flatIndex{},
		names:     inlineNames{},
		methods:   []compress.Method{compress.Store, compress.Zlib},
	},
	FormatBfs2004a: {
		Format:      FormatBfs2004a,
		Magic:       magicOf("bfs1"),
		Version:     0x20040505,
		BucketCount: DefaultBucketCount,
		dataAlign:   dataAlignment,
		header:      fullHeader{},
		record:      recordShape{copies: byteCopies{}, name: inlineName{}, checksum: true},
		index:       offsetTableIndex{entry: indexEntry{}},
		names:       inlineNames{},
		methods:     []compress.Method{compress.Store, compress.Zlib},
		namePrefix:  dataPrefix,
	},
	FormatBfs2004b: {
		Format:      FormatBfs2004b,
		Magic:       magicOf("bfs1"),
		Version:     0x20040505,
		BucketCount: DefaultBucketCount,
		dataAlign:   dataAlignment,
		header:      fullHeader{},
		record:      recordShape{copies: byteCopies{}, name: idName{}, checksum: true},
		index:       metadataIndex{entry: offsetEntry{}},
		names:       tableNames{},
		methods:     []compress.Method{compress.Store, compress.Zlib, compress.Zstd, compress.LZ4},
		namePrefix:  dataPrefix,
	},
	FormatBfs2007: {
		Format:      FormatBfs2007,
		Magic:       magicOf("bfs1"),
		Version:     0x20070310,
		BucketCount: DefaultBucketCount,
		dataAlign:   dataAlignment,
		header:      fullHeader{},
		record:      recordShape{copies: wordCopies{}, name: idName{}, checksum: true},
		index:       metadataIndex{entry: offsetEntry{}},
		names:       tableNames{},
		methods:     []compress.Method{compress.Store, compress.Zlib},
		namePrefix:  dataPrefix,
	},
}

// Lookup returns the descriptor of a revision.
func Lookup(f Format) (*Descriptor, error) {
	d, ok := descriptors[f]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, f)
	}

	return d, nil
}

// MaxCopies returns the largest extra copy count a record can store.
func (d *Descriptor) MaxCopies() int {
	return d.record.copies.max()
}

// HasChecksum reports whether records carry a checksum field.
func (d *Descriptor) HasChecksum() bool {
	return d.record.checksum
}

// SupportsMethod reports whether records can be tagged with method.
func (d *Descriptor) SupportsMethod(method compress.Method) bool {
	return slices.Contains(d.methods, method)
}

// Validate compares header constants with the descriptor.
// Every mismatching field is reported as its own *ValidationError.
func (d *Descriptor) Validate(h ArchiveHeader) error {
	var errs []error
	if h.Magic != d.Magic {
		errs = append(errs, &ValidationError{Field: FieldMagic, Expected: d.Magic, Actual: h.Magic})
	}
	if h.Version != d.Version {
		errs = append(errs, &ValidationError{Field: FieldVersion, Expected: d.Version, Actual: h.Version})
	}

	return errors.Join(errs...)
}

// validateBucketCount checks a stored bucket count against the descriptor.
func (d *Descriptor) validateBucketCount(count uint32) error {
	if count == d.BucketCount {
		return nil
	}

	return &ValidationError{Field: FieldBucketCount, Expected: d.BucketCount, Actual: count}
}

// methodFromFlags projects record flags to a storage method.
func (d *Descriptor) methodFromFlags(flags uint8) compress.Method {
	if flags&flagCompressed == 0 {
		return compress.Store
	}

	switch {
	case flags&flagZstd != 0 && d.SupportsMethod(compress.Zstd):
		return compress.Zstd
	case flags&flagLZ4 != 0 && d.SupportsMethod(compress.LZ4):
		return compress.LZ4
	default:
		return compress.Zlib
	}
}

// flagsFor returns record flags for a stored method.
func (d *Descriptor) flagsFor(method compress.Method) uint8 {
	var flags uint8
	if d.record.checksum {
		flags |= flagChecksum
	}

	switch method {
	case compress.Zlib:
		flags |= flagCompressed
	case compress.Zstd:
		flags |= flagCompressed | flagZstd
	case compress.LZ4:
		flags |= flagCompressed | flagLZ4
	}

	return flags
}

// project converts a raw record to the revision-independent view.
func (d *Descriptor) project(rec *fileRecord) ArchivedFileInfo {
	info := ArchivedFileInfo{
		Offset:         uint64(rec.dataOffset),
		Method:         d.methodFromFlags(rec.flags),
		Size:           uint64(rec.unpackedSize),
		CompressedSize: uint64(rec.packedSize),
		Copies:         uint64(len(rec.copyOffsets)),
	}
	if d.record.checksum && rec.flags&flagChecksum != 0 {
		info.HasChecksum = true
		info.Checksum = rec.crc
	}

	return info
}
