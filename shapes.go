// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bytes"
	"math"
)

// fileRecord is one decoded file header.
type fileRecord struct {
	name         string
	copyOffsets  []uint32
	dataOffset   uint32
	unpackedSize uint32
	packedSize   uint32
	crc          uint32
	folderID     uint16
	fileID       uint16
	flags        uint8
}

// headerShape reads and writes the archive header block.
type headerShape interface {
	size() int
	read(fr *fieldReader) ArchiveHeader
	write(fw *fieldWriter, h ArchiveHeader)
}

// shortHeader is magic, version, file count.
type shortHeader struct{}

func (shortHeader) size() int { return 12 }

func (shortHeader) read(fr *fieldReader) ArchiveHeader {
	return ArchiveHeader{Magic: fr.u32(), Version: fr.u32(), FileCount: fr.u32()}
}

func (shortHeader) write(fw *fieldWriter, h ArchiveHeader) {
	fw.u32(h.Magic)
	fw.u32(h.Version)
	fw.u32(h.FileCount)
}

// fullHeader is magic, version, header end, file count.
type fullHeader struct{}

func (fullHeader) size() int { return 16 }

func (fullHeader) read(fr *fieldReader) ArchiveHeader {
	return ArchiveHeader{Magic: fr.u32(), Version: fr.u32(), HeaderEnd: fr.u32(), FileCount: fr.u32()}
}

func (fullHeader) write(fw *fieldWriter, h ArchiveHeader) {
	fw.u32(h.Magic)
	fw.u32(h.Version)
	fw.u32(h.HeaderEnd)
	fw.u32(h.FileCount)
}

// bucketEntry is one hash bucket: a start (record index or absolute offset) and a count.
type bucketEntry struct {
	start uint32
	count uint32
}

// hashEntryShape reads and writes one bucket entry.
type hashEntryShape interface {
	size() int
	read(fr *fieldReader) bucketEntry
	write(fw *fieldWriter, e bucketEntry)
}

// indexEntry stores a 16-bit record index and a 16-bit count.
type indexEntry struct{}

func (indexEntry) size() int { return 4 }

func (indexEntry) read(fr *fieldReader) bucketEntry {
	return bucketEntry{start: uint32(fr.u16()), count: uint32(fr.u16())}
}

func (indexEntry) write(fw *fieldWriter, e bucketEntry) {
	fw.u16(uint16(e.start)) //nolint:gosec // builder rejects more than 65535 files for this shape
	fw.u16(uint16(e.count)) //nolint:gosec // see above
}

// offsetEntry stores an absolute record offset and a 32-bit count.
type offsetEntry struct{}

func (offsetEntry) size() int { return 8 }

func (offsetEntry) read(fr *fieldReader) bucketEntry {
	return bucketEntry{start: fr.u32(), count: fr.u32()}
}

func (offsetEntry) write(fw *fieldWriter, e bucketEntry) {
	fw.u32(e.start)
	fw.u32(e.count)
}

// copyField is the copy-count field that follows the flags byte.
type copyField interface {
	size() int
	max() int
	read(fr *fieldReader) int
	write(fw *fieldWriter, n int)
}

// noCopies is used by revisions without copy support.
type noCopies struct{}

func (noCopies) size() int               { return 0 }
func (noCopies) max() int                { return 0 }
func (noCopies) read(*fieldReader) int   { return 0 }
func (noCopies) write(*fieldWriter, int) {}

// byteCopies is a u8 count followed by two padding bytes.
type byteCopies struct{}

func (byteCopies) size() int { return 3 }
func (byteCopies) max() int  { return math.MaxUint8 }

func (byteCopies) read(fr *fieldReader) int {
	n := fr.u8()
	fr.skip(2)
	return int(n)
}

func (byteCopies) write(fw *fieldWriter, n int) {
	fw.u8(uint8(n)) //nolint:gosec // bounded by max
	fw.zeros(2)
}

// wordCopies is one padding byte followed by a u16 count.
type wordCopies struct{}

func (wordCopies) size() int { return 3 }
func (wordCopies) max() int  { return math.MaxUint16 }

func (wordCopies) read(fr *fieldReader) int {
	fr.skip(1)
	return int(fr.u16())
}

func (wordCopies) write(fw *fieldWriter, n int) {
	fw.zeros(1)
	fw.u16(uint16(n)) //nolint:gosec // bounded by max
}

// nameField is how a record refers to its name.
type nameField interface {
	size(rec *fileRecord) int
	read(fr *fieldReader, rec *fileRecord)
	write(fw *fieldWriter, rec *fileRecord)
	// limit is the longest storable name in bytes.
	limit() int
}

// fixedName is a NUL-padded name of constant width.
type fixedName struct {
	width int
}

func (n fixedName) size(*fileRecord) int { return n.width }
func (n fixedName) limit() int           { return n.width }

func (n fixedName) read(fr *fieldReader, rec *fileRecord) {
	raw := fr.bytes(n.width)
	rec.name = string(bytes.TrimRight(raw, "\x00"))
}

func (n fixedName) write(fw *fieldWriter, rec *fileRecord) {
	fw.bytes([]byte(rec.name))
	fw.zeros(n.width - len(rec.name))
}

// inlineName is a u16 length followed by the name bytes.
type inlineName struct{}

func (inlineName) size(rec *fileRecord) int { return 2 + len(rec.name) }
func (inlineName) limit() int               { return maxInlineName }

func (inlineName) read(fr *fieldReader, rec *fileRecord) {
	rec.name = string(fr.bytes(int(fr.u16())))
}

func (inlineName) write(fw *fieldWriter, rec *fileRecord) {
	fw.u16(uint16(len(rec.name))) //nolint:gosec // bounded by limit
	fw.bytes([]byte(rec.name))
}

// idName is a folder fragment index followed by a file fragment index.
type idName struct{}

func (idName) size(*fileRecord) int { return 4 }
func (idName) limit() int           { return maxInlineName }

func (idName) read(fr *fieldReader, rec *fileRecord) {
	rec.folderID = fr.u16()
	rec.fileID = fr.u16()
}

func (idName) write(fw *fieldWriter, rec *fileRecord) {
	fw.u16(rec.folderID)
	fw.u16(rec.fileID)
}

// recordShape composes the file header of one revision:
// flags, copy field, offset, sizes, optional checksum, name field, copy offsets.
type recordShape struct {
	copies   copyField
	name     nameField
	checksum bool
}

// size returns the encoded size of rec.
func (s recordShape) size(rec *fileRecord) int {
	n := 1 + s.copies.size() + 12 + s.name.size(rec) + 4*len(rec.copyOffsets)
	if s.checksum {
		n += 4
	}

	return n
}

// minSize is the smallest possible encoded record.
func (s recordShape) minSize() int {
	return s.size(&fileRecord{})
}

// read decodes one record at the cursor.
func (s recordShape) read(fr *fieldReader) fileRecord {
	var rec fileRecord
	rec.flags = fr.u8()
	copies := s.copies.read(fr)
	rec.dataOffset = fr.u32()
	rec.unpackedSize = fr.u32()
	rec.packedSize = fr.u32()
	if s.checksum {
		rec.crc = fr.u32()
	}
	s.name.read(fr, &rec)

	if copies > 0 && fr.need(uint64(copies), 4) {
		rec.copyOffsets = make([]uint32, copies)
		for i := range rec.copyOffsets {
			rec.copyOffsets[i] = fr.u32()
		}
	}

	return rec
}

// write encodes rec.
func (s recordShape) write(fw *fieldWriter, rec *fileRecord) {
	fw.u8(rec.flags)
	s.copies.write(fw, len(rec.copyOffsets))
	fw.u32(rec.dataOffset)
	fw.u32(rec.unpackedSize)
	fw.u32(rec.packedSize)
	if s.checksum {
		fw.u32(rec.crc)
	}
	s.name.write(fw, rec)

	for _, off := range rec.copyOffsets {
		fw.u32(off)
	}
}
