// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"math"
	"slices"

	"github.com/woozymasta/bfs/internal/huffman"
)

// metadataHeaderSize is the size of the five-offset metadata sub-header.
const metadataHeaderSize = 20

// rawArchive is the result of one parse pass before names are resolved.
type rawArchive struct {
	table   *huffman.NameTable
	records []fileRecord
	buckets []bucketEntry
	header  ArchiveHeader
}

// indexPlan is the fully resolved index of an archive being built.
type indexPlan struct {
	table         *huffman.NameTable
	records       []fileRecord
	recordOffsets []uint32
	recordBuckets []uint32
	header        ArchiveHeader
}

// indexLayout reads and writes everything between the archive header and the payload region.
type indexLayout interface {
	// parse decodes the index that follows the header already stored in raw.
	parse(fr *fieldReader, d *Descriptor, raw *rawArchive, force bool) error
	// prefixSize is the byte size of everything that precedes the first file record.
	prefixSize(d *Descriptor, fileCount int, table *huffman.NameTable) int
	// maxFiles is the largest file count the layout can address.
	maxFiles() int
	// encode writes the header and full index for plan.
	encode(fw *fieldWriter, d *Descriptor, plan *indexPlan)
}

// readRecords decodes count sequential records at the cursor.
func readRecords(fr *fieldReader, d *Descriptor, count uint32) []fileRecord {
	fr.section = "file headers"
	if !fr.need(uint64(count), d.record.minSize()) {
		return nil
	}

	records := make([]fileRecord, 0, count)
	for range count {
		rec := d.record.read(fr)
		if fr.err != nil {
			return nil
		}

		records = append(records, rec)
	}

	return records
}

// readBuckets reads and validates the bucket count and the bucket table.
func readBuckets(fr *fieldReader, d *Descriptor, entry hashEntryShape, force bool) ([]bucketEntry, error) {
	fr.section = "hash table"
	count := fr.u32()
	if fr.err != nil {
		return nil, fr.err
	}
	if !force {
		if err := d.validateBucketCount(count); err != nil {
			return nil, err
		}
	}
	if !fr.need(uint64(count), entry.size()) {
		return nil, fr.err
	}

	buckets := make([]bucketEntry, count)
	for i := range buckets {
		buckets[i] = entry.read(fr)
	}

	return buckets, fr.err
}

// checkBucketTotals verifies bucket counts add up to the file count.
func checkBucketTotals(buckets []bucketEntry, fileCount uint32, offset int64) error {
	var total uint64
	for _, b := range buckets {
		total += uint64(b.count)
	}

	if total != uint64(fileCount) {
		return structuralf("hash table", offset, "bucket counts sum to %d, header declares %d files", total, fileCount)
	}

	return nil
}

// bucketEntries groups consecutive plan records into bucket entries.
// start selects what a non-empty bucket stores as its start field.
func bucketEntries(d *Descriptor, plan *indexPlan, start func(i int) uint32) []bucketEntry {
	entries := make([]bucketEntry, d.BucketCount)
	for i, b := range plan.recordBuckets {
		if entries[b].count == 0 {
			entries[b].start = start(i)
		}
		entries[b].count++
	}

	return entries
}

// flatIndex is a header directly followed by the file records.
type flatIndex struct{}

func (flatIndex) parse(fr *fieldReader, d *Descriptor, raw *rawArchive, _ bool) error {
	raw.records = readRecords(fr, d, raw.header.FileCount)
	return fr.err
}

func (flatIndex) prefixSize(d *Descriptor, _ int, _ *huffman.NameTable) int {
	return d.header.size()
}

func (flatIndex) maxFiles() int { return math.MaxUint32 }

func (flatIndex) encode(fw *fieldWriter, d *Descriptor, plan *indexPlan) {
	d.header.write(fw, plan.header)
	for i := range plan.records {
		d.record.write(fw, &plan.records[i])
	}
}

// offsetTableIndex is a header, a table of absolute record offsets, the bucket
// table with record-index starts, then the records with inline names.
type offsetTableIndex struct {
	entry hashEntryShape
}

func (l offsetTableIndex) parse(fr *fieldReader, d *Descriptor, raw *rawArchive, force bool) error {
	count := raw.header.FileCount

	fr.section = "file header offsets"
	if !fr.need(uint64(count), 4) {
		return fr.err
	}

	offsets := make([]uint32, count)
	for i := range offsets {
		offsets[i] = fr.u32()
	}

	buckets, err := readBuckets(fr, d, l.entry, force)
	if err != nil {
		return err
	}
	raw.buckets = buckets

	if !force {
		if err := checkBucketTotals(buckets, count, fr.off); err != nil {
			return err
		}
		for i, b := range buckets {
			if b.count > 0 && uint64(b.start)+uint64(b.count) > uint64(count) {
				return structuralf("hash table", fr.off, "bucket %d spans records [%d, %d) of %d", i, b.start, b.start+b.count, count)
			}
		}
	}

	if !fr.need(uint64(count), d.record.minSize()) {
		return fr.err
	}

	raw.records = make([]fileRecord, 0, count)
	for _, off := range offsets {
		if int64(off) != fr.off {
			fr.seek("file headers", int64(off))
		}

		fr.section = "file headers"
		rec := d.record.read(fr)
		if fr.err != nil {
			return fr.err
		}

		raw.records = append(raw.records, rec)
	}

	return nil
}

func (l offsetTableIndex) prefixSize(d *Descriptor, fileCount int, _ *huffman.NameTable) int {
	return d.header.size() + 4*fileCount + 4 + int(d.BucketCount)*l.entry.size()
}

func (offsetTableIndex) maxFiles() int { return math.MaxUint16 }

func (l offsetTableIndex) encode(fw *fieldWriter, d *Descriptor, plan *indexPlan) {
	d.header.write(fw, plan.header)
	for _, off := range plan.recordOffsets {
		fw.u32(off)
	}

	fw.u32(d.BucketCount)
	for _, e := range bucketEntries(d, plan, func(i int) uint32 { return uint32(i) }) { //nolint:gosec // bounded by maxFiles
		l.entry.write(fw, e)
	}

	for i := range plan.records {
		d.record.write(fw, &plan.records[i])
	}
}

// metadataHeader holds region offsets relative to the metadata base.
type metadataHeader struct {
	fileHeaders uint32
	nameOffsets uint32
	nameLengths uint32
	dict        uint32
	data        uint32
}

// metadataIndex is a header, the bucket table with absolute offsets, the
// metadata sub-header, the shared name table, then the records.
type metadataIndex struct {
	entry hashEntryShape
}

// base is the absolute offset the metadata sub-header offsets are relative to.
func (l metadataIndex) base(d *Descriptor, bucketCount uint32) int64 {
	return int64(d.header.size()) + 4 + int64(bucketCount)*int64(l.entry.size())
}

// regionEnd returns the nearest boundary strictly after start, or start when none.
// It sizes regions whose stored offsets are out of on-disk order.
func regionEnd(start int64, boundaries []int64) int64 {
	for _, b := range boundaries {
		if b > start {
			return b
		}
	}

	return start
}

func (l metadataIndex) parse(fr *fieldReader, d *Descriptor, raw *rawArchive, force bool) error {
	buckets, err := readBuckets(fr, d, l.entry, force)
	if err != nil {
		return err
	}
	raw.buckets = buckets

	if !force {
		if err := checkBucketTotals(buckets, raw.header.FileCount, fr.off); err != nil {
			return err
		}
	}

	base := l.base(d, uint32(len(buckets))) //nolint:gosec // count was read as uint32
	fr.seek("metadata header", base)
	meta := metadataHeader{
		fileHeaders: fr.u32(),
		nameOffsets: fr.u32(),
		nameLengths: fr.u32(),
		dict:        fr.u32(),
		data:        fr.u32(),
	}
	if fr.err != nil {
		return fr.err
	}

	abs := func(rel uint32) int64 { return base + int64(rel) }
	order := []int64{
		abs(meta.nameOffsets),
		abs(meta.nameLengths),
		abs(meta.dict),
		abs(meta.data),
		abs(meta.fileHeaders),
		int64(raw.header.HeaderEnd),
	}
	boundaries := slices.Sorted(slices.Values(order))
	// span sizes region i of order from the start of region i+1.
	span := func(i int) int64 {
		start := order[i]
		if order[i+1] >= start {
			return order[i+1] - start
		}

		return regionEnd(start, boundaries) - start
	}

	offsetCount := span(0) / 4
	lengthCount := span(1) / 2
	fragments := min(offsetCount, lengthCount)

	table := &huffman.NameTable{
		Offsets: make([]uint32, 0, max(fragments, 0)),
		Lengths: make([]uint16, 0, max(fragments, 0)),
	}

	fr.seek("name offset table", abs(meta.nameOffsets))
	if !fr.need(uint64(max(fragments, 0)), 4) { //nolint:gosec // clamped to non-negative
		return fr.err
	}
	for range fragments {
		table.Offsets = append(table.Offsets, fr.u32())
	}

	fr.seek("name length table", abs(meta.nameLengths))
	if !fr.need(uint64(max(fragments, 0)), 2) { //nolint:gosec // clamped to non-negative
		return fr.err
	}
	for range fragments {
		table.Lengths = append(table.Lengths, fr.u16())
	}

	fr.seek("name dictionary", abs(meta.dict))
	dictBytes := fr.bytes(int(span(2) / 2 * 2))
	if fr.err != nil {
		return fr.err
	}
	table.Dict, err = huffman.ParseDict(dictBytes)
	if err != nil {
		return &StructuralError{Section: "name dictionary", Offset: abs(meta.dict), Err: err}
	}

	fr.seek("name data", abs(meta.data))
	table.Data = fr.bytes(int(span(3)))
	if fr.err != nil {
		return fr.err
	}
	raw.table = table

	fr.seek("file headers", abs(meta.fileHeaders))
	raw.records = readRecords(fr, d, raw.header.FileCount)
	if fr.err != nil {
		return fr.err
	}

	if !force {
		first := abs(meta.fileHeaders)
		last := fr.off
		for i, b := range buckets {
			if b.count > 0 && (int64(b.start) < first || int64(b.start) >= last) {
				return structuralf("hash table", l.base(d, 0), "bucket %d points at 0x%x outside file headers [0x%x, 0x%x)", i, b.start, first, last)
			}
		}
	}

	return nil
}

func (l metadataIndex) prefixSize(d *Descriptor, _ int, table *huffman.NameTable) int {
	n := int(l.base(d, d.BucketCount)) + metadataHeaderSize
	if table != nil {
		n += 4*len(table.Offsets) + 2*len(table.Lengths) + huffman.EntrySize*len(table.Dict) + len(table.Data)
	}

	return n
}

func (metadataIndex) maxFiles() int { return math.MaxUint32 }

func (l metadataIndex) encode(fw *fieldWriter, d *Descriptor, plan *indexPlan) {
	d.header.write(fw, plan.header)

	fw.u32(d.BucketCount)
	for _, e := range bucketEntries(d, plan, func(i int) uint32 { return plan.recordOffsets[i] }) {
		l.entry.write(fw, e)
	}

	table := plan.table
	if table == nil {
		table = &huffman.NameTable{}
	}

	var meta metadataHeader
	meta.nameOffsets = metadataHeaderSize
	meta.nameLengths = meta.nameOffsets + uint32(4*len(table.Offsets)) //nolint:gosec // bounded by header size
	meta.dict = meta.nameLengths + uint32(2*len(table.Lengths))        //nolint:gosec // see above
	meta.data = meta.dict + uint32(huffman.EntrySize*len(table.Dict))  //nolint:gosec // see above
	meta.fileHeaders = meta.data + uint32(len(table.Data))             //nolint:gosec // see above

	fw.u32(meta.fileHeaders)
	fw.u32(meta.nameOffsets)
	fw.u32(meta.nameLengths)
	fw.u32(meta.dict)
	fw.u32(meta.data)

	for _, off := range table.Offsets {
		fw.u32(off)
	}
	for _, n := range table.Lengths {
		fw.u16(n)
	}
	fw.bytes(huffman.EncodeDict(table.Dict))
	fw.bytes(table.Data)

	for i := range plan.records {
		d.record.write(fw, &plan.records[i])
	}
}
