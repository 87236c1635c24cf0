// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"fmt"
	"math"
	"slices"

	"github.com/woozymasta/bfs/internal/huffman"
)

// nameStrategy maps between records and logical names.
type nameStrategy interface {
	// resolve returns one logical name per parsed record.
	resolve(raw *rawArchive) ([]string, error)
	// assign stores names into records and returns the shared name table, if any.
	assign(records []fileRecord, names []string) (*huffman.NameTable, error)
}

// inlineNames keeps each name inside its record.
type inlineNames struct{}

func (inlineNames) resolve(raw *rawArchive) ([]string, error) {
	names := make([]string, len(raw.records))
	for i := range raw.records {
		names[i] = raw.records[i].name
	}

	return names, nil
}

func (inlineNames) assign(records []fileRecord, names []string) (*huffman.NameTable, error) {
	for i := range records {
		records[i].name = names[i]
	}

	return nil, nil
}

// tableNames stores names as folder and file ids into a Huffman-coded fragment table.
type tableNames struct{}

func (tableNames) resolve(raw *rawArchive) ([]string, error) {
	if raw.table == nil {
		return nil, structuralf("name table", 0, "missing name table")
	}

	fragments, err := raw.table.Decode()
	if err != nil {
		return nil, &StructuralError{Section: "name data", Err: err}
	}

	names := make([]string, len(raw.records))
	for i := range raw.records {
		rec := &raw.records[i]
		if int(rec.folderID) >= len(fragments) || int(rec.fileID) >= len(fragments) {
			return nil, structuralf("file headers", 0, "record %d references fragments %d/%d of %d",
				i, rec.folderID, rec.fileID, len(fragments))
		}

		names[i] = string(fragments[rec.folderID]) + "/" + string(fragments[rec.fileID])
	}

	return names, nil
}

func (tableNames) assign(records []fileRecord, names []string) (*huffman.NameTable, error) {
	seen := make(map[string]struct{}, 2*len(names))
	fragments := make([]string, 0, 2*len(names))
	for _, name := range names {
		folder, file := splitName(name)
		for _, frag := range [...]string{folder, file} {
			if _, ok := seen[frag]; ok {
				continue
			}

			seen[frag] = struct{}{}
			fragments = append(fragments, frag)
		}
	}

	if len(fragments) > math.MaxUint16+1 {
		return nil, fmt.Errorf("%w: %d unique name fragments, limit is %d", ErrSizeOverflow, len(fragments), math.MaxUint16+1)
	}

	slices.Sort(fragments)
	ids := make(map[string]uint16, len(fragments))
	for i, frag := range fragments {
		ids[frag] = uint16(i) //nolint:gosec // bounded above
	}

	for i, name := range names {
		folder, file := splitName(name)
		records[i].folderID = ids[folder]
		records[i].fileID = ids[file]
	}

	table, err := huffman.EncodeNames(fragments)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNameEncoding, err)
	}

	return table, nil
}
