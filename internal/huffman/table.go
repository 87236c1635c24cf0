// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package huffman

import (
	"fmt"
	"math"
)

// NameTable is the complete on-disk name table of one archive.
type NameTable struct {
	// Offsets holds the byte offset of each fragment inside Data.
	Offsets []uint32
	// Lengths holds the decoded byte length of each fragment.
	Lengths []uint16
	// Dict is the serialized code tree.
	Dict []DictEntry
	// Data is the concatenated, byte-aligned fragment bits.
	Data []byte
}

// EncodeNames builds a code tree over fragments and encodes each of them in order.
func EncodeNames(fragments []string) (*NameTable, error) {
	raw := make([][]byte, len(fragments))
	for i, fragment := range fragments {
		if len(fragment) > math.MaxUint16 {
			return nil, fmt.Errorf("%w: fragment %d is %d bytes long", ErrTreeTooLarge, i, len(fragment))
		}

		raw[i] = []byte(fragment)
	}

	tree, err := Build(raw)
	if err != nil {
		return nil, err
	}

	table := &NameTable{
		Offsets: make([]uint32, 0, len(raw)),
		Lengths: make([]uint16, 0, len(raw)),
		Dict:    tree.Entries(),
	}
	for _, fragment := range raw {
		encoded, err := tree.Encode(fragment)
		if err != nil {
			return nil, err
		}
		if uint64(len(table.Data)) > math.MaxUint32 {
			return nil, fmt.Errorf("%w: encoded names exceed 4 GiB", ErrTreeTooLarge)
		}

		table.Offsets = append(table.Offsets, uint32(len(table.Data))) //nolint:gosec // bounded above
		table.Lengths = append(table.Lengths, uint16(len(fragment)))   //nolint:gosec // bounded above
		table.Data = append(table.Data, encoded...)
	}

	return table, nil
}

// Decode returns every fragment of the table in index order.
func (t *NameTable) Decode() ([][]byte, error) {
	if len(t.Offsets) != len(t.Lengths) {
		return nil, fmt.Errorf("%w: %d offsets but %d lengths", ErrMalformedDict, len(t.Offsets), len(t.Lengths))
	}

	lookup, err := Deserialize(t.Dict)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(t.Offsets))
	for i, start := range t.Offsets {
		end := uint32(len(t.Data)) //nolint:gosec // slice length fits uint32 for parsed tables
		if i+1 < len(t.Offsets) {
			end = t.Offsets[i+1]
		}
		if start > end || end > uint32(len(t.Data)) { //nolint:gosec // see above
			return nil, fmt.Errorf("%w: fragment %d range [%d, %d) outside %d data bytes",
				ErrTruncated, i, start, end, len(t.Data))
		}

		fragment, err := Decode(t.Data[start:end], lookup, int(t.Lengths[i]))
		if err != nil {
			return nil, fmt.Errorf("fragment %d: %w", i, err)
		}

		out[i] = fragment
	}

	return out, nil
}
