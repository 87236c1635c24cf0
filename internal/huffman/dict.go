// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

// Package huffman implements the bit-level name codec used by archive name tables.
//
// A dictionary is stored as a pre-order array of two-byte entries. A branch
// keeps its bit-1 child in the next slot and stores the slot of its bit-0
// child explicitly. A leaf stores the decoded byte. Codes are addressed by a
// path key that starts at 1 and shifts one bit in per tree level.
package huffman

import (
	"errors"
	"fmt"
)

// Dictionary entry layout.
const (
	// EntrySize is the on-disk size of one dictionary entry.
	EntrySize = 2
	// MaxEntries is the largest dictionary addressable by a one-byte child index.
	MaxEntries = 256

	nodeBranch byte = 0x00
	nodeLeaf   byte = 0x80
)

var (
	// ErrMalformedDict means the dictionary bytes do not describe a tree.
	ErrMalformedDict = errors.New("malformed huffman dictionary")
	// ErrTruncated means encoded bits ran out before the expected length was decoded.
	ErrTruncated = errors.New("huffman data truncated")
	// ErrUnknownSymbol means a byte has no code in the tree.
	ErrUnknownSymbol = errors.New("symbol not present in huffman tree")
	// ErrTreeTooLarge means the tree does not fit the on-disk limits.
	ErrTreeTooLarge = errors.New("huffman tree exceeds format limits")
)

// DictEntry is one serialized tree node.
type DictEntry struct {
	// Leaf marks a node that decodes to Value.
	Leaf bool
	// Value is the decoded byte for leaves and the bit-0 child slot for branches.
	Value byte
}

// ParseDict decodes serialized dictionary bytes.
func ParseDict(raw []byte) ([]DictEntry, error) {
	if len(raw)%EntrySize != 0 {
		return nil, fmt.Errorf("%w: odd length %d", ErrMalformedDict, len(raw))
	}

	entries := make([]DictEntry, 0, len(raw)/EntrySize)
	for i := 0; i < len(raw); i += EntrySize {
		switch raw[i] {
		case nodeBranch:
			entries = append(entries, DictEntry{Value: raw[i+1]})
		case nodeLeaf:
			entries = append(entries, DictEntry{Leaf: true, Value: raw[i+1]})
		default:
			return nil, fmt.Errorf("%w: node type 0x%02x at entry %d", ErrMalformedDict, raw[i], i/EntrySize)
		}
	}

	return entries, nil
}

// EncodeDict serializes dictionary entries.
func EncodeDict(entries []DictEntry) []byte {
	out := make([]byte, 0, len(entries)*EntrySize)
	for _, e := range entries {
		kind := nodeBranch
		if e.Leaf {
			kind = nodeLeaf
		}

		out = append(out, kind, e.Value)
	}

	return out
}

// Table maps path keys to decoded bytes.
type Table map[uint32]byte

// keyLimit is the largest key that can still take one more bit.
const keyLimit = 1 << 31

// dictItem is a pending (key, slot) pair.
type dictItem struct {
	key  uint32
	slot int
}

// Deserialize walks the flattened tree and returns its key table.
func Deserialize(entries []DictEntry) (Table, error) {
	table := make(Table, len(entries)/2+1)
	if len(entries) == 0 {
		return table, nil
	}

	visited := make([]bool, len(entries))
	stack := []dictItem{{key: 1, slot: 0}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.slot >= len(entries) {
			return nil, fmt.Errorf("%w: child slot %d out of range", ErrMalformedDict, item.slot)
		}
		if visited[item.slot] {
			return nil, fmt.Errorf("%w: slot %d referenced twice", ErrMalformedDict, item.slot)
		}
		visited[item.slot] = true

		entry := entries[item.slot]
		if entry.Leaf {
			table[item.key] = entry.Value
			continue
		}

		if item.key >= keyLimit {
			return nil, fmt.Errorf("%w: tree deeper than 31 levels", ErrMalformedDict)
		}

		stack = append(stack,
			dictItem{key: item.key<<1 | 1, slot: item.slot + 1},
			dictItem{key: item.key << 1, slot: int(entry.Value)},
		)
	}

	return table, nil
}

// Decode reads bits least-significant first from data and returns length decoded bytes.
// Bits left over after the last symbol are padding.
func Decode(data []byte, table Table, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	if length == 0 {
		return out, nil
	}

	pattern := uint32(1)
	for _, b := range data {
		for bit := range 8 {
			pattern = pattern<<1 | uint32(b>>bit)&1
			if decoded, ok := table[pattern]; ok {
				out = append(out, decoded)
				if len(out) == length {
					return out, nil
				}

				pattern = 1
				continue
			}

			if pattern >= keyLimit {
				return nil, fmt.Errorf("%w: no code matches after 31 bits", ErrMalformedDict)
			}
		}
	}

	return nil, fmt.Errorf("%w: decoded %d of %d bytes", ErrTruncated, len(out), length)
}
