// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package huffman

import (
	"container/heap"
	"fmt"
	"math/bits"
)

// node is one tree node during construction.
type node struct {
	one    *node
	zero   *node
	weight uint64
	seq    int
	symbol byte
	leaf   bool
}

// nodeQueue orders nodes by weight, then by creation order.
type nodeQueue []*node

func (q nodeQueue) Len() int { return len(q) }

func (q nodeQueue) Less(i, j int) bool {
	if q[i].weight != q[j].weight {
		return q[i].weight < q[j].weight
	}

	return q[i].seq < q[j].seq
}

func (q nodeQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *nodeQueue) Push(x any) { *q = append(*q, x.(*node)) } //nolint:forcetypeassert // queue holds only nodes

func (q *nodeQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	*q = old[:len(old)-1]
	return n
}

// code is the path key assigned to one symbol.
type code struct {
	key   uint32
	width uint8
	ok    bool
}

// Tree is a built code tree ready for encoding.
type Tree struct {
	entries []DictEntry
	codes   [256]code
}

// Build constructs a code tree from byte frequencies over fragments.
// Equal weights are merged in creation order so output is deterministic.
func Build(fragments [][]byte) (*Tree, error) {
	var freq [256]uint64
	for _, fragment := range fragments {
		for _, b := range fragment {
			freq[b]++
		}
	}

	queue := make(nodeQueue, 0, 256)
	seq := 0
	for symbol, weight := range freq {
		if weight == 0 {
			continue
		}

		queue = append(queue, &node{leaf: true, symbol: byte(symbol), weight: weight, seq: seq})
		seq++
	}

	tree := &Tree{}
	if len(queue) == 0 {
		return tree, nil
	}

	// A lone symbol still needs a one-bit code, so pair it with an unused byte.
	if len(queue) == 1 {
		filler := byte(0)
		if queue[0].symbol == filler {
			filler = 1
		}

		queue = append(queue, &node{leaf: true, symbol: filler, seq: seq})
		seq++
	}

	heap.Init(&queue)
	for queue.Len() > 1 {
		first := heap.Pop(&queue).(*node)  //nolint:forcetypeassert // queue holds only nodes
		second := heap.Pop(&queue).(*node) //nolint:forcetypeassert // queue holds only nodes
		heap.Push(&queue, &node{
			one:    first,
			zero:   second,
			weight: first.weight + second.weight,
			seq:    seq,
		})
		seq++
	}

	if err := tree.flatten(queue[0]); err != nil {
		return nil, err
	}

	return tree, nil
}

// flattenItem is a pending node with the branch slot that must point at it.
type flattenItem struct {
	node   *node
	key    uint32
	parent int
}

// flatten serializes the tree in pre-order and assigns symbol codes.
func (t *Tree) flatten(root *node) error {
	stack := []flattenItem{{node: root, key: 1, parent: -1}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		slot := len(t.entries)
		if slot >= MaxEntries {
			return fmt.Errorf("%w: more than %d dictionary entries", ErrTreeTooLarge, MaxEntries)
		}
		if item.parent >= 0 {
			t.entries[item.parent].Value = byte(slot)
		}

		if item.node.leaf {
			width := bits.Len32(item.key) - 1
			if width > 31 {
				return fmt.Errorf("%w: code for 0x%02x is longer than 31 bits", ErrTreeTooLarge, item.node.symbol)
			}

			t.entries = append(t.entries, DictEntry{Leaf: true, Value: item.node.symbol})
			t.codes[item.node.symbol] = code{key: item.key, width: uint8(width), ok: true} //nolint:gosec // width <= 31
			continue
		}

		if item.key >= keyLimit {
			return fmt.Errorf("%w: tree deeper than 31 levels", ErrTreeTooLarge)
		}

		t.entries = append(t.entries, DictEntry{})
		stack = append(stack,
			flattenItem{node: item.node.zero, key: item.key << 1, parent: slot},
			flattenItem{node: item.node.one, key: item.key<<1 | 1, parent: -1},
		)
	}

	return nil
}

// Entries returns a copy of the serialized dictionary.
func (t *Tree) Entries() []DictEntry {
	out := make([]DictEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Table returns the decode table of the tree.
func (t *Tree) Table() Table {
	table := make(Table, len(t.entries)/2+1)
	for symbol, c := range t.codes {
		if c.ok {
			table[c.key] = byte(symbol)
		}
	}

	return table
}

// Encode returns the packed code bits for src, padded to a whole byte.
func (t *Tree) Encode(src []byte) ([]byte, error) {
	total := 0
	for _, b := range src {
		c := t.codes[b]
		if !c.ok {
			return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownSymbol, b)
		}

		total += int(c.width)
	}

	out := make([]byte, (total+7)/8)
	pos := 0
	for _, b := range src {
		c := t.codes[b]
		for i := int(c.width) - 1; i >= 0; i-- {
			if c.key>>uint(i)&1 == 1 {
				out[pos/8] |= 1 << uint(pos%8)
			}
			pos++
		}
	}

	return out, nil
}
