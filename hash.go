// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

// DefaultBucketCount is the bucket count every hashed revision uses.
const DefaultBucketCount uint32 = 0x3E5

// HashName returns the unreduced 32-bit name hash.
// It samples at most 32 bytes, walking backward from the end of the name.
func HashName(name string) uint32 {
	n := len(name)
	acc := uint32(n) //nolint:gosec // names longer than 4 GiB are rejected long before hashing
	step := n>>5 + 1
	for i := n; i >= step; i -= step {
		acc ^= (acc << 5) + (acc >> 2) + uint32(name[i-1])
	}

	return acc
}

// Bucket returns the hash bucket of name for a table of bucketCount entries.
func Bucket(name string, bucketCount uint32) uint32 {
	if bucketCount == 0 {
		return 0
	}

	return HashName(name) % bucketCount
}
