// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

/*
Package bfs reads, extracts, builds, and edits BFS/BZF game archives
used by FlatOut-era titles. Five on-disk revisions are supported
(bzf2001, bzf2002, bfs2004a, bfs2004b, bfs2007); each is described by a
Descriptor composed from small header, index, record, and name strategies,
so one reader and one builder serve every revision.

Revisions at a glance:
  - bzf2001: fixed 40-byte names, no checksums, no hash table;
  - bzf2002: inline names with CRC, flat record list;
  - bfs2004a: 997-bucket hash table over a record offset table;
  - bfs2004b: hash table with absolute offsets and Huffman-coded name fragments;
  - bfs2007: as bfs2004b with 16-bit copy counts.

Payloads are stored raw or compressed (zlib on every revision, zstd and lz4
as bfs2004b extensions). Compression is kept only when it makes the payload
smaller. Checksums are JAMCRC over the stored bytes.

# Reading

Open an archive and read entries. FormatUnknown detects the revision:

	r, err := bfs.Open("fo2a.bfs", bfs.FormatUnknown)
	if err != nil {
	    return err
	}
	defer r.Close()
	for _, name := range r.FileNames() {
	    data, _ := r.ReadEntry(name)
	    _ = data
	}

Header mismatches are reported as *ValidationError and can be bypassed
with ReaderOptions.Force. Offsets that point outside the stream are always
reported as *StructuralError.

For filtered metadata listing:

	entries, err := bfs.ListFilesWithOptions("fo2a.bfs", bfs.ListOptions{
	    Prefix: "data/cars",
	    Rules:  []pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: "*.bgm"}},
	})

# Extracting

	err := r.Extract(ctx, nil, "out", bfs.ExtractOptions{MaxWorkers: 8})

Size and checksum mismatches do not stop extraction; they are reported
through ExtractOptions.OnFile and logged as warnings.

# Building

Build takes caller-provided streams. Policy callbacks decide compression
and extra copies per logical path:

	compress, _ := bfs.CompressRules(rules, pathrules.MatcherOptions{})
	inputs, _ := bfs.CollectInputs("src", nil)
	res, err := bfs.BuildFile(ctx, "out.bfs", inputs, bfs.BuildOptions{
	    Format:      bfs.FormatBfs2004b,
	    Level:       bfs.DefaultLevel,
	    Compress:    compress,
	    Deduplicate: true,
	})

Records are written in bucket-then-name order; identical payloads share
one stored copy when Deduplicate is set.

# Editing

Editor stages add, replace, and delete operations and applies them in one
rebuild. The previous archive is kept as "<path>.bak" until the rebuild
succeeds:

	e, _ := bfs.OpenEditor("fo2a.bfs", bfs.EditOptions{})
	_ = e.Replace(input)
	_ = e.DeleteDir("data/menu/old")
	_, err := e.Commit(ctx)
*/
package bfs
