// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

/*
Package compress is the codec layer used by archive readers and builders.

Archives tag every stored record with one method from a closed set. The
official revisions only ever use zlib; zstd and lz4 are an unofficial
extension recognized by some community tools for the bfs2004b layout.

	data, err := compress.Encode(compress.Zlib, raw, 9)
	if err != nil {
	    return err
	}
	back, err := compress.Decode(compress.Zlib, bytes.NewReader(data), int64(len(data)))
*/
package compress
