// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package compress

import (
	"fmt"
	"strings"
)

// Method identifies how a record payload is stored.
type Method uint8

// Supported storage methods.
const (
	// Store keeps payload bytes as-is.
	Store Method = iota
	// Zlib is deflate with zlib framing, the only official method.
	Zlib
	// Zstd is a Zstandard frame (unofficial extension).
	Zstd
	// LZ4 is an LZ4 frame (unofficial extension).
	LZ4
)

// methodNames maps methods to their stable text form.
var methodNames = [...]string{
	Store: "store",
	Zlib:  "zlib",
	Zstd:  "zstd",
	LZ4:   "lz4",
}

// String returns the stable text name of the method.
func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}

	return fmt.Sprintf("method(%d)", uint8(m))
}

// Valid reports whether m belongs to the closed method set.
func (m Method) Valid() bool {
	return int(m) < len(methodNames)
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, uint8(m))
	}

	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}

	*m = parsed
	return nil
}

// ParseMethod parses a method name. "none" and "deflate" are accepted aliases.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "store", "none", "":
		return Store, nil
	case "zlib", "deflate":
		return Zlib, nil
	case "zstd", "zstandard":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return Store, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
}
