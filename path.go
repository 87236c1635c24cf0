// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"fmt"
	"path"
	"strings"
)

// NormalizePath converts a source or archive path to normalized slash-separated form.
// It trims spaces, accepts both "/" and "\", removes leading "./" and "/", and cleans "." segments.
func NormalizePath(raw string) string {
	raw = normalizePathForMatching(raw)
	raw = strings.TrimPrefix(raw, "/")
	raw = path.Clean("/" + raw)
	raw = strings.TrimPrefix(raw, "/")
	if raw == "." {
		return ""
	}

	return strings.TrimSuffix(raw, "/")
}

// normalizePathForMatching normalizes user/input paths for matcher use.
func normalizePathForMatching(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, `\`, `/`)
	p = strings.TrimPrefix(p, "./")
	return p
}

// isPrintableASCII reports whether s consists of bytes in 0x20..0x7E only.
func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}

	return true
}

// splitName splits a logical name at its last "/" into folder and file fragments.
// A name without a separator has an empty folder.
func splitName(name string) (folder, file string) {
	idx := strings.LastIndexByte(name, '/')
	if idx < 0 {
		return "", name
	}

	return name[:idx], name[idx+1:]
}

// ArchiveName returns the logical name raw is stored under in format f:
// normalized, prefixed with "data/" for the bfs revisions, and validated.
func ArchiveName(f Format, raw string) (string, error) {
	d, err := Lookup(f)
	if err != nil {
		return "", err
	}

	return d.archiveName(raw)
}

// archiveName normalizes and validates one logical name for this revision.
func (d *Descriptor) archiveName(raw string) (string, error) {
	name := NormalizePath(raw)
	if name == "" {
		return "", &NameError{Name: raw, Reason: "empty path"}
	}

	if !isPrintableASCII(name) {
		return "", &NameError{Name: raw, Reason: "only printable ASCII is storable"}
	}

	if prefix := d.namePrefix; prefix != "" {
		if len(name) >= len(prefix) && strings.EqualFold(name[:len(prefix)], prefix) {
			name = prefix + name[len(prefix):]
		} else {
			name = prefix + name
		}
	}

	if limit := d.record.name.limit(); len(name) > limit {
		return "", &NameError{Name: name, Reason: fmt.Sprintf("length %d exceeds %d bytes", len(name), limit)}
	}

	return name, nil
}

// synthesizedName is the placeholder for a record whose name cannot be shown.
func synthesizedName(dataOffset uint32) string {
	return fmt.Sprintf(synthNameFormat, dataOffset)
}
