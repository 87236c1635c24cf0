// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// CollectInputs turns files under sourceRoot into build inputs with paths
// relative to the root. Nil files walks the whole root in lexical order.
// Listed files may be absolute or relative to sourceRoot.
func CollectInputs(sourceRoot string, files []string) ([]Input, error) {
	rootAbs, err := filepath.Abs(sourceRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve source root: %w", err)
	}

	if files == nil {
		files, err = walkSourceFiles(rootAbs)
		if err != nil {
			return nil, err
		}
	}

	inputs := make([]Input, 0, len(files))
	for _, file := range files {
		abs := file
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(rootAbs, file)
		}

		rel, err := filepath.Rel(rootAbs, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, &NameError{Name: file, Reason: "outside source root " + sourceRoot}
		}

		info, err := os.Stat(abs)
		if err != nil {
			return nil, fmt.Errorf("stat input %s: %w", file, err)
		}
		if !info.Mode().IsRegular() {
			return nil, fmt.Errorf("input %s: not a regular file", file)
		}

		inputs = append(inputs, fileInput(abs, filepath.ToSlash(rel), info.Size()))
	}

	return inputs, nil
}

// walkSourceFiles lists regular files under root.
func walkSourceFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, p)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk source root: %w", err)
	}

	return files, nil
}

// fileInput is an Input backed by a file on disk.
func fileInput(abs, name string, size int64) Input {
	return Input{
		Path:     name,
		SizeHint: size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(abs) //nolint:gosec // path comes from the caller's source tree
		},
	}
}

// InputsFromReader exposes every readable entry of r as build inputs of decoded content.
// Synthesized names are skipped. Inputs stay valid until r is closed.
func InputsFromReader(r *Reader) []Input {
	if r == nil {
		return nil
	}

	inputs := make([]Input, 0, len(r.entries))
	seen := make(map[string]struct{}, len(r.entries))
	for i := range r.entries {
		entry := &r.entries[i]
		if entry.Synthesized {
			continue
		}
		if _, dup := seen[entry.Name]; dup {
			continue
		}

		seen[entry.Name] = struct{}{}
		inputs = append(inputs, r.entryInput(entry))
	}

	return inputs
}
