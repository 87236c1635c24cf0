// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/woozymasta/bfs/compress"
)

// extractWorkItem stores one selected entry with prepared output relative paths.
type extractWorkItem struct {
	entry   *Entry
	relPath string
	relDir  string
}

// Extract writes the named entries to dstDir. Nil names extracts every entry.
// A name stored by several records extracts the first one. Work is spread over
// MaxWorkers goroutines; the first failure cancels the rest and is returned.
func (r *Reader) Extract(ctx context.Context, names []string, dstDir string, opts ExtractOptions) error {
	if err := r.checkOpen(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	opts.applyDefaults()
	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	entries, err := r.selectEntries(names)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}

	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	workItems, err := prepareExtractWorkItems(entries)
	if err != nil {
		return err
	}

	if err := prepareExtractDirs(dstRootAbs, workItems); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, task := range workItems {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			return r.extractPreparedEntry(gctx, dstRootAbs, task, opts)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	return ctx.Err()
}

// selectEntries resolves names to first matching records, or every record for nil names.
func (r *Reader) selectEntries(names []string) ([]*Entry, error) {
	if names == nil {
		out := make([]*Entry, 0, len(r.entries))
		seenNames := make(map[string]struct{}, len(r.entries))
		for i := range r.entries {
			if _, dup := seenNames[r.entries[i].Name]; dup {
				continue
			}

			seenNames[r.entries[i].Name] = struct{}{}
			out = append(out, &r.entries[i])
		}

		return out, nil
	}

	out := make([]*Entry, 0, len(names))
	seen := make(map[*Entry]struct{}, len(names))
	for _, name := range names {
		entry := r.findEntryByName(name)
		if entry == nil {
			return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, name)
		}
		if _, dup := seen[entry]; dup {
			continue
		}

		seen[entry] = struct{}{}
		out = append(out, entry)
	}

	return out, nil
}

// prepareExtractWorkItems validates selected entries and prepares relative fs paths.
func prepareExtractWorkItems(entries []*Entry) ([]extractWorkItem, error) {
	workItems := make([]extractWorkItem, 0, len(entries))
	for _, entry := range entries {
		normalizedPath, err := normalizeExtractEntryPath(entry.Name)
		if err != nil {
			return nil, fmt.Errorf("normalize entry path %s: %w", entry.Name, err)
		}

		relPath := filepath.FromSlash(normalizedPath)
		relDir := filepath.Dir(relPath)
		if relDir == "." {
			relDir = ""
		}

		workItems = append(workItems, extractWorkItem{
			entry:   entry,
			relPath: relPath,
			relDir:  relDir,
		})
	}

	return workItems, nil
}

// prepareExtractDirs creates all unique parent directories needed by work items.
func prepareExtractDirs(dstRootAbs string, workItems []extractWorkItem) error {
	seen := make(map[string]struct{}, len(workItems))
	for _, task := range workItems {
		if task.relDir == "" {
			continue
		}

		dirPath := filepath.Join(dstRootAbs, task.relDir)
		if _, exists := seen[dirPath]; exists {
			continue
		}

		seen[dirPath] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}

// extractPreparedEntry reads, decodes, and writes one prepared work item.
func (r *Reader) extractPreparedEntry(ctx context.Context, dstRootAbs string, task extractWorkItem, opts ExtractOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := task.entry
	stored, err := r.readStored(entry)
	if err != nil {
		return err
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)
	file, err := openExtractFile(outPath, opts.FileMode)
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name, err)
	}

	var written int64
	if entry.Method == compress.Store {
		var n int
		n, err = file.Write(stored)
		written = int64(n)
	} else {
		written, err = compress.DecodeTo(file, entry.Method, bytes.NewReader(stored), int64(len(stored)))
	}

	closeErr := file.Close()
	if err != nil {
		return fmt.Errorf("write %s: %w", entry.Name, err)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", entry.Name, closeErr)
	}

	stats := ExtractStats{
		OutputPath:       outPath,
		Written:          written,
		SizeMismatch:     uint64(written) != entry.Size, //nolint:gosec // written is never negative
		ChecksumMismatch: entry.HasChecksum && jamCRC(stored) != entry.Checksum,
	}
	if stats.SizeMismatch {
		r.logger.Warn("decoded size differs from stored size",
			slog.String("name", entry.Name),
			slog.Int64("written", written),
			slog.Uint64("expected", entry.Size))
	}
	if stats.ChecksumMismatch {
		r.logger.Warn("checksum mismatch", slog.String("name", entry.Name))
	}

	if opts.OnFile != nil {
		opts.OnFile(entry.Name, entry.ArchivedFileInfo, stats)
	}

	return nil
}

// openExtractFile opens output path according to selected extract file mode.
func openExtractFile(path string, mode ExtractFileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeTruncate:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // path is confined to dstDir
	case ExtractFileModeCreateOnly:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) //nolint:gosec // see above
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// normalizeExtractEntryPath normalizes entry path and rejects absolute/traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" || strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(p string) bool {
	if len(p) < 2 {
		return false
	}

	b := p[0]
	return ((b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')) && p[1] == ':'
}
