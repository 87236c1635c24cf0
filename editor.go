// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/woozymasta/bfs/compress"
)

// Editor accumulates archive edit operations and applies them on Commit
// by rebuilding the archive from its decoded contents.
type Editor struct {
	path string
	ops  []editOperation
	opts EditOptions
}

// editOperation stores one staged editor operation.
type editOperation struct {
	inputs []Input
	paths  []string
	kind   editOperationKind
}

// editOperationKind identifies staged edit action type.
type editOperationKind uint8

const (
	// editOperationAdd appends new entries and fails on existing path.
	editOperationAdd editOperationKind = iota + 1
	// editOperationReplace rewrites existing entries.
	editOperationReplace
	// editOperationDelete removes exact paths.
	editOperationDelete
	// editOperationDeleteDir removes entries by directory prefix.
	editOperationDeleteDir
)

// editItem is one file of the edited archive: either a new input or a source record.
type editItem struct {
	input  *Input
	source *Entry
	path   string
}

// OpenEditor creates a staged editor for an archive file.
func OpenEditor(path string, opts EditOptions) (*Editor, error) {
	trimmedPath := strings.TrimSpace(path)
	if trimmedPath == "" {
		return nil, &NameError{Name: path, Reason: "empty archive path"}
	}

	opts.applyDefaults()

	return &Editor{
		path: trimmedPath,
		opts: opts,
		ops:  make([]editOperation, 0, 8),
	}, nil
}

// Add schedules adding new entries and fails on path collision during commit.
func (e *Editor) Add(inputs ...Input) error {
	return e.stageInputs(editOperationAdd, inputs)
}

// Replace schedules replacing existing entries.
func (e *Editor) Replace(inputs ...Input) error {
	return e.stageInputs(editOperationReplace, inputs)
}

// Delete schedules exact-path removal.
func (e *Editor) Delete(paths ...string) error {
	return e.stagePaths(editOperationDelete, paths)
}

// DeleteDir schedules directory-prefix removal.
func (e *Editor) DeleteDir(prefixes ...string) error {
	return e.stagePaths(editOperationDeleteDir, prefixes)
}

// stageInputs validates inputs and appends one operation.
func (e *Editor) stageInputs(kind editOperationKind, inputs []Input) error {
	if e == nil {
		return ErrNilReader
	}

	normalized := make([]Input, 0, len(inputs))
	for i := range inputs {
		name := NormalizePath(inputs[i].Path)
		if name == "" {
			return &NameError{Name: inputs[i].Path, Reason: "empty path"}
		}

		item := inputs[i]
		item.Path = name
		normalized = append(normalized, item)
	}

	if len(normalized) > 0 {
		e.ops = append(e.ops, editOperation{kind: kind, inputs: normalized})
	}

	return nil
}

// stagePaths validates paths and appends one operation.
func (e *Editor) stagePaths(kind editOperationKind, paths []string) error {
	if e == nil {
		return ErrNilReader
	}

	normalized := make([]string, 0, len(paths))
	for _, raw := range paths {
		name := NormalizePath(raw)
		if name == "" {
			return &NameError{Name: raw, Reason: "empty path"}
		}

		normalized = append(normalized, name)
	}

	if len(normalized) > 0 {
		e.ops = append(e.ops, editOperation{kind: kind, paths: normalized})
	}

	return nil
}

// Commit applies all staged operations in one rebuild.
// The original is kept as "<path>.bak" until the new archive is complete and restored on failure.
func (e *Editor) Commit(ctx context.Context) (*BuildResult, error) {
	if e == nil {
		return nil, ErrNilReader
	}

	if ctx == nil {
		ctx = context.Background()
	}

	backupPath := e.path + ".bak"
	if err := prepareBackupSlot(backupPath, e.opts.BackupKeep); err != nil {
		return nil, err
	}

	if err := os.Rename(e.path, backupPath); err != nil {
		return nil, fmt.Errorf("move archive to backup: %w", err)
	}

	res, err := e.commitFromBackup(ctx, backupPath)
	if err != nil {
		rollbackErr := rollbackFromBackup(e.path, backupPath)
		if rollbackErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %w)", err, rollbackErr)
		}

		return nil, err
	}

	if e.opts.BackupKeep == 0 {
		if err := removeIfExists(backupPath); err != nil {
			return nil, fmt.Errorf("remove backup: %w", err)
		}
	}

	return res, nil
}

// commitFromBackup rebuilds the edited archive from the backup source.
func (e *Editor) commitFromBackup(ctx context.Context, backupPath string) (*BuildResult, error) {
	src, err := OpenWithOptions(backupPath, e.opts.Reader)
	if err != nil {
		return nil, fmt.Errorf("parse backup: %w", err)
	}
	defer func() { _ = src.Close() }()

	keys := editPathKeys{prefix: src.desc.namePrefix}
	plan, err := buildEditPlan(src.entries, e.ops, keys)
	if err != nil {
		return nil, err
	}

	inputs := make([]Input, len(plan))
	for i, item := range plan {
		if item.input != nil {
			inputs[i] = *item.input
			continue
		}

		inputs[i] = src.entryInput(item.source)
	}

	buildOpts := preserveSourcePolicy(e.opts.Build, src, plan, keys)
	return BuildFile(ctx, e.path, inputs, buildOpts)
}

// preserveSourcePolicy fills unset build policy from the source archive records.
func preserveSourcePolicy(opts BuildOptions, src *Reader, plan []editItem, keys editPathKeys) BuildOptions {
	if opts.Format == FormatUnknown {
		opts.Format = src.desc.Format
	}

	sources := make(map[string]*Entry, len(plan))
	for _, item := range plan {
		if item.source != nil {
			sources[keys.key(item.path)] = item.source
		}
	}

	lookup := func(name string) *Entry {
		return sources[keys.key(name)]
	}

	if opts.Compress == nil {
		if opts.Level == 0 {
			opts.Level = DefaultLevel
		}

		opts.Compress = func(name string) bool {
			entry := lookup(name)
			return entry != nil && entry.Flags&flagCompressed != 0
		}

		if opts.MethodFor == nil {
			target, _ := Lookup(opts.Format)
			opts.MethodFor = func(name string) compress.Method {
				entry := lookup(name)
				if entry == nil || target == nil || !target.SupportsMethod(entry.Method) {
					return compress.Store
				}

				return entry.Method
			}
		}
	}

	if opts.Copies == nil {
		opts.Copies = func(name string) int {
			if entry := lookup(name); entry != nil {
				return len(entry.CopyOffsets)
			}

			return 0
		}
	}

	return opts
}

// entryInput exposes one source record as a build input of its decoded content.
func (r *Reader) entryInput(entry *Entry) Input {
	return Input{
		Path:     entry.Name,
		SizeHint: int64(entry.Size), //nolint:gosec // bounded by 32-bit field
		Open: func() (io.ReadCloser, error) {
			if err := r.checkOpen(); err != nil {
				return nil, err
			}

			return r.openEntry(entry), nil
		},
	}
}

// buildEditPlan applies staged operations to source entries and builds the final file list.
func buildEditPlan(sourceEntries []Entry, ops []editOperation, keys editPathKeys) ([]editItem, error) {
	state := make(map[string]editItem, len(sourceEntries))
	for i := range sourceEntries {
		entry := &sourceEntries[i]
		key := keys.key(entry.Name)
		if _, exists := state[key]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateEntryPath, entry.Name)
		}

		state[key] = editItem{path: entry.Name, source: entry}
	}

	for _, op := range ops {
		switch op.kind {
		case editOperationAdd:
			if err := applyEditAdd(state, op.inputs, keys); err != nil {
				return nil, err
			}
		case editOperationReplace:
			if err := applyEditReplace(state, op.inputs, keys); err != nil {
				return nil, err
			}
		case editOperationDelete:
			applyEditDelete(state, op.paths, keys)
		case editOperationDeleteDir:
			applyEditDeleteDir(state, op.paths, keys)
		default:
			return nil, fmt.Errorf("unknown edit operation kind: %d", op.kind)
		}
	}

	plan := make([]editItem, 0, len(state))
	for _, item := range state {
		plan = append(plan, item)
	}

	sort.Slice(plan, func(i, j int) bool { return plan[i].path < plan[j].path })

	return plan, nil
}

// applyEditAdd adds new entries and fails on existing paths.
func applyEditAdd(state map[string]editItem, inputs []Input, keys editPathKeys) error {
	for _, in := range inputs {
		key := keys.key(in.Path)
		if _, exists := state[key]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateEntryPath, in.Path)
		}

		item := in
		state[key] = editItem{path: item.Path, input: &item}
	}

	return nil
}

// applyEditReplace replaces existing entries and fails on missing paths.
func applyEditReplace(state map[string]editItem, inputs []Input, keys editPathKeys) error {
	for _, in := range inputs {
		key := keys.key(in.Path)
		existing, exists := state[key]
		if !exists {
			return fmt.Errorf("%w: %q", ErrEntryNotFound, in.Path)
		}

		item := in
		item.Path = existing.path
		state[key] = editItem{path: existing.path, input: &item}
	}

	return nil
}

// applyEditDelete removes exact paths from state.
func applyEditDelete(state map[string]editItem, paths []string, keys editPathKeys) {
	for _, p := range paths {
		delete(state, keys.key(p))
	}
}

// applyEditDeleteDir removes entries matching directory prefixes.
func applyEditDeleteDir(state map[string]editItem, prefixes []string, keys editPathKeys) {
	for _, prefix := range prefixes {
		for key, item := range state {
			if keys.hasDirPrefix(item.path, prefix) {
				delete(state, key)
			}
		}
	}
}

// editPathKeys derives case-insensitive path keys for one archive revision.
// The revision's required name prefix is optional in edit paths.
type editPathKeys struct {
	prefix string
}

// key returns the map key for an archive or edit path.
func (k editPathKeys) key(p string) string {
	key := strings.ToLower(NormalizePath(p))
	if k.prefix == "" {
		return key
	}
	if key == strings.TrimSuffix(k.prefix, "/") {
		return ""
	}

	return strings.TrimPrefix(key, k.prefix)
}

// hasDirPrefix reports whether path is equal to prefix or inside the prefixed directory.
func (k editPathKeys) hasDirPrefix(p string, prefix string) bool {
	pathKey := k.key(p)
	prefixKey := k.key(prefix)

	return prefixKey == "" || pathKey == prefixKey || strings.HasPrefix(pathKey, prefixKey+"/")
}

// prepareBackupSlot rotates/removes existing backup generations before new commit.
func prepareBackupSlot(backupPath string, keep int) error {
	switch keep {
	case 0, 1:
		return removeIfExists(backupPath)
	default:
		oldest := fmt.Sprintf("%s.%d", backupPath, keep-1)
		if err := removeIfExists(oldest); err != nil {
			return err
		}

		for i := keep - 2; i >= 1; i-- {
			from := fmt.Sprintf("%s.%d", backupPath, i)
			to := fmt.Sprintf("%s.%d", backupPath, i+1)
			if err := renameIfExists(from, to); err != nil {
				return err
			}
		}

		return renameIfExists(backupPath, backupPath+".1")
	}
}

// renameIfExists renames source to destination when source exists.
func renameIfExists(from string, to string) error {
	_, err := os.Stat(from)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat %s: %w", from, err)
	}

	if err := removeIfExists(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("rename %s to %s: %w", from, to, err)
	}

	return nil
}

// removeIfExists removes file when present.
func removeIfExists(p string) error {
	err := os.Remove(p)
	if errors.Is(err, os.ErrNotExist) || err == nil {
		return nil
	}

	return fmt.Errorf("remove %s: %w", p, err)
}

// rollbackFromBackup restores backup on failed commit.
func rollbackFromBackup(p string, backupPath string) error {
	_ = os.Remove(p)

	if err := os.Rename(backupPath, p); err != nil {
		return fmt.Errorf("restore backup: %w", err)
	}

	return nil
}
