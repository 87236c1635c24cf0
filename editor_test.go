// SPDX-License-Identifier: MIT
// Copyright (c) 2026 Maxim Levchenko (WoozyMasta)
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/woozymasta/bfs/compress"
)

func TestEditorCommitAddReplaceDeleteDir(t *testing.T) {
	t.Parallel()

	path := buildTestArchive(t, map[string][]byte{
		"data/dir/a.txt":      []byte("old-a"),
		"data/dir/sub/b.txt":  []byte("old-b"),
		"data/scripts/main.c": bytes.Repeat([]byte("class X {};"), 256),
	}, BuildOptions{
		Format:   FormatBfs2004a,
		Level:    DefaultLevel,
		Compress: suffixPolicy(".c"),
		Copies: func(name string) int {
			if name == "data/scripts/main.c" {
				return 1
			}

			return 0
		},
	})

	editor, err := OpenEditor(path, EditOptions{})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}

	if err := editor.Replace(bytesInput(`data\dir\a.txt`, []byte("new-a"))); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := editor.Add(bytesInput("data/new/new.txt", bytes.Repeat([]byte("compress-me"), 2048))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := editor.DeleteDir("data/DIR/sub"); err != nil {
		t.Fatalf("DeleteDir: %v", err)
	}

	res, err := editor.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Files != 3 {
		t.Fatalf("Files=%d, want 3", res.Files)
	}

	r, err := Open(path, FormatUnknown)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Descriptor().Format != FormatBfs2004a {
		t.Fatalf("format=%s, want source format kept", r.Descriptor().Format)
	}
	if r.findEntryByName("data/dir/sub/b.txt") != nil {
		t.Fatal("data/dir/sub/b.txt must be deleted")
	}

	replaced, err := r.ReadEntry("data/dir/a.txt")
	if err != nil || string(replaced) != "new-a" {
		t.Fatalf("replaced payload=%q %v, want new-a", replaced, err)
	}

	script := r.findEntryByName("data/scripts/main.c")
	if script == nil || script.Method != compress.Zlib || len(script.CopyOffsets) != 1 {
		t.Fatalf("main.c must keep compression and copies: %+v", script)
	}

	added := r.findEntryByName("data/new/new.txt")
	if added == nil || added.Method != compress.Store {
		t.Fatalf("new entry must follow source policy and stay stored: %+v", added)
	}

	if _, err := os.Stat(path + ".bak"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf(".bak must be removed for BackupKeep=0, stat err=%v", err)
	}
}

func TestEditorCommitKeepsSourceMethods(t *testing.T) {
	t.Parallel()

	for _, method := range []compress.Method{compress.Zstd, compress.LZ4} {
		t.Run(method.String(), func(t *testing.T) {
			t.Parallel()

			path := buildTestArchive(t, sampleFiles(), BuildOptions{
				Format:   FormatBfs2004b,
				Level:    DefaultLevel,
				Method:   method,
				Compress: suffixPolicy(".txt"),
			})

			editor, err := OpenEditor(path, EditOptions{})
			if err != nil {
				t.Fatalf("OpenEditor: %v", err)
			}
			if err := editor.Replace(bytesInput("data/a.ini", []byte("BB"))); err != nil {
				t.Fatalf("Replace: %v", err)
			}
			if _, err := editor.Commit(context.Background()); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			r, err := Open(path, FormatBfs2004b)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer func() { _ = r.Close() }()

			info := r.FileInfo("data/menu/readme.txt")
			if len(info) != 1 || info[0].Method != method {
				t.Fatalf("readme info=%+v, want method %s kept", info, method)
			}
		})
	}
}

func TestEditorPathsWithoutNamePrefix(t *testing.T) {
	t.Parallel()

	path := buildTestArchive(t, map[string][]byte{
		"data/a.txt":      []byte("old-a"),
		"data/menu/b.txt": []byte("old-b"),
		"data/keep.ini":   []byte("keep"),
	}, BuildOptions{Format: FormatBfs2004b})

	editor, err := OpenEditor(path, EditOptions{})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}
	if err := editor.Replace(bytesInput("a.txt", []byte("new-a"))); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := editor.DeleteDir("menu"); err != nil {
		t.Fatalf("DeleteDir: %v", err)
	}

	res, err := editor.Commit(context.Background())
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if res.Files != 2 {
		t.Fatalf("Files=%d, want 2", res.Files)
	}

	assertEntryContent(t, path, "data/a.txt", "new-a")
	assertEntryContent(t, path, "data/keep.ini", "keep")

	r, err := Open(path, FormatUnknown)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.findEntryByName("data/menu/b.txt") != nil {
		t.Fatal("data/menu/b.txt must be deleted")
	}
	_ = r.Close()

	editor, err = OpenEditor(path, EditOptions{})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}
	if err := editor.Add(bytesInput("A.TXT", []byte("dup"))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := editor.Commit(context.Background()); !errors.Is(err, ErrDuplicateEntryPath) {
		t.Fatalf("expected ErrDuplicateEntryPath, got %v", err)
	}
}

func TestEditorCommitExplicitPolicy(t *testing.T) {
	t.Parallel()

	path := buildTestArchive(t, map[string][]byte{"data/a.txt": []byte("orig")}, BuildOptions{Format: FormatBfs2004b})

	editor, err := OpenEditor(path, EditOptions{Build: BuildOptions{
		Format:   FormatBfs2007,
		Level:    DefaultLevel,
		Compress: suffixPolicy(".txt"),
	}})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}

	if err := editor.Add(bytesInput("data/b.txt", bytes.Repeat([]byte("zz"), 1024))); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := editor.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	r, err := Open(path, FormatBfs2007)
	if err != nil {
		t.Fatalf("Open converted archive: %v", err)
	}
	defer func() { _ = r.Close() }()

	if info := r.FileInfo("data/b.txt"); len(info) != 1 || info[0].Method != compress.Zlib {
		t.Fatalf("b.txt info=%+v, want zlib", info)
	}
}

func TestEditorCommitReplaceMissingRestoresSource(t *testing.T) {
	t.Parallel()

	path := buildTestArchive(t, map[string][]byte{"data/a.txt": []byte("orig")}, BuildOptions{})

	editor, err := OpenEditor(path, EditOptions{})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}
	if err := editor.Replace(bytesInput("data/missing.txt", []byte("x"))); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if _, err := editor.Commit(context.Background()); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}

	assertEntryContent(t, path, "data/a.txt", "orig")
}

func TestEditorCommitAddExistingFails(t *testing.T) {
	t.Parallel()

	path := buildTestArchive(t, map[string][]byte{"data/a.txt": []byte("orig")}, BuildOptions{})

	editor, err := OpenEditor(path, EditOptions{})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}
	if err := editor.Add(bytesInput("DATA/A.TXT", []byte("x"))); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if _, err := editor.Commit(context.Background()); !errors.Is(err, ErrDuplicateEntryPath) {
		t.Fatalf("expected ErrDuplicateEntryPath, got %v", err)
	}

	assertEntryContent(t, path, "data/a.txt", "orig")
}

func TestEditorCommitInputOpenErrorRollsBack(t *testing.T) {
	t.Parallel()

	path := buildTestArchive(t, map[string][]byte{"data/a.txt": []byte("orig")}, BuildOptions{})

	editor, err := OpenEditor(path, EditOptions{})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}
	if err := editor.Replace(Input{
		Path: "data/a.txt",
		Open: func() (io.ReadCloser, error) { return nil, errors.New("boom") },
	}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if _, err := editor.Commit(context.Background()); err == nil {
		t.Fatal("Commit must fail")
	}

	assertEntryContent(t, path, "data/a.txt", "orig")
}

func TestEditorRejectsEmptyPaths(t *testing.T) {
	t.Parallel()

	if _, err := OpenEditor("  ", EditOptions{}); !errors.Is(err, ErrNameEncoding) {
		t.Fatalf("expected ErrNameEncoding, got %v", err)
	}

	editor, err := OpenEditor("x.bfs", EditOptions{})
	if err != nil {
		t.Fatalf("OpenEditor: %v", err)
	}
	if err := editor.Delete("/"); !errors.Is(err, ErrNameEncoding) {
		t.Fatalf("expected ErrNameEncoding, got %v", err)
	}
}

func TestEditorCommitBackupKeepRotates(t *testing.T) {
	t.Parallel()

	path := buildTestArchive(t, map[string][]byte{"data/a.txt": []byte("v0")}, BuildOptions{})

	replaceAndCommit := func(value string) {
		t.Helper()

		editor, err := OpenEditor(path, EditOptions{BackupKeep: 2})
		if err != nil {
			t.Fatalf("OpenEditor: %v", err)
		}
		if err := editor.Replace(bytesInput("data/a.txt", []byte(value))); err != nil {
			t.Fatalf("Replace: %v", err)
		}
		if _, err := editor.Commit(context.Background()); err != nil {
			t.Fatalf("Commit: %v", err)
		}
	}

	replaceAndCommit("v1")
	replaceAndCommit("v2")

	assertEntryContent(t, path, "data/a.txt", "v2")
	assertEntryContent(t, path+".bak", "data/a.txt", "v1")
	assertEntryContent(t, path+".bak.1", "data/a.txt", "v0")
}

// assertEntryContent opens an archive and checks one entry payload.
func assertEntryContent(t *testing.T, path, name, want string) {
	t.Helper()

	r, err := Open(path, FormatUnknown)
	if err != nil {
		t.Fatalf("Open %s: %v", path, err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.ReadEntry(name)
	if err != nil {
		t.Fatalf("ReadEntry %s: %v", name, err)
	}
	if string(got) != want {
		t.Fatalf("%s payload=%q, want %q", name, got, want)
	}
}
