// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

// buildTestBytes builds files and returns the raw archive bytes.
func buildTestBytes(t *testing.T, files map[string][]byte, opts BuildOptions) []byte {
	t.Helper()

	data, err := os.ReadFile(buildTestArchive(t, files, opts))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	return data
}

// openBytes parses an in-memory archive.
func openBytes(data []byte, opts ReaderOptions) (*Reader, error) {
	return NewReader(bytes.NewReader(data), int64(len(data)), opts)
}

func TestOpenDetectsFormat(t *testing.T) {
	t.Parallel()

	for _, format := range Formats() {
		data := buildTestBytes(t, sampleFiles(), BuildOptions{Format: format})

		detected, err := DetectFormat(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			t.Fatalf("DetectFormat %s: %v", format, err)
		}
		if detected != format {
			t.Fatalf("DetectFormat=%s, want %s", detected, format)
		}

		r, err := openBytes(data, ReaderOptions{})
		if err != nil {
			t.Fatalf("NewReader %s: %v", format, err)
		}
		if r.Descriptor().Format != format {
			t.Fatalf("reader format=%s, want %s", r.Descriptor().Format, format)
		}
		_ = r.Close()
	}
}

func TestDetectFormatEmptyOffsetTable(t *testing.T) {
	t.Parallel()

	d, err := Lookup(FormatBfs2004a)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	// header, no offsets, bucket count, then empty bucket entries.
	headerEnd := d.index.prefixSize(d, 0, nil)
	data := make([]byte, headerEnd)
	copy(data[0:4], "bfs1")
	binary.LittleEndian.PutUint32(data[4:8], d.Version)
	binary.LittleEndian.PutUint32(data[8:12], uint32(headerEnd)) //nolint:gosec // small constant
	binary.LittleEndian.PutUint32(data[16:20], DefaultBucketCount)

	detected, err := DetectFormat(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("DetectFormat: %v", err)
	}
	if detected != FormatBfs2004a {
		t.Fatalf("DetectFormat=%s, want %s", detected, FormatBfs2004a)
	}

	r, err := openBytes(data, ReaderOptions{})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Descriptor().Format != FormatBfs2004a || r.FileCount() != 0 {
		t.Fatalf("format=%s files=%d, want empty %s", r.Descriptor().Format, r.FileCount(), FormatBfs2004a)
	}
}

func TestDetectFormatRejectsUnknown(t *testing.T) {
	t.Parallel()

	junk := []byte("JUNKJUNKJUNKJUNKJUNK")
	if _, err := DetectFormat(bytes.NewReader(junk), int64(len(junk))); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}

	short := []byte("bfs1")
	if _, err := DetectFormat(bytes.NewReader(short), int64(len(short))); !errors.Is(err, ErrStructure) {
		t.Fatalf("expected ErrStructure, got %v", err)
	}

	if _, err := DetectFormat(nil, 0); !errors.Is(err, ErrNilReader) {
		t.Fatalf("expected ErrNilReader, got %v", err)
	}
}

func TestOpenMagicMismatch(t *testing.T) {
	t.Parallel()

	data := buildTestBytes(t, sampleFiles(), BuildOptions{Format: FormatBzf2002})

	_, err := openBytes(data, ReaderOptions{Format: FormatBfs2007})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Field != FieldMagic {
		t.Fatalf("field=%s, want %s", verr.Field, FieldMagic)
	}

	expected, actual := verr.ExpectedMagic(), verr.ActualMagic()
	if string(expected[:]) != "bfs1" || string(actual[:]) != "bzf2" {
		t.Fatalf("magic expected=%q actual=%q, want bfs1/bzf2", expected[:], actual[:])
	}
}

func TestOpenVersionMismatch(t *testing.T) {
	t.Parallel()

	data := buildTestBytes(t, sampleFiles(), BuildOptions{Format: FormatBfs2007})
	binary.LittleEndian.PutUint32(data[4:8], 0x20070311)

	_, err := openBytes(data, ReaderOptions{Format: FormatBfs2007})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != FieldVersion {
		t.Fatalf("expected version ValidationError, got %v", err)
	}
	if verr.Expected != 0x20070310 || verr.Actual != 0x20070311 {
		t.Fatalf("version expected=0x%08x actual=0x%08x", verr.Expected, verr.Actual)
	}

	r, err := openBytes(data, ReaderOptions{Format: FormatBfs2007, Force: true})
	if err != nil {
		t.Fatalf("forced open: %v", err)
	}
	defer func() { _ = r.Close() }()

	got, err := r.ReadEntry("data/a.ini")
	if err != nil || string(got) != "AA" {
		t.Fatalf("forced ReadEntry=%q %v", got, err)
	}
}

func TestOpenBucketCountMismatch(t *testing.T) {
	t.Parallel()

	data := buildTestBytes(t, sampleFiles(), BuildOptions{Format: FormatBfs2007})
	binary.LittleEndian.PutUint32(data[16:20], 996)

	_, err := openBytes(data, ReaderOptions{Format: FormatBfs2007})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != FieldBucketCount {
		t.Fatalf("expected bucket count ValidationError, got %v", err)
	}
	if verr.Expected != DefaultBucketCount || verr.Actual != 996 {
		t.Fatalf("bucket count expected=%d actual=%d", verr.Expected, verr.Actual)
	}
}

func TestOpenTruncatedIndex(t *testing.T) {
	t.Parallel()

	for _, format := range Formats() {
		data := buildTestBytes(t, sampleFiles(), BuildOptions{Format: format})

		_, err := openBytes(data[:40], ReaderOptions{Format: format})
		if !errors.Is(err, ErrStructure) {
			t.Fatalf("%s: expected ErrStructure, got %v", format, err)
		}

		var serr *StructuralError
		if !errors.As(err, &serr) || serr.Section == "" {
			t.Fatalf("%s: expected *StructuralError with section, got %v", format, err)
		}
	}
}

func TestOpenTruncatedPayload(t *testing.T) {
	t.Parallel()

	data := buildTestBytes(t, sampleFiles(), BuildOptions{Format: FormatBfs2004a})

	_, err := openBytes(data[:len(data)-1], ReaderOptions{Format: FormatBfs2004a})
	if !errors.Is(err, ErrStructure) {
		t.Fatalf("expected ErrStructure, got %v", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Open(filepath.Join(t.TempDir(), "missing.bfs"), FormatBfs2004b); err == nil {
		t.Fatal("expected error for missing archive")
	}

	if _, err := NewReader(nil, 0, ReaderOptions{}); !errors.Is(err, ErrNilReader) {
		t.Fatalf("expected ErrNilReader, got %v", err)
	}
}

func TestReaderLookupAndStreams(t *testing.T) {
	t.Parallel()

	files := sampleFiles()
	path := buildTestArchive(t, files, BuildOptions{
		Format:   FormatBfs2004b,
		Level:    DefaultLevel,
		Compress: suffixPolicy(".txt"),
	})

	r, err := Open(path, FormatBfs2004b)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := files["data/menu/readme.txt"]
	for _, name := range []string{"data/menu/readme.txt", `data\menu\readme.txt`, "/data/menu/readme.txt"} {
		rc, err := r.OpenEntry(name)
		if err != nil {
			t.Fatalf("OpenEntry(%q): %v", name, err)
		}

		got, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			t.Fatalf("read stream %q: %v", name, err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("stream %q mismatch", name)
		}
	}

	if _, err := r.ReadEntry("data/nope.ini"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if _, err := r.OpenEntry("data/nope.ini"); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound, got %v", err)
	}
	if info := r.FileInfo("data/nope.ini"); len(info) != 0 {
		t.Fatalf("FileInfo for missing name=%v, want empty", info)
	}

	multi := r.MultipleFileInfo([]string{"data/a.ini", "data/nope.ini", "data/cars/body.bgm"})
	if len(multi) != 2 || multi[0].Name != "data/a.ini" || multi[1].Name != "data/cars/body.bgm" {
		t.Fatalf("MultipleFileInfo=%+v", multi)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := r.ReadEntry("data/a.ini"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestReaderSynthesizesUnreadableNames(t *testing.T) {
	t.Parallel()

	data := buildTestBytes(t, map[string][]byte{"data/x.ini": []byte("payload")}, BuildOptions{Format: FormatBzf2002})

	// bzf2002: 16-byte header, then flags, offset, sizes, crc, u16 length, name.
	nameAt := 16 + 1 + 12 + 4 + 2
	if string(data[nameAt:nameAt+10]) != "data/x.ini" {
		t.Fatalf("unexpected record layout: %q", data[nameAt:nameAt+10])
	}
	data[nameAt+5] = 0x01

	r, err := openBytes(data, ReaderOptions{Format: FormatBzf2002})
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer func() { _ = r.Close() }()

	entries := r.Entries()
	if len(entries) != 1 || !entries[0].Synthesized {
		t.Fatalf("entries=%+v, want one synthesized", entries)
	}

	name := synthesizedName(uint32(entries[0].Offset))
	if entries[0].Name != name {
		t.Fatalf("name=%q, want %q", entries[0].Name, name)
	}

	got, err := r.ReadEntry(name)
	if err != nil || string(got) != "payload" {
		t.Fatalf("ReadEntry(%q)=%q %v", name, got, err)
	}

	if _, ok := inputsByPath(r)[name]; ok {
		t.Fatal("synthesized entry exposed as rebuild input")
	}
}

// inputsByPath indexes the rebuild inputs of r by path.
func inputsByPath(r *Reader) map[string]Input {
	out := make(map[string]Input)
	for _, in := range InputsFromReader(r) {
		out[in.Path] = in
	}

	return out
}

func TestReaderBzf2001FixedNames(t *testing.T) {
	t.Parallel()

	long := "data/cars/bodies/" + string(bytes.Repeat([]byte("x"), 40)) + ".bgm"
	path := filepath.Join(t.TempDir(), "x.bzf")
	if _, err := BuildFile(t.Context(), path, []Input{bytesInput(long, []byte("x"))}, BuildOptions{Format: FormatBzf2001}); !errors.Is(err, ErrNameEncoding) {
		t.Fatalf("expected ErrNameEncoding for long name, got %v", err)
	}

	files := map[string][]byte{"menu/a.ini": []byte("A"), "b.ini": []byte("BB")}
	path = buildTestArchive(t, files, BuildOptions{Format: FormatBzf2001})

	r, err := Open(path, FormatBzf2001)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = r.Close() }()

	if r.Header().HeaderEnd != 0 {
		t.Fatalf("HeaderEnd=%d, bzf2001 has none", r.Header().HeaderEnd)
	}
	for name, content := range files {
		got, err := r.ReadEntry(name)
		if err != nil || !bytes.Equal(got, content) {
			t.Fatalf("ReadEntry(%s)=%q %v", name, got, err)
		}
		if r.FileInfo(name)[0].HasChecksum {
			t.Fatalf("%s reports a checksum", name)
		}
	}
}
