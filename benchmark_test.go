// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

const (
	benchDefaultEntries    = 128
	benchLargeIndexEntries = 20000
)

var (
	// benchListSink prevents compiler elimination in list benchmark loops.
	benchListSink int
)

func BenchmarkOpenParse(b *testing.B) {
	for _, format := range Formats() {
		b.Run(format.String(), func(b *testing.B) {
			path := createBenchArchive(b, format, benchDefaultEntries)

			b.ReportAllocs()
			b.ResetTimer()
			for b.Loop() {
				r, err := Open(path, format)
				if err != nil {
					b.Fatal(err)
				}
				_ = r.Entries()
				_ = r.Close()
			}
		})
	}
}

func BenchmarkOpenParseLargeIndex(b *testing.B) {
	path := createBenchArchive(b, FormatBfs2004b, benchLargeIndexEntries)

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		r, err := Open(path, FormatBfs2004b)
		if err != nil {
			b.Fatal(err)
		}
		if r.FileCount() != benchLargeIndexEntries {
			b.Fatalf("FileCount=%d", r.FileCount())
		}
		_ = r.Close()
	}
}

func BenchmarkListLargeIndex(b *testing.B) {
	path := createBenchArchive(b, FormatBfs2007, benchLargeIndexEntries)
	r, err := Open(path, FormatBfs2007)
	if err != nil {
		b.Fatal(err)
	}
	defer func() { _ = r.Close() }()

	opts := ListOptions{Rules: includeRules("*.lng", "menu/")}

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		entries, err := r.ListEntries(opts)
		if err != nil {
			b.Fatal(err)
		}

		benchListSink = len(entries)
	}
}

func BenchmarkExtract(b *testing.B) {
	path := createBenchArchive(b, FormatBfs2004b, benchDefaultEntries)
	dir := b.TempDir()
	opts := ExtractOptions{MaxWorkers: 4}

	b.ReportAllocs()
	b.ResetTimer()
	i := 0
	for b.Loop() {
		r, err := Open(path, FormatBfs2004b)
		if err != nil {
			b.Fatal(err)
		}

		out := filepath.Join(dir, fmt.Sprintf("run%d", i))
		err = r.Extract(context.Background(), nil, out, opts)
		_ = r.Close()
		if err != nil {
			b.Fatal(err)
		}
		i++
	}
}

func BenchmarkHashName(b *testing.B) {
	names := make([]string, 1024)
	for i := range names {
		names[i] = benchmarkLargePath(i)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		var acc uint32
		for _, name := range names {
			acc ^= Bucket(name, DefaultBucketCount)
		}

		benchListSink = int(acc)
	}
}

func BenchmarkBuildNoCompress(b *testing.B) {
	benchmarkBuild(b, BuildOptions{Format: FormatBfs2004a})
}

func BenchmarkBuildWithCompress(b *testing.B) {
	benchmarkBuild(b, BuildOptions{
		Format:   FormatBfs2004b,
		Level:    DefaultLevel,
		Compress: func(string) bool { return true },
	})
}

func BenchmarkBuildDeduplicate(b *testing.B) {
	benchmarkBuild(b, BuildOptions{
		Format:      FormatBfs2007,
		Level:       DefaultLevel,
		Deduplicate: true,
		Compress:    func(string) bool { return true },
	})
}

// benchmarkBuild packs the same synthetic tree repeatedly with opts.
func benchmarkBuild(b *testing.B, opts BuildOptions) {
	b.Helper()

	inputs := benchInputs(benchDefaultEntries)
	dir := b.TempDir()

	b.ReportAllocs()
	b.ResetTimer()
	i := 0
	for b.Loop() {
		out := filepath.Join(dir, fmt.Sprintf("out%d.bfs", i%4))
		if _, err := BuildFile(context.Background(), out, inputs, opts); err != nil {
			b.Fatal(err)
		}
		i++
	}
}

func BenchmarkEditReplace(b *testing.B) {
	src := createBenchArchive(b, FormatBfs2004b, benchDefaultEntries)
	srcData, err := os.ReadFile(src)
	if err != nil {
		b.Fatal(err)
	}

	dir := b.TempDir()
	replacement := bytesInput(benchmarkLargePath(0), []byte("replaced"))

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		b.StopTimer()
		path := filepath.Join(dir, "edit.bfs")
		if err := os.WriteFile(path, srcData, 0o600); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()

		editor, err := OpenEditor(path, EditOptions{})
		if err != nil {
			b.Fatal(err)
		}
		if err := editor.Replace(replacement); err != nil {
			b.Fatal(err)
		}
		if _, err := editor.Commit(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}

// createBenchArchive builds an archive of numEntries synthetic files.
func createBenchArchive(b *testing.B, format Format, numEntries int) string {
	b.Helper()

	path := filepath.Join(b.TempDir(), "bench.bfs")
	_, err := BuildFile(context.Background(), path, benchInputs(numEntries), BuildOptions{
		Format:   format,
		Level:    DefaultLevel,
		Compress: suffixPolicy(".lng"),
	})
	if err != nil {
		b.Fatal(err)
	}

	return path
}

// benchInputs returns numEntries small inputs spread over nested folders.
func benchInputs(numEntries int) []Input {
	inputs := make([]Input, numEntries)
	for i := range inputs {
		payload := bytes.Repeat([]byte(fmt.Sprintf("line %d;", i%7)), 64)
		inputs[i] = bytesInput(benchmarkLargePath(i), payload)
	}

	return inputs
}

// benchmarkLargePath returns a deterministic nested path for bench index i.
func benchmarkLargePath(i int) string {
	switch i % 3 {
	case 0:
		return fmt.Sprintf("data/menu/page%03d/item%05d.txt", i%97, i)
	case 1:
		return fmt.Sprintf("data/language/lang%02d/text%05d.lng", i%13, i)
	default:
		return fmt.Sprintf("data/cars/car%03d/body%05d.bgm", i%211, i)
	}
}
