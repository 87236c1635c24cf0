// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"errors"
	"strings"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "slash", in: "/", want: ""},
		{name: "clean", in: "data/cars/bodies/body1.bgm", want: "data/cars/bodies/body1.bgm"},
		{name: "windows", in: `.\data\menu\`, want: "data/menu"},
		{name: "dot segments", in: "./a/../b//c.txt", want: "b/c.txt"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := NormalizePath(tc.in)
			if got != tc.want {
				t.Fatalf("NormalizePath(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestArchiveName(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		in     string
		want   string
		format Format
	}{
		{name: "prefix added", format: FormatBfs2004b, in: "a.ini", want: "data/a.ini"},
		{name: "prefix kept", format: FormatBfs2007, in: `data\menu\x.bmp`, want: "data/menu/x.bmp"},
		{name: "prefix case folded", format: FormatBfs2004a, in: "Data/Menu/x.bmp", want: "data/Menu/x.bmp"},
		{name: "prefix-like folder", format: FormatBfs2004b, in: "database/x.ini", want: "data/database/x.ini"},
		{name: "bzf no prefix", format: FormatBzf2002, in: "a.ini", want: "a.ini"},
		{name: "bzf2001 width", format: FormatBzf2001, in: strings.Repeat("x", fixedNameWidth), want: strings.Repeat("x", fixedNameWidth)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := ArchiveName(tc.format, tc.in)
			if err != nil {
				t.Fatalf("ArchiveName(%q): %v", tc.in, err)
			}
			if got != tc.want {
				t.Fatalf("ArchiveName(%q)=%q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestArchiveNameRejectsInvalid(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		in     string
		format Format
	}{
		{name: "empty", format: FormatBfs2004b, in: "  "},
		{name: "non ascii", format: FormatBfs2004b, in: "data/café.ini"},
		{name: "control byte", format: FormatBzf2002, in: "a\x01b"},
		{name: "too long fixed", format: FormatBzf2001, in: strings.Repeat("x", fixedNameWidth+1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := ArchiveName(tc.format, tc.in)
			if !errors.Is(err, ErrNameEncoding) {
				t.Fatalf("expected ErrNameEncoding, got %v", err)
			}

			var nameErr *NameError
			if !errors.As(err, &nameErr) {
				t.Fatalf("expected *NameError, got %T", err)
			}
		})
	}

	if _, err := ArchiveName(Format(99), "a"); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestSplitName(t *testing.T) {
	t.Parallel()

	folder, file := splitName("data/cars/a.bgm")
	if folder != "data/cars" || file != "a.bgm" {
		t.Fatalf("splitName=%q,%q", folder, file)
	}

	folder, file = splitName("a.bgm")
	if folder != "" || file != "a.bgm" {
		t.Fatalf("splitName no slash=%q,%q", folder, file)
	}
}
