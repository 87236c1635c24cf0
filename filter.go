// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"strings"

	"github.com/woozymasta/pathrules"
)

// filterEntriesByPrefix keeps entries under prefix (or exact match if it points to a file).
func filterEntriesByPrefix(entries []Entry, prefix string) []Entry {
	prefix = NormalizePath(prefix)
	if prefix == "" {
		return entries
	}

	normalizedPrefix := prefix + "/"
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		entryPath := NormalizePath(entry.Name)
		if entryPath == prefix || strings.HasPrefix(entryPath, normalizedPrefix) {
			out = append(out, entry)
		}
	}

	return out
}

// filterEntriesByRules keeps entries included by rules.
func filterEntriesByRules(entries []Entry, rules []pathrules.Rule) ([]Entry, error) {
	matcher, err := newPathMatcher(rules, pathrules.MatcherOptions{})
	if err != nil {
		return nil, err
	}
	if matcher == nil {
		return entries, nil
	}

	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if matcher.Match(entry.Name) {
			out = append(out, entry)
		}
	}

	return out, nil
}

// filterSynthesizedEntries drops entries whose name was generated on parse.
func filterSynthesizedEntries(entries []Entry) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !entry.Synthesized {
			out = append(out, entry)
		}
	}

	return out
}

// namesOf returns entry names in order.
func namesOf(entries []Entry) []string {
	names := make([]string, len(entries))
	for i := range entries {
		names[i] = entries[i].Name
	}

	return names
}
