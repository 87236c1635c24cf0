// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/bfs

package bfs

import (
	"fmt"

	"github.com/woozymasta/pathrules"
)

// CopyRule requests extra physical copies for paths matching Pattern.
type CopyRule struct {
	// Pattern is a gitignore-style glob over logical paths.
	Pattern string `json:"pattern" yaml:"pattern"`
	// Copies is the number of extra copies for matching paths.
	Copies int `json:"copies" yaml:"copies"`
}

// pathMatcher holds compiled rules over normalized logical paths.
type pathMatcher struct {
	matcher *pathrules.Matcher
}

// newPathMatcher compiles rules; no usable rules yields a nil matcher.
func newPathMatcher(rules []pathrules.Rule, opts pathrules.MatcherOptions) (*pathMatcher, error) {
	rules = normalizeRules(rules)
	if len(rules) == 0 {
		return nil, nil
	}

	if opts == (pathrules.MatcherOptions{}) {
		opts = pathrules.MatcherOptions{CaseInsensitive: true, DefaultAction: pathrules.ActionExclude}
	}
	if opts.DefaultAction == pathrules.ActionUnknown {
		opts.DefaultAction = pathrules.ActionExclude
	}

	matcher, err := pathrules.NewMatcher(rules, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: compile rules: %w", ErrInvalidRules, err)
	}

	return &pathMatcher{matcher: matcher}, nil
}

// normalizeRules normalizes rule patterns and drops empty patterns.
func normalizeRules(rules []pathrules.Rule) []pathrules.Rule {
	normalized := make([]pathrules.Rule, 0, len(rules))
	for _, rule := range rules {
		pattern := normalizePathForMatching(rule.Pattern)
		if pattern == "" {
			continue
		}

		normalized = append(normalized, pathrules.Rule{
			Action:  rule.Action,
			Pattern: pattern,
		})
	}

	return normalized
}

// Match reports whether path is included by the rules.
func (m *pathMatcher) Match(path string) bool {
	if m == nil || m.matcher == nil {
		return false
	}

	candidate := NormalizePath(path)
	if candidate == "" {
		return false
	}

	return m.matcher.Included(candidate, false)
}

// CompressRules compiles glob rules into a BuildOptions.Compress predicate.
// A zero opts matches case-insensitively and excludes unmatched paths.
func CompressRules(rules []pathrules.Rule, opts pathrules.MatcherOptions) (func(path string) bool, error) {
	m, err := newPathMatcher(rules, opts)
	if err != nil {
		return nil, err
	}

	return m.Match, nil
}

// CopyRules compiles copy rules into a BuildOptions.Copies function.
// When several rules match a path, the last one wins.
func CopyRules(rules []CopyRule, opts pathrules.MatcherOptions) (func(path string) int, error) {
	type compiled struct {
		matcher *pathMatcher
		copies  int
	}

	list := make([]compiled, 0, len(rules))
	for _, rule := range rules {
		if rule.Copies < 0 {
			return nil, fmt.Errorf("%w: negative copy count %d for %q", ErrInvalidRules, rule.Copies, rule.Pattern)
		}

		m, err := newPathMatcher([]pathrules.Rule{{Action: pathrules.ActionInclude, Pattern: rule.Pattern}}, opts)
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}

		list = append(list, compiled{matcher: m, copies: rule.Copies})
	}

	return func(path string) int {
		for i := len(list) - 1; i >= 0; i-- {
			if list[i].matcher.Match(path) {
				return list[i].copies
			}
		}

		return 0
	}, nil
}
