// Copyright (C) 2026 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ignore matches event paths against glob patterns so a host
// can filter out activity it does not care about.
package ignore

import (
	"fmt"
	"path/filepath"

	"github.com/gobwas/glob"
)

type Matcher struct {
	patterns []string
	globs    []glob.Glob
}

// New compiles the given glob patterns. Patterns match against
// slash-separated paths; `**` crosses separators, `*` does not.
func New(patterns ...string) (*Matcher, error) {
	m := &Matcher{patterns: patterns}
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("compiling pattern %q: %w", p, err)
		}
		m.globs = append(m.globs, g)
	}
	return m, nil
}

// Match reports whether path matches any pattern. A nil matcher
// matches nothing.
func (m *Matcher) Match(path string) bool {
	if m == nil {
		return false
	}
	path = filepath.ToSlash(path)
	for _, g := range m.globs {
		if g.Match(path) {
			return true
		}
	}
	return false
}

func (m *Matcher) Patterns() []string {
	if m == nil {
		return nil
	}
	return m.patterns
}
