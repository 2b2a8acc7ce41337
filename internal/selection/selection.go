// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package selection resolves atom-selection patterns against a system.
//
// A pattern has three colon-separated fields, segment:RESNAME.RESID:ATOM,
// for example "*:LIG.248:C02" or "*:GLU.164:*". Every field accepts shell
// glob syntax; a residue field without a dot matches the residue name only.
package selection

import (
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pdiddy/reaction-engine/pkg/types"
)

const wildcard = "*"

// Pattern is a parsed selection pattern.
type Pattern struct {
	Segment string
	Residue string
	ResID   string
	Atom    string
	raw     string
}

// String returns the pattern as written.
func (p Pattern) String() string { return p.raw }

// Parse parses a single selection pattern.
func Parse(s string) (Pattern, error) {
	fields := strings.Split(strings.TrimSpace(s), ":")
	if len(fields) != 3 {
		return Pattern{}, fmt.Errorf("selection %q: want segment:RESNAME.RESID:ATOM", s)
	}
	for i, f := range fields {
		if f == "" {
			return Pattern{}, fmt.Errorf("selection %q: field %d is empty", s, i+1)
		}
	}

	p := Pattern{Segment: fields[0], Atom: fields[2], ResID: wildcard, raw: s}
	res := fields[1]
	if name, id, ok := strings.Cut(res, "."); ok {
		if name == "" || id == "" {
			return Pattern{}, fmt.Errorf("selection %q: malformed residue field %q", s, res)
		}
		p.Residue, p.ResID = name, id
	} else {
		p.Residue = res
	}

	for _, f := range []string{p.Segment, p.Residue, p.ResID, p.Atom} {
		if _, err := path.Match(f, ""); err != nil {
			return Pattern{}, fmt.Errorf("selection %q: %w", s, err)
		}
	}
	return p, nil
}

// MustParse is like Parse but panics on error. It is intended for patterns
// known at compile time.
func MustParse(s string) Pattern {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches reports whether atom a is selected by p.
func (p Pattern) Matches(a types.Atom) bool {
	return match(p.Segment, a.Segment) &&
		match(p.Residue, a.Residue) &&
		match(p.ResID, strconv.Itoa(a.ResID)) &&
		match(p.Atom, a.Name)
}

func match(pattern, value string) bool {
	if pattern == wildcard {
		return true
	}
	ok, _ := path.Match(pattern, value)
	return ok
}

// Select returns the sorted, de-duplicated indices of atoms matched by any
// of the patterns.
func Select(atoms []types.Atom, patterns ...string) ([]int, error) {
	parsed := make([]Pattern, 0, len(patterns))
	for _, s := range patterns {
		p, err := Parse(s)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, p)
	}

	var out []int
	for i, a := range atoms {
		for _, p := range parsed {
			if p.Matches(a) {
				out = append(out, i)
				break
			}
		}
	}
	return out, nil
}

// One resolves a pattern that must match exactly one atom and returns its
// index.
func One(atoms []types.Atom, pattern string) (int, error) {
	idx, err := Select(atoms, pattern)
	if err != nil {
		return -1, err
	}
	switch len(idx) {
	case 0:
		return -1, fmt.Errorf("selection %q matches no atoms", pattern)
	case 1:
		return idx[0], nil
	default:
		return -1, fmt.Errorf("selection %q matches %d atoms, want 1", pattern, len(idx))
	}
}

// Ordered resolves each pattern to exactly one atom, preserving pattern
// order. It is used for reaction-coordinate definitions where order
// matters.
func Ordered(atoms []types.Atom, patterns []string) ([]int, error) {
	out := make([]int, len(patterns))
	for i, p := range patterns {
		idx, err := One(atoms, p)
		if err != nil {
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}

// Union merges sorted index lists into one sorted list without duplicates.
func Union(lists ...[]int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range lists {
		for _, i := range l {
			if !seen[i] {
				seen[i] = true
				out = append(out, i)
			}
		}
	}
	sort.Ints(out)
	return out
}
