// SPDX-License-Identifier: MPL-2.0

package document

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
)

// ErrInvalidPattern is returned when a path pattern cannot be parsed.
var ErrInvalidPattern = errors.New("invalid path pattern")

type (
	// Segment is one step of a Path: either a mapping key or a sequence index.
	Segment struct {
		Key     string
		Index   int
		IsIndex bool
	}

	// Path is the sequence of keys and indices from the document root to a node.
	Path []Segment

	// Pattern selects nodes by path. Segments are separated by dots; "*" matches
	// any single key or index, "**" matches zero or more segments, "[n]" or a
	// bare number matches a sequence index, and a double-quoted segment is a
	// literal key that may contain dots. Key segments may use path.Match globs.
	Pattern struct {
		raw  string
		segs []string
	}
)

// KeySegment returns a mapping key segment.
func KeySegment(key string) Segment { return Segment{Key: key} }

// IndexSegment returns a sequence index segment.
func IndexSegment(i int) Segment { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	if s.Key == "" || strings.ContainsAny(s.Key, ".[]\" ") {
		return strconv.Quote(s.Key)
	}
	return s.Key
}

// Append returns a new Path with seg appended. The receiver is never mutated.
func (p Path) Append(seg Segment) Path {
	out := make(Path, len(p), len(p)+1)
	copy(out, p)
	return append(out, seg)
}

// Last returns the final segment of the path.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// String renders the path as a.b[0].c; the root path renders as "$".
func (p Path) String() string {
	if len(p) == 0 {
		return "$"
	}
	var sb strings.Builder
	for i, seg := range p {
		if i > 0 && !seg.IsIndex {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.String())
	}
	return sb.String()
}

// Equal reports whether two paths are identical.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// ParsePattern compiles a path pattern. The empty pattern selects the node it
// is applied to.
func ParsePattern(raw string) (Pattern, error) {
	p := Pattern{raw: raw}
	s := strings.TrimSpace(raw)
	for len(s) > 0 {
		switch s[0] {
		case '.':
			s = s[1:]
			if s == "" || s[0] == '.' {
				return Pattern{}, fmt.Errorf("%w %q: empty segment", ErrInvalidPattern, raw)
			}
		case '"':
			end := strings.IndexByte(s[1:], '"')
			if end < 0 {
				return Pattern{}, fmt.Errorf("%w %q: unterminated quote", ErrInvalidPattern, raw)
			}
			p.segs = append(p.segs, "="+s[1:end+1])
			s = s[end+2:]
		case '[':
			end := strings.IndexByte(s, ']')
			if end < 0 {
				return Pattern{}, fmt.Errorf("%w %q: unterminated index", ErrInvalidPattern, raw)
			}
			inner := strings.TrimSpace(s[1:end])
			if inner != "*" {
				if _, err := strconv.Atoi(inner); err != nil {
					return Pattern{}, fmt.Errorf("%w %q: bad index %q", ErrInvalidPattern, raw, inner)
				}
			}
			p.segs = append(p.segs, "["+inner+"]")
			s = s[end+1:]
		default:
			end := strings.IndexAny(s, ".[")
			if end < 0 {
				end = len(s)
			}
			seg := s[:end]
			if _, err := path.Match(seg, ""); err != nil {
				return Pattern{}, fmt.Errorf("%w %q: %w", ErrInvalidPattern, raw, err)
			}
			p.segs = append(p.segs, seg)
			s = s[end:]
		}
	}
	return p, nil
}

// MustPattern is like ParsePattern but panics on error. It is meant for
// patterns that are compile-time constants.
func MustPattern(raw string) Pattern {
	p, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pattern) String() string { return p.raw }

// IsZero reports whether the pattern selects only the node it is applied to.
func (p Pattern) IsZero() bool { return len(p.segs) == 0 }

// Match reports whether a path relative to the pattern's anchor matches.
func (p Pattern) Match(rel Path) bool {
	return matchSegments(p.segs, rel)
}

func matchSegments(segs []string, rel Path) bool {
	if len(segs) == 0 {
		return len(rel) == 0
	}
	if segs[0] == "**" {
		for i := 0; i <= len(rel); i++ {
			if matchSegments(segs[1:], rel[i:]) {
				return true
			}
		}
		return false
	}
	if len(rel) == 0 || !segmentMatches(segs[0], rel[0]) {
		return false
	}
	return matchSegments(segs[1:], rel[1:])
}

// isIndexSelector reports whether a pattern segment was written in brackets
// and so only selects sequence elements.
func isIndexSelector(pat string) bool {
	return strings.HasPrefix(pat, "[")
}

// mayIndex reports whether a pattern segment can select a sequence element.
func mayIndex(pat string) bool {
	if pat == "*" || isIndexSelector(pat) {
		return true
	}
	_, err := strconv.Atoi(pat)
	return err == nil
}

func segmentMatches(pat string, seg Segment) bool {
	if pat == "*" {
		return true
	}
	if isIndexSelector(pat) {
		inner := strings.TrimSuffix(strings.TrimPrefix(pat, "["), "]")
		if !seg.IsIndex {
			return false
		}
		if inner == "*" {
			return true
		}
		n, err := strconv.Atoi(inner)
		return err == nil && n == seg.Index
	}
	if literal, ok := strings.CutPrefix(pat, "="); ok {
		return !seg.IsIndex && seg.Key == literal
	}
	if seg.IsIndex {
		n, err := strconv.Atoi(pat)
		return err == nil && n == seg.Index
	}
	if pat == seg.Key {
		return true
	}
	ok, err := path.Match(pat, seg.Key)
	return err == nil && ok
}
