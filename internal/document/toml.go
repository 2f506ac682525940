// SPDX-License-Identifier: MPL-2.0

package document

import (
	"bufio"
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// parseTOML decodes with go-toml and recovers key lines with a line scanner,
// since the decoded map carries no positions.
func parseTOML(_ string, raw []byte) (*Node, error) {
	var data map[string]any
	if err := toml.Unmarshal(raw, &data); err != nil {
		se := &syntaxError{msg: err.Error()}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			se.line, _ = de.Position()
		}
		return nil, se
	}
	lines := locateTOMLKeys(raw)
	return buildLocated(data, nil, lines), nil
}

// buildLocated converts decoded maps and slices into nodes. Mapping keys are
// ordered by the line at which they were located, then by name.
func buildLocated(v any, p Path, lines map[string]int) *Node {
	loc := Location{LineStart: lines[p.String()]}
	switch val := v.(type) {
	case map[string]any:
		m := newMapping(p, loc)
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		lineOf := func(k string) int {
			if l, ok := lines[p.Append(KeySegment(k)).String()]; ok {
				return l
			}
			return math.MaxInt
		}
		slices.SortFunc(keys, func(a, b string) int {
			if c := cmp.Compare(lineOf(a), lineOf(b)); c != 0 {
				return c
			}
			return strings.Compare(a, b)
		})
		for _, k := range keys {
			m.setChild(k, buildLocated(val[k], p.Append(KeySegment(k)), lines))
		}
		return m
	case []any:
		seq := newSequence(p, loc)
		for i, item := range val {
			seq.appendChild(buildLocated(item, p.Append(IndexSegment(i)), lines))
		}
		return seq
	case []map[string]any:
		seq := newSequence(p, loc)
		for i, item := range val {
			seq.appendChild(buildLocated(item, p.Append(IndexSegment(i)), lines))
		}
		return seq
	case int64, float64, bool, string, nil:
		return newScalar(p, val, fmt.Sprint(val), loc)
	case int:
		return newScalar(p, int64(val), fmt.Sprint(val), loc)
	case time.Time:
		s := val.UTC().Format(time.RFC3339)
		return newScalar(p, s, s, loc)
	default:
		s := fmt.Sprint(val)
		return newScalar(p, s, s, loc)
	}
}

// locateTOMLKeys maps rendered paths to the line that declares them. It
// understands [table], [[array.of.tables]] and dotted keys, which covers the
// configuration files this tool audits; anything it misses inherits the
// enclosing table's line.
func locateTOMLKeys(raw []byte) map[string]int {
	lines := map[string]int{}
	arrays := map[string]int{}
	var table Path

	sc := bufio.NewScanner(bytes.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "" || strings.HasPrefix(line, "#"):
			continue
		case strings.HasPrefix(line, "[["):
			name := strings.TrimSpace(strings.Trim(cutComment(line), "[]"))
			table = resolveTablePath(splitDotted(name), arrays)
			key := table.String()
			idx := arrays[key]
			arrays[key] = idx + 1
			if _, ok := lines[key]; !ok {
				lines[key] = lineNo
			}
			table = table.Append(IndexSegment(idx))
			lines[table.String()] = lineNo
		case strings.HasPrefix(line, "["):
			name := strings.TrimSpace(strings.Trim(cutComment(line), "[]"))
			table = resolveTablePath(splitDotted(name), arrays)
			setFirst(lines, table, lineNo)
		default:
			k, _, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			p := table
			for _, part := range splitDotted(strings.TrimSpace(k)) {
				p = p.Append(KeySegment(part))
				setFirst(lines, p, lineNo)
			}
		}
	}
	return lines
}

func setFirst(lines map[string]int, p Path, line int) {
	key := p.String()
	if _, ok := lines[key]; !ok {
		lines[key] = line
	}
}

// resolveTablePath inserts the current element index after every prefix that
// names an array of tables, so [servers.limits] after [[servers]] resolves to
// servers[n].limits.
func resolveTablePath(parts []string, arrays map[string]int) Path {
	var p Path
	for i, part := range parts {
		p = p.Append(KeySegment(part))
		if i == len(parts)-1 {
			break
		}
		if n, ok := arrays[p.String()]; ok && n > 0 {
			p = p.Append(IndexSegment(n - 1))
		}
	}
	return p
}

func splitDotted(s string) []string {
	var parts []string
	var cur strings.Builder
	quote := byte(0)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0 && c == quote:
			quote = 0
		case quote == 0 && (c == '"' || c == '\''):
			quote = c
		case quote == 0 && c == '.':
			parts = append(parts, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(parts, strings.TrimSpace(cur.String()))
}

func cutComment(line string) string {
	if i := strings.Index(line, "#"); i >= 0 {
		return strings.TrimSpace(line[:i])
	}
	return line
}
