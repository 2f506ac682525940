// SPDX-License-Identifier: MPL-2.0

package document

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var yamlErrLine = regexp.MustCompile(`line (\d+)`)

// parseYAML handles YAML and JSON (JSON is parsed as a YAML flow document).
// A stream with several documents becomes a sequence root, one element per
// document. Duplicate mapping keys are a parse error; the partial tree keeps
// the first occurrence.
func parseYAML(_ string, raw []byte) (*Node, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	var docs []*yaml.Node
	for {
		var n yaml.Node
		err := dec.Decode(&n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			root, _ := buildYAMLRoot(docs)
			return root, &syntaxError{line: yamlLine(err), msg: strings.TrimPrefix(err.Error(), "yaml: ")}
		}
		docs = append(docs, &n)
	}
	return buildYAMLRoot(docs)
}

func buildYAMLRoot(docs []*yaml.Node) (*Node, error) {
	c := &yamlConverter{}
	var root *Node
	switch len(docs) {
	case 0:
		root = newMapping(nil, Location{LineStart: 1})
	case 1:
		root = c.convert(docs[0], nil)
	default:
		root = newSequence(nil, Location{LineStart: 1})
		for i, d := range docs {
			root.appendChild(c.convert(d, Path{IndexSegment(i)}))
		}
	}
	if c.err != nil {
		return root, c.err
	}
	return root, nil
}

type yamlConverter struct {
	err *syntaxError
}

func (c *yamlConverter) fail(line int, format string, args ...any) {
	if c.err == nil {
		c.err = &syntaxError{line: line, msg: fmt.Sprintf(format, args...)}
	}
}

func (c *yamlConverter) convert(n *yaml.Node, p Path) *Node {
	loc := Location{LineStart: n.Line, LineEnd: n.Line}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return newMapping(p, loc)
		}
		return c.convert(n.Content[0], p)
	case yaml.AliasNode:
		if n.Alias == nil {
			return newScalar(p, nil, n.Value, loc)
		}
		out := c.convert(n.Alias, p)
		out.Location = loc
		return out
	case yaml.SequenceNode:
		seq := newSequence(p, loc)
		for i, item := range n.Content {
			seq.appendChild(c.convert(item, p.Append(IndexSegment(i))))
		}
		return seq
	case yaml.MappingNode:
		m := newMapping(p, loc)
		firstSeen := map[string]int{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, v := n.Content[i], n.Content[i+1]
			if prev, dup := firstSeen[k.Value]; dup {
				c.fail(k.Line, "mapping key %q already defined at line %d", k.Value, prev)
				continue
			}
			firstSeen[k.Value] = k.Line
			child := c.convert(v, p.Append(KeySegment(k.Value)))
			child.Location.LineStart = k.Line
			m.setChild(k.Value, child)
		}
		return m
	default:
		value := yamlScalar(n)
		if n.Style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0 {
			loc.LineEnd = n.Line + strings.Count(strings.TrimRight(n.Value, "\n"), "\n") + 1
		}
		return newScalar(p, value, n.Value, loc)
	}
}

func yamlScalar(n *yaml.Node) any {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		if i, err := strconv.ParseInt(strings.ReplaceAll(n.Value, "_", ""), 0, 64); err == nil {
			return i
		}
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	case "!!timestamp":
		var t time.Time
		if err := n.Decode(&t); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return n.Value
}

func yamlLine(err error) int {
	var te *yaml.TypeError
	msg := err.Error()
	if errors.As(err, &te) && len(te.Errors) > 0 {
		msg = te.Errors[0]
	}
	if m := yamlErrLine.FindStringSubmatch(msg); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n
	}
	return 0
}
