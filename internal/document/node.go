// SPDX-License-Identifier: MPL-2.0

package document

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Node kinds.
const (
	KindScalar Kind = iota
	KindSequence
	KindMapping
)

type (
	// Kind discriminates scalar, sequence, and mapping nodes.
	Kind int

	// Location identifies a contiguous line range inside a document.
	// Lines are 1-based and inclusive.
	Location struct {
		DocumentID string `json:"document_id"`
		LineStart  int    `json:"line_start"`
		LineEnd    int    `json:"line_end"`
	}

	// Node is one element of a document tree.
	//
	// Scalars hold a Value of type string, int64, float64, bool, or nil and keep
	// the source text in Raw. Mappings and sequences hold children in
	// declaration order.
	Node struct {
		Kind     Kind
		Path     Path
		Value    any
		Raw      string
		Location Location

		children []*Node
		keys     map[string]int
		// group marks a sequence synthesized from a repeated mapping key.
		group bool
	}
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// String renders the location as "id:12" or "id:12-14".
func (l Location) String() string {
	if l.LineEnd > l.LineStart {
		return fmt.Sprintf("%s:%d-%d", l.DocumentID, l.LineStart, l.LineEnd)
	}
	return fmt.Sprintf("%s:%d", l.DocumentID, l.LineStart)
}

// IsValid reports whether the location names a document and a non-empty line range.
func (l Location) IsValid() bool {
	return l.DocumentID != "" && l.LineStart > 0 && l.LineEnd >= l.LineStart
}

// Compare orders locations by document ID, then start line, then end line.
func (l Location) Compare(other Location) int {
	if c := strings.Compare(l.DocumentID, other.DocumentID); c != 0 {
		return c
	}
	if l.LineStart != other.LineStart {
		return l.LineStart - other.LineStart
	}
	return l.LineEnd - other.LineEnd
}

func newScalar(p Path, value any, raw string, loc Location) *Node {
	return &Node{Kind: KindScalar, Path: p, Value: value, Raw: raw, Location: loc}
}

func newSequence(p Path, loc Location) *Node {
	return &Node{Kind: KindSequence, Path: p, Location: loc}
}

func newMapping(p Path, loc Location) *Node {
	return &Node{Kind: KindMapping, Path: p, Location: loc, keys: map[string]int{}}
}

// IsScalar reports whether n is a scalar node.
func (n *Node) IsScalar() bool { return n != nil && n.Kind == KindScalar }

// Len returns the number of children.
func (n *Node) Len() int { return len(n.children) }

// Children returns the node's children in declaration order. The returned
// slice is a copy; the nodes themselves must not be modified.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Child returns the mapping child stored under key.
func (n *Node) Child(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMapping {
		return nil, false
	}
	i, ok := n.keys[key]
	if !ok {
		return nil, false
	}
	return n.children[i], true
}

// At returns the i-th sequence element.
func (n *Node) At(i int) (*Node, bool) {
	if n == nil || n.Kind != KindSequence || i < 0 || i >= len(n.children) {
		return nil, false
	}
	return n.children[i], true
}

// Key returns the mapping key under which the node is stored, or "" for
// sequence elements and the root.
func (n *Node) Key() string {
	seg, ok := n.Path.Last()
	if !ok || seg.IsIndex {
		return ""
	}
	return seg.Key
}

// Text returns the scalar value as text. Containers return their Raw text,
// which is usually empty.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	switch v := n.Value.(type) {
	case nil:
		if n.Raw != "" {
			return n.Raw
		}
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// Find returns every node under n whose path relative to n matches p, in
// declaration order. Each node appears at most once. Occurrences of a
// repeated key (two provider "aws" blocks) all match the plain key path.
func (n *Node) Find(p Pattern) []*Node {
	if n == nil {
		return nil
	}
	var out []*Node
	seen := map[*Node]struct{}{}
	find(n, p.segs, &out, seen)
	return out
}

// First returns the first match of p under n.
func (n *Node) First(p Pattern) (*Node, bool) {
	found := n.Find(p)
	if len(found) == 0 {
		return nil, false
	}
	return found[0], true
}

func find(n *Node, segs []string, out *[]*Node, seen map[*Node]struct{}) {
	if len(segs) == 0 {
		if _, dup := seen[n]; !dup {
			seen[n] = struct{}{}
			*out = append(*out, n)
		}
		return
	}
	if segs[0] == "**" {
		find(n, segs[1:], out, seen)
		for _, c := range n.children {
			find(c, segs, out, seen)
		}
		return
	}
	for _, c := range n.children {
		seg, _ := c.Path.Last()
		if !segmentMatches(segs[0], seg) {
			continue
		}
		if !c.group {
			find(c, segs[1:], out, seen)
			continue
		}
		// A repeated key is addressed like a single one. A bracketed index
		// selects one occurrence; "*" and bare numbers may do either.
		if len(segs) > 1 && mayIndex(segs[1]) {
			find(c, segs[1:], out, seen)
		}
		if len(segs) == 1 || !isIndexSelector(segs[1]) {
			for _, occurrence := range c.children {
				find(occurrence, segs[1:], out, seen)
			}
		}
	}
}

// Walk visits n and its descendants in declaration order (pre-order). It
// stops at the first error returned by fn and checks ctx before each node.
func Walk(ctx context.Context, n *Node, fn func(*Node) error) error {
	if n == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := Walk(ctx, c, fn); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) appendChild(c *Node) {
	n.children = append(n.children, c)
}

// setChild stores c under key. A repeated key turns the slot into a sequence
// group holding every occurrence in declaration order, so no value is lost.
func (n *Node) setChild(key string, c *Node) {
	i, exists := n.keys[key]
	if !exists {
		n.keys[key] = len(n.children)
		n.children = append(n.children, c)
		return
	}
	prev := n.children[i]
	groupPath := n.Path.Append(KeySegment(key))
	if !prev.group {
		group := newSequence(groupPath, prev.Location)
		group.group = true
		repath(prev, groupPath.Append(IndexSegment(0)))
		group.appendChild(prev)
		n.children[i] = group
		prev = group
	}
	repath(c, groupPath.Append(IndexSegment(len(prev.children))))
	prev.appendChild(c)
}

func repath(n *Node, p Path) {
	n.Path = p
	for i, c := range n.children {
		seg, _ := c.Path.Last()
		if n.Kind == KindSequence {
			seg = IndexSegment(i)
		}
		repath(c, p.Append(seg))
	}
}

// finalize stamps the document ID on every node and makes every location
// valid: unknown lines inherit the parent's start, and containers extend to
// cover their children.
func finalize(n *Node, docID string, parent Location) {
	loc := n.Location
	loc.DocumentID = docID
	if loc.LineStart <= 0 {
		loc.LineStart = max(parent.LineStart, 1)
	}
	if loc.LineEnd < loc.LineStart {
		loc.LineEnd = loc.LineStart
	}
	n.Location = loc
	for _, c := range n.children {
		finalize(c, docID, loc)
		if c.Location.LineEnd > n.Location.LineEnd {
			n.Location.LineEnd = c.Location.LineEnd
		}
	}
}
