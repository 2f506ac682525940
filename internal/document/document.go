// SPDX-License-Identifier: MPL-2.0

package document

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sort"
)

// ErrParse is the sentinel error wrapped by ParseError.
var ErrParse = errors.New("document could not be parsed")

type (
	// Document is a parsed input file. It is immutable after Parse returns.
	Document struct {
		ID     string
		Format Format
		Syntax Syntax
		Root   *Node
		Lines  int
		Facts  []Fact
	}

	// ParseError reports a document that could not be parsed. Partial holds
	// whatever tree the adapter recovered before the error, or nil.
	ParseError struct {
		DocumentID string
		Line       int
		Reason     string
		Partial    *Document
		Cause      error
	}

	// adapter turns raw bytes into an unlocated-by-ID tree. On failure it may
	// return a partial root together with a *syntaxError.
	adapter func(name string, raw []byte) (*Node, error)

	syntaxError struct {
		line int
		msg  string
	}
)

var adapters = map[Syntax]adapter{
	SyntaxYAML:     parseYAML,
	SyntaxJSON:     parseYAML,
	SyntaxHCL:      parseHCL,
	SyntaxMarkdown: parseMarkdown,
	SyntaxTOML:     parseTOML,
	SyntaxINI:      parseINI,
}

// Syntaxes returns the syntaxes that have a built-in adapter, sorted.
func Syntaxes() []Syntax {
	out := make([]Syntax, 0, len(adapters))
	for s := range adapters {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}

// Parse builds a Document from raw bytes. An empty syntax is inferred from
// the ID's extension. Parse never panics on malformed input; failures are
// reported as *ParseError.
func Parse(id string, raw []byte, format Format, syntax Syntax) (doc *Document, err error) {
	if ok, errs := format.IsValid(); !ok {
		return nil, &ParseError{DocumentID: id, Reason: errs[0].Error(), Cause: errs[0]}
	}
	if syntax == "" {
		syntax = InferSyntax(id)
	}
	parse, ok := adapters[syntax]
	if !ok {
		cause := &UnsupportedSyntaxError{Value: syntax}
		return nil, &ParseError{DocumentID: id, Reason: cause.Error(), Cause: cause}
	}

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &ParseError{DocumentID: id, Reason: fmt.Sprintf("parser panic: %v", r)}
		}
	}()

	lines := countLines(raw)
	root, perr := parse(id, raw)
	if root != nil {
		finalize(root, id, Location{LineStart: 1, LineEnd: max(lines, 1)})
		root.Location.LineStart = 1
		root.Location.LineEnd = max(root.Location.LineEnd, lines, 1)
	}
	var built *Document
	if root != nil {
		built = &Document{ID: id, Format: format, Syntax: syntax, Root: root, Lines: lines}
	}
	if perr != nil {
		pe := &ParseError{DocumentID: id, Reason: perr.Error(), Partial: built, Cause: perr}
		var se *syntaxError
		if errors.As(perr, &se) {
			pe.Line = se.line
			pe.Reason = se.msg
		}
		return nil, pe
	}
	if built == nil {
		return nil, &ParseError{DocumentID: id, Reason: "empty parse result"}
	}
	return built, nil
}

// WithFacts returns a copy of d carrying facts.
func (d *Document) WithFacts(facts []Fact) *Document {
	cp := *d
	cp.Facts = slices.Clone(facts)
	return &cp
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s: line %d: %s", e.DocumentID, e.Line, e.Reason)
	}
	return fmt.Sprintf("parse %s: %s", e.DocumentID, e.Reason)
}

// Unwrap returns ErrParse and the underlying cause.
func (e *ParseError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrParse}
	}
	return []error{ErrParse, e.Cause}
}

// Location returns the best known location of the failure.
func (e *ParseError) Location() Location {
	line := max(e.Line, 1)
	return Location{DocumentID: e.DocumentID, LineStart: line, LineEnd: line}
}

func (e *syntaxError) Error() string {
	if e.line > 0 {
		return fmt.Sprintf("line %d: %s", e.line, e.msg)
	}
	return e.msg
}

func countLines(raw []byte) int {
	if len(raw) == 0 {
		return 0
	}
	n := bytes.Count(raw, []byte{'\n'})
	if raw[len(raw)-1] != '\n' {
		n++
	}
	return n
}

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex []int

func newLineIndex(raw []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range raw {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

func (li lineIndex) lineAt(offset int) int {
	return sort.Search(len(li), func(i int) bool { return li[i] > offset })
}
