// SPDX-License-Identifier: MPL-2.0

package document

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// parseMarkdown turns prose into a sequence of sections. Each section is a
// mapping {heading, level, paragraphs}; text before the first heading forms a
// section with an empty heading and level 0. Code blocks contribute one
// paragraph per line so facts in scripts keep exact lines. Prose never fails
// to parse.
func parseMarkdown(_ string, raw []byte) (*Node, error) {
	li := newLineIndex(raw)
	doc := goldmark.DefaultParser().Parse(text.NewReader(raw))

	root := newSequence(nil, Location{LineStart: 1})
	var paragraphs *Node
	startSection := func(heading string, level, line int) {
		p := Path{IndexSegment(root.Len())}
		loc := Location{LineStart: line, LineEnd: line}
		sec := newMapping(p, loc)
		sec.setChild("heading", newScalar(p.Append(KeySegment("heading")), heading, heading, loc))
		sec.setChild("level", newScalar(p.Append(KeySegment("level")), int64(level), "", loc))
		paragraphs = newSequence(p.Append(KeySegment("paragraphs")), loc)
		sec.setChild("paragraphs", paragraphs)
		root.appendChild(sec)
	}
	addParagraph := func(body string, first, last int) {
		body = strings.TrimSpace(body)
		if body == "" {
			return
		}
		p := paragraphs.Path.Append(IndexSegment(paragraphs.Len()))
		paragraphs.appendChild(newScalar(p, body, body, Location{LineStart: first, LineEnd: last}))
	}
	startSection("", 0, 1)

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Heading:
			first, _, body := segmentText(node.Lines(), raw, li)
			if first == 0 {
				first = paragraphs.Location.LineEnd
			}
			startSection(strings.TrimSpace(strings.TrimRight(body, "#")), node.Level, first)
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				line := li.lineAt(seg.Start)
				addParagraph(string(seg.Value(raw)), line, line)
			}
			return ast.WalkSkipChildren, nil
		case *ast.Paragraph, *ast.TextBlock, *ast.HTMLBlock:
			first, last, body := segmentText(n.Lines(), raw, li)
			if first > 0 {
				addParagraph(body, first, last)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return root, nil
}

func segmentText(lines *text.Segments, raw []byte, li lineIndex) (first, last int, body string) {
	if lines == nil || lines.Len() == 0 {
		return 0, 0, ""
	}
	var buf bytes.Buffer
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(bytes.TrimRight(seg.Value(raw), "\r\n"))
	}
	start := lines.At(0)
	end := lines.At(lines.Len() - 1)
	first = li.lineAt(start.Start)
	last = li.lineAt(max(end.Stop-1, end.Start))
	return first, last, buf.String()
}
