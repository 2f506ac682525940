// SPDX-License-Identifier: MPL-2.0

package document

import (
	"cmp"
	"math/big"
	"slices"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// parseHCL handles Terraform and other HCL files. Blocks nest by type and then
// by each label, so resource "aws_s3_bucket" "logs" lives at
// resource.aws_s3_bucket.logs. Repeated unlabeled blocks (ingress, rule)
// become sequence groups. Expressions that are not literals keep their
// source text.
func parseHCL(name string, raw []byte) (*Node, error) {
	file, diags := hclsyntax.ParseConfig(raw, name, hcl.Pos{Line: 1, Column: 1, Byte: 0})
	var root *Node
	if file != nil {
		if body, ok := file.Body.(*hclsyntax.Body); ok {
			root = convertBody(body, nil, raw)
		}
	}
	if diags.HasErrors() {
		for _, d := range diags {
			if d.Severity != hcl.DiagError {
				continue
			}
			se := &syntaxError{msg: d.Summary}
			if d.Detail != "" {
				se.msg += ": " + d.Detail
			}
			if d.Subject != nil {
				se.line = d.Subject.Start.Line
			}
			return root, se
		}
	}
	return root, nil
}

func hclLoc(r hcl.Range) Location {
	return Location{LineStart: r.Start.Line, LineEnd: r.End.Line}
}

func convertBody(body *hclsyntax.Body, p Path, src []byte) *Node {
	m := newMapping(p, hclLoc(body.SrcRange))

	type item struct {
		offset int
		attr   *hclsyntax.Attribute
		block  *hclsyntax.Block
	}
	items := make([]item, 0, len(body.Attributes)+len(body.Blocks))
	for _, a := range body.Attributes {
		items = append(items, item{offset: a.SrcRange.Start.Byte, attr: a})
	}
	for _, b := range body.Blocks {
		items = append(items, item{offset: b.TypeRange.Start.Byte, block: b})
	}
	slices.SortFunc(items, func(a, b item) int { return cmp.Compare(a.offset, b.offset) })

	for _, it := range items {
		if it.attr != nil {
			child := convertExpr(it.attr.Expr, p.Append(KeySegment(it.attr.Name)), src)
			child.Location.LineStart = it.attr.SrcRange.Start.Line
			m.setChild(it.attr.Name, child)
			continue
		}
		addBlock(m, it.block, src)
	}
	return m
}

func addBlock(parent *Node, b *hclsyntax.Block, src []byte) {
	loc := hclLoc(b.Range())
	keys := append([]string{b.Type}, b.Labels...)
	cur := parent
	for _, k := range keys[:len(keys)-1] {
		next, ok := cur.Child(k)
		if !ok || next.Kind != KindMapping {
			next = newMapping(cur.Path.Append(KeySegment(k)), loc)
			cur.setChild(k, next)
		}
		cur = next
	}
	last := keys[len(keys)-1]
	child := convertBody(b.Body, cur.Path.Append(KeySegment(last)), src)
	child.Location = loc
	cur.setChild(last, child)
}

func convertExpr(expr hclsyntax.Expression, p Path, src []byte) *Node {
	loc := hclLoc(expr.Range())
	switch e := expr.(type) {
	case *hclsyntax.TupleConsExpr:
		seq := newSequence(p, loc)
		for i, item := range e.Exprs {
			seq.appendChild(convertExpr(item, p.Append(IndexSegment(i)), src))
		}
		return seq
	case *hclsyntax.ObjectConsExpr:
		m := newMapping(p, loc)
		for _, item := range e.Items {
			key := objectKey(item.KeyExpr, src)
			m.setChild(key, convertExpr(item.ValueExpr, p.Append(KeySegment(key)), src))
		}
		return m
	}

	raw := string(expr.Range().SliceBytes(src))
	val, diags := expr.Value(nil)
	if !diags.HasErrors() {
		if v, ok := ctyScalar(val); ok {
			return newScalar(p, v, raw, loc)
		}
	}
	text := raw
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		text = text[1 : len(text)-1]
	}
	return newScalar(p, text, raw, loc)
}

func objectKey(expr hclsyntax.Expression, src []byte) string {
	if val, diags := expr.Value(nil); !diags.HasErrors() && val.IsKnown() && !val.IsNull() && val.Type().Equals(cty.String) {
		return val.AsString()
	}
	return strings.Trim(string(expr.Range().SliceBytes(src)), `"`)
}

func ctyScalar(v cty.Value) (any, bool) {
	if !v.IsWhollyKnown() {
		return nil, false
	}
	if v.IsNull() {
		return nil, true
	}
	switch ty := v.Type(); {
	case ty.Equals(cty.String):
		return v.AsString(), true
	case ty.Equals(cty.Bool):
		return v.True(), true
	case ty.Equals(cty.Number):
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return i, true
			}
		}
		f, _ := bf.Float64()
		return f, true
	}
	return nil, false
}
