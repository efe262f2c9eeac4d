// Package goyaml parses YAML with github.com/goccy/go-yaml.
//
// The AST is read with ast.Walk: a visitor that stops after one level
// yields a node's direct children, and a second visitor gathers comment
// groups.
package goyaml

import (
	"context"
	"errors"
	"sort"
	"strings"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/rawtree"
	"mercator-hq/arbor/pkg/tree"

	"github.com/goccy/go-yaml"
	"github.com/goccy/go-yaml/ast"
	"github.com/goccy/go-yaml/parser"
	"github.com/goccy/go-yaml/token"
)

// ID is the backend id.
const ID = "goyaml"

// Descriptor returns the backend descriptor.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          ID,
		Key:         backend.KeyNative,
		Description: "YAML via github.com/goccy/go-yaml",
		Resources:   []string{"yaml"},
		Available:   func() bool { return true },
		Capabilities: backend.Capabilities{
			backend.CapSiblings:       true,
			backend.CapComments:       true,
			backend.CapExactPositions: true,
		},
		New: New,
	}
}

// Adapter returns the normalization adapter of the backend.
func Adapter() tree.Adapter {
	return tree.Adapter{
		Unwrap:  rawtree.UnwrapName,
		Lines:   tree.OneBased,
		Columns: tree.OneBased,
	}
}

// Producer parses YAML files.
type Producer struct {
	mode parser.Mode
}

// New builds a producer. The option "comments" set to "false" skips
// comment parsing.
func New(cfg backend.Config) (backend.Producer, error) {
	p := &Producer{}
	if cfg.Option("comments", "true") != "false" {
		p.mode |= parser.ParseComments
	}
	return p, nil
}

// Parse implements backend.Producer. The library rejects a file with a
// syntax error as a whole, so the tree is then an empty "file" root
// carrying the error.
func (p *Producer) Parse(ctx context.Context, _ any, src []byte) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &builder{src: src, lines: rawtree.NewLines(src), seen: make(map[int]bool)}
	root := b.lines.Span1("file", 0, len(src))

	f, err := parser.ParseBytes(src, p.mode)
	if err != nil {
		root.Error = true
		return &rawtree.Tree{Root: root, Errs: []backend.Diagnostic{b.diagnostic(err)}}, nil
	}

	for _, doc := range f.Docs {
		root.Add(b.node(doc))
		ast.Walk(&commentVisitor{b: b}, doc)
	}

	sort.Slice(b.notes, func(i, j int) bool { return b.notes[i].StartByte < b.notes[j].StartByte })
	return &rawtree.Tree{Root: root, Notes: b.notes}, nil
}

// childVisitor collects the direct children of self.
type childVisitor struct {
	self ast.Node
	out  []ast.Node
}

func (v *childVisitor) Visit(n ast.Node) ast.Visitor {
	if n == nil {
		return nil
	}
	if n == v.self {
		return v
	}
	switch n.(type) {
	case *ast.CommentGroupNode, *ast.CommentNode:
		return nil
	}
	v.out = append(v.out, n)
	return nil
}

func children(n ast.Node) []ast.Node {
	v := &childVisitor{self: n}
	ast.Walk(v, n)
	return v.out
}

// commentVisitor gathers every comment group reachable from a document.
type commentVisitor struct {
	b *builder
}

func (v *commentVisitor) Visit(n ast.Node) ast.Visitor {
	switch n := n.(type) {
	case nil:
		return nil
	case *ast.CommentGroupNode:
		v.b.comments(n)
		return nil
	case *ast.MappingNode:
		v.b.comments(n.FootComment)
	case *ast.MappingValueNode:
		v.b.comments(n.FootComment)
	case *ast.SequenceNode:
		v.b.comments(n.FootComment)
		for _, c := range n.ValueHeadComments {
			v.b.comments(c)
		}
	}
	return v
}

type builder struct {
	src   []byte
	lines *rawtree.Lines
	seen  map[int]bool
	notes []backend.Comment
}

func (b *builder) node(n ast.Node) *rawtree.Node {
	kids := children(n)
	out := &rawtree.Node{Kind: kindName(n.Type())}
	for _, c := range kids {
		out.Add(b.node(c))
	}

	var tk *token.Token
	if _, isDoc := n.(*ast.DocumentNode); !isDoc {
		tk = n.GetToken()
	}

	if len(out.Children) == 0 {
		if tk == nil {
			return out
		}
		start := b.offset(tk)
		out.Start, out.End = start, b.lines.ScalarEnd(start, tk.Value)
		out.StartPt, out.EndPt = b.lines.Point1(out.Start), b.lines.Point1(out.End)
		return out
	}

	rawtree.Cover(out, b.lines.Point1)
	if tk != nil {
		out.Start = min(out.Start, b.offset(tk))
	}
	switch n := n.(type) {
	case *ast.MappingNode:
		if n.IsFlowStyle && n.End != nil {
			out.End = max(out.End, b.offset(n.End)+1)
		}
	case *ast.SequenceNode:
		if n.IsFlowStyle && n.End != nil {
			out.End = max(out.End, b.offset(n.End)+1)
		}
	}
	out.StartPt, out.EndPt = b.lines.Point1(out.Start), b.lines.Point1(out.End)
	return out
}

func (b *builder) offset(tk *token.Token) int {
	if tk.Position == nil {
		return 0
	}
	return b.lines.Offset(tk.Position.Line-1, tk.Position.Column-1)
}

func (b *builder) comments(g *ast.CommentGroupNode) {
	if g == nil {
		return
	}
	for _, c := range g.Comments {
		if c == nil || c.Token == nil {
			continue
		}
		start := b.offset(c.Token)
		if b.seen[start] {
			continue
		}
		b.seen[start] = true

		end := b.lines.LineEnd(b.lines.Point(start).Row)
		b.notes = append(b.notes, backend.Comment{
			Text:      strings.TrimRight(string(b.src[start:end]), " \t"),
			StartByte: start,
			EndByte:   end,
			Start:     b.lines.Point1(start),
			End:       b.lines.Point1(end),
		})
	}
}

func (b *builder) diagnostic(err error) backend.Diagnostic {
	var serr *yaml.SyntaxError
	if !errors.As(err, &serr) {
		return backend.Diagnostic{Message: err.Error()}
	}

	d := backend.Diagnostic{Message: serr.Message}
	if serr.Token != nil && serr.Token.Position != nil {
		start := b.offset(serr.Token)
		d.StartByte = start
		d.EndByte = min(start+len(serr.Token.Value), b.lines.Len())
		d.Start, d.End = b.lines.Point1(d.StartByte), b.lines.Point1(d.EndByte)
		d.HasPosition = true
	}
	return d
}

// kindName turns a node type such as MappingValue into mapping_value.
func kindName(t ast.NodeType) string {
	name := t.String()
	return rawtree.Snake(name)
}
