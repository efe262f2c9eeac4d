// Package hcl parses HCL native syntax with
// github.com/hashicorp/hcl/v2/hclsyntax.
//
// The tree mirrors the hclsyntax AST: a body holds attributes and
// blocks in source order, blocks hold their type, labels and body, and
// expressions keep their structure. The parser recovers from syntax
// errors, so a tree with errors still holds everything it understood.
package hcl

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/rawtree"
	"mercator-hq/arbor/pkg/tree"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
)

// ID is the backend id.
const ID = "hcl"

// Descriptor returns the backend descriptor.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          ID,
		Key:         backend.KeyNative,
		Description: "HCL via github.com/hashicorp/hcl/v2",
		Resources:   []string{"hcl"},
		Available:   func() bool { return true },
		Capabilities: backend.Capabilities{
			backend.CapSiblings:       true,
			backend.CapComments:       true,
			backend.CapErrorRecovery:  true,
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

// Producer parses HCL files.
type Producer struct {
	filename string
}

// New builds a producer. The option "filename" names the source in
// diagnostics; it defaults to the resource name with an .hcl suffix.
func New(cfg backend.Config) (backend.Producer, error) {
	return &Producer{filename: cfg.Option("filename", "")}, nil
}

// Parse implements backend.Producer.
func (p *Producer) Parse(ctx context.Context, lang any, src []byte) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	filename := p.filename
	if filename == "" {
		name, _ := lang.(string)
		if name == "" {
			name = "input"
		}
		filename = name + ".hcl"
	}

	start := hcl.Pos{Line: 1, Column: 1, Byte: 0}
	file, diags := hclsyntax.ParseConfig(src, filename, start)

	out := &rawtree.Tree{}
	if file != nil {
		if body, ok := file.Body.(*hclsyntax.Body); ok {
			w := &walker{}
			hclsyntax.Walk(body, w)
			out.Root = w.root
		}
	}
	if out.Root == nil {
		lines := rawtree.NewLines(src)
		out.Root = lines.Span1("body", 0, len(src))
	}

	for _, d := range diags {
		switch d.Severity {
		case hcl.DiagError:
			out.Errs = append(out.Errs, diagnostic(d))
		case hcl.DiagWarning:
			out.Warns = append(out.Warns, diagnostic(d))
		}
	}
	if len(out.Errs) > 0 {
		out.Root.Error = true
	}

	tokens, _ := hclsyntax.LexConfig(src, filename, start)
	for _, tok := range tokens {
		if tok.Type == hclsyntax.TokenComment {
			out.Notes = append(out.Notes, comment(tok))
		}
	}

	return out, nil
}

// walker builds raw nodes as hclsyntax.Walk enters and exits AST nodes.
// Attributes and Blocks are containers without a node of their own.
type walker struct {
	root  *rawtree.Node
	stack []*rawtree.Node
}

func (w *walker) Enter(n hclsyntax.Node) hcl.Diagnostics {
	switch n.(type) {
	case hclsyntax.Attributes, hclsyntax.Blocks:
		return nil
	}

	out := span(kindName(n), n.Range())
	switch n := n.(type) {
	case *hclsyntax.Attribute:
		out.Add(span("identifier", n.NameRange))
	case *hclsyntax.Block:
		out.Add(span("identifier", n.TypeRange))
		for _, r := range n.LabelRanges {
			out.Add(span("label", r))
		}
	}

	if len(w.stack) == 0 {
		w.root = out
	} else {
		w.stack[len(w.stack)-1].Add(out)
	}
	w.stack = append(w.stack, out)
	return nil
}

func (w *walker) Exit(n hclsyntax.Node) hcl.Diagnostics {
	switch n.(type) {
	case hclsyntax.Attributes, hclsyntax.Blocks:
		return nil
	}

	top := w.stack[len(w.stack)-1]
	w.stack = w.stack[:len(w.stack)-1]

	// Attributes are kept in a map; restore source order.
	sort.SliceStable(top.Children, func(i, j int) bool {
		return top.Children[i].Start < top.Children[j].Start
	})
	return nil
}

func span(kind string, r hcl.Range) *rawtree.Node {
	return &rawtree.Node{
		Kind:    kind,
		Start:   r.Start.Byte,
		End:     r.End.Byte,
		StartPt: backend.Point{Row: r.Start.Line, Column: r.Start.Column},
		EndPt:   backend.Point{Row: r.End.Line, Column: r.End.Column},
	}
}

func diagnostic(d *hcl.Diagnostic) backend.Diagnostic {
	msg := d.Summary
	if d.Detail != "" {
		msg = fmt.Sprintf("%s: %s", d.Summary, d.Detail)
	}

	out := backend.Diagnostic{Message: msg}
	if d.Subject != nil {
		r := d.Subject
		out.StartByte, out.EndByte = r.Start.Byte, r.End.Byte
		out.Start = backend.Point{Row: r.Start.Line, Column: r.Start.Column}
		out.End = backend.Point{Row: r.End.Line, Column: r.End.Column}
		out.HasPosition = true
	}
	return out
}

// comment trims the line terminator that line comments own.
func comment(tok hclsyntax.Token) backend.Comment {
	text := strings.TrimRight(string(tok.Bytes), "\r\n")
	start := tok.Range.Start
	return backend.Comment{
		Text:      text,
		StartByte: start.Byte,
		EndByte:   start.Byte + len(text),
		Start:     backend.Point{Row: start.Line, Column: start.Column},
		End:       backend.Point{Row: start.Line, Column: start.Column + utf8.RuneCountInString(text)},
	}
}

// kindName derives a node type from the AST type: *hclsyntax.TupleConsExpr
// becomes tuple_cons.
func kindName(n hclsyntax.Node) string {
	name := strings.TrimSuffix(reflect.Indirect(reflect.ValueOf(n)).Type().Name(), "Expr")
	return rawtree.Snake(name)
}
