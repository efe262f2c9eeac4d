// Package goast parses Go source with the standard library's go/parser.
//
// The parser mode is taken from the Language handle registered for this
// backend, when it is a parser.Mode.
package goast

import (
	"context"
	"errors"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"reflect"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/rawtree"
	"mercator-hq/arbor/pkg/tree"
)

// ID is the backend id.
const ID = "goast"

// DefaultMode is the parser mode used without a handle.
const DefaultMode = parser.ParseComments | parser.AllErrors | parser.SkipObjectResolution

// Descriptor returns the backend descriptor.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          ID,
		Key:         backend.KeyNative,
		Description: "Go via go/parser",
		Resources:   []string{"go"},
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
		Unwrap:  unwrap,
		Lines:   tree.OneBased,
		Columns: tree.OneBased,
	}
}

func unwrap(lang *tree.Language) (any, error) {
	if h, ok := lang.Handle(ID); ok {
		mode, ok := h.(parser.Mode)
		if !ok {
			return nil, &backend.InvalidConfigurationError{
				Resource: lang.Name,
				Reason:   "goast handle must be a parser.Mode",
			}
		}
		return mode, nil
	}
	return DefaultMode, nil
}

// Producer parses Go files.
type Producer struct {
	filename string
}

// New builds a producer. The option "filename" names the file in
// positions and errors.
func New(cfg backend.Config) (backend.Producer, error) {
	return &Producer{filename: cfg.Option("filename", "input.go")}, nil
}

// Parse implements backend.Producer.
func (p *Producer) Parse(ctx context.Context, lang any, src []byte) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mode, ok := lang.(parser.Mode)
	if !ok {
		mode = DefaultMode
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, p.filename, src, mode)

	b := &builder{fset: fset}
	out := &rawtree.Tree{}
	if file != nil {
		out.Root = b.build(file)
		out.Root.Start, out.Root.End = 0, len(src)
		lines := rawtree.NewLines(src)
		out.Root.StartPt, out.Root.EndPt = lines.Point1(0), lines.Point1(len(src))

		for _, g := range file.Comments {
			for _, c := range g.List {
				out.Notes = append(out.Notes, backend.Comment{
					Text:      c.Text,
					StartByte: b.offset(c.Pos()),
					EndByte:   b.offset(c.End()),
					Start:     b.point(c.Pos()),
					End:       b.point(c.End()),
				})
			}
		}
	} else {
		out.Root = rawtree.NewLines(src).Span1("file", 0, len(src))
	}

	if err != nil {
		out.Root.Error = true
		out.Errs = diagnostics(err)
	}
	return out, nil
}

type builder struct {
	fset  *token.FileSet
	stack []*rawtree.Node
	root  *rawtree.Node
}

func (b *builder) build(file *ast.File) *rawtree.Node {
	ast.Inspect(file, func(n ast.Node) bool {
		if n == nil {
			b.stack = b.stack[:len(b.stack)-1]
			return true
		}
		switch n.(type) {
		case *ast.CommentGroup, *ast.Comment:
			return false
		}

		out := &rawtree.Node{
			Kind:    kindName(n),
			Start:   b.offset(n.Pos()),
			End:     b.offset(n.End()),
			StartPt: b.point(n.Pos()),
			EndPt:   b.point(n.End()),
			Error:   isBad(n),
		}

		if len(b.stack) == 0 {
			b.root = out
		} else {
			b.stack[len(b.stack)-1].Add(out)
		}
		b.stack = append(b.stack, out)
		return true
	})
	return b.root
}

func isBad(n ast.Node) bool {
	switch n.(type) {
	case *ast.BadDecl, *ast.BadExpr, *ast.BadStmt:
		return true
	}
	return false
}

func (b *builder) offset(p token.Pos) int {
	if !p.IsValid() {
		return 0
	}
	return b.fset.Position(p).Offset
}

func (b *builder) point(p token.Pos) backend.Point {
	if !p.IsValid() {
		return backend.Point{}
	}
	pos := b.fset.Position(p)
	return backend.Point{Row: pos.Line, Column: pos.Column}
}

func diagnostics(err error) []backend.Diagnostic {
	var list scanner.ErrorList
	if !errors.As(err, &list) {
		return []backend.Diagnostic{{Message: err.Error()}}
	}

	out := make([]backend.Diagnostic, 0, len(list))
	for _, e := range list {
		pt := backend.Point{Row: e.Pos.Line, Column: e.Pos.Column}
		out = append(out, backend.Diagnostic{
			Message:     e.Msg,
			StartByte:   e.Pos.Offset,
			EndByte:     e.Pos.Offset,
			Start:       pt,
			End:         pt,
			HasPosition: e.Pos.IsValid(),
		})
	}
	return out
}

// kindName derives a node type from the AST type: *ast.FuncDecl becomes
// func_decl.
func kindName(n ast.Node) string {
	name := reflect.Indirect(reflect.ValueOf(n)).Type().Name()
	return rawtree.Snake(name)
}
