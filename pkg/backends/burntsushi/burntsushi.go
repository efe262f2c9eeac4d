// Package burntsushi parses TOML with github.com/BurntSushi/toml.
//
// The library decodes values and reports the keys it saw, but keeps no
// syntax tree. Nodes are key-value maps, one per key, placed by locating
// the key text in the source; they span to the end of the key's line,
// and tables span their last entry. The backend cannot navigate siblings.
package burntsushi

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"strings"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/rawtree"
	"mercator-hq/arbor/pkg/tree"

	"github.com/BurntSushi/toml"
)

// ID is the backend id.
const ID = "burntsushi"

// Descriptor returns the backend descriptor.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          ID,
		Key:         backend.KeyNative,
		Description: "TOML via github.com/BurntSushi/toml",
		Resources:   []string{"toml"},
		Available:   func() bool { return true },
		Capabilities: backend.Capabilities{
			backend.CapSiblings:       false,
			backend.CapComments:       false,
			backend.CapExactPositions: false,
		},
		New: New,
	}
}

// Adapter returns the normalization adapter of the backend. Map nodes
// carry 1-based *_line keys and 0-based columns.
func Adapter() tree.Adapter {
	return tree.Adapter{
		Unwrap:  rawtree.UnwrapName,
		Lines:   tree.ZeroBased,
		Columns: tree.ZeroBased,
	}
}

// Producer parses TOML documents.
type Producer struct{}

// New builds a producer.
func New(backend.Config) (backend.Producer, error) {
	return Producer{}, nil
}

// Tree is the raw tree: a key-value map root plus decode errors.
type Tree struct {
	Root map[string]any
	Errs []backend.Diagnostic
}

// RootNode implements backend.RawTree.
func (t *Tree) RootNode() any { return t.Root }

// Errors implements backend.Diagnoser.
func (t *Tree) Errors() []backend.Diagnostic { return t.Errs }

// Warnings implements backend.Diagnoser.
func (t *Tree) Warnings() []backend.Diagnostic { return nil }

// Parse implements backend.Producer. A document that fails to decode
// yields an empty root carrying the error.
func (Producer) Parse(ctx context.Context, _ any, src []byte) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &builder{src: src, lines: rawtree.NewLines(src)}
	root := b.node("document", "", 0, len(src))

	var decoded map[string]any
	md, err := toml.Decode(string(src), &decoded)
	if err != nil {
		root["has_error"] = true
		return &Tree{Root: root, Errs: []backend.Diagnostic{b.diagnostic(err)}}, nil
	}

	nodes := make(map[string]map[string]any)
	for _, k := range md.Keys() {
		typ := md.Type(k...)
		n := b.entry(k, typ)

		parent := root
		for i := len(k) - 1; i > 0; i-- {
			if p, ok := nodes[k[:i].String()]; ok {
				parent = p
				break
			}
		}
		parent["children"] = append(parent["children"].([]any), n)
		nodes[k.String()] = n
	}
	b.widen(root)

	return &Tree{Root: root}, nil
}

type builder struct {
	src    []byte
	lines  *rawtree.Lines
	cursor int
}

func (b *builder) node(typ, key string, start, end int) map[string]any {
	sp, ep := b.lines.Point(start), b.lines.Point(end)
	return map[string]any{
		"type":         typ,
		"key":          key,
		"start_byte":   start,
		"end_byte":     end,
		"start_line":   sp.Row + 1,
		"start_column": sp.Column,
		"end_line":     ep.Row + 1,
		"end_column":   ep.Column,
		"children":     []any{},
	}
}

// entry places key k after the cursor. Headers start at their bracket.
func (b *builder) entry(k toml.Key, typ string) map[string]any {
	name := k[len(k)-1]
	start := b.find(name)
	if start < 0 {
		start = b.find(strconv.Quote(name))
	}
	if start < 0 {
		start = b.cursor
	}

	row := b.lines.Point(start).Row
	lineStart := b.lines.Offset(row, 0)
	head := bytes.TrimSpace(b.src[lineStart:start])
	header := bytes.HasPrefix(head, []byte("["))
	if header {
		start = lineStart + bytes.IndexByte(b.src[lineStart:start], '[')
	}

	end := b.lines.LineEnd(row)
	b.cursor = min(start+len(name), len(b.src))
	if typ != "Hash" || header {
		// The rest of the line is this entry's value.
		b.cursor = end
	}

	return b.node(typeName(typ, header), k.String(), start, end)
}

func (b *builder) find(s string) int {
	if s == "" || b.cursor >= len(b.src) {
		return -1
	}
	i := bytes.Index(b.src[b.cursor:], []byte(s))
	if i < 0 {
		return -1
	}
	return b.cursor + i
}

// widen extends every node over its last descendant.
func (b *builder) widen(n map[string]any) int {
	end := n["end_byte"].(int)
	for _, c := range n["children"].([]any) {
		end = max(end, b.widen(c.(map[string]any)))
	}
	if end != n["end_byte"].(int) {
		ep := b.lines.Point(end)
		n["end_byte"] = end
		n["end_line"] = ep.Row + 1
		n["end_column"] = ep.Column
	}
	return end
}

func (b *builder) diagnostic(err error) backend.Diagnostic {
	var perr toml.ParseError
	if !errors.As(err, &perr) {
		return backend.Diagnostic{Message: err.Error()}
	}

	pos := perr.Position
	start := min(max(pos.Start, 0), len(b.src))
	end := min(start+pos.Len, len(b.src))
	return backend.Diagnostic{
		Message:     perr.Message,
		StartByte:   start,
		EndByte:     end,
		Start:       backend.Point{Row: pos.Line - 1, Column: max(pos.Col-1, 0)},
		End:         b.lines.Point(end),
		HasPosition: pos.Line > 0,
	}
}

func typeName(typ string, header bool) string {
	switch typ {
	case "Hash":
		if header {
			return "table"
		}
		return "inline_table"
	case "ArrayHash":
		return "array_table"
	case "":
		return "unknown"
	}
	return strings.ToLower(typ)
}
