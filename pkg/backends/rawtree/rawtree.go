// Package rawtree holds the record-shaped raw nodes the built-in backends
// build from their library's AST. Nodes are plain values, so they outlive
// the library's parser state.
package rawtree

import (
	"sort"
	"strings"
	"unicode"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/tree"
)

// Node is a record-shaped raw node.
type Node struct {
	Kind     string
	Start    int
	End      int
	StartPt  backend.Point
	EndPt    backend.Point
	Children []*Node
	Anon     bool
	Error    bool
}

// Type implements backend.RawNode.
func (n *Node) Type() string { return n.Kind }

// ChildCount implements backend.RawNode.
func (n *Node) ChildCount() int { return len(n.Children) }

// Child implements backend.RawNode.
func (n *Node) Child(i int) any {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// StartByte implements backend.RawNode.
func (n *Node) StartByte() int { return n.Start }

// EndByte implements backend.RawNode.
func (n *Node) EndByte() int { return n.End }

// StartPoint implements backend.RawNode.
func (n *Node) StartPoint() backend.Point { return n.StartPt }

// EndPoint implements backend.RawNode.
func (n *Node) EndPoint() backend.Point { return n.EndPt }

// IsNamed implements backend.Named.
func (n *Node) IsNamed() bool { return !n.Anon }

// HasError implements backend.Erroneous.
func (n *Node) HasError() bool { return n.Error }

// Add appends the non-nil children.
func (n *Node) Add(children ...*Node) {
	for _, c := range children {
		if c == nil {
			continue
		}
		n.Children = append(n.Children, c)
	}
}

// Tree is a raw tree with diagnostics and comments.
type Tree struct {
	Root  *Node
	Errs  []backend.Diagnostic
	Warns []backend.Diagnostic
	Notes []backend.Comment
}

// RootNode implements backend.RawTree.
func (t *Tree) RootNode() any {
	if t.Root == nil {
		return nil
	}
	return t.Root
}

// Errors implements backend.Diagnoser.
func (t *Tree) Errors() []backend.Diagnostic { return t.Errs }

// Warnings implements backend.Diagnoser.
func (t *Tree) Warnings() []backend.Diagnostic { return t.Warns }

// Comments implements backend.Commenter.
func (t *Tree) Comments() []backend.Comment { return t.Notes }

// Lines maps between byte offsets and rows and columns of a source.
type Lines struct {
	src    []byte
	starts []int
}

// NewLines indexes src.
func NewLines(src []byte) *Lines {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &Lines{src: src, starts: starts}
}

// Len returns the source length.
func (l *Lines) Len() int { return len(l.src) }

// Point returns the 0-based point of offset.
func (l *Lines) Point(offset int) backend.Point {
	offset = min(max(offset, 0), len(l.src))
	row := sort.SearchInts(l.starts, offset+1) - 1
	return backend.Point{Row: row, Column: offset - l.starts[row]}
}

// Point1 returns the 1-based point of offset.
func (l *Lines) Point1(offset int) backend.Point {
	p := l.Point(offset)
	return backend.Point{Row: p.Row + 1, Column: p.Column + 1}
}

// Offset returns the offset of a 0-based row and column.
func (l *Lines) Offset(row, col int) int {
	if row < 0 {
		return 0
	}
	if row >= len(l.starts) {
		return len(l.src)
	}
	return min(l.starts[row]+max(col, 0), len(l.src))
}

// LineEnd returns the offset of the end of the 0-based row, before its
// line terminator.
func (l *Lines) LineEnd(row int) int {
	if row < 0 {
		return 0
	}
	if row+1 >= len(l.starts) {
		return len(l.src)
	}
	end := l.starts[row+1] - 1
	if end > 0 && l.src[end-1] == '\r' {
		end--
	}
	return end
}

// Span returns a node of kind covering [start, end) with 0-based points.
func (l *Lines) Span(kind string, start, end int) *Node {
	return &Node{Kind: kind, Start: start, End: end, StartPt: l.Point(start), EndPt: l.Point(end)}
}

// Span1 returns a node of kind covering [start, end) with 1-based points.
func (l *Lines) Span1(kind string, start, end int) *Node {
	return &Node{Kind: kind, Start: start, End: end, StartPt: l.Point1(start), EndPt: l.Point1(end)}
}

// Cover widens n to the union of its children's spans. Points are
// recomputed by point.
func Cover(n *Node, point func(int) backend.Point) {
	empty := n.Start == n.End
	for i, c := range n.Children {
		if empty && i == 0 {
			n.Start, n.End = c.Start, c.End
			continue
		}
		if c.Start < n.Start {
			n.Start = c.Start
		}
		if c.End > n.End {
			n.End = c.End
		}
	}
	n.StartPt = point(n.Start)
	n.EndPt = point(n.End)
}

// UnwrapName hands producers the resource name of the language.
func UnwrapName(lang *tree.Language) (any, error) {
	return lang.Name, nil
}

// ScalarEnd returns the end offset of a YAML-like scalar starting at
// start whose decoded value is value. Quoted scalars end at their closing
// quote; block scalars span one line per value line after the indicator
// line; plain scalars span the value.
func (l *Lines) ScalarEnd(start int, value string) int {
	if start >= len(l.src) {
		return len(l.src)
	}
	row := l.Point(start).Row

	switch q := l.src[start]; q {
	case '"', '\'':
		for i := start + 1; i < len(l.src); i++ {
			switch {
			case q == '"' && l.src[i] == '\\':
				i++
			case l.src[i] == q && q == '\'' && i+1 < len(l.src) && l.src[i+1] == '\'':
				i++
			case l.src[i] == q:
				return i + 1
			}
		}
		return len(l.src)
	case '|', '>':
		lines := strings.Count(strings.TrimRight(value, "\n"), "\n") + 1
		return l.LineEnd(row + lines)
	}

	value = strings.TrimRight(value, "\n")
	if strings.Contains(value, "\n") {
		return l.LineEnd(row + strings.Count(value, "\n"))
	}
	return min(start+len(value), l.LineEnd(row))
}

// Snake converts a Go type name such as MappingValue to mapping_value.
func Snake(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				sb.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
