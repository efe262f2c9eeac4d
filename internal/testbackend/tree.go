package testbackend

import (
	"bytes"

	"mercator-hq/arbor/pkg/backend"
)

// Node is a record-shaped raw node.
type Node struct {
	Kind    string
	Start   int
	End     int
	StartPt backend.Point
	EndPt   backend.Point
	Kids    []*Node
	Named   bool
	Error   bool
}

// Type implements backend.RawNode.
func (n *Node) Type() string { return n.Kind }

// ChildCount implements backend.RawNode.
func (n *Node) ChildCount() int { return len(n.Kids) }

// Child implements backend.RawNode.
func (n *Node) Child(i int) any {
	if i < 0 || i >= len(n.Kids) {
		return nil
	}
	return n.Kids[i]
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
func (n *Node) IsNamed() bool { return n.Named }

// HasError implements backend.Erroneous.
func (n *Node) HasError() bool { return n.Error }

// Tree is a raw tree over Nodes.
type Tree struct {
	Root    *Node
	Errs    []backend.Diagnostic
	Warns   []backend.Diagnostic
	Notes   []backend.Comment
	Edits   []backend.InputEdit
	Backend string
}

// RootNode implements backend.RawTree.
func (t *Tree) RootNode() any { return t.Root }

// Errors implements backend.Diagnoser.
func (t *Tree) Errors() []backend.Diagnostic { return t.Errs }

// Warnings implements backend.Diagnoser.
func (t *Tree) Warnings() []backend.Diagnostic { return t.Warns }

// Comments implements backend.Commenter.
func (t *Tree) Comments() []backend.Comment { return t.Notes }

// Edit implements backend.Editor.
func (t *Tree) Edit(edit backend.InputEdit) error {
	t.Edits = append(t.Edits, edit)
	return nil
}

// NewLineTree builds a "document" root with one "line" child per line of
// src. Points are 0-based.
func NewLineTree(backendID string, src []byte) *Tree {
	root := &Node{Kind: "document", End: len(src), Named: true}

	offset := 0
	for row, line := range bytes.SplitAfter(src, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		text := bytes.TrimSuffix(line, []byte("\n"))
		root.Kids = append(root.Kids, &Node{
			Kind:    "line",
			Start:   offset,
			End:     offset + len(text),
			StartPt: backend.Point{Row: row},
			EndPt:   backend.Point{Row: row, Column: len(text)},
			Named:   true,
		})
		offset += len(line)
		root.EndPt = backend.Point{Row: row, Column: len(text)}
	}

	return &Tree{Root: root, Backend: backendID}
}

// NewMapTree builds a key-value shaped tree: a root map with one child map
// per line, using start_line/start_column style positions (1-based lines).
func NewMapTree(src []byte) backend.RawTree {
	var children []any
	offset := 0
	for i, line := range bytes.SplitAfter(src, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		text := bytes.TrimSuffix(line, []byte("\n"))
		children = append(children, map[string]any{
			"type":         "line",
			"start_byte":   offset,
			"end_byte":     offset + len(text),
			"start_line":   i + 1,
			"start_column": 0,
			"end_line":     i + 1,
			"end_column":   len(text),
		})
		offset += len(line)
	}

	return mapTree{root: map[string]any{
		"type":        "document",
		"start_byte":  0,
		"end_byte":    len(src),
		"start_point": map[string]any{"row": 0, "column": 0},
		"end_point":   map[string]any{"row": 0, "column": len(src)},
		"children":    children,
	}}
}

type mapTree struct {
	root map[string]any
}

func (t mapTree) RootNode() any { return t.root }
