package tree

import (
	"fmt"
	"sync"

	"mercator-hq/arbor/pkg/backend"
)

// Tree is the uniform parse result. It is only ever built by Wrap.
type Tree struct {
	raw       backend.RawTree
	source    *Source
	backendID string
	adapter   Adapter
	caps      backend.Capabilities
	lang      *Language

	rootOnce sync.Once
	root     *Node
	rootErr  error
}

// WrapOption configures Wrap.
type WrapOption func(*Tree)

// WithAdapter sets the position bases and incremental support.
func WithAdapter(a Adapter) WrapOption {
	return func(t *Tree) {
		t.adapter = a
	}
}

// WithCapabilities sets the capabilities of the backend that produced the
// tree.
func WithCapabilities(caps backend.Capabilities) WrapOption {
	return func(t *Tree) {
		t.caps = caps.Clone()
	}
}

// WithLanguage records the Language the tree was parsed as.
func WithLanguage(lang *Language) WrapOption {
	return func(t *Tree) {
		t.lang = lang
	}
}

// Wrap builds a Tree around a raw backend tree. A *Tree is returned
// unchanged. Any value that is neither a *Tree nor a backend.RawTree is an
// InvalidConfigurationError.
func Wrap(raw any, src *Source, backendID string, opts ...WrapOption) (*Tree, error) {
	if t, ok := raw.(*Tree); ok {
		return t, nil
	}

	rt, ok := raw.(backend.RawTree)
	if !ok || isNil(raw) {
		return nil, &backend.InvalidConfigurationError{
			Reason: fmt.Sprintf("backend %q returned %T, which is not a raw tree", backendID, raw),
		}
	}
	if src == nil {
		src = NewSource(nil)
	}

	t := &Tree{
		raw:       rt,
		source:    src,
		backendID: backend.NormalizeID(backendID),
		caps:      backend.Capabilities{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RootNode returns the root node, wrapped on first use. It is nil when the
// backend produced no root.
func (t *Tree) RootNode() *Node {
	t.rootOnce.Do(func() {
		raw := t.raw.RootNode()
		if isNil(raw) {
			return
		}
		t.root = WrapNode(raw, t)
		t.root.isRoot = true
	})
	return t.root
}

// Errors returns the syntax errors reported by the backend.
func (t *Tree) Errors() []Diagnostic {
	if d, ok := t.raw.(backend.Diagnoser); ok {
		return normalizeDiagnostics(d.Errors(), t.adapter)
	}
	return []Diagnostic{}
}

// Warnings returns the warnings reported by the backend.
func (t *Tree) Warnings() []Diagnostic {
	if d, ok := t.raw.(backend.Diagnoser); ok {
		return normalizeDiagnostics(d.Warnings(), t.adapter)
	}
	return []Diagnostic{}
}

// Comments returns the comments collected by the backend.
func (t *Tree) Comments() []Comment {
	if c, ok := t.raw.(backend.Commenter); ok {
		return normalizeComments(c.Comments(), t.adapter)
	}
	return []Comment{}
}

// HasErrors reports whether the backend reported any syntax error.
func (t *Tree) HasErrors() bool {
	return len(t.Errors()) > 0
}

// SupportsIncrementalEdit reports whether Edit changes the tree.
func (t *Tree) SupportsIncrementalEdit() bool {
	if !t.adapter.Incremental && !t.caps.Bool(backend.CapIncremental) {
		return false
	}
	_, ok := t.raw.(backend.Editor)
	return ok
}

// Edit informs the tree of a source edit ahead of a reparse. It is a no-op
// unless SupportsIncrementalEdit is true.
func (t *Tree) Edit(edit backend.InputEdit) error {
	if !t.SupportsIncrementalEdit() {
		return nil
	}
	if edit.StartByte < 0 || edit.OldEndByte < edit.StartByte || edit.NewEndByte < edit.StartByte {
		return &backend.InvalidConfigurationError{
			Reason: fmt.Sprintf("invalid edit range [%d,%d)->[%d,%d)", edit.StartByte, edit.OldEndByte, edit.StartByte, edit.NewEndByte),
		}
	}
	return t.raw.(backend.Editor).Edit(edit)
}

// Backend returns the id of the backend that produced the tree.
func (t *Tree) Backend() string { return t.backendID }

// Language returns the Language the tree was parsed as, if recorded.
func (t *Tree) Language() *Language { return t.lang }

// Source returns the shared source.
func (t *Tree) Source() *Source { return t.source }

// Raw returns the backend's raw tree.
func (t *Tree) Raw() backend.RawTree { return t.raw }

// Capabilities returns the capabilities of the producing backend.
func (t *Tree) Capabilities() backend.Capabilities { return t.caps.Clone() }

// Walk visits nodes depth-first in source order starting at the root. fn
// returning false skips the node's children.
func (t *Tree) Walk(fn func(n *Node, depth int) bool) {
	root := t.RootNode()
	if root == nil {
		return
	}
	walk(root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) bool) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children() {
		walk(c, depth+1, fn)
	}
}

// NodeCount returns the number of nodes reachable from the root.
func (t *Tree) NodeCount() int {
	count := 0
	t.Walk(func(*Node, int) bool {
		count++
		return true
	})
	return count
}
