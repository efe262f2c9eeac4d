package tree

import (
	"fmt"
	"sync"

	"mercator-hq/arbor/pkg/backend"
)

// CapabilitySiblings names sibling navigation in NotSupportedError.
const CapabilitySiblings = "sibling navigation"

// CapabilityParent names parent navigation in NotSupportedError.
const CapabilityParent = "parent navigation"

// Node is the uniform node. It belongs to the Tree that produced it.
type Node struct {
	raw  any
	tree *Tree
	f    fields
	ok   bool

	parent *Node
	index  int
	isRoot bool

	childOnce sync.Once
	children  []*Node
}

// WrapNode wraps a raw node of either shape. A *Node is returned
// unchanged.
func WrapNode(raw any, t *Tree) *Node {
	if n, ok := raw.(*Node); ok {
		return n
	}
	f, ok := readFields(raw)
	return &Node{raw: raw, tree: t, f: f, ok: ok, index: -1}
}

func (n *Node) adapter() Adapter {
	if n.tree == nil {
		return Adapter{}
	}
	return n.tree.adapter
}

func (n *Node) source() *Source {
	if n.tree == nil {
		return nil
	}
	return n.tree.source
}

// Type returns the node kind reported by the backend.
func (n *Node) Type() string { return n.f.typ }

// StartByte returns the start offset.
func (n *Node) StartByte() int { return n.f.start }

// EndByte returns the end offset (exclusive).
func (n *Node) EndByte() int { return n.f.end }

// StartPoint returns the 0-based start point.
func (n *Node) StartPoint() Point { return n.point(n.f.startPt, n.f.start) }

// EndPoint returns the 0-based end point.
func (n *Node) EndPoint() Point { return n.point(n.f.endPt, n.f.end) }

func (n *Node) point(native backend.Point, offset int) Point {
	if !n.f.hasPts {
		return n.source().PointAt(offset)
	}
	a := n.adapter()
	if n.f.oneLines {
		a.Lines = OneBased
	}
	return normalize(native, a)
}

// StartLine returns the 1-based start line.
func (n *Node) StartLine() int { return n.StartPoint().Row + 1 }

// EndLine returns the 1-based end line.
func (n *Node) EndLine() int { return n.EndPoint().Row + 1 }

// SourcePosition returns the span with 1-based lines and 0-based columns.
func (n *Node) SourcePosition() SourcePosition {
	return positionOf(n.StartPoint(), n.EndPoint())
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return n.f.childCount() }

// Child returns child i, or nil when i is out of range.
func (n *Node) Child(i int) *Node {
	kids := n.Children()
	if i < 0 || i >= len(kids) {
		return nil
	}
	return kids[i]
}

// Children returns the children in order. They are wrapped once.
func (n *Node) Children() []*Node {
	n.childOnce.Do(func() {
		count := n.f.childCount()
		n.children = make([]*Node, 0, count)
		for i := 0; i < count; i++ {
			raw := n.f.child(i)
			if isNil(raw) {
				continue
			}
			c := WrapNode(raw, n.tree)
			c.parent = n
			c.index = len(n.children)
			n.children = append(n.children, c)
		}
	})
	return n.children
}

// Parent returns the parent node. The root has no parent. Nodes not
// reached from the root need a navigating raw node.
func (n *Node) Parent() (*Node, error) {
	if n.parent != nil {
		return n.parent, nil
	}
	if n.isRoot {
		return nil, nil
	}
	if nav, ok := n.raw.(backend.Navigator); ok {
		return n.wrapNav(nav.Parent()), nil
	}
	return nil, n.notSupported(CapabilityParent)
}

// NextSibling returns the following sibling. It returns (nil, nil) when
// there is none and a NotSupportedError when the backend cannot navigate
// siblings.
func (n *Node) NextSibling() (*Node, error) {
	return n.sibling(+1)
}

// PrevSibling returns the preceding sibling, with the same contract as
// NextSibling.
func (n *Node) PrevSibling() (*Node, error) {
	return n.sibling(-1)
}

func (n *Node) sibling(step int) (*Node, error) {
	if nav, ok := n.raw.(backend.Navigator); ok {
		if step > 0 {
			return n.wrapNav(nav.NextSibling()), nil
		}
		return n.wrapNav(nav.PrevSibling()), nil
	}

	if n.tree == nil || !n.tree.caps.Bool(backend.CapSiblings) {
		return nil, n.notSupported(CapabilitySiblings)
	}
	if n.isRoot {
		return nil, nil
	}
	if n.parent == nil {
		return nil, n.notSupported(CapabilitySiblings)
	}
	return n.parent.Child(n.index + step), nil
}

func (n *Node) wrapNav(raw any) *Node {
	if isNil(raw) {
		return nil
	}
	return WrapNode(raw, n.tree)
}

func (n *Node) notSupported(capability string) error {
	id := ""
	if n.tree != nil {
		id = n.tree.backendID
	}
	return &backend.NotSupportedError{Backend: id, Capability: capability}
}

// Text returns the source text the node spans.
func (n *Node) Text() string {
	return string(n.source().Slice(n.f.start, n.f.end))
}

// Equal reports whether both nodes wrap the same raw node.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n == other || sameRaw(n.raw, other.raw)
}

// Raw returns the backend's raw node.
func (n *Node) Raw() any { return n.raw }

// Tree returns the tree the node belongs to.
func (n *Node) Tree() *Tree { return n.tree }

// IsNamed reports whether the node is named. Backends that do not
// distinguish report true.
func (n *Node) IsNamed() bool { return n.f.named }

// HasError reports whether the backend marked the node as erroneous.
func (n *Node) HasError() bool { return n.f.hasError }

// Valid reports whether the raw node had a recognized shape.
func (n *Node) Valid() bool { return n.ok }

func (n *Node) String() string {
	return fmt.Sprintf("%s [%s]", n.f.typ, n.SourcePosition())
}
