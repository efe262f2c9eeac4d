package tree

// NodeView is a JSON-friendly snapshot of a node and its descendants.
type NodeView struct {
	Type      string         `json:"type"`
	StartByte int            `json:"start_byte"`
	EndByte   int            `json:"end_byte"`
	Position  SourcePosition `json:"position"`
	Named     bool           `json:"named,omitempty"`
	HasError  bool           `json:"has_error,omitempty"`

	// Text is set on leaves only.
	Text string `json:"text,omitempty"`

	Children []NodeView `json:"children,omitempty"`

	// Truncated counts children left out at the depth limit.
	Truncated int `json:"truncated,omitempty"`
}

// View is a JSON-friendly snapshot of a tree.
type View struct {
	Backend  string       `json:"backend"`
	Resource string       `json:"resource,omitempty"`
	Nodes    int          `json:"nodes"`
	Root     *NodeView    `json:"root,omitempty"`
	Errors   []Diagnostic `json:"errors"`
	Warnings []Diagnostic `json:"warnings"`
	Comments []Comment    `json:"comments"`
}

// View snapshots t. Nodes deeper than maxDepth are counted in their
// parent's Truncated field instead of being rendered; maxDepth <= 0 means
// no limit.
func (t *Tree) View(maxDepth int) View {
	v := View{
		Backend:  t.backendID,
		Nodes:    t.NodeCount(),
		Errors:   t.Errors(),
		Warnings: t.Warnings(),
		Comments: t.Comments(),
	}
	if t.lang != nil {
		v.Resource = t.lang.Name
	}
	if root := t.RootNode(); root != nil {
		nv := viewOf(root, 0, maxDepth)
		v.Root = &nv
	}
	return v
}

func viewOf(n *Node, depth, maxDepth int) NodeView {
	v := NodeView{
		Type:      n.Type(),
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Position:  n.SourcePosition(),
		Named:     n.IsNamed(),
		HasError:  n.HasError(),
	}

	children := n.Children()
	if len(children) == 0 {
		v.Text = n.Text()
		return v
	}
	if maxDepth > 0 && depth+1 >= maxDepth {
		v.Truncated = len(children)
		return v
	}
	v.Children = make([]NodeView, 0, len(children))
	for _, c := range children {
		v.Children = append(v.Children, viewOf(c, depth+1, maxDepth))
	}
	return v
}
