package tree

import (
	"errors"
	"testing"

	"mercator-hq/arbor/internal/testbackend"
	"mercator-hq/arbor/pkg/backend"

	"github.com/google/go-cmp/cmp"
)

func mustWrap(t *testing.T, raw any, src []byte, opts ...WrapOption) *Tree {
	t.Helper()
	tr, err := Wrap(raw, NewSource(src), "mock", opts...)
	if err != nil {
		t.Fatalf("Wrap() failed: %v", err)
	}
	return tr
}

func TestWrap_Idempotent(t *testing.T) {
	src := []byte("a = 1\n")
	tr := mustWrap(t, testbackend.NewLineTree("mock", src), src)

	again, err := Wrap(tr, nil, "other")
	if err != nil {
		t.Fatalf("Wrap(*Tree) failed: %v", err)
	}
	if again != tr {
		t.Error("wrapping a *Tree produced a new tree")
	}

	root := tr.RootNode()
	if WrapNode(root, nil) != root {
		t.Error("wrapping a *Node produced a new node")
	}
	if tr.RootNode() != root {
		t.Error("RootNode() is not memoized")
	}
}

func TestWrap_RejectsNonTrees(t *testing.T) {
	for _, raw := range []any{nil, "text", 42, (*testbackend.Tree)(nil)} {
		if _, err := Wrap(raw, nil, "mock"); !errors.Is(err, backend.ErrInvalidConfiguration) {
			t.Errorf("Wrap(%T) error = %v, want ErrInvalidConfiguration", raw, err)
		}
	}
}

func TestNode_Positions(t *testing.T) {
	tests := []struct {
		name    string
		adapter Adapter
		native  backend.Point
		want    Point
	}{
		{name: "zero based", adapter: Adapter{}, native: backend.Point{Row: 2, Column: 4}, want: Point{Row: 2, Column: 4}},
		{name: "one based lines", adapter: Adapter{Lines: OneBased}, native: backend.Point{Row: 3, Column: 4}, want: Point{Row: 2, Column: 4}},
		{name: "one based both", adapter: Adapter{Lines: OneBased, Columns: OneBased}, native: backend.Point{Row: 3, Column: 5}, want: Point{Row: 2, Column: 4}},
		{name: "clamped", adapter: Adapter{Lines: OneBased, Columns: OneBased}, native: backend.Point{}, want: Point{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := &testbackend.Tree{Root: &testbackend.Node{Kind: "x", StartPt: tt.native, EndPt: tt.native}}
			n := mustWrap(t, raw, nil, WithAdapter(tt.adapter)).RootNode()

			if diff := cmp.Diff(tt.want, n.StartPoint()); diff != "" {
				t.Errorf("StartPoint() mismatch (-want +got):\n%s", diff)
			}
			if n.StartLine() != tt.want.Row+1 {
				t.Errorf("StartLine() = %d, want %d", n.StartLine(), tt.want.Row+1)
			}
			want := SourcePosition{StartLine: tt.want.Row + 1, StartColumn: tt.want.Column, EndLine: tt.want.Row + 1, EndColumn: tt.want.Column}
			if diff := cmp.Diff(want, n.SourcePosition()); diff != "" {
				t.Errorf("SourcePosition() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNode_KeyValueShape(t *testing.T) {
	src := []byte("first\nsecond line\n")
	tr := mustWrap(t, testbackend.NewMapTree(src), src)

	root := tr.RootNode()
	if root.Type() != "document" || root.ChildCount() != 2 || !root.Valid() {
		t.Fatalf("root = %s with %d children", root.Type(), root.ChildCount())
	}

	second := root.Child(1)
	if second.Type() != "line" {
		t.Errorf("Type() = %q, want line", second.Type())
	}
	want := SourcePosition{StartLine: 2, StartColumn: 0, EndLine: 2, EndColumn: 11}
	if diff := cmp.Diff(want, second.SourcePosition()); diff != "" {
		t.Errorf("SourcePosition() mismatch (-want +got):\n%s", diff)
	}
	if got := second.Text(); got != "second line" {
		t.Errorf("Text() = %q, want %q", got, "second line")
	}
}

func TestNode_KeyValueWithoutPoints(t *testing.T) {
	src := []byte("ab\ncd")
	raw := mapRaw{root: map[string]any{"type": "doc", "start_byte": 0, "end_byte": 5, "children": []map[string]any{
		{"type": "tok", "start_byte": 3.0, "end_byte": int64(5), "named": false},
	}}}
	tr := mustWrap(t, raw, src)

	tok := tr.RootNode().Child(0)
	if diff := cmp.Diff(Point{Row: 1, Column: 0}, tok.StartPoint()); diff != "" {
		t.Errorf("StartPoint() derived from offset mismatch (-want +got):\n%s", diff)
	}
	if tok.IsNamed() {
		t.Error("IsNamed() = true, want false")
	}
	if tok.Text() != "cd" {
		t.Errorf("Text() = %q", tok.Text())
	}
}

type mapRaw struct{ root map[string]any }

func (m mapRaw) RootNode() any { return m.root }

func TestNode_ChildrenMemoized(t *testing.T) {
	src := []byte("a\nb\nc\n")
	root := mustWrap(t, testbackend.NewLineTree("mock", src), src).RootNode()

	first := root.Children()
	second := root.Children()
	if len(first) != 3 {
		t.Fatalf("Children() = %d, want 3", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("child %d wrapped twice", i)
		}
	}
	if root.Child(3) != nil || root.Child(-1) != nil {
		t.Error("out of range Child() returned a node")
	}

	parent, err := first[1].Parent()
	if err != nil || parent != root {
		t.Errorf("Parent() = %v, %v; want root", parent, err)
	}
	if p, err := root.Parent(); p != nil || err != nil {
		t.Errorf("root Parent() = %v, %v; want nil, nil", p, err)
	}
}

func TestNode_SiblingsNotSupported(t *testing.T) {
	src := []byte("a\nb\n")
	root := mustWrap(t, testbackend.NewLineTree("mock", src), src).RootNode()

	_, err := root.Child(0).NextSibling()
	var nse *backend.NotSupportedError
	if !errors.As(err, &nse) {
		t.Fatalf("NextSibling() error = %v, want NotSupportedError", err)
	}
	if nse.Backend != "mock" || nse.Capability != CapabilitySiblings {
		t.Errorf("NotSupportedError = %+v", nse)
	}
	if _, err := root.Child(0).PrevSibling(); !errors.Is(err, backend.ErrNotSupportedByBackend) {
		t.Errorf("PrevSibling() error = %v, want ErrNotSupportedByBackend", err)
	}
}

func TestNode_SiblingsFromCapability(t *testing.T) {
	src := []byte("a\nb\n")
	tr := mustWrap(t, testbackend.NewLineTree("mock", src), src,
		WithCapabilities(backend.Capabilities{backend.CapSiblings: true}))
	kids := tr.RootNode().Children()

	next, err := kids[0].NextSibling()
	if err != nil || next != kids[1] {
		t.Errorf("NextSibling() = %v, %v; want second line", next, err)
	}

	// No sibling is a distinct answer from not supported.
	none, err := kids[1].NextSibling()
	if none != nil || err != nil {
		t.Errorf("last NextSibling() = %v, %v; want nil, nil", none, err)
	}
	prev, err := kids[0].PrevSibling()
	if prev != nil || err != nil {
		t.Errorf("first PrevSibling() = %v, %v; want nil, nil", prev, err)
	}
}

type navNode struct {
	*testbackend.Node
	next, prev, parent *navNode
}

func (n *navNode) Parent() any      { return nilOr(n.parent) }
func (n *navNode) NextSibling() any { return nilOr(n.next) }
func (n *navNode) PrevSibling() any { return nilOr(n.prev) }

func nilOr(n *navNode) any {
	if n == nil {
		return nil
	}
	return n
}

func TestNode_SiblingsFromNavigator(t *testing.T) {
	a := &navNode{Node: &testbackend.Node{Kind: "a"}}
	b := &navNode{Node: &testbackend.Node{Kind: "b"}, prev: a}
	a.next = b

	tr := mustWrap(t, &testbackend.Tree{Root: a.Node}, nil)
	na := WrapNode(a, tr)

	next, err := na.NextSibling()
	if err != nil || next == nil || next.Type() != "b" {
		t.Fatalf("NextSibling() = %v, %v", next, err)
	}
	if !next.Equal(WrapNode(b, tr)) {
		t.Error("navigated sibling not equal to its raw node")
	}
	back, _ := next.PrevSibling()
	if !back.Equal(na) {
		t.Error("PrevSibling() did not return to a")
	}
	if none, err := next.NextSibling(); none != nil || err != nil {
		t.Errorf("NextSibling() past end = %v, %v", none, err)
	}
	if p, err := na.Parent(); p != nil || err != nil {
		t.Errorf("Parent() = %v, %v; want nil, nil", p, err)
	}
}

func TestNode_EqualByIdentity(t *testing.T) {
	x := &testbackend.Node{Kind: "x", End: 1}
	y := &testbackend.Node{Kind: "x", End: 1}
	tr := mustWrap(t, &testbackend.Tree{Root: x}, []byte("x"))

	if !WrapNode(x, tr).Equal(WrapNode(x, tr)) {
		t.Error("two wraps of one raw node are not equal")
	}
	if WrapNode(x, tr).Equal(WrapNode(y, tr)) {
		t.Error("structurally equal raw nodes compare equal")
	}

	m := map[string]any{"type": "m"}
	m2 := map[string]any{"type": "m"}
	if !WrapNode(m, tr).Equal(WrapNode(m, tr)) || WrapNode(m, tr).Equal(WrapNode(m2, tr)) {
		t.Error("key-value identity mismatch")
	}
	var nilNode *Node
	if nilNode.Equal(WrapNode(x, tr)) {
		t.Error("nil node equals a node")
	}
}

func TestTree_DiagnosticsAndComments(t *testing.T) {
	plain := mustWrap(t, mapRaw{root: map[string]any{"type": "doc"}}, nil)
	if plain.Errors() == nil || len(plain.Errors()) != 0 || len(plain.Comments()) != 0 || len(plain.Warnings()) != 0 {
		t.Error("expected empty, non-nil diagnostic lists")
	}

	raw := &testbackend.Tree{
		Root:  &testbackend.Node{Kind: "doc"},
		Errs:  []backend.Diagnostic{{Message: "bad", Start: backend.Point{Row: 2, Column: 1}, End: backend.Point{Row: 2, Column: 3}, HasPosition: true}},
		Notes: []backend.Comment{{Text: "# hi", Start: backend.Point{Row: 1, Column: 1}}},
	}
	tr := mustWrap(t, raw, nil, WithAdapter(Adapter{Lines: OneBased, Columns: OneBased}))

	want := []Diagnostic{{Message: "bad", Start: Point{Row: 1, Column: 0}, End: Point{Row: 1, Column: 2}, HasPosition: true}}
	if diff := cmp.Diff(want, tr.Errors()); diff != "" {
		t.Errorf("Errors() mismatch (-want +got):\n%s", diff)
	}
	if !tr.HasErrors() {
		t.Error("HasErrors() = false")
	}
	if got := tr.Comments(); len(got) != 1 || got[0].Start != (Point{}) {
		t.Errorf("Comments() = %+v", got)
	}
}

func TestTree_Edit(t *testing.T) {
	edit := backend.InputEdit{StartByte: 0, OldEndByte: 1, NewEndByte: 2}

	raw := testbackend.NewLineTree("mock", []byte("a"))
	tr := mustWrap(t, raw, []byte("a"))
	if tr.SupportsIncrementalEdit() {
		t.Error("SupportsIncrementalEdit() = true without incremental adapter")
	}
	if err := tr.Edit(edit); err != nil || len(raw.Edits) != 0 {
		t.Errorf("Edit() without support = %v, edits %d; want no-op", err, len(raw.Edits))
	}

	raw = testbackend.NewLineTree("mock", []byte("a"))
	tr = mustWrap(t, raw, []byte("a"), WithAdapter(Adapter{Incremental: true}))
	if !tr.SupportsIncrementalEdit() {
		t.Fatal("SupportsIncrementalEdit() = false")
	}
	if err := tr.Edit(edit); err != nil {
		t.Fatalf("Edit() failed: %v", err)
	}
	if diff := cmp.Diff([]backend.InputEdit{edit}, raw.Edits); diff != "" {
		t.Errorf("edits mismatch (-want +got):\n%s", diff)
	}
	if err := tr.Edit(backend.InputEdit{StartByte: 3, OldEndByte: 1}); !errors.Is(err, backend.ErrInvalidConfiguration) {
		t.Errorf("Edit(invalid) error = %v", err)
	}
}

func TestTree_Walk(t *testing.T) {
	src := []byte("a\nb\n")
	tr := mustWrap(t, testbackend.NewLineTree("mock", src), src)

	var visited []string
	tr.Walk(func(n *Node, depth int) bool {
		visited = append(visited, n.Type()+":"+n.Text())
		return true
	})
	want := []string{"document:a\nb\n", "line:a", "line:b"}
	if diff := cmp.Diff(want, visited); diff != "" {
		t.Errorf("Walk() order mismatch (-want +got):\n%s", diff)
	}
	if tr.NodeCount() != 3 {
		t.Errorf("NodeCount() = %d", tr.NodeCount())
	}
}

func TestTable_Unwrap(t *testing.T) {
	table := NewTable()
	table.Register("Native", Adapter{
		Unwrap: func(l *Language) (any, error) {
			if h, ok := l.Handle("native"); ok {
				return h, nil
			}
			return l.Name, nil
		},
		Lines: OneBased,
	})

	lang := NewLanguage("toml").WithHandle("native", 7)

	got, err := table.Unwrap("native", lang)
	if err != nil || got != 7 {
		t.Errorf("Unwrap(native) = %v, %v; want handle 7", got, err)
	}

	// Ids without an adapter receive the Language, even if another id's
	// handle is present.
	got, err = table.Unwrap("text", lang)
	if err != nil || got != lang {
		t.Errorf("Unwrap(text) = %v, %v; want the language itself", got, err)
	}

	if _, err := table.Unwrap("native", nil); !errors.Is(err, backend.ErrInvalidConfiguration) {
		t.Errorf("Unwrap(nil) error = %v", err)
	}
	if table.Adapter("native").Lines != OneBased || table.Adapter("missing").Lines != ZeroBased {
		t.Error("Adapter() bases mismatch")
	}
	if diff := cmp.Diff([]string{"native"}, table.IDs()); diff != "" {
		t.Errorf("IDs() mismatch (-want +got):\n%s", diff)
	}
}

func TestSource(t *testing.T) {
	s := NewSource([]byte("ab\r\ncde\n\nf"))

	if s.LineCount() != 4 {
		t.Errorf("LineCount() = %d, want 4", s.LineCount())
	}
	if string(s.Line(1)) != "ab" || string(s.Line(2)) != "cde" || len(s.Line(3)) != 0 || string(s.Line(4)) != "f" {
		t.Errorf("Line() mismatch: %q %q %q %q", s.Line(1), s.Line(2), s.Line(3), s.Line(4))
	}
	if s.Line(5) != nil {
		t.Error("Line(5) past end returned text")
	}

	tests := []struct {
		offset int
		want   Point
	}{
		{0, Point{0, 0}},
		{4, Point{1, 0}},
		{6, Point{1, 2}},
		{9, Point{3, 0}},
		{100, Point{3, 1}},
	}
	for _, tt := range tests {
		got := s.PointAt(tt.offset)
		if got != tt.want {
			t.Errorf("PointAt(%d) = %v, want %v", tt.offset, got, tt.want)
		}
		if tt.offset <= s.Len() && s.OffsetAt(got) != tt.offset {
			t.Errorf("OffsetAt(%v) = %d, want %d", got, s.OffsetAt(got), tt.offset)
		}
	}
	if string(s.Slice(-5, 2)) != "ab" {
		t.Errorf("Slice() = %q", s.Slice(-5, 2))
	}
}

func TestTree_View(t *testing.T) {
	src := []byte("a = 1\nb = 2\n")
	tr := mustWrap(t, testbackend.NewLineTree("mock", src), src, WithLanguage(NewLanguage("toml")))

	v := tr.View(0)
	if v.Backend != "mock" || v.Resource != "toml" || v.Nodes != 3 {
		t.Errorf("View() header = %s/%s/%d, want mock/toml/3", v.Backend, v.Resource, v.Nodes)
	}
	want := []NodeView{
		{Type: "line", StartByte: 0, EndByte: 5, Named: true, Text: "a = 1",
			Position: SourcePosition{StartLine: 1, StartColumn: 0, EndLine: 1, EndColumn: 5}},
		{Type: "line", StartByte: 6, EndByte: 11, Named: true, Text: "b = 2",
			Position: SourcePosition{StartLine: 2, StartColumn: 0, EndLine: 2, EndColumn: 5}},
	}
	if diff := cmp.Diff(want, v.Root.Children); diff != "" {
		t.Errorf("children mismatch (-want +got):\n%s", diff)
	}

	limited := tr.View(1)
	if limited.Root.Children != nil || limited.Root.Truncated != 2 {
		t.Errorf("View(1) root = %d children, %d truncated; want 0 and 2",
			len(limited.Root.Children), limited.Root.Truncated)
	}
}
