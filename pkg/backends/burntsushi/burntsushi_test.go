package burntsushi

import (
	"context"
	"errors"
	"testing"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/tree"

	"github.com/google/go-cmp/cmp"
)

const settings = `# settings
title = "arbor"

[server]
port = 8080
enabled = true
hosts = ["a", "b"]
`

func parse(t *testing.T, src string) *tree.Tree {
	t.Helper()

	p, _ := New(backend.Config{})
	raw, err := p.Parse(context.Background(), "toml", []byte(src))
	if err != nil {
		t.Fatalf("Parse() failed: %v", err)
	}
	tr, err := tree.Wrap(raw, tree.NewSource([]byte(src)), ID,
		tree.WithAdapter(Adapter()),
		tree.WithCapabilities(Descriptor().Capabilities),
	)
	if err != nil {
		t.Fatalf("Wrap() failed: %v", err)
	}
	return tr
}

func types(nodes []*tree.Node) []string {
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Type())
	}
	return out
}

func TestParse_KeyHierarchy(t *testing.T) {
	root := parse(t, settings).RootNode()

	if diff := cmp.Diff([]string{"string", "table"}, types(root.Children())); diff != "" {
		t.Fatalf("root children mismatch (-want +got):\n%s", diff)
	}
	want := []string{"integer", "bool", "array"}
	if diff := cmp.Diff(want, types(root.Child(1).Children())); diff != "" {
		t.Errorf("table children mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Positions(t *testing.T) {
	root := parse(t, settings).RootNode()

	tests := []struct {
		name string
		node *tree.Node
		want tree.SourcePosition
	}{
		{
			name: "top-level pair",
			node: root.Child(0),
			want: tree.SourcePosition{StartLine: 2, StartColumn: 0, EndLine: 2, EndColumn: 15},
		},
		{
			name: "table spans its entries",
			node: root.Child(1),
			want: tree.SourcePosition{StartLine: 4, StartColumn: 0, EndLine: 7, EndColumn: 18},
		},
		{
			name: "table entry",
			node: root.Child(1).Child(1),
			want: tree.SourcePosition{StartLine: 6, StartColumn: 0, EndLine: 6, EndColumn: 14},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.node.SourcePosition()); diff != "" {
				t.Errorf("position mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParse_ArrayTables(t *testing.T) {
	src := "[[item]]\nname = \"a\"\n\n[[item]]\nname = \"b\"\n"
	root := parse(t, src).RootNode()

	if diff := cmp.Diff([]string{"array_table", "array_table"}, types(root.Children())); diff != "" {
		t.Fatalf("root children mismatch (-want +got):\n%s", diff)
	}
	second := root.Child(1)
	if second.ChildCount() != 1 || second.Child(0).Text() != `name = "b"` {
		t.Errorf("second table children = %v", types(second.Children()))
	}
}

func TestParse_DecodeError(t *testing.T) {
	tr := parse(t, "title = \"x\"\nbad = \n")

	if !tr.HasErrors() {
		t.Fatal("expected tree errors")
	}
	d := tr.Errors()[0]
	if !d.HasPosition || d.Start.Line() != 2 {
		t.Errorf("error at %s (has position %v), want line 2", d.Start, d.HasPosition)
	}
	if tr.RootNode().ChildCount() != 0 {
		t.Error("failed decode should produce an empty root")
	}
}

func TestParse_SiblingsNotSupported(t *testing.T) {
	first := parse(t, settings).RootNode().Child(0)

	_, err := first.NextSibling()
	if !errors.Is(err, backend.ErrNotSupportedByBackend) {
		t.Errorf("NextSibling() error = %v, want ErrNotSupportedByBackend", err)
	}
}
