package hcl

import (
	"context"
	"testing"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/tree"

	"github.com/google/go-cmp/cmp"
)

const service = `# service
name  = "arbor"
ports = [80, 443]

listener "http" {
  port = 8080 // plain
}
`

func parse(t *testing.T, src string) *tree.Tree {
	t.Helper()

	p, _ := New(backend.Config{})
	raw, err := p.Parse(context.Background(), "hcl", []byte(src))
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

func TestParse_SourceOrder(t *testing.T) {
	root := parse(t, service).RootNode()

	if root.Type() != "body" {
		t.Fatalf("root type = %q, want body", root.Type())
	}
	if diff := cmp.Diff([]string{"attribute", "attribute", "block"}, types(root.Children())); diff != "" {
		t.Fatalf("body children mismatch (-want +got):\n%s", diff)
	}
	if got := root.Child(0).Child(0).Text(); got != "name" {
		t.Errorf("first attribute name = %q, want name", got)
	}

	block := root.Child(2)
	if diff := cmp.Diff([]string{"identifier", "label", "body"}, types(block.Children())); diff != "" {
		t.Errorf("block children mismatch (-want +got):\n%s", diff)
	}
	if got := block.Child(1).Text(); got != `"http"` {
		t.Errorf("label = %q", got)
	}
}

func TestParse_Expressions(t *testing.T) {
	root := parse(t, service).RootNode()

	tuple := root.Child(1).Child(1)
	if tuple.Type() != "tuple_cons" {
		t.Fatalf("ports value type = %q, want tuple_cons", tuple.Type())
	}
	if tuple.Text() != "[80, 443]" || tuple.ChildCount() != 2 {
		t.Errorf("tuple = %q with %d children", tuple.Text(), tuple.ChildCount())
	}
}

func TestParse_Positions(t *testing.T) {
	root := parse(t, service).RootNode()

	want := tree.SourcePosition{StartLine: 5, StartColumn: 0, EndLine: 7, EndColumn: 1}
	if diff := cmp.Diff(want, root.Child(2).SourcePosition()); diff != "" {
		t.Errorf("block position mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Comments(t *testing.T) {
	tr := parse(t, service)

	var got []string
	for _, c := range tr.Comments() {
		got = append(got, c.Text)
	}
	if diff := cmp.Diff([]string{"# service", "// plain"}, got); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}
	if c := tr.Comments()[1]; c.Start.Line() != 6 || c.Start.Column != 14 {
		t.Errorf("second comment at %s, want 6:14", c.Start)
	}
}

func TestParse_ErrorRecovery(t *testing.T) {
	tr := parse(t, "name = \"arbor\"\nbroken = \n")

	if !tr.HasErrors() {
		t.Fatal("expected tree errors")
	}
	d := tr.Errors()[0]
	if !d.HasPosition || d.Start.Line() != 2 {
		t.Errorf("error at %s (has position %v), want line 2", d.Start, d.HasPosition)
	}
	if !tr.RootNode().HasError() {
		t.Error("root should carry the error flag")
	}
}
