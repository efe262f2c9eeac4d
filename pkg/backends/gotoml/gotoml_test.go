package gotoml

import (
	"context"
	"testing"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/tree"

	"github.com/google/go-cmp/cmp"
)

const settings = `# settings
title = "arbor"

[server]
port = 8080
enabled = true # on
hosts = ["a", "b"]
`

func parse(t *testing.T, src string, opts map[string]string) *tree.Tree {
	t.Helper()

	p, err := New(backend.Config{Options: opts})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
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

func TestParse_Structure(t *testing.T) {
	tr := parse(t, settings, nil)
	root := tr.RootNode()

	if diff := cmp.Diff([]string{"key_value", "table"}, types(root.Children())); diff != "" {
		t.Fatalf("root children mismatch (-want +got):\n%s", diff)
	}

	server := root.Child(1)
	want := []string{"key", "key_value", "key_value", "key_value"}
	if diff := cmp.Diff(want, types(server.Children())); diff != "" {
		t.Errorf("table children mismatch (-want +got):\n%s", diff)
	}

	if got := server.Child(0).Text(); got != "server" {
		t.Errorf("table key = %q, want server", got)
	}
	if got := root.Child(0).Text(); got != `title = "arbor"` {
		t.Errorf("title pair = %q", got)
	}
	if got := server.Child(2).Child(1).Text(); got != "true" {
		t.Errorf("bool value = %q, want true", got)
	}
	if got := server.Child(3).Child(1).Text(); got != `["a", "b"]` {
		t.Errorf("array value = %q", got)
	}
	if got := len(server.Child(3).Child(1).Children()); got != 2 {
		t.Errorf("array elements = %d, want 2", got)
	}
}

func TestParse_Positions(t *testing.T) {
	tr := parse(t, settings, nil)
	server := tr.RootNode().Child(1)

	want := tree.SourcePosition{StartLine: 4, StartColumn: 0, EndLine: 7, EndColumn: 18}
	if diff := cmp.Diff(want, server.SourcePosition()); diff != "" {
		t.Errorf("table position mismatch (-want +got):\n%s", diff)
	}

	port := server.Child(1)
	if port.StartLine() != 5 || port.StartPoint().Column != 0 {
		t.Errorf("port starts at %s, want 5:0", port.StartPoint())
	}
}

func TestParse_Comments(t *testing.T) {
	tr := parse(t, settings, nil)

	var got []string
	for _, c := range tr.Comments() {
		got = append(got, c.Text)
	}
	if diff := cmp.Diff([]string{"# settings", "# on"}, got); diff != "" {
		t.Errorf("comments mismatch (-want +got):\n%s", diff)
	}
	if line := tr.Comments()[1].Start.Line(); line != 6 {
		t.Errorf("trailing comment line = %d, want 6", line)
	}

	tr = parse(t, settings, map[string]string{"comments": "false"})
	if n := len(tr.Comments()); n != 0 {
		t.Errorf("comments with comments=false = %d, want 0", n)
	}
}

func TestParse_SyntaxError(t *testing.T) {
	tr := parse(t, "title = \"x\"\nbad = ?\n", nil)

	if !tr.HasErrors() {
		t.Fatal("expected tree errors")
	}
	if !tr.RootNode().HasError() {
		t.Error("root should carry the error flag")
	}
	if n := tr.RootNode().ChildCount(); n != 1 {
		t.Errorf("children before the error = %d, want 1", n)
	}
	if d := tr.Errors()[0]; d.HasPosition && d.Start.Line() != 2 {
		t.Errorf("error line = %d, want 2", d.Start.Line())
	}
}

func TestParse_Siblings(t *testing.T) {
	tr := parse(t, settings, nil)
	first := tr.RootNode().Child(0)

	next, err := first.NextSibling()
	if err != nil {
		t.Fatalf("NextSibling() failed: %v", err)
	}
	if next.Type() != "table" {
		t.Errorf("NextSibling() = %s, want table", next.Type())
	}

	prev, err := first.PrevSibling()
	if err != nil || prev != nil {
		t.Errorf("PrevSibling() of first = %v, %v; want nil, nil", prev, err)
	}
}

func TestParse_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p, _ := New(backend.Config{})
	if _, err := p.Parse(ctx, "toml", []byte("a = 1")); err == nil {
		t.Error("expected context error")
	}
}
