// Package text is the line-oriented fallback backend. It serves any
// resource: every line becomes a "line", "comment" or "blank" node, with
// comment prefixes chosen by resource name.
//
// Trees accept edits, and a reparse reuses the line nodes that end
// before the first edit.
package text

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/rawtree"
	"mercator-hq/arbor/pkg/tree"
)

// ID is the backend id.
const ID = "text"

// CommentPrefixes maps resource names to their line comment prefixes.
var CommentPrefixes = map[string][]string{
	"toml": {"#"},
	"yaml": {"#"},
	"hcl":  {"#", "//"},
	"go":   {"//"},
}

// Descriptor returns the backend descriptor.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          ID,
		Key:         backend.KeyFallback,
		Description: "line-oriented text fallback",
		Available:   func() bool { return true },
		Capabilities: backend.Capabilities{
			backend.CapIncremental: true,
			backend.CapSiblings:    true,
			backend.CapComments:    true,
		},
		New: New,
	}
}

// Adapter returns the normalization adapter of the backend.
func Adapter() tree.Adapter {
	return tree.Adapter{
		Unwrap:      rawtree.UnwrapName,
		Lines:       tree.ZeroBased,
		Columns:     tree.ZeroBased,
		Incremental: true,
	}
}

// Producer splits sources into lines.
type Producer struct {
	prefixes []string
}

// New builds a producer. The option "comment_prefix" is a comma-separated
// list that replaces the prefixes chosen by resource name.
func New(cfg backend.Config) (backend.Producer, error) {
	p := &Producer{}
	if v := cfg.Option("comment_prefix", ""); v != "" {
		for _, prefix := range strings.Split(v, ",") {
			if prefix = strings.TrimSpace(prefix); prefix != "" {
				p.prefixes = append(p.prefixes, prefix)
			}
		}
	}
	return p, nil
}

// Tree is the raw tree of the backend.
type Tree struct {
	rawtree.Tree

	src    []byte
	edits  []backend.InputEdit
	reused int
}

// Edit records an edit for the next reparse.
func (t *Tree) Edit(edit backend.InputEdit) error {
	if edit.StartByte < 0 || edit.OldEndByte < edit.StartByte || edit.NewEndByte < edit.StartByte {
		return &backend.InvalidConfigurationError{
			Reason: fmt.Sprintf("invalid edit [%d, %d) -> %d", edit.StartByte, edit.OldEndByte, edit.NewEndByte),
		}
	}
	if edit.OldEndByte > len(t.src) {
		return &backend.InvalidConfigurationError{
			Reason: fmt.Sprintf("edit ends at %d beyond source length %d", edit.OldEndByte, len(t.src)),
		}
	}
	t.edits = append(t.edits, edit)
	return nil
}

// Edits returns the edits recorded since the tree was parsed.
func (t *Tree) Edits() []backend.InputEdit { return t.edits }

// Reused returns how many line nodes were taken over from the previous
// tree.
func (t *Tree) Reused() int { return t.reused }

// Parse implements backend.Producer.
func (p *Producer) Parse(ctx context.Context, lang any, src []byte) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return p.build(lang, src, nil, 0), nil
}

// Reparse implements backend.Reparser. Without recorded edits, or with a
// tree from another backend, it parses from scratch.
func (p *Producer) Reparse(ctx context.Context, lang any, src []byte, old backend.RawTree) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prev, ok := old.(*Tree)
	if !ok || len(prev.edits) == 0 || prev.Root == nil {
		return p.build(lang, src, nil, 0), nil
	}

	first := prev.edits[0].StartByte
	for _, e := range prev.edits[1:] {
		first = min(first, e.StartByte)
	}

	// A line is unchanged when its terminator precedes the first edit.
	var keep []*rawtree.Node
	for _, n := range prev.Root.Children {
		if n.End >= first || n.End >= len(src) || src[n.End] != '\n' && src[n.End] != '\r' {
			break
		}
		keep = append(keep, n)
	}

	from := 0
	if len(keep) > 0 {
		from = keep[len(keep)-1].End
		from += bytes.IndexByte(src[from:], '\n') + 1
	}
	return p.build(lang, src, keep, from), nil
}

func (p *Producer) build(lang any, src []byte, keep []*rawtree.Node, from int) *Tree {
	prefixes := p.prefixes
	if prefixes == nil {
		name, _ := lang.(string)
		prefixes = CommentPrefixes[name]
	}

	lines := rawtree.NewLines(src)
	root := lines.Span("document", 0, len(src))
	t := &Tree{src: src, reused: len(keep)}

	for _, n := range keep {
		root.Add(n)
		if n.Kind == "comment" {
			t.Notes = append(t.Notes, note(n, src))
		}
	}

	for offset := from; offset < len(src); {
		end := bytes.IndexByte(src[offset:], '\n')
		next := len(src)
		if end < 0 {
			end = len(src)
		} else {
			end += offset
			next = end + 1
		}
		content := bytes.TrimSuffix(src[offset:end], []byte("\r"))
		end = offset + len(content)

		n := lines.Span(kindOf(content, prefixes), offset, end)
		root.Add(n)
		if n.Kind == "comment" {
			t.Notes = append(t.Notes, note(n, src))
		}
		offset = next
	}

	t.Root = root
	return t
}

func kindOf(line []byte, prefixes []string) string {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return "blank"
	}
	for _, prefix := range prefixes {
		if bytes.HasPrefix(trimmed, []byte(prefix)) {
			return "comment"
		}
	}
	return "line"
}

func note(n *rawtree.Node, src []byte) backend.Comment {
	text := src[n.Start:n.End]
	lead := len(text) - len(bytes.TrimLeft(text, " \t"))
	start := backend.Point{Row: n.StartPt.Row, Column: n.StartPt.Column + lead}
	return backend.Comment{
		Text:      string(text[lead:]),
		StartByte: n.Start + lead,
		EndByte:   n.End,
		Start:     start,
		End:       n.EndPt,
	}
}
