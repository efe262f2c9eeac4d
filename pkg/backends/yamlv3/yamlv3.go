// Package yamlv3 parses YAML streams with gopkg.in/yaml.v3.
package yamlv3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/rawtree"
	"mercator-hq/arbor/pkg/tree"

	"gopkg.in/yaml.v3"
)

// ID is the backend id.
const ID = "yamlv3"

// Descriptor returns the backend descriptor.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          ID,
		Key:         backend.KeyNative,
		Description: "YAML via gopkg.in/yaml.v3",
		Resources:   []string{"yaml"},
		Available:   func() bool { return true },
		Capabilities: backend.Capabilities{
			backend.CapSiblings: true,
			backend.CapComments: true,
		},
		New: New,
	}
}

// Adapter returns the normalization adapter of the backend.
func Adapter() tree.Adapter {
	return tree.Adapter{
		Unwrap:  rawtree.UnwrapName,
		Lines:   tree.OneBased,
		Columns: tree.OneBased,
	}
}

// Producer parses YAML streams.
type Producer struct{}

// New builds a producer.
func New(backend.Config) (backend.Producer, error) {
	return Producer{}, nil
}

// Parse implements backend.Producer. The root is a "stream" with one
// "document" child per YAML document. Decoding stops at the first error,
// which becomes a tree error.
func (Producer) Parse(ctx context.Context, _ any, src []byte) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &builder{src: src, lines: rawtree.NewLines(src), seen: make(map[int]bool)}
	root := b.lines.Span1("stream", 0, len(src))

	dec := yaml.NewDecoder(bytes.NewReader(src))
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			root.Error = true
			b.fail(err)
			break
		}
		root.Add(b.node(&doc))
	}

	sort.Slice(b.notes, func(i, j int) bool { return b.notes[i].StartByte < b.notes[j].StartByte })
	return &rawtree.Tree{Root: root, Errs: b.errs, Notes: b.notes}, nil
}

type builder struct {
	src   []byte
	lines *rawtree.Lines
	seen  map[int]bool
	errs  []backend.Diagnostic
	notes []backend.Comment
}

func (b *builder) node(n *yaml.Node) *rawtree.Node {
	offset := b.lines.Offset(n.Line-1, n.Column-1)

	var out *rawtree.Node
	switch n.Kind {
	case yaml.DocumentNode:
		out = b.collection("document", offset, n.Content)
	case yaml.MappingNode:
		out = b.lines.Span1("mapping", offset, offset)
		for i := 0; i+1 < len(n.Content); i += 2 {
			pair := &rawtree.Node{Kind: "pair"}
			pair.Add(b.node(n.Content[i]), b.node(n.Content[i+1]))
			rawtree.Cover(pair, b.lines.Point1)
			out.Add(pair)
		}
		b.cover(out, offset, '{', '}')
	case yaml.SequenceNode:
		out = b.collection("sequence", offset, n.Content)
		b.cover(out, offset, '[', ']')
	case yaml.AliasNode:
		out = b.lines.Span1("alias", offset, min(offset+1+len(n.Value), b.lines.Len()))
	default:
		out = b.lines.Span1("scalar", offset, b.lines.ScalarEnd(offset, n.Value))
	}

	b.comment(n.HeadComment, out.Start, false)
	b.comment(n.LineComment, out.Start, true)
	b.comment(n.FootComment, out.End, true)
	return out
}

func (b *builder) collection(kind string, offset int, content []*yaml.Node) *rawtree.Node {
	out := b.lines.Span1(kind, offset, offset)
	for _, c := range content {
		out.Add(b.node(c))
	}
	if len(out.Children) > 0 {
		rawtree.Cover(out, b.lines.Point1)
	}
	return out
}

// cover widens a collection over its children, and over the closing
// bracket when it is written in flow style.
func (b *builder) cover(out *rawtree.Node, offset int, open, closing byte) {
	rawtree.Cover(out, b.lines.Point1)
	if offset < out.Start || len(out.Children) == 0 {
		out.Start = offset
	}
	if offset < len(b.src) && b.src[offset] == open {
		if i := bytes.IndexByte(b.src[max(out.End, offset):], closing); i >= 0 {
			out.End = max(out.End, offset) + i + 1
		}
	}
	out.StartPt, out.EndPt = b.lines.Point1(out.Start), b.lines.Point1(out.End)
}

// comment records each line of a yaml.v3 comment string. The library
// keeps no comment positions, so lines are located before or after at.
func (b *builder) comment(text string, at int, after bool) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var i int
		if after {
			if i = bytes.Index(b.src[at:], []byte(line)); i >= 0 {
				i += at
			}
		} else {
			i = bytes.LastIndex(b.src[:at], []byte(line))
		}
		if i < 0 || b.seen[i] {
			continue
		}
		b.seen[i] = true

		end := i + len(line)
		b.notes = append(b.notes, backend.Comment{
			Text:      line,
			StartByte: i,
			EndByte:   end,
			Start:     b.lines.Point1(i),
			End:       b.lines.Point1(end),
		})
	}
}

var errLine = regexp.MustCompile(`line (\d+)`)

func (b *builder) fail(err error) {
	d := backend.Diagnostic{Message: strings.TrimPrefix(err.Error(), "yaml: ")}
	if m := errLine.FindStringSubmatch(err.Error()); m != nil {
		if line, convErr := strconv.Atoi(m[1]); convErr == nil && line > 0 {
			d.StartByte = b.lines.Offset(line-1, 0)
			d.EndByte = b.lines.LineEnd(line - 1)
			d.Start = b.lines.Point1(d.StartByte)
			d.End = b.lines.Point1(d.EndByte)
			d.HasPosition = true
		}
	}
	b.errs = append(b.errs, d)
}
