// Package gotoml parses TOML with the go-toml/v2 unstable parser.
//
// Nodes carry 1-based lines and columns. Key-value pairs that follow a
// table header become children of that table, so a document has at most
// two levels of expressions.
package gotoml

import (
	"bytes"
	"context"
	"errors"

	"mercator-hq/arbor/pkg/backend"
	"mercator-hq/arbor/pkg/backends/rawtree"
	"mercator-hq/arbor/pkg/tree"

	"github.com/pelletier/go-toml/v2/unstable"
)

// ID is the backend id.
const ID = "gotoml"

// Descriptor returns the backend descriptor.
func Descriptor() backend.Descriptor {
	return backend.Descriptor{
		ID:          ID,
		Key:         backend.KeyNative,
		Description: "TOML via github.com/pelletier/go-toml/v2",
		Resources:   []string{"toml"},
		Available:   func() bool { return true },
		Capabilities: backend.Capabilities{
			backend.CapSiblings:       true,
			backend.CapComments:       true,
			backend.CapExactPositions: true,
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

// Producer parses TOML documents. It is safe for concurrent use; every
// Parse runs its own parser.
type Producer struct {
	keepComments bool
}

// New builds a producer. The option "comments" set to "false" drops
// comments.
func New(cfg backend.Config) (backend.Producer, error) {
	return &Producer{keepComments: cfg.Option("comments", "true") != "false"}, nil
}

// Parse implements backend.Producer. Syntax errors are reported as tree
// errors; the tree holds every expression parsed before the first one.
func (p *Producer) Parse(ctx context.Context, _ any, src []byte) (backend.RawTree, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := &builder{src: src, lines: rawtree.NewLines(src)}
	b.p.KeepComments = p.keepComments
	b.p.Reset(src)

	root := b.lines.Span1("document", 0, len(src))
	var table *rawtree.Node
	for b.p.NextExpression() {
		for n := b.p.Expression(); n != nil; n = n.Next() {
			if n.Kind == unstable.Comment {
				b.comment(n)
				continue
			}
			node := b.node(n)
			switch n.Kind {
			case unstable.Table, unstable.ArrayTable:
				b.close(table)
				table = node
				root.Add(node)
			default:
				if table != nil {
					table.Add(node)
				} else {
					root.Add(node)
				}
			}
		}
	}
	b.close(table)

	if err := b.p.Error(); err != nil {
		b.fail(err)
		root.Error = true
	}

	return &rawtree.Tree{Root: root, Errs: b.errs, Notes: b.notes}, nil
}

type builder struct {
	p      unstable.Parser
	src    []byte
	lines  *rawtree.Lines
	cursor int
	errs   []backend.Diagnostic
	notes  []backend.Comment
}

func (b *builder) node(n *unstable.Node) *rawtree.Node {
	switch n.Kind {
	case unstable.KeyValue:
		out := &rawtree.Node{Kind: kindName(n.Kind)}
		for it := n.Key(); it.Next(); {
			out.Add(b.leaf(it.Node()))
		}
		out.Add(b.node(n.Value()))
		rawtree.Cover(out, b.lines.Point1)
		return out

	case unstable.Table, unstable.ArrayTable:
		out := &rawtree.Node{Kind: kindName(n.Kind)}
		for it := n.Key(); it.Next(); {
			out.Add(b.leaf(it.Node()))
		}
		rawtree.Cover(out, b.lines.Point1)
		// Widen to the brackets of the header.
		line := bytes.LastIndexByte(b.src[:out.Start], '\n') + 1
		if j := bytes.IndexByte(b.src[line:out.Start], '['); j >= 0 {
			out.Start = line + j
		}
		if j := bytes.IndexByte(b.src[out.End:], ']'); j >= 0 {
			out.End += j + 1
			if n.Kind == unstable.ArrayTable && out.End < len(b.src) && b.src[out.End] == ']' {
				out.End++
			}
		}
		out.StartPt, out.EndPt = b.lines.Point1(out.Start), b.lines.Point1(out.End)
		b.cursor = out.End
		return out

	case unstable.Array:
		start := b.find('[')
		b.cursor = start + 1
		out := b.lines.Span1(kindName(n.Kind), start, start+1)
		b.children(out, n)
		out.End = b.find(']') + 1
		out.EndPt = b.lines.Point1(out.End)
		b.cursor = out.End
		return out

	case unstable.InlineTable:
		start, _ := b.locate(n)
		b.cursor = start + 1
		out := b.lines.Span1(kindName(n.Kind), start, start+1)
		b.children(out, n)
		out.End = b.find('}') + 1
		out.EndPt = b.lines.Point1(out.End)
		b.cursor = out.End
		return out
	}

	return b.leaf(n)
}

func (b *builder) children(out *rawtree.Node, n *unstable.Node) {
	for it := n.Children(); it.Next(); {
		c := it.Node()
		if c.Kind == unstable.Comment {
			b.comment(c)
			continue
		}
		out.Add(b.node(c))
	}
}

func (b *builder) leaf(n *unstable.Node) *rawtree.Node {
	start, end := b.locate(n)
	b.cursor = end
	return b.lines.Span1(kindName(n.Kind), start, end)
}

// locate returns the byte span of a node. Only some kinds carry a raw
// range; the others are found by their data after the cursor.
func (b *builder) locate(n *unstable.Node) (int, int) {
	if n.Raw.Length > 0 {
		shape := b.p.Shape(n.Raw)
		return shape.Start.Offset, shape.End.Offset
	}
	if len(n.Data) > 0 && b.cursor <= len(b.src) {
		if i := bytes.Index(b.src[b.cursor:], n.Data); i >= 0 {
			start := b.cursor + i
			return start, start + len(n.Data)
		}
	}
	return b.cursor, b.cursor
}

// find returns the offset of the next c at or after the cursor, or the
// source length.
func (b *builder) find(c byte) int {
	if b.cursor >= len(b.src) {
		return len(b.src)
	}
	if i := bytes.IndexByte(b.src[b.cursor:], c); i >= 0 {
		return b.cursor + i
	}
	return len(b.src)
}

// close extends a table over the key-value pairs under its header.
func (b *builder) close(table *rawtree.Node) {
	if table == nil || len(table.Children) == 0 {
		return
	}
	last := table.Children[len(table.Children)-1]
	if last.End > table.End {
		table.End = last.End
		table.EndPt = b.lines.Point1(table.End)
	}
}

func (b *builder) comment(n *unstable.Node) {
	start, end := b.locate(n)
	b.cursor = max(b.cursor, end)
	b.notes = append(b.notes, backend.Comment{
		Text:      string(b.src[start:end]),
		StartByte: start,
		EndByte:   end,
		Start:     b.lines.Point1(start),
		End:       b.lines.Point1(end),
	})

	// Runs of comments inside arrays hang off the first one.
	for it := n.Children(); it.Next(); {
		b.comment(it.Node())
	}
}

func (b *builder) fail(err error) {
	d := backend.Diagnostic{Message: err.Error()}

	var perr *unstable.ParserError
	if errors.As(err, &perr) {
		d.Message = perr.Message
		if start, ok := b.offsetOf(perr.Highlight); ok {
			end := start + len(perr.Highlight)
			d.StartByte, d.EndByte = start, end
			d.Start, d.End = b.lines.Point1(start), b.lines.Point1(end)
			d.HasPosition = true
		}
	}

	b.errs = append(b.errs, d)
}

// offsetOf returns the offset of highlight within the source. Range
// panics for slices that do not point into the parser's input.
func (b *builder) offsetOf(highlight []byte) (offset int, ok bool) {
	if len(highlight) == 0 {
		return 0, false
	}
	defer func() {
		if recover() != nil {
			offset, ok = 0, false
		}
	}()
	return int(b.p.Range(highlight).Offset), true
}

func kindName(k unstable.Kind) string {
	switch k {
	case unstable.Key:
		return "key"
	case unstable.Table:
		return "table"
	case unstable.ArrayTable:
		return "array_table"
	case unstable.KeyValue:
		return "key_value"
	case unstable.Array:
		return "array"
	case unstable.InlineTable:
		return "inline_table"
	case unstable.String:
		return "string"
	case unstable.Bool:
		return "bool"
	case unstable.Float:
		return "float"
	case unstable.Integer:
		return "integer"
	case unstable.LocalDate:
		return "local_date"
	case unstable.LocalTime:
		return "local_time"
	case unstable.LocalDateTime:
		return "local_date_time"
	case unstable.DateTime:
		return "date_time"
	case unstable.Comment:
		return "comment"
	}
	return "invalid"
}
