package tree

import (
	"fmt"

	"mercator-hq/arbor/pkg/backend"
)

// Point is a 0-based row and column.
type Point struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// Line returns the 1-based line of p.
func (p Point) Line() int { return p.Row + 1 }

func (p Point) String() string {
	return fmt.Sprintf("%d:%d", p.Row+1, p.Column)
}

// SourcePosition is a span with 1-based lines and 0-based columns.
type SourcePosition struct {
	StartLine   int `json:"start_line"`
	StartColumn int `json:"start_column"`
	EndLine     int `json:"end_line"`
	EndColumn   int `json:"end_column"`
}

func (p SourcePosition) String() string {
	return fmt.Sprintf("%d:%d-%d:%d", p.StartLine, p.StartColumn, p.EndLine, p.EndColumn)
}

func positionOf(start, end Point) SourcePosition {
	return SourcePosition{
		StartLine:   start.Row + 1,
		StartColumn: start.Column,
		EndLine:     end.Row + 1,
		EndColumn:   end.Column,
	}
}

// normalize converts a native point using the adapter's bases.
func normalize(p backend.Point, a Adapter) Point {
	return Point{
		Row:    max(p.Row-int(a.Lines), 0),
		Column: max(p.Column-int(a.Columns), 0),
	}
}

// Diagnostic is a normalized backend error or warning.
type Diagnostic struct {
	Message     string `json:"message"`
	StartByte   int    `json:"start_byte"`
	EndByte     int    `json:"end_byte"`
	Start       Point  `json:"start"`
	End         Point  `json:"end"`
	HasPosition bool   `json:"has_position"`
}

func (d Diagnostic) String() string {
	if !d.HasPosition {
		return d.Message
	}
	return fmt.Sprintf("%s: %s", d.Start, d.Message)
}

// Comment is a normalized source comment.
type Comment struct {
	Text      string `json:"text"`
	StartByte int    `json:"start_byte"`
	EndByte   int    `json:"end_byte"`
	Start     Point  `json:"start"`
	End       Point  `json:"end"`
}

func normalizeDiagnostics(in []backend.Diagnostic, a Adapter) []Diagnostic {
	out := make([]Diagnostic, 0, len(in))
	for _, d := range in {
		nd := Diagnostic{
			Message:     d.Message,
			StartByte:   d.StartByte,
			EndByte:     d.EndByte,
			HasPosition: d.HasPosition,
		}
		if d.HasPosition {
			nd.Start = normalize(d.Start, a)
			nd.End = normalize(d.End, a)
		}
		out = append(out, nd)
	}
	return out
}

func normalizeComments(in []backend.Comment, a Adapter) []Comment {
	out := make([]Comment, 0, len(in))
	for _, c := range in {
		out = append(out, Comment{
			Text:      c.Text,
			StartByte: c.StartByte,
			EndByte:   c.EndByte,
			Start:     normalize(c.Start, a),
			End:       normalize(c.End, a),
		})
	}
	return out
}
