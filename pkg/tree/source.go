package tree

import (
	"bytes"
	"sort"
	"sync"
)

// Source is the read-only source text shared by a Tree and its Nodes.
type Source struct {
	data []byte

	once       sync.Once
	lineStarts []int
}

// NewSource wraps src. The caller must not modify src afterwards.
func NewSource(src []byte) *Source {
	return &Source{data: src}
}

// Bytes returns the source text.
func (s *Source) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.data
}

// Len returns the source length in bytes.
func (s *Source) Len() int {
	if s == nil {
		return 0
	}
	return len(s.data)
}

// Slice returns src[start:end] clamped to the source bounds.
func (s *Source) Slice(start, end int) []byte {
	n := s.Len()
	start = clamp(start, 0, n)
	end = clamp(end, start, n)
	if n == 0 {
		return nil
	}
	return s.data[start:end]
}

func (s *Source) index() []int {
	s.once.Do(func() {
		s.lineStarts = []int{0}
		for i, b := range s.data {
			if b == '\n' {
				s.lineStarts = append(s.lineStarts, i+1)
			}
		}
	})
	return s.lineStarts
}

// LineCount returns the number of lines. Empty source has one empty line.
func (s *Source) LineCount() int {
	if s == nil {
		return 1
	}
	return len(s.index())
}

// Line returns the text of 1-based line n without its line terminator.
func (s *Source) Line(n int) []byte {
	if s == nil {
		return nil
	}
	starts := s.index()
	if n < 1 || n > len(starts) {
		return nil
	}
	start := starts[n-1]
	end := len(s.data)
	if n < len(starts) {
		end = starts[n] - 1
	}
	return bytes.TrimSuffix(s.data[start:end], []byte("\r"))
}

// PointAt returns the 0-based point of a byte offset. Columns count bytes.
func (s *Source) PointAt(offset int) Point {
	if s == nil {
		return Point{}
	}
	offset = clamp(offset, 0, len(s.data))
	starts := s.index()
	row := sort.SearchInts(starts, offset+1) - 1
	return Point{Row: row, Column: offset - starts[row]}
}

// OffsetAt returns the byte offset of a 0-based point, clamped to the
// source.
func (s *Source) OffsetAt(p Point) int {
	if s == nil {
		return 0
	}
	starts := s.index()
	row := clamp(p.Row, 0, len(starts)-1)
	return clamp(starts[row]+p.Column, 0, len(s.data))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
