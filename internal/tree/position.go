package tree

import (
	"fmt"
	"sort"
)

// Pos is a location in a source file. Line and Column are 1-based, Column
// counts bytes.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Span is the half-open byte range [Start, End) of a node.
type Span struct {
	Start Pos
	End   Pos
}

// IsZero reports whether s was never set.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Contains reports whether o lies within s.
func (s Span) Contains(o Span) bool {
	return s.Start.Offset <= o.Start.Offset && o.End.Offset <= s.End.Offset
}

// Less orders spans by start offset, then by end offset.
func (s Span) Less(o Span) bool {
	if s.Start.Offset != o.Start.Offset {
		return s.Start.Offset < o.Start.Offset
	}
	return s.End.Offset < o.End.Offset
}

func (s Span) String() string {
	return fmt.Sprintf("%s-%s", s.Start, s.End)
}

// LineIndex converts byte offsets into line/column positions.
type LineIndex struct {
	lines []int // offset of the first byte of each line
	size  int
}

// NewLineIndex indexes src.
func NewLineIndex(src []byte) *LineIndex {
	idx := &LineIndex{lines: []int{0}, size: len(src)}
	for i, c := range src {
		if c == '\n' {
			idx.lines = append(idx.lines, i+1)
		}
	}
	return idx
}

// Pos returns the position of offset.
func (idx *LineIndex) Pos(offset int) Pos {
	if offset < 0 {
		offset = 0
	}
	if offset > idx.size {
		offset = idx.size
	}
	line := sort.Search(len(idx.lines), func(i int) bool { return idx.lines[i] > offset }) - 1
	return Pos{Offset: offset, Line: line + 1, Column: offset - idx.lines[line] + 1}
}

// Span returns the span of the byte range [start, end).
func (idx *LineIndex) Span(start, end int) Span {
	return Span{Start: idx.Pos(start), End: idx.Pos(end)}
}
