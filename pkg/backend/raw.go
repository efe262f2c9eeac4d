package backend

// Point is a position in a backend's native coordinate convention. The
// normalization layer converts it using the backend's registered bases.
type Point struct {
	Row    int
	Column int
}

// RawTree is the minimal contract for a backend tree. RootNode returns a
// RawNode or a key-value map node.
type RawTree interface {
	RootNode() any
}

// RawNode is the record shape of a backend node. Child returns a RawNode
// or a key-value map node.
type RawNode interface {
	Type() string
	ChildCount() int
	Child(i int) any
	StartByte() int
	EndByte() int
	StartPoint() Point
	EndPoint() Point
}

// Named is implemented by raw nodes that distinguish named from anonymous
// nodes.
type Named interface {
	IsNamed() bool
}

// Erroneous is implemented by raw nodes that can carry syntax errors.
type Erroneous interface {
	HasError() bool
}

// Navigator is implemented by raw nodes that know their own neighbours.
// Each method returns nil when no such node exists.
type Navigator interface {
	Parent() any
	NextSibling() any
	PrevSibling() any
}

// Diagnostic is one error or warning reported by a backend.
type Diagnostic struct {
	Message   string
	StartByte int
	EndByte   int
	Start     Point
	End       Point

	// HasPosition is false when the backend could not place the diagnostic.
	HasPosition bool
}

// Comment is one comment found in the source.
type Comment struct {
	Text      string
	StartByte int
	EndByte   int
	Start     Point
	End       Point
}

// Diagnoser is implemented by raw trees that report errors and warnings.
type Diagnoser interface {
	Errors() []Diagnostic
	Warnings() []Diagnostic
}

// Commenter is implemented by raw trees that collect comments.
type Commenter interface {
	Comments() []Comment
}

// InputEdit describes a single text edit for incremental reparsing.
type InputEdit struct {
	StartByte   int
	OldEndByte  int
	NewEndByte  int
	StartPoint  Point
	OldEndPoint Point
	NewEndPoint Point
}

// Editor is implemented by raw trees of backends that support incremental
// reparse.
type Editor interface {
	Edit(edit InputEdit) error
}
