// Package tree is the normalization layer. It turns whatever a backend
// produced into one uniform Tree/Node shape and unwraps the uniform
// Language into the input each backend expects.
//
// Positions are normalized: Point is 0-based row and column, StartLine and
// EndLine are 1-based, and SourcePosition reports 1-based lines with
// 0-based columns. Each backend declares its native bases in its Adapter.
//
// Raw nodes come in two shapes, both accepted everywhere:
//
//   - record shape: a value implementing backend.RawNode
//   - key-value shape: a map[string]any with the keys "type",
//     "start_byte", "end_byte", "children" and either "start_point" and
//     "end_point" ({row, column} maps) or "start_line", "start_column",
//     "end_line" and "end_column". Lines given as "start_line" and
//     "end_line" are always 1-based; columns follow the adapter.
//
// Nodes are compared by the identity of the raw node they wrap, never by
// content.
package tree
