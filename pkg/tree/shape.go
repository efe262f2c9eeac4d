package tree

import (
	"reflect"

	"mercator-hq/arbor/pkg/backend"
)

// fields are the values read from a raw node of either shape.
type fields struct {
	typ      string
	start    int
	end      int
	startPt  backend.Point
	endPt    backend.Point
	hasPts   bool
	oneLines bool // startPt/endPt rows came from 1-based *_line keys
	named    bool
	hasError bool
	children []any
	record   backend.RawNode
}

func (f *fields) childCount() int {
	if f.record != nil {
		return f.record.ChildCount()
	}
	return len(f.children)
}

func (f *fields) child(i int) any {
	if i < 0 || i >= f.childCount() {
		return nil
	}
	if f.record != nil {
		return f.record.Child(i)
	}
	return f.children[i]
}

// readFields reads raw in record or key-value shape. ok is false for any
// other value.
func readFields(raw any) (fields, bool) {
	switch n := raw.(type) {
	case backend.RawNode:
		if isNil(n) {
			return fields{}, false
		}
		f := fields{
			typ:     n.Type(),
			start:   n.StartByte(),
			end:     n.EndByte(),
			startPt: n.StartPoint(),
			endPt:   n.EndPoint(),
			hasPts:  true,
			named:   true,
			record:  n,
		}
		if nn, ok := n.(backend.Named); ok {
			f.named = nn.IsNamed()
		}
		if en, ok := n.(backend.Erroneous); ok {
			f.hasError = en.HasError()
		}
		return f, true

	case map[string]any:
		if n == nil {
			return fields{}, false
		}
		return readMap(n), true
	}
	return fields{}, false
}

func readMap(m map[string]any) fields {
	f := fields{named: true}
	f.typ, _ = m["type"].(string)
	f.start, _ = toInt(m["start_byte"])
	f.end, _ = toInt(m["end_byte"])

	if sp, ok := toPoint(m["start_point"]); ok {
		f.startPt = sp
		f.endPt, _ = toPoint(m["end_point"])
		f.hasPts = true
	} else if line, ok := toInt(m["start_line"]); ok {
		col, _ := toInt(m["start_column"])
		endLine, hasEnd := toInt(m["end_line"])
		if !hasEnd {
			endLine = line
		}
		endCol, _ := toInt(m["end_column"])
		f.startPt = backend.Point{Row: line, Column: col}
		f.endPt = backend.Point{Row: endLine, Column: endCol}
		f.hasPts = true
		f.oneLines = true
	}

	if v, ok := m["named"].(bool); ok {
		f.named = v
	} else if v, ok := m["is_named"].(bool); ok {
		f.named = v
	}
	f.hasError, _ = m["has_error"].(bool)

	switch kids := m["children"].(type) {
	case []any:
		f.children = kids
	case []map[string]any:
		f.children = make([]any, len(kids))
		for i, k := range kids {
			f.children[i] = k
		}
	}
	return f
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func toPoint(v any) (backend.Point, bool) {
	switch p := v.(type) {
	case backend.Point:
		return p, true
	case map[string]any:
		row, okRow := toInt(p["row"])
		col, okCol := toInt(p["column"])
		return backend.Point{Row: row, Column: col}, okRow && okCol
	}
	return backend.Point{}, false
}

// sameRaw reports whether a and b are the same raw node object.
func sameRaw(a, b any) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Slice, reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return va.UnsafePointer() == vb.UnsafePointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
