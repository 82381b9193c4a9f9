// Package record defines the Value and DataRecord data model emitted by
// the FSM executor: a tagged scalar/list value union, a field-name-to-
// value mapping with an opaque composite key, and a lowercase-keys
// conversion option.
package record

import "strings"

// ValueKind fixes whether a Value holds a single string or an ordered
// sequence of strings. A value's kind is set once, at template-compile
// time, by its List option, and never changes across a parse.
type ValueKind int

const (
	// Scalar holds a single string.
	Scalar ValueKind = iota
	// List holds an ordered sequence of strings.
	List
)

// Value is a tagged union of Scalar(string) or List([]string). Use Kind
// to discriminate before reading Str or Items.
type Value struct {
	Kind  ValueKind
	Str   string
	Items []string
}

// NewScalar builds a Scalar value.
func NewScalar(s string) Value { return Value{Kind: Scalar, Str: s} }

// NewList builds a List value from items, copying the slice.
func NewList(items []string) Value {
	cp := make([]string, len(items))
	copy(cp, items)
	return Value{Kind: List, Items: cp}
}

// EmptyScalar is the zero value used when a declared scalar has no
// capture in a given record.
func EmptyScalar() Value { return Value{Kind: Scalar, Str: ""} }

// EmptyList is the zero value used when a declared list has no capture
// in a given record.
func EmptyList() Value { return Value{Kind: List, Items: nil} }

// IsEmpty reports whether the value is an empty scalar or an empty (nil
// or zero-length) list — the condition Fillup looks for in a
// predecessor record.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case Scalar:
		return v.Str == ""
	case List:
		return len(v.Items) == 0
	}
	return true
}

// Append adds s to a List value, returning the updated value. Calling
// Append on a Scalar value overwrites Str instead, matching the
// executor's "list-append for list, overwrite for scalar" merge rule.
func (v Value) Append(s string) Value {
	if v.Kind == List {
		return Value{Kind: List, Items: append(append([]string{}, v.Items...), s)}
	}
	return Value{Kind: Scalar, Str: s}
}

// String renders v for recordKey construction: a scalar renders as its
// string, a list renders as its items joined with ",". This rendering
// is opaque metadata, not a documented external format.
func (v Value) String() string {
	if v.Kind == List {
		return strings.Join(v.Items, ",")
	}
	return v.Str
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	if v.Kind == List {
		return NewList(v.Items)
	}
	return v
}
