// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package params

import (
	"fmt"
	"math"
	"slices"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindInvalid ValueKind = iota
	KindNumber
	KindString
	KindBool
	KindStrings
	KindNumbers
)

func (k ValueKind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "boolean"
	case KindStrings:
		return "list of strings"
	case KindNumbers:
		return "list of numbers"
	default:
		return "invalid"
	}
}

// Value is one option value: a number, string, boolean, or an ordered list
// of strings or numbers. The zero Value is invalid.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
	strs []string
	nums []float64
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Strings returns a list-of-strings Value. The slice is copied.
func Strings(ss ...string) Value { return Value{kind: KindStrings, strs: slices.Clone(ss)} }

// Numbers returns a list-of-numbers Value. The slice is copied.
func Numbers(fs ...float64) Value { return Value{kind: KindNumbers, nums: slices.Clone(fs)} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// Float returns the numeric value.
func (v Value) Float() (float64, bool) { return v.num, v.kind == KindNumber }

// Int returns the numeric value when it is integral.
func (v Value) Int() (int, bool) {
	if v.kind != KindNumber || v.num != math.Trunc(v.num) {
		return 0, false
	}
	return int(v.num), true
}

// Str returns the string value.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Boolean returns the boolean value.
func (v Value) Boolean() (bool, bool) { return v.b, v.kind == KindBool }

// List returns a copy of the list-of-strings value.
func (v Value) List() ([]string, bool) { return slices.Clone(v.strs), v.kind == KindStrings }

// Floats returns a copy of the list-of-numbers value.
func (v Value) Floats() ([]float64, bool) { return slices.Clone(v.nums), v.kind == KindNumbers }

// Equal reports whether v and o hold the same variant and contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindStrings:
		return slices.Equal(v.strs, o.strs)
	case KindNumbers:
		return slices.Equal(v.nums, o.nums)
	}
	return true
}

// Any returns the value as a plain Go value (float64, string, bool,
// []string or []float64). Slices are copies.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindStrings:
		return slices.Clone(v.strs)
	case KindNumbers:
		return slices.Clone(v.nums)
	}
	return nil
}

func (v Value) String() string {
	return fmt.Sprint(v.Any())
}

// ValueOf converts a decoded YAML/JSON or literal Go value into a Value.
// Lists must be homogeneous: all strings or all numbers.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case []string:
		return Strings(t...), nil
	case []float64:
		return Numbers(t...), nil
	case []int:
		fs := make([]float64, len(t))
		for i, n := range t {
			fs[i] = float64(n)
		}
		return Numbers(fs...), nil
	case []any:
		return listOf(t)
	case nil:
		return Value{}, fmt.Errorf("null value")
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}

func listOf(items []any) (Value, error) {
	if len(items) == 0 {
		return Strings(), nil
	}
	if _, ok := items[0].(string); ok {
		ss := make([]string, len(items))
		for i, it := range items {
			s, ok := it.(string)
			if !ok {
				return Value{}, fmt.Errorf("mixed list: element %d is %T, want string", i, it)
			}
			ss[i] = s
		}
		return Strings(ss...), nil
	}
	fs := make([]float64, len(items))
	for i, it := range items {
		v, err := ValueOf(it)
		if err != nil {
			return Value{}, fmt.Errorf("element %d: %w", i, err)
		}
		f, ok := v.Float()
		if !ok {
			return Value{}, fmt.Errorf("mixed list: element %d is %T, want number", i, it)
		}
		fs[i] = f
	}
	return Numbers(fs...), nil
}
