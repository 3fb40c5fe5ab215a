// Package value defines the tagged union exchanged between host functions
// and guest JavaScript code.
//
// A Value is a closed variant: exactly one representation is active,
// selected by its Kind. Values are immutable once constructed and are
// copied, never shared, when they cross the host/guest boundary.
package value

import (
	"fmt"
	"math"
	"sort"
)

// Kind identifies which variant of a Value is active.
type Kind int

const (
	// KindUndefined is the guest's undefined. It is the zero Value and the
	// result of a host function that returns nothing.
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ConversionError reports a value that could not cross the boundary in the
// expected shape.
type ConversionError struct {
	Want Kind
	Got  string
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s to %s", e.Got, e.Want)
}

// Value is the data exchanged between host and guest.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	arr  []Value
	obj  map[string]Value
}

// Undefined returns the undefined Value. Equivalent to the zero Value.
func Undefined() Value { return Value{} }

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// Int returns a numeric Value from an integer.
func Int(i int64) Value { return Value{kind: KindNumber, num: float64(i)} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array returns an array Value holding a copy of elems.
func Array(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: KindArray, arr: arr}
}

// Object returns an object Value holding a copy of fields.
func Object(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{kind: KindObject, obj: obj}
}

// Kind reports the active variant.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports whether v is the undefined Value.
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }

// IsNull reports whether v is the null Value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean representation, or a ConversionError if v is
// not a bool.
func (v Value) AsBool() (bool, error) {
	if v.kind != KindBool {
		return false, &ConversionError{Want: KindBool, Got: v.kind.String()}
	}
	return v.b, nil
}

// AsNumber returns the numeric representation, or a ConversionError if v is
// not a number.
func (v Value) AsNumber() (float64, error) {
	if v.kind != KindNumber {
		return 0, &ConversionError{Want: KindNumber, Got: v.kind.String()}
	}
	return v.num, nil
}

// AsString returns the string representation, or a ConversionError if v is
// not a string.
func (v Value) AsString() (string, error) {
	if v.kind != KindString {
		return "", &ConversionError{Want: KindString, Got: v.kind.String()}
	}
	return v.str, nil
}

// AsArray returns a copy of the element slice, or a ConversionError if v is
// not an array.
func (v Value) AsArray() ([]Value, error) {
	if v.kind != KindArray {
		return nil, &ConversionError{Want: KindArray, Got: v.kind.String()}
	}
	arr := make([]Value, len(v.arr))
	copy(arr, v.arr)
	return arr, nil
}

// AsObject returns a copy of the field map, or a ConversionError if v is
// not an object.
func (v Value) AsObject() (map[string]Value, error) {
	if v.kind != KindObject {
		return nil, &ConversionError{Want: KindObject, Got: v.kind.String()}
	}
	obj := make(map[string]Value, len(v.obj))
	for k, f := range v.obj {
		obj[k] = f
	}
	return obj, nil
}

// Len returns the number of elements for arrays and fields for objects,
// and zero for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.arr)
	case KindObject:
		return len(v.obj)
	default:
		return 0
	}
}

// Index returns the i-th element of an array Value, or undefined when v is
// not an array or i is out of range.
func (v Value) Index(i int) Value {
	if v.kind != KindArray || i < 0 || i >= len(v.arr) {
		return Undefined()
	}
	return v.arr[i]
}

// Field returns the named field of an object Value, or undefined when v is
// not an object or the field is absent.
func (v Value) Field(name string) Value {
	if v.kind != KindObject {
		return Undefined()
	}
	f, ok := v.obj[name]
	if !ok {
		return Undefined()
	}
	return f
}

// FromInterface converts an engine-native Go representation to a Value.
// It accepts the types produced by JSON decoding and by engine exports:
// nil, bool, string, numeric types, []any, and map[string]any. Anything
// else (guest functions, symbols) yields a ConversionError.
func FromInterface(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case []any:
		arr := make([]Value, len(t))
		for i, el := range t {
			v, err := FromInterface(el)
			if err != nil {
				return Undefined(), err
			}
			arr[i] = v
		}
		return Value{kind: KindArray, arr: arr}, nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, el := range t {
			v, err := FromInterface(el)
			if err != nil {
				return Undefined(), err
			}
			obj[k] = v
		}
		return Value{kind: KindObject, obj: obj}, nil
	default:
		return Undefined(), &ConversionError{Want: KindObject, Got: fmt.Sprintf("%T", x)}
	}
}

// Interface converts v to the engine-native Go representation: nil for
// undefined and null, bool, float64, string, []any, or map[string]any.
// The result shares no memory with v.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		arr := make([]any, len(v.arr))
		for i, el := range v.arr {
			arr[i] = el.Interface()
		}
		return arr
	case KindObject:
		obj := make(map[string]any, len(v.obj))
		for k, el := range v.obj {
			obj[k] = el.Interface()
		}
		return obj
	default:
		return nil
	}
}

// Equal reports deep equality of two Values. NaN numbers are not equal to
// anything, matching guest semantics.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// String renders v for diagnostics. It is not a serialization format; use
// MarshalJSON for the wire form.
func (v Value) String() string {
	switch v.kind {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNumber:
		if v.num == math.Trunc(v.num) && !math.IsInf(v.num, 0) {
			return fmt.Sprintf("%d", int64(v.num))
		}
		return fmt.Sprintf("%g", v.num)
	case KindString:
		return v.str
	case KindArray:
		return fmt.Sprintf("array(%d)", len(v.arr))
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("object%v", keys)
	default:
		return v.kind.String()
	}
}
