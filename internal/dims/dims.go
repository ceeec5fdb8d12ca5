// Package dims describes the addressable axes of a multi-dimensional image and
// the index selections that pick one 2-D plane out of them.
package dims

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GlobalFields are the dimensions whose index is shared by every channel.
var GlobalFields = []string{"z", "t", "time"}

// IsGlobal reports whether field names a global dimension.
func IsGlobal(field string) bool {
	for _, f := range GlobalFields {
		if f == field {
			return true
		}
	}
	return false
}

// Value is one entry of a dimension: either a label or a number.
type Value struct {
	Str   string
	Num   float64
	IsNum bool
}

// Str returns a label value.
func Str(s string) Value { return Value{Str: s} }

// Num returns a numeric value.
func Num(n float64) Value { return Value{Num: n, IsNum: true} }

// ValueOf converts a decoded scalar (yaml or json) into a Value.
func ValueOf(v any) (Value, error) {
	switch x := v.(type) {
	case string:
		return Str(x), nil
	case int:
		return Num(float64(x)), nil
	case int64:
		return Num(float64(x)), nil
	case uint64:
		return Num(float64(x)), nil
	case float64:
		return Num(x), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, err
		}
		return Num(f), nil
	default:
		return Value{}, fmt.Errorf("dimension value %v: unsupported type %T", v, v)
	}
}

func (v Value) String() string {
	if v.IsNum {
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	}
	return v.Str
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.IsNum {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Str)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Str(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("dimension value %s: %w", data, err)
	}
	*v = Num(n)
	return nil
}

// Dimension is one addressable axis of an image. Field is unique within an
// image's dimension list.
type Dimension struct {
	Field  string  `json:"field"`
	Values []Value `json:"values"`
}

// Labels returns the values of d rendered as strings.
func (d Dimension) Labels() []string {
	out := make([]string, len(d.Values))
	for i, v := range d.Values {
		out[i] = v.String()
	}
	return out
}

// IndexOf returns the position of label in d, or -1.
func (d Dimension) IndexOf(label string) int {
	for i, v := range d.Values {
		if v.String() == label {
			return i
		}
	}
	return -1
}

// Range builds a numeric dimension 0..n-1.
func Range(field string, n int) Dimension {
	d := Dimension{Field: field, Values: make([]Value, n)}
	for i := range d.Values {
		d.Values[i] = Num(float64(i))
	}
	return d
}

// Labeled builds a dimension from string labels.
func Labeled(field string, labels ...string) Dimension {
	d := Dimension{Field: field, Values: make([]Value, len(labels))}
	for i, l := range labels {
		d.Values[i] = Str(l)
	}
	return d
}

// Selection maps a dimension field to an index into that dimension's values.
type Selection map[string]int

// Clone returns an independent copy of s.
func (s Selection) Clone() Selection {
	if s == nil {
		return nil
	}
	out := make(Selection, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Equal reports whether s and o select the same indices.
func (s Selection) Equal(o Selection) bool {
	if len(s) != len(o) {
		return false
	}
	for k, v := range s {
		if ov, ok := o[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Key renders s deterministically, e.g. "channel=1,z=2".
func (s Selection) Key() string {
	fields := make([]string, 0, len(s))
	for k := range s {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f + "=" + strconv.Itoa(s[f])
	}
	return strings.Join(parts, ",")
}
