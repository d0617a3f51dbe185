package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
)

// ValueKind tags the variant held by a PropertyValue.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindList   ValueKind = "list"
)

// PropertyValue is a typed scalar (or list of strings) extracted for a
// candidate. It marshals to the bare JSON value, not to a wrapper object.
type PropertyValue struct {
	kind ValueKind
	str  string
	num  float64
	flag bool
	list []string
}

func String(s string) PropertyValue { return PropertyValue{kind: KindString, str: s} }
func Number(f float64) PropertyValue { return PropertyValue{kind: KindNumber, num: f} }
func Bool(b bool) PropertyValue { return PropertyValue{kind: KindBool, flag: b} }
func List(items ...string) PropertyValue {
	return PropertyValue{kind: KindList, list: slices.Clone(items)}
}

func (v PropertyValue) Kind() ValueKind { return v.kind }
func (v PropertyValue) IsZero() bool { return v.kind == "" }

func (v PropertyValue) AsString() (string, bool) { return v.str, v.kind == KindString }
func (v PropertyValue) AsNumber() (float64, bool) { return v.num, v.kind == KindNumber }
func (v PropertyValue) AsBool() (bool, bool) { return v.flag, v.kind == KindBool }
func (v PropertyValue) AsList() ([]string, bool) { return slices.Clone(v.list), v.kind == KindList }

// Text renders the value for display and CSV-like consumers.
func (v PropertyValue) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	case KindList:
		var buf bytes.Buffer
		for i, item := range v.list {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(item)
		}
		return buf.String()
	default:
		return ""
	}
}

// Equal compares kind and payload.
func (v PropertyValue) Equal(o PropertyValue) bool {
	return v.kind == o.kind && v.str == o.str && v.num == o.num &&
		v.flag == o.flag && slices.Equal(v.list, o.list)
}

func (v PropertyValue) clone() PropertyValue {
	v.list = slices.Clone(v.list)
	return v
}

func (v PropertyValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*v = PropertyValue{}
		return nil
	}
	parsed, ok := FromAny(raw)
	if !ok {
		return fmt.Errorf("unsupported property value %s", string(data))
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded JSON value into a PropertyValue. Lists of
// scalars are stringified element-wise; objects and nulls are rejected.
func FromAny(raw any) (PropertyValue, bool) {
	switch x := raw.(type) {
	case string:
		return String(x), true
	case bool:
		return Bool(x), true
	case float64:
		return Number(x), true
	case float32:
		return Number(float64(x)), true
	case int:
		return Number(float64(x)), true
	case int64:
		return Number(float64(x)), true
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return PropertyValue{}, false
		}
		return Number(f), true
	case []string:
		return List(x...), true
	case []any:
		items := make([]string, 0, len(x))
		for _, el := range x {
			item, ok := FromAny(el)
			if !ok || item.kind == KindList {
				continue
			}
			items = append(items, item.Text())
		}
		return List(items...), true
	default:
		return PropertyValue{}, false
	}
}

// Properties is the open, string-keyed attribute map of a candidate.
type Properties map[string]PropertyValue

// Clone returns a deep copy.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.clone()
	}
	return out
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}
