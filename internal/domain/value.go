package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindAbsent ValueKind = iota
	KindString
	KindNumber
	KindList
	KindMap
)

// Value is a loosely-typed datasheet cell. Only the field matching Kind is
// meaningful. Numbers keep their source literal in Str so that stringifying
// a value reproduces the digits the datasheet sent.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	List []Value
	Map  Fields
}

type Field struct {
	Key   string
	Value Value
}

// Fields is an ordered field map. Order is the order keys arrived in.
type Fields []Field

func String(s string) Value { return Value{Kind: KindString, Str: s} }

func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// NumberLiteral builds a number that remembers its textual form.
func NumberLiteral(n float64, literal string) Value {
	return Value{Kind: KindNumber, Num: n, Str: literal}
}

func List(items ...Value) Value { return Value{Kind: KindList, List: items} }

func Map(fields ...Field) Value { return Value{Kind: KindMap, Map: Fields(fields)} }

func F(key string, v Value) Field { return Field{Key: key, Value: v} }

// CoerceText renders a value as text: absent is empty, lists and maps are
// flattened recursively and joined by a single space (map keys dropped),
// scalars are trimmed.
func CoerceText(v Value) string {
	switch v.Kind {
	case KindAbsent:
		return ""
	case KindString:
		return strings.TrimSpace(v.Str)
	case KindNumber:
		return strings.TrimSpace(v.numberText())
	case KindList:
		parts := make([]string, 0, len(v.List))
		for _, item := range v.List {
			parts = append(parts, CoerceText(item))
		}
		return strings.Join(parts, " ")
	case KindMap:
		parts := make([]string, 0, len(v.Map))
		for _, f := range v.Map {
			parts = append(parts, CoerceText(f.Value))
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func (v Value) numberText() string {
	if v.Str != "" {
		return v.Str
	}
	return strconv.FormatFloat(v.Num, 'f', -1, 64)
}

// Get returns the value stored under key with an exact, case-sensitive match.
func (f Fields) Get(key string) (Value, bool) {
	for _, field := range f {
		if field.Key == key {
			return field.Value, true
		}
	}
	return Value{}, false
}

// Dump renders the whole field map as a JSON object in field order.
func (f Fields) Dump() string {
	data, err := f.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := marshalNoEscape(field.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := field.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindAbsent:
		return []byte("null"), nil
	case KindString:
		return marshalNoEscape(v.Str)
	case KindNumber:
		if v.Str != "" && json.Valid([]byte(v.Str)) {
			return []byte(v.Str), nil
		}
		return []byte(strconv.FormatFloat(v.Num, 'f', -1, 64)), nil
	case KindList:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.List {
			if i > 0 {
				buf.WriteByte(',')
			}
			data, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(data)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case KindMap:
		if v.Map == nil {
			return []byte("{}"), nil
		}
		return v.Map.MarshalJSON()
	default:
		return []byte("null"), nil
	}
}

func marshalNoEscape(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
