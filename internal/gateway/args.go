package gateway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Kind tags the JSON type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	}
	return "null"
}

// Value is one decoded tool argument. Numbers keep their literal text so an
// amount like 42.50 reaches the backend unchanged.
type Value struct {
	kind   Kind
	b      bool
	num    json.Number
	str    string
	array  []Value
	object map[string]Value
}

func (v Value) Kind() Kind { return v.kind }

// Number returns the literal for a numeric value.
func (v Value) Number() (json.Number, bool) {
	return v.num, v.kind == KindNumber
}

// Str returns the content of a string value.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

// scalarText renders strings, numbers and booleans as text. Null, arrays and
// objects have no scalar text.
func (v Value) scalarText() (string, bool) {
	switch v.kind {
	case KindString:
		return v.str, true
	case KindNumber:
		return v.num.String(), true
	case KindBool:
		return fmt.Sprintf("%t", v.b), true
	}
	return "", false
}

func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = fromAny(raw)
	return nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		return []byte(v.num.String()), nil
	case KindString:
		return json.Marshal(v.str)
	case KindArray:
		return json.Marshal(v.array)
	case KindObject:
		return json.Marshal(v.object)
	}
	return []byte("null"), nil
}

func fromAny(raw any) Value {
	switch t := raw.(type) {
	case bool:
		return Value{kind: KindBool, b: t}
	case json.Number:
		return Value{kind: KindNumber, num: t}
	case string:
		return Value{kind: KindString, str: t}
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = fromAny(item)
		}
		return Value{kind: KindArray, array: items}
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = fromAny(item)
		}
		return Value{kind: KindObject, object: fields}
	}
	return Value{kind: KindNull}
}

// Args are the "arguments" object of a tools/call request.
type Args map[string]Value

// ParseArgs decodes raw arguments. Absent, null or non-object arguments
// yield an empty set; handlers then report whatever they require.
func ParseArgs(raw json.RawMessage) Args {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Args{}
	}
	var v Value
	if err := json.Unmarshal(raw, &v); err != nil || v.kind != KindObject {
		return Args{}
	}
	return Args(v.object)
}

// Get returns the named argument; missing arguments are reported as absent
// rather than null.
func (a Args) Get(name string) (Value, bool) {
	v, ok := a[name]
	return v, ok
}

// Textual returns the argument only when it is a JSON string.
func (a Args) Textual(name string) (string, bool) {
	v, ok := a[name]
	if !ok {
		return "", false
	}
	return v.Str()
}

// StringOr returns the string argument or def when it is missing or not a
// string.
func (a Args) StringOr(name, def string) string {
	if s, ok := a.Textual(name); ok {
		return s
	}
	return def
}

// Text returns the scalar text of an optional argument. Missing, null,
// structured and blank values are all nil.
func (a Args) Text(name string) *string {
	v, ok := a[name]
	if !ok {
		return nil
	}
	s, ok := v.scalarText()
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// RequiredText is Text for a mandatory argument.
func (a Args) RequiredText(name string) (string, error) {
	s := a.Text(name)
	if s == nil {
		return "", NewToolError(CodeServerError, "%s is required", name)
	}
	return *s, nil
}

// RequiredNumber returns the literal of a mandatory numeric argument.
func (a Args) RequiredNumber(name string) (json.Number, error) {
	v, ok := a[name]
	if !ok {
		return "", NewToolError(CodeServerError, "%s is required", name)
	}
	n, ok := v.Number()
	if !ok {
		return "", NewToolError(CodeServerError, "%s must be numeric", name)
	}
	return n, nil
}
