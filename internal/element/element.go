// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package element defines the opaque identifiers and typed value model
// shared by the pipeline parser/emitter, the property bridge, the block
// builders, and the flow engine.
package element

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ID is an opaque element identifier, unique within a flow.
type ID string

// PadRef names a pad on an element as "element_id:pad_name".
type PadRef string

// NewPadRef builds a PadRef from its parts.
func NewPadRef(elementID ID, pad string) PadRef {
	return PadRef(string(elementID) + ":" + pad)
}

// Split returns the element id and pad name encoded in the ref. If the ref
// has no ":" the pad name is empty.
func (p PadRef) Split() (ID, string) {
	s := string(p)
	idx := strings.LastIndexByte(s, ':')
	if idx < 0 {
		return ID(s), ""
	}
	return ID(s[:idx]), s[idx+1:]
}

// ElementID returns the element half of the ref.
func (p PadRef) ElementID() ID {
	id, _ := p.Split()
	return id
}

// Kind tags the dynamic type carried by a PropertyValue.
type Kind int

const (
	KindBool Kind = iota
	KindInt
	KindUInt
	KindFloat
	KindString
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUInt:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// epsilon bounds float equality when comparing against a default value.
const epsilon = 1e-9

// PropertyValue is a tagged variant: Bool | Int(i64) | UInt(u64) | Float(f64) | String.
// Enumerated native-framework properties are carried as String holding the
// canonical nickname — never the ordinal.
type PropertyValue struct {
	kind Kind
	b    bool
	i    int64
	u    uint64
	f    float64
	s    string
}

// Bool constructs a boolean PropertyValue.
func Bool(v bool) PropertyValue { return PropertyValue{kind: KindBool, b: v} }

// Int constructs a signed-integer PropertyValue.
func Int(v int64) PropertyValue { return PropertyValue{kind: KindInt, i: v} }

// UInt constructs an unsigned-integer PropertyValue.
func UInt(v uint64) PropertyValue { return PropertyValue{kind: KindUInt, u: v} }

// Float constructs a floating-point PropertyValue.
func Float(v float64) PropertyValue { return PropertyValue{kind: KindFloat, f: v} }

// String constructs a string PropertyValue. Enum values are always
// represented this way, holding the nickname.
func String(v string) PropertyValue { return PropertyValue{kind: KindString, s: v} }

// Kind reports the dynamic type of the value.
func (v PropertyValue) Kind() Kind { return v.kind }

// Bool returns the boolean payload and whether the value is of kind Bool.
func (v PropertyValue) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Int returns the signed-integer payload and whether the value is of kind Int.
func (v PropertyValue) Int() (int64, bool) { return v.i, v.kind == KindInt }

// UInt returns the unsigned-integer payload and whether the value is of kind UInt.
func (v PropertyValue) UInt() (uint64, bool) { return v.u, v.kind == KindUInt }

// Float returns the float payload and whether the value is of kind Float.
func (v PropertyValue) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// String returns the string payload and whether the value is of kind String.
func (v PropertyValue) String() (string, bool) { return v.s, v.kind == KindString }

// AsString renders the value for logging/diagnostics regardless of kind.
func (v PropertyValue) AsString() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindUInt:
		return fmt.Sprintf("%d", v.u)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	default:
		return v.s
	}
}

// Equal reports whether two values are equal under the rules used for
// default-suppression: integer-equal enums (both String kind, same text)
// are equal; floats compare with epsilon only when both sides are floats;
// a type mismatch is always "different".
func Equal(a, b PropertyValue) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindBool:
		return a.b == b.b
	case KindInt:
		return a.i == b.i
	case KindUInt:
		return a.u == b.u
	case KindFloat:
		return math.Abs(a.f-b.f) < epsilon
	case KindString:
		return a.s == b.s
	default:
		return false
	}
}

// jsonPropertyValue is PropertyValue's wire shape: a discriminated union
// so the flow store and HTTP API round-trip values without losing kind
// information (an all-unexported-field struct marshals to "{}" otherwise).
type jsonPropertyValue struct {
	Kind  string  `json:"kind"`
	Bool  bool    `json:"bool,omitempty"`
	Int   int64   `json:"int,omitempty"`
	UInt  uint64  `json:"uint,omitempty"`
	Float float64 `json:"float,omitempty"`
	Str   string  `json:"string,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (v PropertyValue) MarshalJSON() ([]byte, error) {
	j := jsonPropertyValue{Kind: v.kind.String()}
	switch v.kind {
	case KindBool:
		j.Bool = v.b
	case KindInt:
		j.Int = v.i
	case KindUInt:
		j.UInt = v.u
	case KindFloat:
		j.Float = v.f
	case KindString:
		j.Str = v.s
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *PropertyValue) UnmarshalJSON(data []byte) error {
	var j jsonPropertyValue
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	switch j.Kind {
	case "bool":
		*v = Bool(j.Bool)
	case "int":
		*v = Int(j.Int)
	case "uint":
		*v = UInt(j.UInt)
	case "float":
		*v = Float(j.Float)
	case "string":
		*v = String(j.Str)
	default:
		return fmt.Errorf("element: unknown property value kind %q", j.Kind)
	}
	return nil
}

// MediaType classifies an external pad's payload.
type MediaType int

const (
	MediaAudio MediaType = iota
	MediaVideo
	MediaGeneric
)

// Position is editor metadata preserved verbatim across parse/emit cycles.
type Position struct {
	X float64
	Y float64
}

// Element is a node in the media graph.
type Element struct {
	ID            ID
	Type          string
	Properties    map[string]PropertyValue
	PadProperties map[string]map[string]PropertyValue
	Position      Position
}

// NewElement builds an Element with initialized maps.
func NewElement(id ID, elementType string) *Element {
	return &Element{
		ID:            id,
		Type:          elementType,
		Properties:    make(map[string]PropertyValue),
		PadProperties: make(map[string]map[string]PropertyValue),
	}
}

// Link goes source pad -> sink pad.
type Link struct {
	From PadRef
	To   PadRef
}

// Normalize returns l with From/To swapped if the link appears to run
// sink->source according to the caller-supplied direction test; the engine
// uses this when accepting editor-authored links that may be reversed.
func (l Link) Normalize(isSource func(PadRef) bool) Link {
	if isSource == nil || isSource(l.From) {
		return l
	}
	if isSource(l.To) {
		return Link{From: l.To, To: l.From}
	}
	return l
}
