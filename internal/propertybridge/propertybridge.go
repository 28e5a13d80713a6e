// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package propertybridge reads and writes individual element and pad
// properties on a running pipeline, converting between the framework's
// dynamic value universe and the typed PropertyValue model (spec §4.3).
package propertybridge

import (
	"fmt"
	"math"

	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/mf"
)

const floatEpsilon = 1e-9

// ExtractNonDefault reads every writable, non-reserved property off a live
// element and keeps only those whose value differs from a freshly
// constructed element of the same type — the default-suppression rule.
// Enum reads always convert through the nickname; an unknown dynamic type
// is dropped rather than guessed at (spec §9).
func ExtractNonDefault(mel mf.Element, factory mf.Factory) (map[string]element.PropertyValue, error) {
	fresh, err := factory.Make(mel.ID()+"$fresh", mel.TypeName())
	if err != nil {
		return nil, fmt.Errorf("propertybridge: creating reference element for %q: %w", mel.TypeName(), err)
	}

	out := make(map[string]element.PropertyValue)
	for _, spec := range mel.PropertySpecs() {
		if spec.Name == "name" || spec.Name == "parent" {
			continue
		}
		if !spec.Writable {
			continue
		}

		current, ok := mel.Property(spec.Name)
		if !ok {
			continue
		}
		defaultVal, ok := fresh.Property(spec.Name)
		if !ok {
			continue
		}

		if valuesEqual(spec, current, defaultVal) {
			continue
		}

		pv, ok := gvalueToPropertyValue(spec, current)
		if !ok {
			continue
		}
		out[spec.Name] = pv
	}
	return out, nil
}

// gvalueToPropertyValue converts a raw mf.Value into the typed model.
// Enums convert to their nickname string first — never the ordinal.
// Unknown dynamic kinds return ok=false: never fabricate a String.
func gvalueToPropertyValue(spec mf.PropertySpec, v mf.Value) (element.PropertyValue, bool) {
	switch spec.Kind {
	case mf.KindEnum:
		s, ok := v.(string)
		if !ok {
			return element.PropertyValue{}, false
		}
		return element.String(s), true
	case mf.KindBool:
		b, ok := v.(bool)
		if !ok {
			return element.PropertyValue{}, false
		}
		return element.Bool(b), true
	case mf.KindInt:
		i, ok := v.(int64)
		if !ok {
			return element.PropertyValue{}, false
		}
		return element.Int(i), true
	case mf.KindUInt:
		u, ok := v.(uint64)
		if !ok {
			return element.PropertyValue{}, false
		}
		return element.UInt(u), true
	case mf.KindFloat:
		f, ok := v.(float64)
		if !ok {
			return element.PropertyValue{}, false
		}
		return element.Float(f), true
	case mf.KindString:
		s, ok := v.(string)
		if !ok {
			return element.PropertyValue{}, false
		}
		return element.String(s), true
	default:
		return element.PropertyValue{}, false
	}
}

// valuesEqual implements the "differs from default" rule: enums compare
// by their nickname (both values are already the framework's canonical
// string form); ints/uints/bools/strings compare directly; floats compare
// within floatEpsilon. A type mismatch between current and default is
// treated as "different".
func valuesEqual(spec mf.PropertySpec, a, b mf.Value) bool {
	switch spec.Kind {
	case mf.KindEnum, mf.KindString:
		as, aok := a.(string)
		bs, bok := b.(string)
		return aok && bok && as == bs
	case mf.KindBool:
		ab, aok := a.(bool)
		bb, bok := b.(bool)
		return aok && bok && ab == bb
	case mf.KindInt:
		ai, aok := a.(int64)
		bi, bok := b.(int64)
		return aok && bok && ai == bi
	case mf.KindUInt:
		au, aok := a.(uint64)
		bu, bok := b.(uint64)
		return aok && bok && au == bu
	case mf.KindFloat:
		af, aok := a.(float64)
		bf, bok := b.(float64)
		return aok && bok && math.Abs(af-bf) < floatEpsilon
	default:
		return false
	}
}

// Write applies a single typed PropertyValue to a live element. Enum
// properties are written by nickname; other kinds are written as their
// typed Go value. Failures are reported per-property and are never fatal
// to the rest of a batch (spec §4.3, §7 kind 5).
func Write(mel mf.Element, name string, value element.PropertyValue) error {
	var spec *mf.PropertySpec
	for _, s := range mel.PropertySpecs() {
		if s.Name == name {
			sc := s
			spec = &sc
			break
		}
	}
	if spec == nil {
		return flowerr.NewNotFound("property", name)
	}
	if !spec.Writable {
		return flowerr.NewPropertyNotEditable(mel.ID(), name)
	}

	switch spec.Kind {
	case mf.KindEnum:
		s, ok := value.String()
		if !ok {
			return flowerr.NewIncompatibleValue(mel.ID(), name, "expected enum nickname string")
		}
		valid := false
		for _, nick := range spec.EnumValues {
			if nick == s {
				valid = true
				break
			}
		}
		if !valid {
			return flowerr.NewIncompatibleValue(mel.ID(), name, fmt.Sprintf("%q is not a valid value for this enum", s))
		}
		return mel.SetProperty(name, s)
	case mf.KindBool:
		b, ok := value.Bool()
		if !ok {
			return flowerr.NewIncompatibleValue(mel.ID(), name, "expected bool")
		}
		return mel.SetProperty(name, b)
	case mf.KindInt:
		i, ok := value.Int()
		if !ok {
			return flowerr.NewIncompatibleValue(mel.ID(), name, "expected int")
		}
		return mel.SetProperty(name, i)
	case mf.KindUInt:
		u, ok := value.UInt()
		if !ok {
			return flowerr.NewIncompatibleValue(mel.ID(), name, "expected uint")
		}
		return mel.SetProperty(name, u)
	case mf.KindFloat:
		f, ok := value.Float()
		if !ok {
			return flowerr.NewIncompatibleValue(mel.ID(), name, "expected float")
		}
		return mel.SetProperty(name, f)
	case mf.KindString:
		s, ok := value.String()
		if !ok {
			return flowerr.NewIncompatibleValue(mel.ID(), name, "expected string")
		}
		return mel.SetProperty(name, s)
	default:
		return flowerr.NewIncompatibleValue(mel.ID(), name, "unknown dynamic property type")
	}
}
