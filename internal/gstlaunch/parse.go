// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gstlaunch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eyevinn/strom/internal/element"
	"github.com/eyevinn/strom/internal/flowerr"
	"github.com/eyevinn/strom/internal/mf"
	"github.com/eyevinn/strom/internal/propertybridge"
)

// requestSrcPadTypes allocate a fresh "src_%d" pad per fan-out link;
// requestSinkPadTypes allocate "sink_%d" per fan-in link. Every other
// element type uses the fixed static pad names "src"/"sink".
var requestSrcPadTypes = map[string]bool{"tee": true}
var requestSinkPadTypes = map[string]bool{"funnel": true, "compositor": true, "audiomixer": true}

// Graph is the parse/extraction result: a flow's elements and links,
// ready to merge into a Flow document or render back to text.
type Graph struct {
	Elements []*element.Element
	Links    []element.Link
}

type segment struct {
	head          string
	props         [][2]string
	linkedFromPrev bool
	isPadRef      bool
}

func segmentize(toks []token) []segment {
	var segs []segment
	linkNext := false
	var cur *segment
	for _, t := range toks {
		if t.bang {
			linkNext = true
			continue
		}
		if k, v, ok := splitProperty(t.text); ok && cur != nil && !cur.isPadRef {
			cur.props = append(cur.props, [2]string{k, v})
			continue
		}
		if cur != nil {
			segs = append(segs, *cur)
		}
		cur = &segment{head: t.text, linkedFromPrev: linkNext, isPadRef: isPadRef(t.text)}
		linkNext = false
	}
	if cur != nil {
		segs = append(segs, *cur)
	}
	return segs
}

// endpoint names an element and, optionally, an explicit pad on it.
type endpoint struct {
	id      element.ID
	pad     string // "" means "resolve the default/next request pad"
}

// Parse translates a gst-launch-1.0 pipeline string into the element+link
// graph, instantiating each element through factory so its property specs
// (including enum nicknames and defaults) are known to the property
// bridge. The caller is expected to have already applied Preprocess, but
// Parse re-applies it defensively.
func Parse(factory mf.Factory, input string) (*Graph, error) {
	pre := Preprocess(input)
	toks, err := tokenize(pre)
	if err != nil {
		return nil, flowerr.NewValidation(fmt.Sprintf("invalid pipeline syntax: %v", err))
	}
	if len(toks) == 0 {
		return &Graph{}, nil
	}
	segs := segmentize(toks)

	named := map[string]*element.Element{}
	mfElements := map[element.ID]mf.Element{}
	typeIndex := map[string]int{}
	outCount := map[element.ID]int{}
	inCount := map[element.ID]int{}

	var elements []*element.Element
	var links []element.Link
	var upstream *endpoint

	allocSrcPad := func(id element.ID, typeName string) string {
		if requestSrcPadTypes[typeName] {
			n := outCount[id]
			outCount[id] = n + 1
			return fmt.Sprintf("src_%d", n)
		}
		return "src"
	}
	allocSinkPad := func(id element.ID, typeName string) string {
		if requestSinkPadTypes[typeName] {
			n := inCount[id]
			inCount[id] = n + 1
			return fmt.Sprintf("sink_%d", n)
		}
		return "sink"
	}

	for _, seg := range segs {
		if !seg.linkedFromPrev {
			upstream = nil
		}

		if seg.isPadRef {
			name, pad, _ := strings.Cut(seg.head, ".")
			el, ok := named[name]
			if !ok {
				return nil, flowerr.NewValidation(fmt.Sprintf("invalid pipeline syntax: reference to unknown element %q", name))
			}
			if pad == "" {
				pad = allocSrcPad(el.ID, el.Type)
			}
			upstream = &endpoint{id: el.ID, pad: pad}
			continue
		}

		typeName := seg.head
		var explicitName string
		var propTokens [][2]string
		for _, kv := range seg.props {
			if kv[0] == "name" {
				explicitName = unquote(kv[1])
				continue
			}
			propTokens = append(propTokens, kv)
		}

		id := element.ID(explicitName)
		if id == "" {
			n := typeIndex[typeName]
			typeIndex[typeName] = n + 1
			id = element.ID(fmt.Sprintf("%s%d", typeName, n))
		}

		mel, err := factory.Make(string(id), typeName)
		if err != nil {
			return nil, flowerr.NewValidation(fmt.Sprintf("invalid pipeline syntax: %v", err))
		}
		mfElements[id] = mel

		el := element.NewElement(id, typeName)
		for _, kv := range propTokens {
			raw := unquote(kv[1])
			if err := applyTextProperty(mel, el, kv[0], raw); err != nil {
				return nil, flowerr.NewValidation(fmt.Sprintf("invalid pipeline syntax: %v", err))
			}
		}
		elements = append(elements, el)
		named[string(id)] = el

		if upstream != nil {
			fromPad := upstream.pad
			if fromPad == "" {
				fromPad = allocSrcPad(upstream.id, string(named[string(upstream.id)].Type))
			}
			toPad := allocSinkPad(id, typeName)
			links = append(links, element.Link{
				From: element.NewPadRef(upstream.id, fromPad),
				To:   element.NewPadRef(id, toPad),
			})
		}
		upstream = &endpoint{id: id, pad: ""}
	}

	extracted := make([]*element.Element, len(elements))
	for i, el := range elements {
		diffed, err := propertybridge.ExtractNonDefault(mfElements[el.ID], factory)
		if err != nil {
			return nil, err
		}
		el.Properties = diffed
		extracted[i] = el
	}

	links = dedupLinks(links)

	return &Graph{Elements: extracted, Links: links}, nil
}

// dedupLinks removes exact duplicate (from,to) pad-ref pairs. Spec §9
// notes the original source dedups at (from_id,to_id) element granularity,
// which collapses distinct pad pairs between the same two elements; we
// key on the full PadRef pair instead (the spec's recommended fix) since
// multiple distinct pad-to-pad links between the same two elements are
// legitimate (e.g. a compositor taking two inputs from the same tee).
func dedupLinks(links []element.Link) []element.Link {
	seen := make(map[element.Link]bool, len(links))
	out := make([]element.Link, 0, len(links))
	for _, l := range links {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}

// applyTextProperty parses a gst-launch property=value token against the
// element's reported PropertySpec and writes it on the live mf element
// only; the domain Element's properties are filled afterwards by
// ExtractNonDefault, and el is used here only for error messages.
func applyTextProperty(mel mf.Element, el *element.Element, name, raw string) error {
	var spec *mf.PropertySpec
	for _, s := range mel.PropertySpecs() {
		if s.Name == name {
			sc := s
			spec = &sc
			break
		}
	}
	if spec == nil {
		return fmt.Errorf("element %q has no property %q", el.Type, name)
	}
	if !spec.Writable {
		return fmt.Errorf("property %q on %q is not writable", name, el.Type)
	}

	switch spec.Kind {
	case mf.KindBool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("property %q expects a bool: %w", name, err)
		}
		return mel.SetProperty(name, v)
	case mf.KindInt:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("property %q expects an int: %w", name, err)
		}
		return mel.SetProperty(name, v)
	case mf.KindUInt:
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("property %q expects a uint: %w", name, err)
		}
		return mel.SetProperty(name, v)
	case mf.KindFloat:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("property %q expects a float: %w", name, err)
		}
		return mel.SetProperty(name, v)
	case mf.KindEnum:
		for _, nick := range spec.EnumValues {
			if nick == raw {
				return mel.SetProperty(name, raw)
			}
		}
		return fmt.Errorf("property %q has no enum value %q", name, raw)
	default:
		return mel.SetProperty(name, raw)
	}
}
