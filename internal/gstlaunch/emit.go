// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gstlaunch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/eyevinn/strom/internal/element"
)

// chainStart is a pending chain to render: either a true source element
// (prefix == "") or a deferred fan-out edge, whose prefix is the
// "name.pad" token the chain must begin with.
type chainStart struct {
	prefix string
	target element.ID
}

// Emit renders g back to canonical gst-launch-1.0 text. An element is
// named in the output iff it has multi-fan-in or multi-fan-out; a chain
// ends at a fan-out element and each of its outgoing targets starts a new
// chain prefixed "name." (request-pad types such as tee) or "name.pad"
// (spec §4.2). Emission always succeeds for a well-formed
// graph.
func Emit(g *Graph) (string, error) {
	byID := make(map[element.ID]*element.Element, len(g.Elements))
	for _, el := range g.Elements {
		byID[el.ID] = el
	}

	outEdges := map[element.ID][]element.Link{}
	inCount := map[element.ID]int{}
	outCount := map[element.ID]int{}
	for _, el := range g.Elements {
		inCount[el.ID] = 0
		outCount[el.ID] = 0
	}
	for _, l := range g.Links {
		from := l.From.ElementID()
		to := l.To.ElementID()
		outEdges[from] = append(outEdges[from], l)
		inCount[to]++
		outCount[from]++
	}
	needsName := func(id element.ID) bool {
		return outCount[id] > 1 || inCount[id] > 1
	}

	visited := map[element.ID]bool{}
	var queue []chainStart
	for _, el := range g.Elements {
		if inCount[el.ID] == 0 {
			queue = append(queue, chainStart{target: el.ID})
		}
	}

	var chains []string
	for len(queue) > 0 {
		cs := queue[0]
		queue = queue[1:]
		if visited[cs.target] && cs.prefix == "" {
			// A true source that was already reached via someone else's
			// edge (shouldn't happen for a well-formed graph, but skip
			// rather than duplicate).
			continue
		}

		var tokens []string
		if cs.prefix != "" {
			tokens = append(tokens, cs.prefix)
		}

		cur := cs.target
		for {
			if visited[cur] {
				ref, err := refToken(byID[cur])
				if err != nil {
					return "", err
				}
				tokens = append(tokens, ref)
				break
			}
			visited[cur] = true
			el, ok := byID[cur]
			if !ok {
				return "", fmt.Errorf("gstlaunch: link references unknown element %q", cur)
			}
			tok, err := formatElement(el, needsName(cur))
			if err != nil {
				return "", err
			}
			tokens = append(tokens, tok)

			outs := outEdges[cur]
			switch {
			case len(outs) == 0:
				cur = ""
			case len(outs) == 1:
				cur = outs[0].To.ElementID()
				continue
			default:
				for _, l := range outs {
					_, pad := l.From.Split()
					queue = append(queue, chainStart{
						prefix: padRefToken(el, pad),
						target: l.To.ElementID(),
					})
				}
				cur = ""
			}
			break
		}

		if len(tokens) > 0 {
			chains = append(chains, strings.Join(tokens, " ! "))
		}
	}

	return strings.Join(chains, " "), nil
}

func refToken(el *element.Element) (string, error) {
	if el == nil {
		return "", fmt.Errorf("gstlaunch: reference to nil element")
	}
	if requestSinkPadTypes[el.Type] {
		return string(el.ID) + ".", nil
	}
	return string(el.ID) + ".sink", nil
}

func padRefToken(el *element.Element, pad string) string {
	if requestSrcPadTypes[el.Type] {
		return string(el.ID) + "."
	}
	return string(el.ID) + "." + pad
}

// formatElement renders "type [prop=val ...] [name=id]"; string values
// containing a space, "!", or "=" are double-quoted, with embedded quotes
// backslash-escaped.
func formatElement(el *element.Element, named bool) (string, error) {
	var parts []string
	parts = append(parts, el.Type)

	keys := make([]string, 0, len(el.Properties))
	for k := range el.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v, err := formatValue(el.Properties[k])
		if err != nil {
			return "", err
		}
		parts = append(parts, k+"="+v)
	}
	if named {
		parts = append(parts, "name="+string(el.ID))
	}
	return strings.Join(parts, " "), nil
}

func formatValue(v element.PropertyValue) (string, error) {
	switch v.Kind() {
	case element.KindBool:
		b, _ := v.Bool()
		return strconv.FormatBool(b), nil
	case element.KindInt:
		i, _ := v.Int()
		return strconv.FormatInt(i, 10), nil
	case element.KindUInt:
		u, _ := v.UInt()
		return strconv.FormatUint(u, 10), nil
	case element.KindFloat:
		f, _ := v.Float()
		return strconv.FormatFloat(f, 'g', -1, 64), nil
	case element.KindString:
		s, _ := v.String()
		return quoteIfNeeded(s), nil
	default:
		return "", fmt.Errorf("gstlaunch: unknown property kind")
	}
}

func quoteIfNeeded(s string) string {
	if !strings.ContainsAny(s, " !=") {
		return s
	}
	escaped := strings.ReplaceAll(s, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}
