// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gstlaunch

import "github.com/eyevinn/strom/internal/element"

// Layout constants, kept as the concrete numbers the original
// implementation used so editor coordinates stay stable across re-parses
// of the same graph (SPEC_FULL.md "gst-launch preprocessing and
// topological layout constants").
const (
	horizontalSpacing = 250.0
	verticalSpacing   = 150.0
	startX            = 100.0
	startY            = 200.0
)

// Layout assigns Position to every element in g by BFS depth from the
// source elements (those with no incoming link): elements are placed on a
// grid keyed by depth, with elements sharing a depth stacked vertically.
func Layout(g *Graph) {
	depth := make(map[element.ID]int, len(g.Elements))
	preds := make(map[element.ID][]element.ID, len(g.Elements))
	indegree := make(map[element.ID]int, len(g.Elements))

	for _, el := range g.Elements {
		indegree[el.ID] = 0
	}
	for _, l := range g.Links {
		from := l.From.ElementID()
		to := l.To.ElementID()
		preds[to] = append(preds[to], from)
		indegree[to]++
	}

	var queue []element.ID
	for _, el := range g.Elements {
		if indegree[el.ID] == 0 {
			queue = append(queue, el.ID)
			depth[el.ID] = 0
		}
	}

	remaining := make(map[element.ID]int, len(indegree))
	for k, v := range indegree {
		remaining[k] = v
	}
	outEdges := make(map[element.ID][]element.ID, len(g.Elements))
	for _, l := range g.Links {
		from := l.From.ElementID()
		to := l.To.ElementID()
		outEdges[from] = append(outEdges[from], to)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range outEdges[cur] {
			if d := depth[cur] + 1; d > depth[next] {
				depth[next] = d
			}
			remaining[next]--
			if remaining[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	byDepth := map[int][]element.ID{}
	for _, el := range g.Elements {
		byDepth[depth[el.ID]] = append(byDepth[depth[el.ID]], el.ID)
	}

	posByID := make(map[element.ID]element.Position, len(g.Elements))
	for d, ids := range byDepth {
		for i, id := range ids {
			posByID[id] = element.Position{
				X: startX + float64(d)*horizontalSpacing,
				Y: startY + float64(i)*verticalSpacing,
			}
		}
	}
	for _, el := range g.Elements {
		el.Position = posByID[el.ID]
	}
}
