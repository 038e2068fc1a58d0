package optimizer

import (
	"math/rand"

	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
)

// randomWalk walks from a choosing a uniformly random outgoing edge at every step, until b is
// reached or the walk holds maxLen nodes. ok is false when b was not reached.
func randomWalk(g *da.Graph, rd *rand.Rand, a, b da.Index, maxLen int) ([]da.Index, bool) {
	walk := []da.Index{a}
	cur := a
	for cur != b {
		if len(walk) >= maxLen {
			return walk, false
		}
		deg := int(g.GetOutDegree(cur))
		if deg == 0 {
			return walk, false
		}
		pick := rd.Intn(deg)
		i := 0
		g.ForOutEdgesOf(cur, func(e *da.Edge, _ da.Index) {
			if i == pick {
				cur = e.GetHead()
			}
			i++
		})
		walk = append(walk, cur)
	}
	return walk, true
}

// crossover order-preserving recombination of two routes. the segment [cx1, cx2) of other
// replaces the same positions of base, nodes outside the segment that the segment already holds
// are dropped (the first and last position stay), and base nodes displaced by the segment that
// are missing from the child are re-inserted before the last node. the child may not be a valid
// walk; evaluation penalizes it.
func crossover(rd *rand.Rand, base, other []da.Index) []da.Index {
	n := len(base)
	if len(other) < n {
		n = len(other)
	}
	// cut points are drawn from [1, n-1)
	if n < 4 {
		return append([]da.Index(nil), base...)
	}
	cx1 := 1 + rd.Intn(n-2)
	cx2 := 1 + rd.Intn(n-3)
	if cx2 >= cx1 {
		cx2++
	}
	if cx1 > cx2 {
		cx1, cx2 = cx2, cx1
	}

	segment := other[cx1:cx2]
	inSegment := make(map[da.Index]struct{}, len(segment))
	for _, u := range segment {
		inSegment[u] = struct{}{}
	}

	last := len(base) - 1
	child := make([]da.Index, 0, len(base)+len(segment))
	for i := 0; i < cx1; i++ {
		if _, dup := inSegment[base[i]]; dup && i != 0 {
			continue
		}
		child = append(child, base[i])
	}
	child = append(child, segment...)
	for i := cx2; i <= last; i++ {
		if _, dup := inSegment[base[i]]; dup && i != last {
			continue
		}
		child = append(child, base[i])
	}

	present := make(map[da.Index]struct{}, len(child))
	for _, u := range child {
		present[u] = struct{}{}
	}
	displaced := make([]da.Index, 0)
	for _, u := range base[cx1:cx2] {
		if _, ok := present[u]; ok {
			continue
		}
		present[u] = struct{}{}
		displaced = append(displaced, u)
	}
	if len(displaced) == 0 {
		return child
	}

	end := child[len(child)-1]
	out := make([]da.Index, 0, len(child)+len(displaced))
	out = append(out, child[:len(child)-1]...)
	out = append(out, displaced...)
	return append(out, end)
}

// mutate replaces the node at a random inner position that is not a required stop with a random
// graph neighbor of its predecessor. only the hop into the mutated position is repaired.
func mutate(rd *rand.Rand, g *da.Graph, route []da.Index, isRequired func(da.Index) bool) []da.Index {
	out := append([]da.Index(nil), route...)
	if len(out) < 3 {
		return out
	}

	positions := make([]int, 0, len(out)-2)
	for i := 1; i < len(out)-1; i++ {
		if !isRequired(out[i]) {
			positions = append(positions, i)
		}
	}
	if len(positions) == 0 {
		return out
	}

	pos := positions[rd.Intn(len(positions))]
	prev := out[pos-1]
	deg := int(g.GetOutDegree(prev))
	if deg == 0 {
		return out
	}
	pick := rd.Intn(deg)
	i := 0
	g.ForOutEdgesOf(prev, func(e *da.Edge, _ da.Index) {
		if i == pick {
			out[pos] = e.GetHead()
		}
		i++
	})
	return out
}
