package optimizer

import (
	"math"
	"sort"
)

// nonDominatedSort splits pop into pareto fronts and sets each candidate's rank.
func nonDominatedSort(pop []*Candidate) [][]*Candidate {
	n := len(pop)
	dominatedBy := make([][]int, n)
	dominationCount := make([]int, n)

	fronts := [][]*Candidate{}
	current := []int{}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case pop[i].fitness.Dominates(pop[j].fitness):
				dominatedBy[i] = append(dominatedBy[i], j)
				dominationCount[j]++
			case pop[j].fitness.Dominates(pop[i].fitness):
				dominatedBy[j] = append(dominatedBy[j], i)
				dominationCount[i]++
			}
		}
	}
	for i := 0; i < n; i++ {
		if dominationCount[i] == 0 {
			current = append(current, i)
		}
	}

	for rank := 0; len(current) > 0; rank++ {
		front := make([]*Candidate, 0, len(current))
		next := []int{}
		for _, i := range current {
			pop[i].rank = rank
			front = append(front, pop[i])
			for _, j := range dominatedBy[i] {
				dominationCount[j]--
				if dominationCount[j] == 0 {
					next = append(next, j)
				}
			}
		}
		fronts = append(fronts, front)
		sort.Ints(next)
		current = next
	}
	return fronts
}

// assignCrowdingDistance boundary members of each objective get +inf. objectives with a zero
// or infinite range add nothing.
func assignCrowdingDistance(front []*Candidate) {
	for _, c := range front {
		c.crowding = 0
	}
	if len(front) <= 2 {
		for _, c := range front {
			c.crowding = math.Inf(1)
		}
		return
	}

	objectives := []func(f Fitness) float64{
		func(f Fitness) float64 { return f.CO2 },
		func(f Fitness) float64 { return f.Time },
	}
	sorted := make([]*Candidate, len(front))
	for _, obj := range objectives {
		copy(sorted, front)
		sort.SliceStable(sorted, func(i, j int) bool {
			return obj(sorted[i].fitness) < obj(sorted[j].fitness)
		})

		sorted[0].crowding = math.Inf(1)
		sorted[len(sorted)-1].crowding = math.Inf(1)

		span := obj(sorted[len(sorted)-1].fitness) - obj(sorted[0].fitness)
		if span == 0 || math.IsInf(span, 0) || math.IsNaN(span) {
			continue
		}
		for i := 1; i < len(sorted)-1; i++ {
			gap := obj(sorted[i+1].fitness) - obj(sorted[i-1].fitness)
			if math.IsNaN(gap) || math.IsInf(gap, 0) {
				continue
			}
			sorted[i].crowding += gap / span
		}
	}
}

// selectNSGA2 keeps mu candidates: whole fronts in rank order, the last front cut by descending
// crowding distance.
func selectNSGA2(pop []*Candidate, mu int) []*Candidate {
	fronts := nonDominatedSort(pop)
	selected := make([]*Candidate, 0, mu)
	for _, front := range fronts {
		assignCrowdingDistance(front)
		if len(selected)+len(front) <= mu {
			selected = append(selected, front...)
			continue
		}
		rest := make([]*Candidate, len(front))
		copy(rest, front)
		sort.SliceStable(rest, func(i, j int) bool {
			return rest[i].crowding > rest[j].crowding
		})
		selected = append(selected, rest[:mu-len(selected)]...)
		break
	}
	return selected
}
