package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg/concurrent"
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine/routing"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"go.uber.org/zap"
)

// GenerationStats min/avg/max of each objective over the finite members of a population.
type GenerationStats struct {
	Generation int     `json:"generation"`
	Finite     int     `json:"finite"`
	MinCO2     float64 `json:"min_co2_kg"`
	AvgCO2     float64 `json:"avg_co2_kg"`
	MaxCO2     float64 `json:"max_co2_kg"`
	MinTime    float64 `json:"min_time_min"`
	AvgTime    float64 `json:"avg_time_min"`
	MaxTime    float64 `json:"max_time_min"`
}

// Solution one member of the final pareto front.
type Solution struct {
	Nodes   []da.NodeID `json:"nodes"`
	Fitness Fitness     `json:"fitness"`
}

type Result struct {
	Route *routing.Route
	Front []Solution
	Stats []GenerationStats
}

// NSGA2Optimizer multi-objective (co2, time) route search through a set of waypoints.
type NSGA2Optimizer struct {
	engine *routing.RoutingEngine
	params Params
	logger *zap.Logger

	// onGeneration is called after every generation's selection. tests only.
	onGeneration func(gen int)
}

func NewNSGA2Optimizer(engine *routing.RoutingEngine, params Params, logger *zap.Logger) (*NSGA2Optimizer, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NSGA2Optimizer{
		engine: engine,
		params: params,
		logger: logger,
	}, nil
}

func (o *NSGA2Optimizer) Params() Params {
	return o.params
}

func (o *NSGA2Optimizer) newRand() *rand.Rand {
	seed := o.params.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Optimize searches a route starting at waypoints[0], ending at the last waypoint and visiting
// every waypoint in between in any order. at least 2 waypoints are required.
// errors: ErrBadParamInput, ErrCancelled, ErrNoPath (no candidate covers every waypoint).
func (o *NSGA2Optimizer) Optimize(ctx context.Context, waypoints []da.Index, vehicle *costfunction.VehicleProfile) (*Result, error) {
	if len(waypoints) < 2 {
		return nil, util.WrapErrorf(nil, util.ErrBadParamInput, "optimizer needs at least 2 waypoints, got %d", len(waypoints))
	}
	if util.StopConcurrentOperation(ctx) {
		return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "optimization cancelled")
	}

	rd := o.newRand()
	p := newProblem(o.engine, vehicle, waypoints)

	pop, err := o.initPopulation(ctx, rd, p)
	if err != nil {
		return nil, err
	}
	if err := o.evaluate(ctx, p, pop); err != nil {
		return nil, err
	}
	pop = selectNSGA2(pop, o.params.PopulationSize)

	stats := make([]GenerationStats, 0, o.params.Generations+1)
	stats = append(stats, computeStats(0, pop))

	for gen := 1; gen <= o.params.Generations; gen++ {
		if util.StopConcurrentOperation(ctx) {
			return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "optimization cancelled at generation %d", gen)
		}

		offspring := o.varOr(rd, p, pop)
		if err := o.evaluate(ctx, p, offspring); err != nil {
			return nil, err
		}
		pop = selectNSGA2(append(pop, offspring...), o.params.PopulationSize)

		s := computeStats(gen, pop)
		stats = append(stats, s)
		o.logger.Debug("nsga2 generation",
			zap.Int("generation", gen),
			zap.Int("finite", s.Finite),
			zap.Float64("min_co2_kg", s.MinCO2),
			zap.Float64("min_time_min", s.MinTime))
		if o.onGeneration != nil {
			o.onGeneration(gen)
		}
	}

	return o.buildResult(p, pop, stats)
}

// initPopulation shuffles the intermediate stops per candidate and connects consecutive stops
// with random walks. a leg whose walks all miss falls back to the A* leg; a leg A* cannot
// connect leaves the candidate penalized.
func (o *NSGA2Optimizer) initPopulation(ctx context.Context, rd *rand.Rand, p *problem) ([]*Candidate, error) {
	g := o.engine.GetGraph()
	astarLegs := make(map[[2]da.Index][]da.Index)
	noPath := make(map[[2]da.Index]bool)

	astarLeg := func(a, b da.Index) ([]da.Index, error) {
		key := [2]da.Index{a, b}
		if leg, ok := astarLegs[key]; ok {
			return leg, nil
		}
		if noPath[key] {
			return nil, nil
		}
		route, err := routing.NewAStar(o.engine, p.vehicle).ShortestPathIdx(ctx, a, b)
		if errors.Is(err, util.ErrNoPath) {
			noPath[key] = true
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		leg := make([]da.Index, 0, len(route.Nodes))
		for _, id := range route.Nodes {
			idx, _ := g.NodeIndex(id)
			leg = append(leg, idx)
		}
		astarLegs[key] = leg
		return leg, nil
	}

	pop := make([]*Candidate, 0, o.params.PopulationSize)
	for len(pop) < o.params.PopulationSize {
		if util.StopConcurrentOperation(ctx) {
			return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "optimization cancelled during initialization")
		}

		order := append([]da.Index(nil), p.stops...)
		rd.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		stops := append(append([]da.Index{p.start}, order...), p.end)

		route := []da.Index{p.start}
		for i := 1; i < len(stops); i++ {
			a, b := stops[i-1], stops[i]
			var leg []da.Index
			for try := 0; try < o.params.WalkRetries; try++ {
				walk, ok := randomWalk(g, rd, a, b, o.params.MaxWalkLength)
				if ok {
					leg = walk
					break
				}
			}
			if leg == nil {
				fallback, err := astarLeg(a, b)
				if err != nil {
					return nil, err
				}
				leg = fallback
			}
			if leg == nil {
				// unreachable leg, keep the stop so the route is complete but broken
				leg = []da.Index{a, b}
			}
			route = append(route, leg[1:]...)
		}
		pop = append(pop, newCandidate(route))
	}
	return pop, nil
}

func (o *NSGA2Optimizer) evaluate(ctx context.Context, p *problem, pop []*Candidate) error {
	fitness, err := concurrent.Map(ctx, o.params.Workers, pop, func(c *Candidate) Fitness {
		return p.evaluate(c.route)
	})
	if err != nil {
		return err
	}
	for i, f := range fitness {
		pop[i].fitness = f
	}
	return nil
}

// varOr produces PopulationSize offspring, each by crossover (probability cxpb), mutation
// (probability mutpb) or cloning.
func (o *NSGA2Optimizer) varOr(rd *rand.Rand, p *problem, pop []*Candidate) []*Candidate {
	g := o.engine.GetGraph()
	offspring := make([]*Candidate, 0, o.params.PopulationSize)
	for len(offspring) < o.params.PopulationSize {
		r := rd.Float64()
		switch {
		case r < o.params.CrossoverProb && len(pop) > 1:
			i := rd.Intn(len(pop))
			j := rd.Intn(len(pop) - 1)
			if j >= i {
				j++
			}
			offspring = append(offspring, newCandidate(crossover(rd, pop[i].route, pop[j].route)))
		case r < o.params.CrossoverProb+o.params.MutationProb:
			parent := pop[rd.Intn(len(pop))]
			offspring = append(offspring, newCandidate(mutate(rd, g, parent.route, p.isRequired)))
		default:
			offspring = append(offspring, pop[rd.Intn(len(pop))].clone())
		}
	}
	return offspring
}

func computeStats(gen int, pop []*Candidate) GenerationStats {
	s := GenerationStats{Generation: gen}
	for _, c := range pop {
		if !c.fitness.IsFinite() {
			continue
		}
		f := c.fitness
		if s.Finite == 0 {
			s.MinCO2, s.MaxCO2 = f.CO2, f.CO2
			s.MinTime, s.MaxTime = f.Time, f.Time
		}
		s.Finite++
		s.MinCO2 = math.Min(s.MinCO2, f.CO2)
		s.MaxCO2 = math.Max(s.MaxCO2, f.CO2)
		s.MinTime = math.Min(s.MinTime, f.Time)
		s.MaxTime = math.Max(s.MaxTime, f.Time)
		s.AvgCO2 += f.CO2
		s.AvgTime += f.Time
	}
	if s.Finite > 0 {
		s.AvgCO2 /= float64(s.Finite)
		s.AvgTime /= float64(s.Finite)
	}
	return s
}

// buildResult picks the lexicographically smallest (co2, time) member of the first front as the
// representative route.
func (o *NSGA2Optimizer) buildResult(p *problem, pop []*Candidate, stats []GenerationStats) (*Result, error) {
	fronts := nonDominatedSort(pop)
	front := make([]*Candidate, 0)
	if len(fronts) > 0 {
		for _, c := range fronts[0] {
			if c.fitness.IsFinite() {
				front = append(front, c)
			}
		}
	}
	if len(front) == 0 {
		return nil, util.WrapErrorf(nil, util.ErrNoPath, "no candidate route covers every waypoint")
	}

	sort.SliceStable(front, func(i, j int) bool {
		return front[i].fitness.lexLess(front[j].fitness)
	})

	g := o.engine.GetGraph()
	solutions := make([]Solution, 0, len(front))
	seen := make(map[string]struct{}, len(front))
	for _, c := range front {
		nodes := make([]da.NodeID, len(c.route))
		for i, u := range c.route {
			nodes[i] = g.GetNode(u).GetID()
		}
		key := routeKey(c.route)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		solutions = append(solutions, Solution{Nodes: nodes, Fitness: c.fitness})
	}

	best, ok := o.engine.BuildRoute(front[0].route, p.vehicle)
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNoPath, "representative route is not a walk")
	}
	return &Result{Route: best, Front: solutions, Stats: stats}, nil
}

func routeKey(route []da.Index) string {
	b := make([]byte, 0, len(route)*4)
	for _, u := range route {
		b = append(b, byte(u), byte(u>>8), byte(u>>16), byte(u>>24))
	}
	return string(b)
}
