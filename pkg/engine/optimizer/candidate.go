package optimizer

import (
	"math"

	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine/routing"
)

// Fitness objectives, both minimized.
type Fitness struct {
	CO2  float64 `json:"co2_kg"`
	Time float64 `json:"time_min"`
}

func penalized() Fitness {
	return Fitness{CO2: math.Inf(1), Time: math.Inf(1)}
}

func (f Fitness) IsFinite() bool {
	return !math.IsInf(f.CO2, 0) && !math.IsInf(f.Time, 0)
}

// Dominates a is no worse than b in both objectives and strictly better in one.
func (f Fitness) Dominates(o Fitness) bool {
	return f.CO2 <= o.CO2 && f.Time <= o.Time && (f.CO2 < o.CO2 || f.Time < o.Time)
}

// lexLess orders by co2, then time.
func (f Fitness) lexLess(o Fitness) bool {
	if f.CO2 != o.CO2 {
		return f.CO2 < o.CO2
	}
	return f.Time < o.Time
}

// Candidate a walk through the graph with its fitness.
type Candidate struct {
	route   []da.Index
	fitness Fitness

	rank     int
	crowding float64
}

func newCandidate(route []da.Index) *Candidate {
	return &Candidate{route: route, fitness: penalized()}
}

func (c *Candidate) clone() *Candidate {
	route := make([]da.Index, len(c.route))
	copy(route, c.route)
	return &Candidate{route: route, fitness: c.fitness}
}

func (c *Candidate) GetRoute() []da.Index {
	return c.route
}

func (c *Candidate) GetFitness() Fitness {
	return c.fitness
}

// problem one optimization run: fixed endpoints, required stops and the vehicle.
type problem struct {
	engine   *routing.RoutingEngine
	vehicle  *costfunction.VehicleProfile
	start    da.Index
	end      da.Index
	stops    []da.Index
	required map[da.Index]struct{}
}

func newProblem(engine *routing.RoutingEngine, vehicle *costfunction.VehicleProfile, waypoints []da.Index) *problem {
	p := &problem{
		engine:   engine,
		vehicle:  vehicle,
		start:    waypoints[0],
		end:      waypoints[len(waypoints)-1],
		stops:    append([]da.Index(nil), waypoints[1:len(waypoints)-1]...),
		required: make(map[da.Index]struct{}, len(waypoints)),
	}
	for _, w := range waypoints {
		p.required[w] = struct{}{}
	}
	return p
}

func (p *problem) isRequired(u da.Index) bool {
	_, ok := p.required[u]
	return ok
}

// evaluate sums co2 and time along the route, taking the cheapest parallel edge of every hop.
// routes with a wrong endpoint, a missing stop or a missing edge are penalized with (+inf, +inf).
func (p *problem) evaluate(route []da.Index) Fitness {
	if len(route) == 0 || route[0] != p.start || route[len(route)-1] != p.end {
		return penalized()
	}

	seen := make(map[da.Index]struct{}, len(p.required))
	for _, u := range route {
		if p.isRequired(u) {
			seen[u] = struct{}{}
		}
	}
	if len(seen) != len(p.required) {
		return penalized()
	}

	total := costfunction.Components{}
	for i := 1; i < len(route); i++ {
		_, comp, ok := p.engine.CheapestEdge(route[i-1], route[i], p.vehicle)
		if !ok {
			return penalized()
		}
		total = total.Add(comp)
	}
	return Fitness{CO2: total.CO2Kg, Time: total.TimeMin}
}
