package routing

import (
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"go.uber.org/zap"
)

// RoutingEngine shared read-only state of every search: the graph (with its live traffic state)
// and the cost function.
type RoutingEngine struct {
	graph        *da.Graph
	costFunction CostFunction
	logger       *zap.Logger
}

func NewRoutingEngine(graph *da.Graph, costFunction CostFunction, logger *zap.Logger) *RoutingEngine {
	return &RoutingEngine{
		graph:        graph,
		costFunction: costFunction,
		logger:       logger,
	}
}

func (re *RoutingEngine) GetGraph() *da.Graph {
	return re.graph
}

func (re *RoutingEngine) GetCostFunction() CostFunction {
	return re.costFunction
}

// EdgeCost components and composite cost of edge e under its current congestion.
func (re *RoutingEngine) EdgeCost(e da.Index, vehicle *costfunction.VehicleProfile) (costfunction.Components, float64) {
	edge := re.graph.GetEdge(e)
	comp := re.costFunction.GetComponents(edge, re.graph.CongestionOf(e), vehicle)
	return comp, re.costFunction.Composite(comp)
}

// CheapestEdge picks the parallel edge u->v with the lowest composite cost.
// ok is false when u and v are not adjacent.
func (re *RoutingEngine) CheapestEdge(u, v da.Index, vehicle *costfunction.VehicleProfile) (e da.Index, comp costfunction.Components, ok bool) {
	best := 0.0
	for _, id := range re.graph.EdgesBetween(u, v) {
		c, w := re.EdgeCost(id, vehicle)
		if !ok || w < best {
			e, comp, best, ok = id, c, w, true
		}
	}
	return e, comp, ok
}
