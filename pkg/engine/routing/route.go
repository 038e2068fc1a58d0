package routing

import (
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
)

// Route walk through the graph. Edges[i] connects Nodes[i] and Nodes[i+1].
type Route struct {
	Nodes   []da.NodeID
	Edges   []da.EdgeKey
	Metrics costfunction.Components
	Cost    float64 // composite
}

func NewTrivialRoute(nodes ...da.NodeID) *Route {
	return &Route{
		Nodes: nodes,
		Edges: make([]da.EdgeKey, 0),
	}
}

func (r *Route) Len() int {
	return len(r.Nodes)
}

// BuildRoute turns a node walk into a Route, choosing the cheapest parallel edge for every hop.
// ok is false when two consecutive nodes are not adjacent.
func (re *RoutingEngine) BuildRoute(walk []da.Index, vehicle *costfunction.VehicleProfile) (*Route, bool) {
	route := &Route{
		Nodes: make([]da.NodeID, 0, len(walk)),
		Edges: make([]da.EdgeKey, 0, len(walk)),
	}
	for i, u := range walk {
		route.Nodes = append(route.Nodes, re.graph.GetNode(u).GetID())
		if i == 0 {
			continue
		}
		e, comp, ok := re.CheapestEdge(walk[i-1], u, vehicle)
		if !ok {
			return nil, false
		}
		route.Edges = append(route.Edges, re.graph.GetEdge(e).GetKey())
		route.Metrics = route.Metrics.Add(comp)
		route.Cost += re.costFunction.Composite(comp)
	}
	return route, true
}
