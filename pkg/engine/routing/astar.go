package routing

import (
	"context"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/geo"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"go.uber.org/zap"
)

// AStar unidirectional A* over the composite cost. congestion is read per edge at relaxation time.
// not safe for concurrent use; create one per query.
type AStar struct {
	engine  *RoutingEngine
	vehicle *costfunction.VehicleProfile

	forwardInfo map[da.Index]*VertexInfo
	pq          *da.MinHeap[da.Index]

	target    da.Index
	targetLat float64
	targetLon float64

	numSettledNodes int
}

func NewAStar(engine *RoutingEngine, vehicle *costfunction.VehicleProfile) *AStar {
	return &AStar{
		engine:      engine,
		vehicle:     vehicle,
		forwardInfo: make(map[da.Index]*VertexInfo),
		pq:          da.NewFourAryHeap[da.Index](),
	}
}

func (as *AStar) GetNumSettledNodes() int {
	return as.numSettledNodes
}

// ShortestPath returns the minimum composite cost route from s to t.
// errors: ErrNotFound (unknown node), ErrCancelled (ctx done before or during the search),
// ErrNoPath (t unreachable).
func (as *AStar) ShortestPath(ctx context.Context, s, t da.NodeID) (*Route, error) {
	ids, err := as.engine.resolveNodes(s, t)
	if err != nil {
		return nil, err
	}
	if util.StopConcurrentOperation(ctx) {
		return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "shortest path %d -> %d cancelled", s, t)
	}
	if s == t {
		return NewTrivialRoute(s), nil
	}
	return as.shortestPath(ctx, ids[0], ids[1])
}

// ShortestPathIdx ShortestPath on dense node indexes.
func (as *AStar) ShortestPathIdx(ctx context.Context, s, t da.Index) (*Route, error) {
	if util.StopConcurrentOperation(ctx) {
		return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "shortest path cancelled")
	}
	if s == t {
		return NewTrivialRoute(as.engine.graph.GetNode(s).GetID()), nil
	}
	return as.shortestPath(ctx, s, t)
}

func (as *AStar) reset(t da.Index) {
	as.forwardInfo = make(map[da.Index]*VertexInfo)
	as.pq.Clear()
	as.numSettledNodes = 0
	as.target = t
	tNode := as.engine.graph.GetNode(t)
	as.targetLat, as.targetLon = tNode.GetLat(), tNode.GetLon()
}

func (as *AStar) shortestPath(ctx context.Context, s, t da.Index) (*Route, error) {
	as.reset(t)

	sNode := da.NewPriorityQueueNode(as.heuristic(s), s)
	as.pq.Insert(sNode)
	as.forwardInfo[s] = NewVertexInfo(0, costfunction.Components{}, newVertexEdgePair(invalidIndex, invalidIndex), sNode)

	for !as.pq.IsEmpty() {
		if util.StopConcurrentOperation(ctx) {
			return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "shortest path cancelled after %d settled nodes", as.numSettledNodes)
		}

		if as.graphSearchUni() {
			return as.buildRoute(s, t), nil
		}
		as.numSettledNodes++
	}

	if as.engine.logger != nil {
		as.engine.logger.Debug("frontier exhausted",
			zap.Int64("source", int64(as.engine.graph.GetNode(s).GetID())),
			zap.Int64("target", int64(as.engine.graph.GetNode(t).GetID())),
			zap.Int("settled", as.numSettledNodes))
	}
	return nil, util.WrapErrorf(nil, util.ErrNoPath, "no path from %d to %d",
		as.engine.graph.GetNode(s).GetID(), as.engine.graph.GetNode(t).GetID())
}

func (as *AStar) heuristic(u da.Index) float64 {
	n := as.engine.graph.GetNode(u)
	d := geo.CalculateHaversineDistance(n.GetLat(), n.GetLon(), as.targetLat, as.targetLon)
	return as.engine.costFunction.Heuristic(d * as.engine.graph.HeuristicScale())
}

// graphSearchUni settles the frontier minimum and relaxes its outgoing edges. returns true when the
// target is settled.
func (as *AStar) graphSearchUni() bool {
	queryKey, _ := as.pq.ExtractMin()
	uId := queryKey.GetItem()
	if uId == as.target {
		return true
	}

	uInfo := as.forwardInfo[uId]

	as.engine.graph.ForOutEdgesOf(uId, func(outArc *da.Edge, edgeId da.Index) {
		comp := as.engine.costFunction.GetComponents(outArc, as.engine.graph.CongestionOf(edgeId), as.vehicle)
		if comp.Impassable() {
			return
		}

		newCost := uInfo.GetCost() + as.engine.costFunction.Composite(comp)
		if newCost >= pkg.INF_WEIGHT {
			return
		}

		vId := outArc.GetHead()
		vInfo, labelled := as.forwardInfo[vId]
		if labelled && newCost >= vInfo.GetCost() {
			return
		}

		newComp := uInfo.GetComponents().Add(comp)
		parent := newVertexEdgePair(uId, edgeId)
		if !labelled {
			vNode := da.NewPriorityQueueNode(newCost+as.heuristic(vId), vId)
			as.pq.Insert(vNode)
			as.forwardInfo[vId] = NewVertexInfo(newCost, newComp, parent, vNode)
			return
		}

		vhNode := vInfo.GetHeapNode()
		vInfo.update(newCost, newComp, parent)
		newRank := newCost + as.heuristic(vId)
		if vhNode.GetPos() >= 0 {
			_ = as.pq.DecreaseKey(vhNode, newRank)
			return
		}
		// already settled, reopen
		vNode := da.NewPriorityQueueNode(newRank, vId)
		vInfo.heapNode = vNode
		as.pq.Insert(vNode)
	})
	return false
}

func (as *AStar) buildRoute(s, t da.Index) *Route {
	g := as.engine.graph
	nodes := []da.NodeID{g.GetNode(t).GetID()}
	edges := make([]da.EdgeKey, 0)

	for cur := t; cur != s; {
		parent := as.forwardInfo[cur].GetParent()
		edges = append(edges, g.GetEdge(parent.edge).GetKey())
		nodes = append(nodes, g.GetNode(parent.vertex).GetID())
		cur = parent.vertex
	}

	tInfo := as.forwardInfo[t]
	return &Route{
		Nodes:   util.ReverseG(nodes),
		Edges:   util.ReverseG(edges),
		Metrics: tInfo.GetComponents(),
		Cost:    tInfo.GetCost(),
	}
}
