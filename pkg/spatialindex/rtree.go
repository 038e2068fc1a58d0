package spatialindex

import (
	"math"

	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/geo"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// Rtree snaps coordinates to the nearest graph node or edge. nodes are stored as points and
// edges as the bounding box of their two endpoints.
type Rtree struct {
	nodes *rtree.RTreeG[datastructure.Index]
	edges *rtree.RTreeG[datastructure.Index]
	graph *datastructure.Graph
}

// EdgeMatch edge nearest to a query point, with the projection of the point onto it.
type EdgeMatch struct {
	Edge       datastructure.Index
	Key        datastructure.EdgeKey
	DistanceKm float64
	Projection geo.Coordinate
}

// NodeMatch node nearest to a query point.
type NodeMatch struct {
	Node       datastructure.Index
	ID         datastructure.NodeID
	DistanceKm float64
}

func NewRtree() *Rtree {
	var nodes, edges rtree.RTreeG[datastructure.Index]
	return &Rtree{
		nodes: &nodes,
		edges: &edges,
	}
}

func (rt *Rtree) Build(graph *datastructure.Graph, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("Building R-tree spatial index...")
	rt.graph = graph

	graph.ForNodes(func(n *datastructure.Node, id datastructure.Index) {
		p := [2]float64{n.GetLon(), n.GetLat()}
		rt.nodes.Insert(p, p, id)
	})

	graph.ForEdges(func(e *datastructure.Edge, id datastructure.Index) {
		from, to := graph.GetNode(e.GetTail()), graph.GetNode(e.GetHead())
		rt.edges.Insert(
			[2]float64{math.Min(from.GetLon(), to.GetLon()), math.Min(from.GetLat(), to.GetLat())},
			[2]float64{math.Max(from.GetLon(), to.GetLon()), math.Max(from.GetLat(), to.GetLat())},
			id)
	})

	log.Info("R-tree spatial index built.",
		zap.Int("nodes", rt.nodes.Len()),
		zap.Int("edges", rt.edges.Len()))
}

// searchBox lon/lat box enclosing the circle of radius km around (qLat, qLon).
func searchBox(qLat, qLon, radius float64) (min, max [2]float64) {
	// corners lie on the diagonal, sqrt(2) * radius away
	diag := radius * math.Sqrt2
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, diag)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, diag)
	return [2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat}
}

// SearchWithinRadius edges whose bounding box intersects the box of radius km around the query point.
func (rt *Rtree) SearchWithinRadius(qLat, qLon, radius float64) []datastructure.Index {
	min, max := searchBox(qLat, qLon, radius)
	results := make([]datastructure.Index, 0, 10)
	rt.edges.Search(min, max, func(_, _ [2]float64, id datastructure.Index) bool {
		results = append(results, id)
		return true
	})
	return results
}

// NearestNode node closest to the query point within radius km. ties go to the lower index.
func (rt *Rtree) NearestNode(qLat, qLon, radius float64) (NodeMatch, bool) {
	min, max := searchBox(qLat, qLon, radius)
	best := NodeMatch{DistanceKm: math.Inf(1)}
	found := false
	rt.nodes.Search(min, max, func(p, _ [2]float64, id datastructure.Index) bool {
		d := geo.CalculateHaversineDistance(qLat, qLon, p[1], p[0])
		if d > radius {
			return true
		}
		if d < best.DistanceKm || (d == best.DistanceKm && id < best.Node) {
			best = NodeMatch{Node: id, ID: rt.graph.GetNode(id).GetID(), DistanceKm: d}
			found = true
		}
		return true
	})
	return best, found
}

// NearestEdge edge closest (perpendicular distance) to the query point within radius km.
// ties go to the lower index.
func (rt *Rtree) NearestEdge(qLat, qLon, radius float64) (EdgeMatch, bool) {
	q := geo.NewCoordinate(qLat, qLon)
	best := EdgeMatch{DistanceKm: math.Inf(1)}
	found := false
	for _, id := range rt.SearchWithinRadius(qLat, qLon, radius) {
		e := rt.graph.GetEdge(id)
		from, to := rt.graph.GetNode(e.GetTail()), rt.graph.GetNode(e.GetHead())
		a := geo.NewCoordinate(from.GetLat(), from.GetLon())
		b := geo.NewCoordinate(to.GetLat(), to.GetLon())

		d := geo.PointLinePerpendicularDistance(a, b, q) / 1000
		if d > radius {
			continue
		}
		if d < best.DistanceKm || (d == best.DistanceKm && id < best.Edge) {
			best = EdgeMatch{
				Edge:       id,
				Key:        e.GetKey(),
				DistanceKm: d,
				Projection: geo.ProjectPointToLineCoord(a, b, q),
			}
			found = true
		}
	}
	return best, found
}
