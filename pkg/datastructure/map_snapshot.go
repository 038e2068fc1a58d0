package datastructure

// EdgeSnapshot one edge with its geometry and live congestion, for map display.
type EdgeSnapshot struct {
	Key        EdgeKey
	FromLat    float64
	FromLon    float64
	ToLat      float64
	ToLon      float64
	RoadClass  string
	Congestion float64
}

// Snapshot returns up to limit edges (all when limit <= 0) in storage order.
func (g *Graph) Snapshot(limit int) []EdgeSnapshot {
	n := len(g.edges)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]EdgeSnapshot, 0, n)
	for i := 0; i < n; i++ {
		e := g.edges[i]
		tail, head := g.nodes[e.tail], g.nodes[e.head]
		out = append(out, EdgeSnapshot{
			Key:        e.key,
			FromLat:    tail.lat,
			FromLon:    tail.lon,
			ToLat:      head.lat,
			ToLon:      head.lon,
			RoadClass:  e.roadClass.String(),
			Congestion: g.traffic.Congestion(Index(i)),
		})
	}
	return out
}
