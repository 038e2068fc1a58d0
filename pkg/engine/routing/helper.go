package routing

import (
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/geo"
)

// GetHaversineDistanceFromUtoV great-circle distance between two nodes in km
func (re *RoutingEngine) GetHaversineDistanceFromUtoV(u, v da.Index) float64 {
	nu, nv := re.graph.GetNode(u), re.graph.GetNode(v)
	return geo.CalculateHaversineDistance(nu.GetLat(), nu.GetLon(), nv.GetLat(), nv.GetLon())
}

func (re *RoutingEngine) resolveNodes(ids ...da.NodeID) ([]da.Index, error) {
	out := make([]da.Index, len(ids))
	for i, id := range ids {
		idx, ok := re.graph.NodeIndex(id)
		if !ok {
			_, err := re.graph.Node(id)
			return nil, err
		}
		out[i] = idx
	}
	return out, nil
}
