package usecases

import (
	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
)

type MapData struct {
	Nodes []MapNode
	Edges []datastructure.EdgeSnapshot
	Epoch uint64
}

type MapNode struct {
	ID  datastructure.NodeID
	Lat float64
	Lon float64
}

type MapService struct {
	graph *datastructure.Graph
}

func NewMapService(graph *datastructure.Graph) *MapService {
	return &MapService{graph: graph}
}

// MapData up to limit nodes and limit edges (everything when limit <= 0).
func (ms *MapService) MapData(limit int) *MapData {
	n := ms.graph.NumberOfNodes()
	if limit > 0 && limit < n {
		n = limit
	}
	nodes := make([]MapNode, 0, n)
	for i := 0; i < n; i++ {
		node := ms.graph.GetNode(datastructure.Index(i))
		nodes = append(nodes, MapNode{ID: node.GetID(), Lat: node.GetLat(), Lon: node.GetLon()})
	}
	return &MapData{
		Nodes: nodes,
		Edges: ms.graph.Snapshot(limit),
		Epoch: ms.graph.Traffic().Epoch(),
	}
}

// Stats node and edge counts.
func (ms *MapService) Stats() (nodes, edges int) {
	return ms.graph.NumberOfNodes(), ms.graph.NumberOfEdges()
}
