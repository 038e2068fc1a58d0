package routing

import (
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
)

const invalidIndex = ^da.Index(0)

type vertexEdgePair struct {
	vertex da.Index
	edge   da.Index
}

func newVertexEdgePair(vertex, edge da.Index) vertexEdgePair {
	return vertexEdgePair{vertex: vertex, edge: edge}
}

// VertexInfo search label of one node: best known cost, the components accumulated along that
// path and the edge it was reached by.
type VertexInfo struct {
	cost     float64
	comp     costfunction.Components
	parent   vertexEdgePair
	heapNode *da.PriorityQueueNode[da.Index]
}

func NewVertexInfo(cost float64, comp costfunction.Components, parent vertexEdgePair, hnode *da.PriorityQueueNode[da.Index]) *VertexInfo {
	return &VertexInfo{
		cost:     cost,
		comp:     comp,
		parent:   parent,
		heapNode: hnode,
	}
}

func (vi *VertexInfo) GetCost() float64 {
	return vi.cost
}

func (vi *VertexInfo) GetComponents() costfunction.Components {
	return vi.comp
}

func (vi *VertexInfo) GetParent() vertexEdgePair {
	return vi.parent
}

func (vi *VertexInfo) GetHeapNode() *da.PriorityQueueNode[da.Index] {
	return vi.heapNode
}

func (vi *VertexInfo) update(cost float64, comp costfunction.Components, parent vertexEdgePair) {
	vi.cost = cost
	vi.comp = comp
	vi.parent = parent
}
