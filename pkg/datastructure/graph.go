package datastructure

import (
	"math"
	"sort"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/geo"
	"github.com/Highlander2003/EcoFlow/pkg/util"
)

// Index dense internal id of a node or an edge.
type Index uint32

// NodeID external node identifier (osm node id for imported maps).
type NodeID int64

// EdgeKey identifies a directed edge. parallel edges between the same pair differ in Index.
type EdgeKey struct {
	From  NodeID `json:"from"`
	To    NodeID `json:"to"`
	Index int    `json:"key"`
}

func NewEdgeKey(from, to NodeID, index int) EdgeKey {
	return EdgeKey{From: from, To: to, Index: index}
}

type Node struct {
	id  NodeID
	lat float64
	lon float64
}

func (n *Node) GetID() NodeID {
	return n.id
}

func (n *Node) GetLat() float64 {
	return n.lat
}

func (n *Node) GetLon() float64 {
	return n.lon
}

type Edge struct {
	key       EdgeKey
	tail      Index
	head      Index
	length    float64 // meter
	speed     float64 // free-flow km/h
	roadClass pkg.RoadClass
}

func (e *Edge) GetKey() EdgeKey {
	return e.key
}

func (e *Edge) GetTail() Index {
	return e.tail
}

func (e *Edge) GetHead() Index {
	return e.head
}

// GetLength in meter
func (e *Edge) GetLength() float64 {
	return e.length
}

// GetSpeed free-flow speed in km/h
func (e *Edge) GetSpeed() float64 {
	return e.speed
}

func (e *Edge) GetRoadClass() pkg.RoadClass {
	return e.roadClass
}

// Arc one outgoing edge of a node.
type Arc struct {
	Edge   EdgeKey
	Target NodeID
}

// EdgeAttributes static attributes of an edge.
type EdgeAttributes struct {
	Length    float64
	Speed     float64
	RoadClass pkg.RoadClass
}

// Graph immutable directed road graph. outgoing edges are stored contiguously per tail node
// (edges[firstOut[u]:firstOut[u+1]]). the only mutable part is the traffic state.
type Graph struct {
	nodes     []*Node
	edges     []*Edge
	firstOut  []Index
	nodeIndex map[NodeID]Index
	edgeIndex map[EdgeKey]Index
	traffic   *TrafficState

	heuristicScale float64
}

func (g *Graph) NumberOfNodes() int {
	return len(g.nodes)
}

func (g *Graph) NumberOfEdges() int {
	return len(g.edges)
}

// NodeIndex maps an external node id to its dense index.
func (g *Graph) NodeIndex(id NodeID) (Index, bool) {
	idx, ok := g.nodeIndex[id]
	return idx, ok
}

func (g *Graph) HasNode(id NodeID) bool {
	_, ok := g.nodeIndex[id]
	return ok
}

func (g *Graph) GetNode(u Index) *Node {
	return g.nodes[u]
}

// HeuristicScale factor in [0,1] such that scale * great-circle distance never exceeds the length
// of any edge between its ends. 1 when every edge is at least as long as the straight line.
func (g *Graph) HeuristicScale() float64 {
	return g.heuristicScale
}

// Node returns the node with external id, or ErrNotFound.
func (g *Graph) Node(id NodeID) (*Node, error) {
	idx, ok := g.nodeIndex[id]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "node %d not found", id)
	}
	return g.nodes[idx], nil
}

func (g *Graph) GetEdge(e Index) *Edge {
	return g.edges[e]
}

func (g *Graph) EdgeIndex(key EdgeKey) (Index, bool) {
	idx, ok := g.edgeIndex[key]
	return idx, ok
}

func (g *Graph) GetOutDegree(u Index) Index {
	return g.firstOut[u+1] - g.firstOut[u]
}

// ForOutEdgesOf calls handle for every outgoing edge of u with the edge's dense index.
func (g *Graph) ForOutEdgesOf(u Index, handle func(e *Edge, id Index)) {
	for e := g.firstOut[u]; e < g.firstOut[u+1]; e++ {
		handle(g.edges[e], e)
	}
}

func (g *Graph) ForEdges(handle func(e *Edge, id Index)) {
	for i, e := range g.edges {
		handle(e, Index(i))
	}
}

func (g *Graph) ForNodes(handle func(n *Node, id Index)) {
	for i, n := range g.nodes {
		handle(n, Index(i))
	}
}

// Neighbors returns the outgoing arcs of node. empty for leaf nodes.
func (g *Graph) Neighbors(id NodeID) ([]Arc, error) {
	u, ok := g.nodeIndex[id]
	if !ok {
		return nil, util.WrapErrorf(nil, util.ErrNotFound, "node %d not found", id)
	}
	arcs := make([]Arc, 0, g.GetOutDegree(u))
	g.ForOutEdgesOf(u, func(e *Edge, _ Index) {
		arcs = append(arcs, Arc{Edge: e.key, Target: g.nodes[e.head].id})
	})
	return arcs, nil
}

// EdgeAttributes returns (length, speed, road class) of an edge, or ErrNotFound.
func (g *Graph) EdgeAttributes(key EdgeKey) (EdgeAttributes, error) {
	idx, ok := g.edgeIndex[key]
	if !ok {
		return EdgeAttributes{}, util.WrapErrorf(nil, util.ErrNotFound, "edge %d->%d#%d not found", key.From, key.To, key.Index)
	}
	e := g.edges[idx]
	return EdgeAttributes{Length: e.length, Speed: e.speed, RoadClass: e.roadClass}, nil
}

// EdgesBetween returns the dense ids of all parallel edges u->v.
func (g *Graph) EdgesBetween(u, v Index) []Index {
	var ids []Index
	for e := g.firstOut[u]; e < g.firstOut[u+1]; e++ {
		if g.edges[e].head == v {
			ids = append(ids, e)
		}
	}
	return ids
}

func (g *Graph) Traffic() *TrafficState {
	return g.traffic
}

// GetCongestion returns the current congestion of an edge. 0 when the edge has no traffic entry.
func (g *Graph) GetCongestion(key EdgeKey) float64 {
	idx, ok := g.edgeIndex[key]
	if !ok {
		return 0
	}
	return g.traffic.Congestion(idx)
}

// CongestionOf hot-path variant of GetCongestion keyed by dense edge index.
func (g *Graph) CongestionOf(e Index) float64 {
	return g.traffic.Congestion(e)
}

// ApplyTrafficUpdate clamps each congestion to [0,1] and stores it with the current time.
// keys that do not exist in the graph are skipped. returns the number of edges written.
func (g *Graph) ApplyTrafficUpdate(updates map[EdgeKey]float64) int {
	if len(updates) == 0 {
		return 0
	}
	now := time.Now()
	applied := 0
	for key, c := range updates {
		idx, ok := g.edgeIndex[key]
		if !ok {
			continue
		}
		g.traffic.set(idx, c, now)
		applied++
	}
	if applied > 0 {
		g.traffic.bumpEpoch()
	}
	return applied
}

// TrafficEntry congestion and last update time of an edge. ok is false when the edge never received an update.
func (g *Graph) TrafficEntry(key EdgeKey) (congestion float64, updatedAt time.Time, ok bool) {
	idx, found := g.edgeIndex[key]
	if !found {
		return 0, time.Time{}, false
	}
	return g.traffic.Entry(idx)
}

// GraphBuilder collects nodes and edges before the graph is frozen.
type GraphBuilder struct {
	nodes     []*Node
	nodeIndex map[NodeID]Index
	edges     []*Edge
	edgeIndex map[EdgeKey]struct{}
	nextIdx   map[[2]NodeID]int
}

func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		nodes:     make([]*Node, 0),
		nodeIndex: make(map[NodeID]Index),
		edges:     make([]*Edge, 0),
		edgeIndex: make(map[EdgeKey]struct{}),
		nextIdx:   make(map[[2]NodeID]int),
	}
}

func (b *GraphBuilder) AddNode(id NodeID, lat, lon float64) error {
	if _, ok := b.nodeIndex[id]; ok {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "duplicate node id %d", id)
	}
	if math.IsNaN(lat) || math.IsNaN(lon) || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "node %d has invalid coordinate (%f, %f)", id, lat, lon)
	}
	b.nodeIndex[id] = Index(len(b.nodes))
	b.nodes = append(b.nodes, &Node{id: id, lat: lat, lon: lon})
	return nil
}

// AddEdge adds from->to with the next free parallel index for that pair.
func (b *GraphBuilder) AddEdge(from, to NodeID, length, speed float64, rc pkg.RoadClass) (EdgeKey, error) {
	pair := [2]NodeID{from, to}
	key := NewEdgeKey(from, to, b.nextIdx[pair])
	return key, b.AddEdgeWithKey(key, length, speed, rc)
}

func (b *GraphBuilder) AddEdgeWithKey(key EdgeKey, length, speed float64, rc pkg.RoadClass) error {
	tail, ok := b.nodeIndex[key.From]
	if !ok {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "edge references unknown node %d", key.From)
	}
	head, ok := b.nodeIndex[key.To]
	if !ok {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "edge references unknown node %d", key.To)
	}
	if _, ok := b.edgeIndex[key]; ok {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "duplicate edge %d->%d#%d", key.From, key.To, key.Index)
	}
	if key.Index < 0 || !(length >= 0) || !(speed >= 0) || math.IsInf(length, 0) || math.IsInf(speed, 0) {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "edge %d->%d#%d has invalid attributes", key.From, key.To, key.Index)
	}

	b.edgeIndex[key] = struct{}{}
	pair := [2]NodeID{key.From, key.To}
	if key.Index >= b.nextIdx[pair] {
		b.nextIdx[pair] = key.Index + 1
	}
	b.edges = append(b.edges, &Edge{
		key:       key,
		tail:      tail,
		head:      head,
		length:    length,
		speed:     speed,
		roadClass: rc,
	})
	return nil
}

func (b *GraphBuilder) NumberOfNodes() int {
	return len(b.nodes)
}

// Build freezes the graph. edges are grouped by tail node, keeping insertion order within a node.
func (b *GraphBuilder) Build() *Graph {
	edges := make([]*Edge, len(b.edges))
	copy(edges, b.edges)
	sort.SliceStable(edges, func(i, j int) bool {
		return edges[i].tail < edges[j].tail
	})

	firstOut := make([]Index, len(b.nodes)+1)
	for _, e := range edges {
		firstOut[e.tail+1]++
	}
	for i := 1; i < len(firstOut); i++ {
		firstOut[i] += firstOut[i-1]
	}

	edgeIndex := make(map[EdgeKey]Index, len(edges))
	for i, e := range edges {
		edgeIndex[e.key] = Index(i)
	}

	return &Graph{
		nodes:          b.nodes,
		edges:          edges,
		firstOut:       firstOut,
		nodeIndex:      b.nodeIndex,
		edgeIndex:      edgeIndex,
		traffic:        NewTrafficState(len(edges)),
		heuristicScale: minLengthRatio(b.nodes, edges),
	}
}

// minLengthRatio min over edges of length / great-circle length, capped at 1. edges between
// coincident points are skipped.
func minLengthRatio(nodes []*Node, edges []*Edge) float64 {
	ratio := 1.0
	for _, e := range edges {
		u, v := nodes[e.tail], nodes[e.head]
		straightM := geo.CalculateHaversineDistance(u.lat, u.lon, v.lat, v.lon) * 1000
		if straightM <= 0 {
			continue
		}
		ratio = math.Min(ratio, e.length/straightM)
	}
	return ratio
}
