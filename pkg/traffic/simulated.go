package traffic

import (
	"context"
	"math/rand"
	"sync"
	"time"

	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/util"
)

// SimulatedSource random congestion for a sample of the edges on every poll.
type SimulatedSource struct {
	graph          *da.Graph
	sampleFraction float64
	maxCongestion  float64

	mu sync.Mutex
	rd *rand.Rand
}

// NewSimulatedSource. seed 0 seeds from the clock.
func NewSimulatedSource(graph *da.Graph, sampleFraction, maxCongestion float64, seed int64) (*SimulatedSource, error) {
	if !(sampleFraction > 0 && sampleFraction <= 1) {
		return nil, util.WrapErrorf(nil, util.ErrInvalidConfig, "sample fraction must be in (0, 1], got %v", sampleFraction)
	}
	if !(maxCongestion >= 0 && maxCongestion <= 1) {
		return nil, util.WrapErrorf(nil, util.ErrInvalidConfig, "max congestion must be in [0, 1], got %v", maxCongestion)
	}
	return &SimulatedSource{
		graph:          graph,
		sampleFraction: sampleFraction,
		maxCongestion:  maxCongestion,
		rd:             newRand(seed),
	}, nil
}

func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// Poll picks max(1, sampleFraction * |E|) distinct edges and gives each congestion U(0, maxCongestion).
func (s *SimulatedSource) Poll(ctx context.Context) (map[da.EdgeKey]float64, error) {
	if util.StopConcurrentOperation(ctx) {
		return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "simulated poll cancelled")
	}
	m := s.graph.NumberOfEdges()
	if m == 0 {
		return map[da.EdgeKey]float64{}, nil
	}
	k := int(s.sampleFraction * float64(m))
	if k < 1 {
		k = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updates := make(map[da.EdgeKey]float64, k)
	for _, e := range sampleIndexes(s.rd, m, k) {
		updates[s.graph.GetEdge(da.Index(e)).GetKey()] = s.rd.Float64() * s.maxCongestion
	}
	return updates, nil
}

// sampleIndexes k distinct values of [0, n), Floyd's algorithm.
func sampleIndexes(rd *rand.Rand, n, k int) []int {
	if k > n {
		k = n
	}
	picked := make(map[int]struct{}, k)
	out := make([]int, 0, k)
	for j := n - k; j < n; j++ {
		t := rd.Intn(j + 1)
		if _, ok := picked[t]; ok {
			t = j
		}
		picked[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SeedInitialTraffic gives every edge congestion U(0, maxCongestion). returns the number of edges written.
func SeedInitialTraffic(graph *da.Graph, maxCongestion float64, seed int64) int {
	rd := newRand(seed)
	updates := make(map[da.EdgeKey]float64, graph.NumberOfEdges())
	graph.ForEdges(func(e *da.Edge, _ da.Index) {
		updates[e.GetKey()] = rd.Float64() * maxCongestion
	})
	return graph.ApplyTrafficUpdate(updates)
}
