package spatialindex

import (
	"testing"

	"github.com/Highlander2003/EcoFlow/pkg"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// two parallel horizontal roads 1-2 (lat 0) and 3-4 (lat 0.01), about 1.1km apart.
func buildIndex(t *testing.T) (*Rtree, *da.Graph) {
	t.Helper()
	b := da.NewGraphBuilder()
	require.NoError(t, b.AddNode(1, 0, 0))
	require.NoError(t, b.AddNode(2, 0, 0.02))
	require.NoError(t, b.AddNode(3, 0.01, 0))
	require.NoError(t, b.AddNode(4, 0.01, 0.02))
	_, err := b.AddEdge(1, 2, 2300, 50, pkg.PRIMARY)
	require.NoError(t, err)
	_, err = b.AddEdge(3, 4, 2300, 50, pkg.SECONDARY)
	require.NoError(t, err)
	g := b.Build()

	rt := NewRtree()
	rt.Build(g, zap.NewNop())
	return rt, g
}

func TestNearestNode(t *testing.T) {
	rt, _ := buildIndex(t)

	testCases := []struct {
		name    string
		lat     float64
		lon     float64
		radius  float64
		wantID  da.NodeID
		wantHit bool
	}{
		{"on top of node", 0, 0.02, 0.5, 2, true},
		{"closer to the upper road", 0.008, 0.001, 1, 3, true},
		{"nothing within radius", 0.005, 0.01, 0.1, 0, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := rt.NearestNode(tc.lat, tc.lon, tc.radius)
			assert.Equal(t, tc.wantHit, ok)
			if ok {
				assert.Equal(t, tc.wantID, m.ID)
				assert.LessOrEqual(t, m.DistanceKm, tc.radius)
			}
		})
	}
}

func TestNearestEdge(t *testing.T) {
	rt, _ := buildIndex(t)

	testCases := []struct {
		name    string
		lat     float64
		lon     float64
		radius  float64
		wantKey da.EdgeKey
		wantHit bool
	}{
		{"just above the lower road", 0.001, 0.01, 1, da.NewEdgeKey(1, 2, 0), true},
		{"just below the upper road", 0.009, 0.01, 1, da.NewEdgeKey(3, 4, 0), true},
		{"far away", 1, 1, 1, da.EdgeKey{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := rt.NearestEdge(tc.lat, tc.lon, tc.radius)
			require.Equal(t, tc.wantHit, ok)
			if !ok {
				return
			}
			assert.Equal(t, tc.wantKey, m.Key)
			assert.InDelta(t, 0.111, m.DistanceKm, 0.005)
			assert.InDelta(t, tc.lon, m.Projection.Lon, 1e-4)
		})
	}
}

func TestSearchWithinRadius(t *testing.T) {
	rt, _ := buildIndex(t)

	assert.Len(t, rt.SearchWithinRadius(0.005, 0.01, 1), 2)
	assert.Len(t, rt.SearchWithinRadius(0.001, 0.01, 0.2), 1)
	assert.Empty(t, rt.SearchWithinRadius(5, 5, 1))
}
