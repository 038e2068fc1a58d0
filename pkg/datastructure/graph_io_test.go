package datastructure

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadGraph(t *testing.T) {
	g := buildSmallGraph(t)
	filename := filepath.Join(t.TempDir(), "city.graph")

	require.NoError(t, g.WriteGraph(filename))
	got, err := ReadGraph(filename)
	require.NoError(t, err)

	assert.Equal(t, g.NumberOfNodes(), got.NumberOfNodes())
	assert.Equal(t, g.NumberOfEdges(), got.NumberOfEdges())
	g.ForEdges(func(e *Edge, _ Index) {
		attr, err := got.EdgeAttributes(e.GetKey())
		require.NoError(t, err)
		assert.Equal(t, e.GetLength(), attr.Length)
		assert.Equal(t, e.GetSpeed(), attr.Speed)
		assert.Equal(t, e.GetRoadClass(), attr.RoadClass)
	})
	n, err := got.Node(4)
	require.NoError(t, err)
	assert.Equal(t, -7.77, n.GetLat())
}

func TestLoadGraphJSON(t *testing.T) {
	input := `{
		"nodes": [{"id": 1, "lat": 0, "lon": 0}, {"id": 2, "lat": 0, "lon": 0.01}],
		"edges": [
			{"from": 1, "to": 2, "length": 1200, "highway": "primary"},
			{"from": 1, "to": 2, "length": 1300, "speed_kph": 20, "highway": "residential"},
			{"from": 2, "to": 1, "key": 3, "length": 1200, "speed_kph": 45, "highway": "tertiary"}
		]
	}`

	g, err := LoadGraphJSON(strings.NewReader(input))
	require.NoError(t, err)

	testCases := []struct {
		name string
		key  EdgeKey
		want EdgeAttributes
	}{
		{name: "class default speed", key: NewEdgeKey(1, 2, 0), want: EdgeAttributes{Length: 1200, Speed: 50, RoadClass: pkg.PRIMARY}},
		{name: "auto parallel index", key: NewEdgeKey(1, 2, 1), want: EdgeAttributes{Length: 1300, Speed: 20, RoadClass: pkg.RESIDENTIAL}},
		{name: "explicit key", key: NewEdgeKey(2, 1, 3), want: EdgeAttributes{Length: 1200, Speed: 45, RoadClass: pkg.TERTIARY}},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.EdgeAttributes(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err = LoadGraphJSON(strings.NewReader(`{"nodes":[],"edges":[{"from":1,"to":2,"length":1}]}`))
	assert.ErrorIs(t, err, util.ErrInvalidGraph)
}
