package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine/routing"
	"github.com/Highlander2003/EcoFlow/pkg/traffic"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// gridGraph n x n grid with two-way streets, node id = row*n + col + 1.
func gridGraph(t *testing.T, n int) *da.Graph {
	t.Helper()
	const step = 0.002
	b := da.NewGraphBuilder()
	id := func(r, c int) da.NodeID { return da.NodeID(r*n + c + 1) }
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			require.NoError(t, b.AddNode(id(r, c), float64(r)*step, float64(c)*step))
		}
	}
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			if c+1 < n {
				_, err := b.AddEdge(id(r, c), id(r, c+1), 250, 40, pkg.RESIDENTIAL)
				require.NoError(t, err)
				_, err = b.AddEdge(id(r, c+1), id(r, c), 250, 40, pkg.RESIDENTIAL)
				require.NoError(t, err)
			}
			if r+1 < n {
				_, err := b.AddEdge(id(r, c), id(r+1, c), 250, 50, pkg.SECONDARY)
				require.NoError(t, err)
				_, err = b.AddEdge(id(r+1, c), id(r, c), 250, 50, pkg.SECONDARY)
				require.NoError(t, err)
			}
		}
	}
	return b.Build()
}

func TestQueriesDuringTrafficUpdates(t *testing.T) {
	const (
		n       = 6
		workers = 8
		queries = 25
	)
	g := gridGraph(t, n)
	eng, err := NewEngine(g, testConfig(t), zap.NewNop())
	require.NoError(t, err)

	sim, err := traffic.NewSimulatedSource(g, 0.3, 1.0, 5)
	require.NoError(t, err)
	updater, err := traffic.NewUpdater(g, sim, time.Millisecond, zap.NewNop())
	require.NoError(t, err)
	_, err = updater.RunOnce(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cycles atomic.Int64
	updaterDone := make(chan error, 1)
	go func() {
		for ctx.Err() == nil {
			if _, err := updater.RunOnce(ctx); err != nil && !errors.Is(err, util.ErrCancelled) {
				updaterDone <- err
				return
			}
			cycles.Add(1)
		}
		updaterDone <- nil
	}()

	var routed, noPath atomic.Int64
	qg, qctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		rd := rand.New(rand.NewSource(int64(w + 1)))
		qg.Go(func() error {
			for q := 0; q < queries; q++ {
				perm := rd.Perm(n * n)
				s, mid, d := da.NodeID(perm[0]+1), da.NodeID(perm[1]+1), da.NodeID(perm[2]+1)

				var (
					route *routing.Route
					err   error
				)
				if q%5 == 0 {
					var res *OptimizedRoute
					res, err = eng.OptimizeWaypoints(qctx, []da.NodeID{s, mid, d}, costfunction.VehicleCar)
					if err == nil {
						route = res.Route
					}
				} else {
					route, err = eng.FindRoute(qctx, s, d, costfunction.VehicleBicycle)
				}
				if err == nil && (route.Nodes[0] != s || route.Nodes[len(route.Nodes)-1] != d) {
					return fmt.Errorf("route %v does not run from %d to %d", route.Nodes, s, d)
				}

				switch {
				case err == nil:
					routed.Add(1)
				case errors.Is(err, util.ErrNoPath):
					noPath.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}

	require.NoError(t, qg.Wait())
	cancel()
	require.NoError(t, <-updaterDone)

	assert.Equal(t, int64(workers*queries), routed.Load()+noPath.Load())
	assert.Greater(t, routed.Load(), int64(0))
	assert.Greater(t, cycles.Load(), int64(0))
	assert.Greater(t, g.Traffic().Epoch(), uint64(0))
}
