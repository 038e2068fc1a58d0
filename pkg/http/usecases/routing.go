package usecases

import (
	"context"

	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine/optimizer"
	"github.com/Highlander2003/EcoFlow/pkg/engine/routing"
	"github.com/Highlander2003/EcoFlow/pkg/geo"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// RouteResult route enriched for api consumers.
type RouteResult struct {
	ID       string
	Route    *routing.Route
	Coords   []geo.Coordinate
	Polyline string
	Epoch    uint64
	Cached   bool
}

// OptimizeResult waypoint route plus its pareto front and per-generation statistics.
type OptimizeResult struct {
	RouteResult
	Front []optimizer.Solution
	Stats []optimizer.GenerationStats
}

// routeCacheKey routes are only reused while the traffic epoch they were computed under is current.
type routeCacheKey struct {
	origin      datastructure.NodeID
	destination datastructure.NodeID
	vehicle     string
	epoch       uint64
}

type RoutingService struct {
	log          *zap.Logger
	engine       RoutingEngine
	spatialIndex SpatialIndex
	searchRadius float64
	cache        *lru.Cache[routeCacheKey, *routing.Route]
}

// NewRoutingService. cacheSize <= 0 disables the route cache.
func NewRoutingService(log *zap.Logger, engine RoutingEngine, spatialIndex SpatialIndex,
	searchRadius float64, cacheSize int) (*RoutingService, error) {
	rs := &RoutingService{
		log:          log,
		engine:       engine,
		spatialIndex: spatialIndex,
		searchRadius: searchRadius,
	}
	if cacheSize > 0 {
		cache, err := lru.New[routeCacheKey, *routing.Route](cacheSize)
		if err != nil {
			return nil, err
		}
		rs.cache = cache
	}
	return rs, nil
}

func (rs *RoutingService) epoch() uint64 {
	return rs.engine.GetGraph().Traffic().Epoch()
}

// ShortestPath route between two node ids.
func (rs *RoutingService) ShortestPath(ctx context.Context, origin, destination datastructure.NodeID, vehicle string) (*RouteResult, error) {
	epoch := rs.epoch()
	key := routeCacheKey{origin: origin, destination: destination, vehicle: vehicle, epoch: epoch}

	if rs.cache != nil {
		if route, ok := rs.cache.Get(key); ok {
			metrics.RouteCacheLookups.WithLabelValues("hit").Inc()
			res := rs.newRouteResult(route, epoch)
			res.Cached = true
			return res, nil
		}
		metrics.RouteCacheLookups.WithLabelValues("miss").Inc()
	}

	route, err := rs.engine.FindRoute(ctx, origin, destination, vehicle)
	if err != nil {
		return nil, err
	}
	if rs.cache != nil {
		rs.cache.Add(key, route)
	}
	return rs.newRouteResult(route, epoch), nil
}

// ShortestPathFromCoords snaps both coordinates to their nearest nodes then routes between them.
func (rs *RoutingService) ShortestPathFromCoords(ctx context.Context, origLat, origLon, dstLat, dstLon float64, vehicle string) (*RouteResult, error) {
	origin, destination, err := rs.snapOrigDestToNearbyNodes(origLat, origLon, dstLat, dstLon)
	if err != nil {
		return nil, err
	}
	return rs.ShortestPath(ctx, origin, destination, vehicle)
}

func (rs *RoutingService) OptimizeWaypoints(ctx context.Context, waypoints []datastructure.NodeID, vehicle string) (*OptimizeResult, error) {
	epoch := rs.epoch()
	res, err := rs.engine.OptimizeWaypoints(ctx, waypoints, vehicle)
	if err != nil {
		return nil, err
	}
	return &OptimizeResult{
		RouteResult: *rs.newRouteResult(res.Route, epoch),
		Front:       res.Front,
		Stats:       res.Stats,
	}, nil
}

func (rs *RoutingService) newRouteResult(route *routing.Route, epoch uint64) *RouteResult {
	g := rs.engine.GetGraph()
	coords := make([]geo.Coordinate, 0, len(route.Nodes))
	for _, id := range route.Nodes {
		n, err := g.Node(id)
		if err != nil {
			continue
		}
		coords = append(coords, geo.NewCoordinate(n.GetLat(), n.GetLon()))
	}
	return &RouteResult{
		ID:       uuid.NewString(),
		Route:    route,
		Coords:   coords,
		Polyline: geo.PolylineFromCoords(coords),
		Epoch:    epoch,
	}
}

func (rs *RoutingService) Vehicles() []string {
	return rs.engine.Vehicles().Names()
}
