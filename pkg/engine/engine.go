package engine

import (
	"context"
	"errors"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg/config"
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine/optimizer"
	"github.com/Highlander2003/EcoFlow/pkg/engine/routing"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"go.uber.org/zap"
)

const (
	opFindRoute         = "find_route"
	opOptimizeWaypoints = "optimize_waypoints"
)

// OptimizedRoute representative route through every waypoint, plus the pareto front and the
// per-generation statistics of the search. Front and Stats are empty when no population search ran.
type OptimizedRoute struct {
	Route *routing.Route
	Front []optimizer.Solution
	Stats []optimizer.GenerationStats
}

type Engine struct {
	routingEngine *routing.RoutingEngine
	optimizer     *optimizer.NSGA2Optimizer
	vehicles      *costfunction.VehicleRegistry
	logger        *zap.Logger
}

func (e *Engine) GetRoutingEngine() *routing.RoutingEngine {
	return e.routingEngine
}

func (e *Engine) GetGraph() *datastructure.Graph {
	return e.routingEngine.GetGraph()
}

func (e *Engine) Vehicles() *costfunction.VehicleRegistry {
	return e.vehicles
}

// NewEngine wires the cost function, the vehicle profiles and the optimizer around graph.
func NewEngine(graph *datastructure.Graph, cfg *config.Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if graph == nil {
		return nil, util.WrapErrorf(nil, util.ErrInvalidGraph, "nil graph")
	}

	costFunction, err := costfunction.NewEcoCostFunction(cfg.Cost.Weights, cfg.Cost.Max)
	if err != nil {
		return nil, err
	}
	vehicles, err := costfunction.NewVehicleRegistry(cfg.Vehicles...)
	if err != nil {
		return nil, err
	}

	routingEngine := routing.NewRoutingEngine(graph, costFunction, logger)
	opt, err := optimizer.NewNSGA2Optimizer(routingEngine, cfg.Optimizer, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("routing engine ready",
		zap.Int("nodes", graph.NumberOfNodes()),
		zap.Int("edges", graph.NumberOfEdges()),
		zap.Strings("vehicles", vehicles.Names()))

	return &Engine{
		routingEngine: routingEngine,
		optimizer:     opt,
		vehicles:      vehicles,
		logger:        logger,
	}, nil
}

// FindRoute minimum composite cost route from origin to destination for the named vehicle.
func (e *Engine) FindRoute(ctx context.Context, origin, destination datastructure.NodeID, vehicleName string) (*routing.Route, error) {
	start := time.Now()
	route, err := e.findRoute(ctx, origin, destination, vehicleName)
	observe(opFindRoute, start, err)
	if err != nil {
		e.logger.Debug("find route failed",
			zap.Int64("origin", int64(origin)),
			zap.Int64("destination", int64(destination)),
			zap.String("vehicle", vehicleName),
			zap.Error(err))
	}
	return route, err
}

func (e *Engine) findRoute(ctx context.Context, origin, destination datastructure.NodeID, vehicleName string) (*routing.Route, error) {
	vehicle, err := e.vehicles.Get(vehicleName)
	if err != nil {
		return nil, err
	}
	as := routing.NewAStar(e.routingEngine, vehicle)
	route, err := as.ShortestPath(ctx, origin, destination)
	metrics.SettledNodes.Observe(float64(as.GetNumSettledNodes()))
	return route, err
}

// OptimizeWaypoints route from the first to the last waypoint visiting every waypoint in between
// in any order. fewer than 2 waypoints give a trivial route and exactly 2 delegate to FindRoute.
func (e *Engine) OptimizeWaypoints(ctx context.Context, waypoints []datastructure.NodeID, vehicleName string) (*OptimizedRoute, error) {
	start := time.Now()
	res, err := e.optimizeWaypoints(ctx, waypoints, vehicleName)
	observe(opOptimizeWaypoints, start, err)
	if err != nil {
		e.logger.Debug("optimize waypoints failed",
			zap.Int("waypoints", len(waypoints)),
			zap.String("vehicle", vehicleName),
			zap.Error(err))
	}
	return res, err
}

func (e *Engine) optimizeWaypoints(ctx context.Context, waypoints []datastructure.NodeID, vehicleName string) (*OptimizedRoute, error) {
	vehicle, err := e.vehicles.Get(vehicleName)
	if err != nil {
		return nil, err
	}

	g := e.GetGraph()
	idx := make([]datastructure.Index, len(waypoints))
	for i, w := range waypoints {
		u, ok := g.NodeIndex(w)
		if !ok {
			return nil, util.WrapErrorf(nil, util.ErrNotFound, "waypoint %d not in graph", w)
		}
		idx[i] = u
	}

	switch len(waypoints) {
	case 0, 1:
		if util.StopConcurrentOperation(ctx) {
			return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "optimization cancelled")
		}
		return &OptimizedRoute{Route: routing.NewTrivialRoute(append([]datastructure.NodeID{}, waypoints...)...)}, nil
	case 2:
		as := routing.NewAStar(e.routingEngine, vehicle)
		route, err := as.ShortestPath(ctx, waypoints[0], waypoints[1])
		metrics.SettledNodes.Observe(float64(as.GetNumSettledNodes()))
		if err != nil {
			return nil, err
		}
		return &OptimizedRoute{Route: route}, nil
	}

	res, err := e.optimizer.Optimize(ctx, idx, vehicle)
	if err != nil {
		return nil, err
	}
	metrics.OptimizerGenerations.Add(float64(len(res.Stats) - 1))
	return &OptimizedRoute{Route: res.Route, Front: res.Front, Stats: res.Stats}, nil
}

func observe(op string, start time.Time, err error) {
	metrics.RouteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	metrics.RouteQueries.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, util.ErrNotFound):
		return "not_found"
	case errors.Is(err, util.ErrNoPath):
		return "no_path"
	case errors.Is(err, util.ErrCancelled):
		return "cancelled"
	default:
		return "error"
	}
}
