package usecases

import (
	"context"

	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine"
	"github.com/Highlander2003/EcoFlow/pkg/engine/routing"
	"github.com/Highlander2003/EcoFlow/pkg/spatialindex"
	"github.com/Highlander2003/EcoFlow/pkg/traffic"
)

type RoutingEngine interface {
	GetGraph() *datastructure.Graph
	Vehicles() *costfunction.VehicleRegistry
	FindRoute(ctx context.Context, origin, destination datastructure.NodeID, vehicleName string) (*routing.Route, error)
	OptimizeWaypoints(ctx context.Context, waypoints []datastructure.NodeID, vehicleName string) (*engine.OptimizedRoute, error)
}

type SpatialIndex interface {
	NearestNode(qLat, qLon, radius float64) (spatialindex.NodeMatch, bool)
}

type SensorRegistry interface {
	traffic.Ingester
	Sensors() []traffic.SensorStatus
}
