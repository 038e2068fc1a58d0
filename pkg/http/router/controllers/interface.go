package controllers

import (
	"context"

	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/http/usecases"
	"github.com/Highlander2003/EcoFlow/pkg/traffic"
)

type RoutingService interface {
	ShortestPath(ctx context.Context, origin, destination datastructure.NodeID, vehicle string) (*usecases.RouteResult, error)
	ShortestPathFromCoords(ctx context.Context, origLat, origLon, dstLat, dstLon float64, vehicle string) (*usecases.RouteResult, error)
	OptimizeWaypoints(ctx context.Context, waypoints []datastructure.NodeID, vehicle string) (*usecases.OptimizeResult, error)
}

type MapService interface {
	MapData(limit int) *usecases.MapData
	Stats() (nodes, edges int)
}

type SensorService interface {
	Ingest(r traffic.SensorReading) (traffic.IngestResult, error)
	Sensors() []traffic.SensorStatus
}
