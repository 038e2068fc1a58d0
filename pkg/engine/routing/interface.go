package routing

import (
	"context"

	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
)

type CostFunction interface {
	GetComponents(e costfunction.EdgeAttributes, congestion float64, vehicle *costfunction.VehicleProfile) costfunction.Components
	Composite(c costfunction.Components) float64
	Heuristic(distanceKm float64) float64
}

type Router interface {
	ShortestPath(ctx context.Context, s, t da.NodeID) (*Route, error)
}
