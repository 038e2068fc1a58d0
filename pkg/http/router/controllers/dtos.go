package controllers

import (
	"github.com/Highlander2003/EcoFlow/pkg/costfunction"
	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine/optimizer"
	"github.com/Highlander2003/EcoFlow/pkg/geo"
	"github.com/Highlander2003/EcoFlow/pkg/http/usecases"
)

const (
	defaultVehicle      = "car"
	defaultMapDataLimit = 1000
)

type shortestPathByIDRequest struct {
	Origin      int64  `validate:"gte=0"`
	Destination int64  `validate:"gte=0"`
	Vehicle     string `validate:"required"`
}

type shortestPathRequest struct {
	OriginLat      float64 `json:"origin_lat" validate:"min=-90,max=90"`
	OriginLon      float64 `json:"origin_lon" validate:"min=-180,max=180"`
	DestinationLat float64 `json:"destination_lat" validate:"min=-90,max=90"`
	DestinationLon float64 `json:"destination_lon" validate:"min=-180,max=180"`
	Vehicle        string  `json:"vehicle" validate:"required"`
}

type optimizeWaypointsRequest struct {
	Waypoints []int64 `json:"waypoints" validate:"required,max=64"`
	Vehicle   string  `json:"vehicle"`
}

type routeResponse struct {
	ID      string                  `json:"id"`
	Nodes   []datastructure.NodeID  `json:"nodes"`
	Edges   []datastructure.EdgeKey `json:"edges"`
	Metrics costfunction.Components `json:"metrics"`
	Cost    float64                 `json:"composite_cost"`
	Path    string                  `json:"path"`
	Coords  []geo.Coordinate        `json:"coordinates"`
	Epoch   uint64                  `json:"traffic_epoch"`
	Cached  bool                    `json:"cached"`
}

func NewRouteResponse(res *usecases.RouteResult) routeResponse {
	edges := res.Route.Edges
	if edges == nil {
		edges = []datastructure.EdgeKey{}
	}
	nodes := res.Route.Nodes
	if nodes == nil {
		nodes = []datastructure.NodeID{}
	}
	return routeResponse{
		ID:      res.ID,
		Nodes:   nodes,
		Edges:   edges,
		Metrics: res.Route.Metrics,
		Cost:    res.Route.Cost,
		Path:    res.Polyline,
		Coords:  res.Coords,
		Epoch:   res.Epoch,
		Cached:  res.Cached,
	}
}

type optimizeResponse struct {
	Route routeResponse               `json:"route"`
	Front []optimizer.Solution        `json:"pareto_front"`
	Stats []optimizer.GenerationStats `json:"generations"`
}

func NewOptimizeResponse(res *usecases.OptimizeResult) optimizeResponse {
	front := res.Front
	if front == nil {
		front = []optimizer.Solution{}
	}
	stats := res.Stats
	if stats == nil {
		stats = []optimizer.GenerationStats{}
	}
	return optimizeResponse{
		Route: NewRouteResponse(&res.RouteResult),
		Front: front,
		Stats: stats,
	}
}

type mapNodeResponse struct {
	ID  datastructure.NodeID `json:"id"`
	Lat float64              `json:"lat"`
	Lon float64              `json:"lon"`
}

type mapEdgeResponse struct {
	From       datastructure.NodeID `json:"from"`
	To         datastructure.NodeID `json:"to"`
	Key        int                  `json:"key"`
	FromCoord  geo.Coordinate       `json:"from_coord"`
	ToCoord    geo.Coordinate       `json:"to_coord"`
	RoadClass  string               `json:"highway"`
	Congestion float64              `json:"congestion"`
}

type mapDataResponse struct {
	Nodes []mapNodeResponse `json:"nodes"`
	Edges []mapEdgeResponse `json:"edges"`
	Epoch uint64            `json:"traffic_epoch"`
}

func NewMapDataResponse(data *usecases.MapData) mapDataResponse {
	resp := mapDataResponse{
		Nodes: make([]mapNodeResponse, 0, len(data.Nodes)),
		Edges: make([]mapEdgeResponse, 0, len(data.Edges)),
		Epoch: data.Epoch,
	}
	for _, n := range data.Nodes {
		resp.Nodes = append(resp.Nodes, mapNodeResponse{ID: n.ID, Lat: n.Lat, Lon: n.Lon})
	}
	for _, e := range data.Edges {
		resp.Edges = append(resp.Edges, mapEdgeResponse{
			From:       e.Key.From,
			To:         e.Key.To,
			Key:        e.Key.Index,
			FromCoord:  geo.NewCoordinate(e.FromLat, e.FromLon),
			ToCoord:    geo.NewCoordinate(e.ToLat, e.ToLon),
			RoadClass:  e.RoadClass,
			Congestion: e.Congestion,
		})
	}
	return resp
}

type healthResponse struct {
	Status string `json:"status"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
}
