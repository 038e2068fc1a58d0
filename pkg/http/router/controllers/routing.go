package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	helper "github.com/Highlander2003/EcoFlow/pkg/http/router/routerhelper"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type routingAPI struct {
	errorResponder
	routingService RoutingService
	mapService     MapService
	validator      *requestValidator
	log            *zap.Logger
}

func New(routingService RoutingService, mapService MapService, log *zap.Logger) *routingAPI {
	return &routingAPI{
		errorResponder: errorResponder{log: log},
		routingService: routingService,
		mapService:     mapService,
		validator:      newRequestValidator(),
		log:            log,
	}
}

func (api *routingAPI) Routes(group *helper.RouteGroup) {
	group.GET("/computeRoutes", api.shortestPath)
	group.POST("/optimizeWaypoints", api.optimizeWaypoints)
	group.GET("/mapData", api.mapData)
}

// HealthRoutes registered outside the /api group.
func (api *routingAPI) HealthRoutes(group *helper.RouteGroup) {
	group.GET("/health", api.health)
}

func vehicleParam(v string) string {
	if v == "" {
		return defaultVehicle
	}
	return v
}

// shortestPath accepts either node ids (origin, destination) or coordinates
// (origin_lat, origin_lon, destination_lat, destination_lon) snapped to the nearest node.
func (api *routingAPI) shortestPath(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	query := r.URL.Query()
	vehicle := vehicleParam(query.Get("vehicle"))

	if query.Has("origin") || query.Has("destination") {
		var (
			request shortestPathByIDRequest
			err     error
		)
		request.Vehicle = vehicle
		request.Origin, err = strconv.ParseInt(query.Get("origin"), 10, 64)
		if err != nil {
			api.BadRequestResponse(w, r, errors.New("origin is required and must be a valid node id"))
			return
		}
		request.Destination, err = strconv.ParseInt(query.Get("destination"), 10, 64)
		if err != nil {
			api.BadRequestResponse(w, r, errors.New("destination is required and must be a valid node id"))
			return
		}
		if err := api.validator.Struct(request); err != nil {
			api.BadRequestResponse(w, r, err)
			return
		}

		res, err := api.routingService.ShortestPath(r.Context(),
			datastructure.NodeID(request.Origin), datastructure.NodeID(request.Destination), request.Vehicle)
		if err != nil {
			api.getStatusCode(w, r, err)
			return
		}
		if err := writeJSON(w, http.StatusOK, envelope{"data": NewRouteResponse(res)}, nil); err != nil {
			api.ServerErrorResponse(w, r, err)
		}
		return
	}

	var (
		request shortestPathRequest
		err     error
	)
	request.Vehicle = vehicle
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"origin_lat", &request.OriginLat},
		{"origin_lon", &request.OriginLon},
		{"destination_lat", &request.DestinationLat},
		{"destination_lon", &request.DestinationLon},
	} {
		*f.dst, err = strconv.ParseFloat(query.Get(f.name), 64)
		if err != nil {
			api.BadRequestResponse(w, r, errors.New(f.name+" is required and must be a valid float"))
			return
		}
	}
	if err := api.validator.Struct(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	res, err := api.routingService.ShortestPathFromCoords(r.Context(), request.OriginLat, request.OriginLon,
		request.DestinationLat, request.DestinationLon, request.Vehicle)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, envelope{"data": NewRouteResponse(res)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

func (api *routingAPI) optimizeWaypoints(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var request optimizeWaypointsRequest
	if err := readJSON(w, r, &request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	if err := api.validator.Struct(request); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}

	waypoints := make([]datastructure.NodeID, len(request.Waypoints))
	for i, id := range request.Waypoints {
		waypoints[i] = datastructure.NodeID(id)
	}

	res, err := api.routingService.OptimizeWaypoints(r.Context(), waypoints, vehicleParam(request.Vehicle))
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, envelope{"data": NewOptimizeResponse(res)}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

func (api *routingAPI) mapData(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit := defaultMapDataLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			api.BadRequestResponse(w, r, util.WrapErrorf(err, util.ErrBadParamInput, "limit must be a non-negative int"))
			return
		}
		limit = n
	}

	if err := writeJSON(w, http.StatusOK, envelope{"data": NewMapDataResponse(api.mapService.MapData(limit))}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

func (api *routingAPI) health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	nodes, edges := api.mapService.Stats()
	if err := writeJSON(w, http.StatusOK, envelope{"data": healthResponse{Status: "OK", Nodes: nodes, Edges: edges}}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}
