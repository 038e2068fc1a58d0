package controllers

import (
	"net/http"

	helper "github.com/Highlander2003/EcoFlow/pkg/http/router/routerhelper"
	"github.com/Highlander2003/EcoFlow/pkg/traffic"
	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

type sensorAPI struct {
	errorResponder
	sensorService SensorService
}

func NewSensorAPI(sensorService SensorService, log *zap.Logger) *sensorAPI {
	return &sensorAPI{
		errorResponder: errorResponder{log: log},
		sensorService:  sensorService,
	}
}

func (api *sensorAPI) Routes(group *helper.RouteGroup) {
	group.POST("/sensors", api.ingest)
	group.GET("/sensors", api.list)
}

// ingest same path as readings received over mqtt.
func (api *sensorAPI) ingest(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var reading traffic.SensorReading
	if err := readJSON(w, r, &reading); err != nil {
		api.BadRequestResponse(w, r, err)
		return
	}
	res, err := api.sensorService.Ingest(reading)
	if err != nil {
		api.getStatusCode(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusAccepted, envelope{"data": res}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}

func (api *sensorAPI) list(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := writeJSON(w, http.StatusOK, envelope{"data": api.sensorService.Sensors()}, nil); err != nil {
		api.ServerErrorResponse(w, r, err)
	}
}
