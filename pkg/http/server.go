package http

import (
	"context"

	"github.com/Highlander2003/EcoFlow/pkg/config"
	http_router "github.com/Highlander2003/EcoFlow/pkg/http/router"
	"github.com/Highlander2003/EcoFlow/pkg/http/router/controllers"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	log *zap.Logger
	api *http_router.API
}

func NewServer(log *zap.Logger) *Server {
	return &Server{log: log}
}

// Use wires the services into the router.
func (s *Server) Use(
	cfg config.HTTPConfig,
	routingService controllers.RoutingService,
	mapService controllers.MapService,
	sensorService controllers.SensorService,
) *Server {
	s.api = http_router.NewAPI(s.log, cfg, routingService, mapService, sensorService)
	return s
}

// Run serves the API on g until ctx is done.
func (s *Server) Run(ctx context.Context, g *errgroup.Group) {
	g.Go(func() error {
		return s.api.Run(ctx)
	})
}
