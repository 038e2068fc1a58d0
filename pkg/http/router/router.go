package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg/config"
	"github.com/Highlander2003/EcoFlow/pkg/http/router/controllers"
	helper "github.com/Highlander2003/EcoFlow/pkg/http/router/routerhelper"
	http_server "github.com/Highlander2003/EcoFlow/pkg/http/server"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	"github.com/julienschmidt/httprouter"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	log *zap.Logger
	cfg config.HTTPConfig

	routingService controllers.RoutingService
	mapService     controllers.MapService
	sensorService  controllers.SensorService
}

func NewAPI(log *zap.Logger, cfg config.HTTPConfig, routingService controllers.RoutingService,
	mapService controllers.MapService, sensorService controllers.SensorService) *API {
	return &API{
		log:            log,
		cfg:            cfg,
		routingService: routingService,
		mapService:     mapService,
		sensorService:  sensorService,
	}
}

// Handler the full middleware chain around every route.
func (api *API) Handler() http.Handler {
	router := httprouter.New()

	corsHandler := cors.New(cors.Options{ //nolint:gocritic // ignore
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, //nolint:mnd // ignore
	})

	root := helper.NewRouteGroup(router, "/")
	root.Handler(http.MethodGet, "/metrics", metrics.Handler())

	routingRoutes := controllers.New(api.routingService, api.mapService, api.log)
	routingRoutes.HealthRoutes(root)

	group := helper.NewRouteGroup(router, "/api")
	routingRoutes.Routes(group)
	if api.sensorService != nil {
		controllers.NewSensorAPI(api.sensorService, api.log).Routes(group)
	}

	mwChain := []alice.Constructor{corsHandler.Handler, api.recoverPanic, RequestID, RealIP, Heartbeat("healthz"),
		Logger(api.log), Instrument, EnforceJSONHandler}
	if api.cfg.RateLimit > 0 {
		mwChain = append(mwChain, Limit(api.cfg.RateLimit, api.cfg.RateBurst))
	}
	if api.cfg.Timeout > 0 {
		mwChain = append(mwChain, Timeout(api.cfg.Timeout))
	}
	return alice.New(mwChain...).Then(router)
}

// Run serves until ctx is done, then shuts the server down gracefully.
func (api *API) Run(ctx context.Context) error {
	srv := http_server.New(ctx, api.Handler(), http_server.Config{Port: api.cfg.Port, Timeout: api.cfg.Timeout})
	api.log.Info("API run", zap.Int("port", api.cfg.Port))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		api.log.Error("HTTP server stopped", zap.Error(err))
		return err
	case <-ctx.Done():
		api.log.Info("context canceled, shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
