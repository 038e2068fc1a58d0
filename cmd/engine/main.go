package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Highlander2003/EcoFlow/pkg/config"
	"github.com/Highlander2003/EcoFlow/pkg/engine"
	"github.com/Highlander2003/EcoFlow/pkg/http"
	"github.com/Highlander2003/EcoFlow/pkg/http/usecases"
	"github.com/Highlander2003/EcoFlow/pkg/logger"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	"github.com/Highlander2003/EcoFlow/pkg/spatialindex"
	"github.com/Highlander2003/EcoFlow/pkg/traffic"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configDir = flag.String("config", "./data/", "directory containing config.yaml")
	graphPath = flag.String("graph", "", "graph file (.graph, .json or .osm.pbf), overrides graph.path")
)

func main() {
	flag.Parse()
	if err := util.ReadConfig(*configDir); err != nil {
		panic(err)
	}
	log, err := logger.New()
	if err != nil {
		panic(err)
	}
	defer log.Sync() //nolint:errcheck // ignore

	if err := run(log); err != nil {
		log.Fatal("EcoFlow engine stopped with error", zap.Error(err))
	}
	log.Info("EcoFlow engine stopped")
}

func run(log *zap.Logger) error {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	if *graphPath != "" {
		cfg.Graph.Path = *graphPath
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graph, err := engine.NewFileLoader(cfg.Graph.Path, log).Load(ctx)
	if err != nil {
		return err
	}
	routingEngine, err := engine.NewEngine(graph, cfg, log)
	if err != nil {
		return err
	}

	rtree := spatialindex.NewRtree()
	rtree.Build(graph, log)

	metrics.RegisterDefault()

	sensors := traffic.NewSensorSource(graph, rtree, cfg.Spatial.SnapRadiusKm, log)
	var background []traffic.UpdateSource
	if cfg.Traffic.Simulated {
		seeded := traffic.SeedInitialTraffic(graph, cfg.Traffic.InitialMaxCongestion, cfg.Optimizer.Seed)
		log.Info("initial traffic seeded", zap.Int("edges", seeded))

		simulated, err := traffic.NewSimulatedSource(graph, cfg.Traffic.SampleFraction, cfg.Traffic.MaxCongestion, cfg.Optimizer.Seed)
		if err != nil {
			return err
		}
		background = append(background, simulated)
	}
	updater, err := traffic.NewUpdater(graph, traffic.NewSensorOverrideSource(sensors, background...), cfg.Traffic.UpdatePeriod, log)
	if err != nil {
		return err
	}

	// one traffic cycle before serving
	if applied, err := updater.RunOnce(ctx); err != nil {
		log.Warn("traffic warm-up failed", zap.Error(err))
	} else {
		log.Info("traffic warm-up applied", zap.Int("edges", applied))
	}

	routingService, err := usecases.NewRoutingService(log, routingEngine, rtree, cfg.Spatial.SnapRadiusKm, cfg.HTTP.CacheSize)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return updater.Run(gctx)
	})
	if cfg.MQTT.Enabled {
		subscriber := traffic.NewMQTTSubscriber(cfg.MQTT, sensors, log)
		g.Go(func() error {
			return subscriber.Run(gctx)
		})
	}

	http.NewServer(log).
		Use(cfg.HTTP, routingService, usecases.NewMapService(graph), usecases.NewSensorService(sensors)).
		Run(gctx, g)

	return g.Wait()
}
