package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/Highlander2003/EcoFlow/pkg/logger"
	"github.com/Highlander2003/EcoFlow/pkg/osmparser"
	"go.uber.org/zap"
)

var (
	input    = flag.String("input", "./data/city.osm.pbf", "OpenStreetMap .osm.pbf extract")
	output   = flag.String("output", "./data/city.graph", "output graph file")
	pruneSCC = flag.Bool("largest_scc", true, "keep only the largest strongly connected component")
)

func main() {
	flag.Parse()
	log, err := logger.New()
	if err != nil {
		panic(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graph, err := osmparser.NewOSMParser(log).Parse(ctx, *input)
	if err != nil {
		log.Fatal("parse osm", zap.String("input", *input), zap.Error(err))
	}
	if *pruneSCC {
		nodes := graph.NumberOfNodes()
		graph = graph.LargestComponent()
		log.Info("kept largest strongly connected component",
			zap.Int("nodes", graph.NumberOfNodes()),
			zap.Int("dropped_nodes", nodes-graph.NumberOfNodes()))
	}

	if err := graph.WriteGraph(*output); err != nil {
		log.Fatal("write graph", zap.String("output", *output), zap.Error(err))
	}

	log.Info("preprocessing completed",
		zap.String("output", *output),
		zap.Int("nodes", graph.NumberOfNodes()),
		zap.Int("edges", graph.NumberOfEdges()))
}
