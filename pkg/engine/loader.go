package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/osmparser"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"go.uber.org/zap"
)

type GraphLoader interface {
	Load(ctx context.Context) (*datastructure.Graph, error)
}

// FileLoader picks the graph codec from the file extension:
// .json (node/edge lists), .osm.pbf / .pbf (openstreetmap extract), anything else the
// bzip2 text format written by the preprocessor.
type FileLoader struct {
	path   string
	logger *zap.Logger
}

func NewFileLoader(path string, logger *zap.Logger) *FileLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLoader{path: path, logger: logger}
}

func (l *FileLoader) Load(ctx context.Context) (*datastructure.Graph, error) {
	l.logger.Info("reading graph", zap.String("path", l.path))

	var (
		g   *datastructure.Graph
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(l.path)); ext {
	case ".json":
		g, err = l.loadJSON()
	case ".pbf":
		g, err = osmparser.NewOSMParser(l.logger).Parse(ctx, l.path)
	default:
		g, err = datastructure.ReadGraph(l.path)
	}
	if err != nil {
		return nil, err
	}

	l.logger.Info("graph loaded",
		zap.Int("nodes", g.NumberOfNodes()),
		zap.Int("edges", g.NumberOfEdges()))
	return g, nil
}

func (l *FileLoader) loadJSON() (*datastructure.Graph, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "open %s", l.path)
	}
	defer f.Close()
	return datastructure.LoadGraphJSON(f)
}
