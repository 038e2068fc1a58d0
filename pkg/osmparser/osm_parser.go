package osmparser

import (
	"context"
	"io"
	"os"
	"runtime"
	"sort"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/geo"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"go.uber.org/zap"
)

type nodeCoord struct {
	lat float64
	lon float64
}

type osmWay struct {
	id        int64
	nodes     []int64
	direction direction
	speed     float64
	roadClass pkg.RoadClass
}

// OsmParser builds the road graph from an .osm.pbf extract in two passes: the first collects the
// nodes referenced by routable ways, the second reads their coordinates and the ways themselves.
type OsmParser struct {
	wayNodeMap      map[int64]struct{}
	acceptedNodeMap map[int64]nodeCoord
	ways            []osmWay
	logger          *zap.Logger
}

func NewOSMParser(logger *zap.Logger) *OsmParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OsmParser{
		wayNodeMap:      make(map[int64]struct{}),
		acceptedNodeMap: make(map[int64]nodeCoord),
		logger:          logger,
	}
}

func (p *OsmParser) Parse(ctx context.Context, mapFile string) (*datastructure.Graph, error) {
	f, err := os.Open(mapFile)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "open %s", mapFile)
	}
	defer f.Close()

	countWays := 0
	err = p.scan(ctx, f, true, func(o osm.Object) {
		way, ok := o.(*osm.Way)
		if !ok {
			return
		}
		if p.scanWay(way) {
			countWays++
			if countWays%50000 == 0 {
				p.logger.Info("reading openstreetmap ways...", zap.Int("ways", countWays))
			}
		}
	})
	if err != nil {
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "rewind %s", mapFile)
	}

	err = p.scan(ctx, f, false, func(o osm.Object) {
		switch v := o.(type) {
		case *osm.Node:
			p.processNode(v)
		case *osm.Way:
			p.processWay(v)
		}
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info("openstreetmap extract scanned",
		zap.Int("ways", len(p.ways)),
		zap.Int("nodes", len(p.acceptedNodeMap)))
	return p.BuildGraph()
}

// scan must not be parallel: the handlers mutate the parser maps.
func (p *OsmParser) scan(ctx context.Context, r io.Reader, skipNodes bool, handle func(o osm.Object)) error {
	scanner := osmpbf.New(ctx, r, runtime.GOMAXPROCS(-1))
	defer scanner.Close()
	scanner.SkipNodes = skipNodes
	scanner.SkipRelations = true

	for scanner.Scan() {
		handle(scanner.Object())
	}
	if util.StopConcurrentOperation(ctx) {
		return util.WrapErrorf(ctx.Err(), util.ErrCancelled, "osm scan cancelled")
	}
	if err := scanner.Err(); err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "scan osm pbf")
	}
	return nil
}

// scanWay marks the nodes of an accepted way.
func (p *OsmParser) scanWay(way *osm.Way) bool {
	if !acceptOsmWay(way) {
		return false
	}
	for _, n := range way.Nodes {
		p.wayNodeMap[int64(n.ID)] = struct{}{}
	}
	return true
}

func (p *OsmParser) processNode(node *osm.Node) {
	if _, ok := p.wayNodeMap[int64(node.ID)]; !ok {
		return
	}
	p.acceptedNodeMap[int64(node.ID)] = nodeCoord{lat: node.Lat, lon: node.Lon}
}

func (p *OsmParser) processWay(way *osm.Way) {
	if !acceptOsmWay(way) {
		return
	}
	rc := pkg.GetRoadClass(way.Tags.Find("highway"))
	speed, ok := parseMaxSpeed(way.Tags.Find("maxspeed"))
	if !ok {
		speed = rc.DefaultSpeedKph()
	}

	nodes := make([]int64, 0, len(way.Nodes))
	for _, n := range way.Nodes {
		nodes = append(nodes, int64(n.ID))
	}
	p.ways = append(p.ways, osmWay{
		id:        int64(way.ID),
		nodes:     nodes,
		direction: wayDirection(way),
		speed:     speed,
		roadClass: rc,
	})
}

// BuildGraph turns every consecutive node pair of the collected ways into an edge (two for
// bidirectional ways). pairs with a missing coordinate or a repeated node are skipped. a pair
// shared by several ways becomes parallel edges.
func (p *OsmParser) BuildGraph() (*datastructure.Graph, error) {
	b := datastructure.NewGraphBuilder()

	used := make(map[int64]struct{}, len(p.acceptedNodeMap))
	for _, w := range p.ways {
		for _, id := range w.nodes {
			if _, ok := p.acceptedNodeMap[id]; ok {
				used[id] = struct{}{}
			}
		}
	}
	ids := make([]int64, 0, len(used))
	for id := range used {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		c := p.acceptedNodeMap[id]
		if err := b.AddNode(datastructure.NodeID(id), c.lat, c.lon); err != nil {
			return nil, err
		}
	}

	numEdges := 0
	for _, w := range p.ways {
		for i := 1; i < len(w.nodes); i++ {
			from, to := w.nodes[i-1], w.nodes[i]
			if from == to {
				continue
			}
			fc, okFrom := p.acceptedNodeMap[from]
			tc, okTo := p.acceptedNodeMap[to]
			if !okFrom || !okTo {
				continue
			}
			length := geo.CalculateHaversineDistance(fc.lat, fc.lon, tc.lat, tc.lon) * 1000

			if w.direction != backwardOnly {
				if _, err := b.AddEdge(datastructure.NodeID(from), datastructure.NodeID(to), length, w.speed, w.roadClass); err != nil {
					return nil, err
				}
				numEdges++
			}
			if w.direction != forwardOnly {
				if _, err := b.AddEdge(datastructure.NodeID(to), datastructure.NodeID(from), length, w.speed, w.roadClass); err != nil {
					return nil, err
				}
				numEdges++
			}
		}
	}

	p.logger.Info("road graph built", zap.Int("nodes", len(ids)), zap.Int("edges", numEdges))
	return b.Build(), nil
}
