package datastructure

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/dsnet/compress/bzip2"
)

// WriteGraph writes the graph as bzip2-compressed text:
//
//	<numNodes> <numEdges>
//	<id> <lat> <lon>                                   (numNodes lines)
//	<from> <to> <index> <length> <speed> <roadClass>   (numEdges lines)
func (g *Graph) WriteGraph(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}

	if err := g.writeGraph(bz); err != nil {
		bz.Close()
		return err
	}
	return bz.Close()
}

func (g *Graph) writeGraph(out io.Writer) error {
	w := bufio.NewWriter(out)

	fmt.Fprintf(w, "%d %d\n", len(g.nodes), len(g.edges))

	for _, n := range g.nodes {
		latF := strconv.FormatFloat(n.lat, 'f', -1, 64)
		lonF := strconv.FormatFloat(n.lon, 'f', -1, 64)
		fmt.Fprintf(w, "%d %s %s\n", n.id, latF, lonF)
	}

	for _, e := range g.edges {
		lengthF := strconv.FormatFloat(e.length, 'f', -1, 64)
		speedF := strconv.FormatFloat(e.speed, 'f', -1, 64)
		fmt.Fprintf(w, "%d %d %d %s %s %d\n",
			e.key.From, e.key.To, e.key.Index, lengthF, speedF, e.roadClass)
	}

	return w.Flush()
}

func fields(s string) []string {
	return strings.Fields(s)
}

func ReadGraph(filename string) (*Graph, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}
	defer bz.Close()

	return readGraph(bz)
}

func readGraph(in io.Reader) (*Graph, error) {
	br := bufio.NewReader(in)

	line, err := util.ReadLine(br)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "read graph header")
	}

	tokens := fields(line)
	if len(tokens) != 2 {
		return nil, util.WrapErrorf(nil, util.ErrInvalidGraph, "expected 2 header fields, got %d", len(tokens))
	}
	numNodes, err := strconv.Atoi(tokens[0])
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "parse node count")
	}
	numEdges, err := strconv.Atoi(tokens[1])
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "parse edge count")
	}

	b := NewGraphBuilder()
	for i := 0; i < numNodes; i++ {
		nodeLine, err := util.ReadLine(br)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "read node %d", i)
		}
		if err := parseNode(b, nodeLine); err != nil {
			return nil, err
		}
	}

	for i := 0; i < numEdges; i++ {
		edgeLine, err := util.ReadLine(br)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "read edge %d", i)
		}
		if err := parseEdge(b, edgeLine); err != nil {
			return nil, err
		}
	}

	return b.Build(), nil
}

func parseNode(b *GraphBuilder, line string) error {
	tokens := fields(line)
	if len(tokens) != 3 {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "expected 3 node fields, got %d", len(tokens))
	}
	id, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse node id")
	}
	lat, err := util.StringToFloat64(tokens[1])
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse node lat")
	}
	lon, err := util.StringToFloat64(tokens[2])
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse node lon")
	}
	return b.AddNode(NodeID(id), lat, lon)
}

func parseEdge(b *GraphBuilder, line string) error {
	tokens := fields(line)
	if len(tokens) != 6 {
		return util.WrapErrorf(nil, util.ErrInvalidGraph, "expected 6 edge fields, got %d", len(tokens))
	}
	from, err := strconv.ParseInt(tokens[0], 10, 64)
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse edge tail")
	}
	to, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse edge head")
	}
	index, err := strconv.Atoi(tokens[2])
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse edge index")
	}
	length, err := util.StringToFloat64(tokens[3])
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse edge length")
	}
	speed, err := util.StringToFloat64(tokens[4])
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse edge speed")
	}
	rc, err := strconv.ParseUint(tokens[5], 10, 8)
	if err != nil {
		return util.WrapErrorf(err, util.ErrInvalidGraph, "parse edge road class")
	}
	return b.AddEdgeWithKey(NewEdgeKey(NodeID(from), NodeID(to), index), length, speed, pkg.RoadClass(rc))
}

type jsonNode struct {
	ID  int64   `json:"id"`
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type jsonEdge struct {
	From     int64   `json:"from"`
	To       int64   `json:"to"`
	Key      *int    `json:"key,omitempty"`
	Length   float64 `json:"length"`
	SpeedKph float64 `json:"speed_kph"`
	Highway  string  `json:"highway"`
}

type jsonGraph struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

// LoadGraphJSON reads {"nodes":[{id,lat,lon}],"edges":[{from,to,key,length,speed_kph,highway}]}.
// a missing key takes the next free parallel index; a missing or zero speed falls back to the
// default speed of the highway class.
func LoadGraphJSON(r io.Reader) (*Graph, error) {
	var raw jsonGraph
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, util.WrapErrorf(err, util.ErrInvalidGraph, "decode graph json")
	}

	b := NewGraphBuilder()
	for _, n := range raw.Nodes {
		if err := b.AddNode(NodeID(n.ID), n.Lat, n.Lon); err != nil {
			return nil, err
		}
	}

	for _, e := range raw.Edges {
		rc := pkg.GetRoadClass(e.Highway)
		speed := e.SpeedKph
		if speed == 0 {
			speed = rc.DefaultSpeedKph()
		}
		if e.Key == nil {
			if _, err := b.AddEdge(NodeID(e.From), NodeID(e.To), e.Length, speed, rc); err != nil {
				return nil, err
			}
			continue
		}
		if err := b.AddEdgeWithKey(NewEdgeKey(NodeID(e.From), NodeID(e.To), *e.Key), e.Length, speed, rc); err != nil {
			return nil, err
		}
	}
	return b.Build(), nil
}
