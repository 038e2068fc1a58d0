package traffic

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	"github.com/Highlander2003/EcoFlow/pkg/spatialindex"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	SensorStatusActive = "active"

	MeasurementSpeed = "speed"
)

type Location struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lon float64 `json:"lon" validate:"longitude"`
}

// SensorReading one message from a road sensor. Timestamp is unix seconds.
type SensorReading struct {
	SensorID     string             `json:"sensor_id" validate:"required"`
	Timestamp    float64            `json:"timestamp" validate:"required,gt=0"`
	Location     *Location          `json:"location" validate:"required"`
	Measurements map[string]float64 `json:"measurements" validate:"required"`
}

// SensorStatus registry entry of a sensor.
type SensorStatus struct {
	SensorID string      `json:"sensor_id"`
	LastSeen time.Time   `json:"last_seen"`
	Location Location    `json:"location"`
	Status   string      `json:"status"`
	Edge     *da.EdgeKey `json:"edge,omitempty"`
}

// IngestResult. Applied is false when the reading carries no speed or no edge lies within the
// snap radius.
type IngestResult struct {
	Edge       *da.EdgeKey `json:"edge,omitempty"`
	Congestion float64     `json:"congestion"`
	Applied    bool        `json:"applied"`
}

type Ingester interface {
	Ingest(source string, r SensorReading) (IngestResult, error)
}

// SensorSource buffers congestion derived from sensor speed readings until the next Poll.
type SensorSource struct {
	graph        *da.Graph
	index        *spatialindex.Rtree
	snapRadiusKm float64
	validate     *validator.Validate
	logger       *zap.Logger
	now          func() time.Time

	mu      sync.Mutex
	pending map[da.EdgeKey]float64
	sensors map[string]SensorStatus
}

func NewSensorSource(graph *da.Graph, index *spatialindex.Rtree, snapRadiusKm float64, logger *zap.Logger) *SensorSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SensorSource{
		graph:        graph,
		index:        index,
		snapRadiusKm: snapRadiusKm,
		validate:     validator.New(),
		logger:       logger,
		now:          time.Now,
		pending:      make(map[da.EdgeKey]float64),
		sensors:      make(map[string]SensorStatus),
	}
}

// CongestionFromSpeed max(0, 1 - speed/limit). 0 when limit <= 0 or speed < 0.
func CongestionFromSpeed(speed, limit float64) float64 {
	if limit <= 0 || speed < 0 {
		return 0
	}
	return util.Clamp(1-speed/limit, 0, 1)
}

// Ingest validates r, records the sensor and, when r has a speed measurement, snaps its location
// to the nearest edge and buffers the derived congestion. the latest reading per edge wins.
func (s *SensorSource) Ingest(source string, r SensorReading) (IngestResult, error) {
	if err := s.validate.Struct(r); err != nil {
		metrics.SensorReadings.WithLabelValues(source, "invalid").Inc()
		return IngestResult{}, util.WrapErrorf(err, util.ErrBadParamInput, "invalid sensor reading: %s", validationSummary(err))
	}

	status := SensorStatus{
		SensorID: r.SensorID,
		LastSeen: s.now(),
		Location: *r.Location,
		Status:   SensorStatusActive,
	}

	speed, hasSpeed := r.Measurements[MeasurementSpeed]
	if !hasSpeed {
		s.register(status)
		metrics.SensorReadings.WithLabelValues(source, "no_speed").Inc()
		return IngestResult{}, nil
	}

	match, ok := s.index.NearestEdge(r.Location.Lat, r.Location.Lon, s.snapRadiusKm)
	if !ok {
		s.register(status)
		metrics.SensorReadings.WithLabelValues(source, "unmatched").Inc()
		s.logger.Debug("no edge near sensor",
			zap.String("sensor_id", r.SensorID),
			zap.Float64("lat", r.Location.Lat),
			zap.Float64("lon", r.Location.Lon))
		return IngestResult{}, nil
	}

	key := match.Key
	congestion := CongestionFromSpeed(speed, s.graph.GetEdge(match.Edge).GetSpeed())
	status.Edge = &key

	s.mu.Lock()
	s.pending[key] = congestion
	s.sensors[r.SensorID] = status
	s.mu.Unlock()

	metrics.SensorReadings.WithLabelValues(source, "applied").Inc()
	return IngestResult{Edge: &key, Congestion: congestion, Applied: true}, nil
}

func (s *SensorSource) register(status SensorStatus) {
	s.mu.Lock()
	s.sensors[status.SensorID] = status
	s.mu.Unlock()
}

// Poll drains the buffered congestion values.
func (s *SensorSource) Poll(ctx context.Context) (map[da.EdgeKey]float64, error) {
	if util.StopConcurrentOperation(ctx) {
		return nil, util.WrapErrorf(ctx.Err(), util.ErrCancelled, "sensor poll cancelled")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = make(map[da.EdgeKey]float64)
	return out, nil
}

// Sensors registry snapshot sorted by sensor id.
func (s *SensorSource) Sensors() []SensorStatus {
	s.mu.Lock()
	out := make([]SensorStatus, 0, len(s.sensors))
	for _, st := range s.sensors {
		out = append(out, st)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

func validationSummary(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" "+fe.Tag())
	}
	return strings.Join(fields, ", ")
}
