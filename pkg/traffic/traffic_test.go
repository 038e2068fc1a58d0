package traffic

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/config"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/spatialindex"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// testGraph: road 1->2 along the equator (50 kph) and 2->3 going north (30 kph).
func testGraph(t *testing.T) *da.Graph {
	t.Helper()
	b := da.NewGraphBuilder()
	require.NoError(t, b.AddNode(1, 0, 0))
	require.NoError(t, b.AddNode(2, 0, 0.01))
	require.NoError(t, b.AddNode(3, 0.01, 0.01))
	_, err := b.AddEdge(1, 2, 1200, 50, pkg.PRIMARY)
	require.NoError(t, err)
	_, err = b.AddEdge(2, 3, 1200, 30, pkg.RESIDENTIAL)
	require.NoError(t, err)
	return b.Build()
}

type stubSource struct {
	updates map[da.EdgeKey]float64
	err     error
	panics  bool
	calls   int
	mu      sync.Mutex
}

func (s *stubSource) Poll(context.Context) (map[da.EdgeKey]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panics {
		panic("sensor backend exploded")
	}
	return s.updates, s.err
}

func (s *stubSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

var (
	key12 = da.NewEdgeKey(1, 2, 0)
	key23 = da.NewEdgeKey(2, 3, 0)
)

func TestUpdaterRunOnce(t *testing.T) {
	testCases := []struct {
		name        string
		source      *stubSource
		wantApplied int
		wantErr     error
		wantEpoch   uint64
		want12      float64
	}{
		{
			name:        "applies updates",
			source:      &stubSource{updates: map[da.EdgeKey]float64{key12: 0.4}},
			wantApplied: 1,
			wantEpoch:   1,
			want12:      0.4,
		},
		{
			name:   "empty mapping is a no-op",
			source: &stubSource{updates: map[da.EdgeKey]float64{}},
		},
		{
			name:    "poll error",
			source:  &stubSource{err: util.WrapErrorf(nil, util.ErrInternalServerError, "down")},
			wantErr: util.ErrInternalServerError,
		},
		{
			name: "partial updates with error still applied",
			source: &stubSource{
				updates: map[da.EdgeKey]float64{key12: 0.2},
				err:     util.WrapErrorf(nil, util.ErrInternalServerError, "one source failed"),
			},
			wantErr:     util.ErrInternalServerError,
			wantApplied: 1,
			wantEpoch:   1,
			want12:      0.2,
		},
		{
			name:    "panic is recovered",
			source:  &stubSource{panics: true},
			wantErr: util.ErrInternalServerError,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g := testGraph(t)
			u, err := NewUpdater(g, tc.source, time.Minute, zaptest.NewLogger(t))
			require.NoError(t, err)

			applied, err := u.RunOnce(context.Background())
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tc.wantApplied, applied)
			assert.Equal(t, tc.wantEpoch, g.Traffic().Epoch())
			assert.Equal(t, tc.want12, g.GetCongestion(key12))
		})
	}
}

func TestNewUpdaterRejectsPeriod(t *testing.T) {
	_, err := NewUpdater(testGraph(t), &stubSource{}, 0, nil)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
}

func TestUpdaterRunStopsOnCancel(t *testing.T) {
	g := testGraph(t)
	src := &stubSource{err: errors.New("flaky")}
	u, err := NewUpdater(g, src, 5*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- u.Run(ctx) }()

	require.Eventually(t, func() bool { return src.Calls() >= 3 }, time.Second, 5*time.Millisecond,
		"errors must not stop the loop")
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("updater did not stop")
	}
}

func TestSimulatedSource(t *testing.T) {
	g := testGraph(t)

	_, err := NewSimulatedSource(g, 0, 0.9, 1)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)
	_, err = NewSimulatedSource(g, 0.1, 1.5, 1)
	assert.ErrorIs(t, err, util.ErrInvalidConfig)

	src, err := NewSimulatedSource(g, 0.1, 0.9, 42)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		updates, err := src.Poll(context.Background())
		require.NoError(t, err)
		require.Len(t, updates, 1, "at least one edge is sampled")
		for k, v := range updates {
			assert.Contains(t, []da.EdgeKey{key12, key23}, k)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.Less(t, v, 0.9)
		}
	}

	all, err := NewSimulatedSource(g, 1, 0.5, 7)
	require.NoError(t, err)
	updates, err := all.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, updates, 2)
}

func TestSampleIndexesDistinct(t *testing.T) {
	rd := newRand(3)
	for _, k := range []int{1, 5, 50, 100, 150} {
		got := sampleIndexes(rd, 100, k)
		seen := make(map[int]bool)
		for _, v := range got {
			assert.False(t, seen[v])
			assert.True(t, v >= 0 && v < 100)
			seen[v] = true
		}
		assert.Len(t, got, util.MinInt(k, 100))
	}
}

func TestSeedInitialTraffic(t *testing.T) {
	g := testGraph(t)
	assert.Equal(t, 2, SeedInitialTraffic(g, 0.3, 11))
	for _, k := range []da.EdgeKey{key12, key23} {
		c := g.GetCongestion(k)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.Less(t, c, 0.3)
	}
	assert.Equal(t, uint64(1), g.Traffic().Epoch())
}

func newSensorSource(t *testing.T, g *da.Graph) *SensorSource {
	t.Helper()
	rt := spatialindex.NewRtree()
	rt.Build(g, nil)
	return NewSensorSource(g, rt, 0.5, zaptest.NewLogger(t))
}

func reading(id string, lat, lon float64, measurements map[string]float64) SensorReading {
	return SensorReading{
		SensorID:     id,
		Timestamp:    1700000000,
		Location:     &Location{Lat: lat, Lon: lon},
		Measurements: measurements,
	}
}

func TestCongestionFromSpeed(t *testing.T) {
	testCases := []struct {
		speed, limit, want float64
	}{
		{25, 50, 0.5},
		{0, 50, 1},
		{60, 50, 0},
		{-1, 50, 0},
		{10, 0, 0},
	}
	for _, tc := range testCases {
		assert.InDelta(t, tc.want, CongestionFromSpeed(tc.speed, tc.limit), 1e-9)
	}
}

func TestSensorSourceIngest(t *testing.T) {
	g := testGraph(t)
	s := newSensorSource(t, g)

	testCases := []struct {
		name        string
		reading     SensorReading
		wantErr     error
		wantApplied bool
		wantKey     da.EdgeKey
		wantCong    float64
	}{
		{
			name:        "speed near the primary road",
			reading:     reading("traffic_1", 0.0005, 0.005, map[string]float64{"speed": 25}),
			wantApplied: true,
			wantKey:     key12,
			wantCong:    0.5,
		},
		{
			name:        "speed near the residential road",
			reading:     reading("traffic_2", 0.005, 0.0105, map[string]float64{"speed": 6}),
			wantApplied: true,
			wantKey:     key23,
			wantCong:    0.8,
		},
		{
			name:    "co2 only",
			reading: reading("pollution_1", 0.0005, 0.005, map[string]float64{"co2": 410}),
		},
		{
			name:    "far from every road",
			reading: reading("traffic_3", 0.5, 0.5, map[string]float64{"speed": 10}),
		},
		{
			name:    "missing sensor id",
			reading: reading("", 0, 0.005, map[string]float64{"speed": 10}),
			wantErr: util.ErrBadParamInput,
		},
		{
			name:    "bad latitude",
			reading: reading("traffic_4", 123, 0.005, map[string]float64{"speed": 10}),
			wantErr: util.ErrBadParamInput,
		},
		{
			name:    "missing measurements",
			reading: reading("traffic_5", 0, 0.005, nil),
			wantErr: util.ErrBadParamInput,
		},
		{
			name:    "missing location",
			reading: SensorReading{SensorID: "traffic_6", Timestamp: 1, Measurements: map[string]float64{}},
			wantErr: util.ErrBadParamInput,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := s.Ingest("test", tc.reading)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantApplied, res.Applied)
			if tc.wantApplied {
				require.NotNil(t, res.Edge)
				assert.Equal(t, tc.wantKey, *res.Edge)
				assert.InDelta(t, tc.wantCong, res.Congestion, 1e-9)
			}
		})
	}

	sensors := s.Sensors()
	ids := make([]string, 0, len(sensors))
	for _, st := range sensors {
		ids = append(ids, st.SensorID)
		assert.Equal(t, SensorStatusActive, st.Status)
	}
	assert.Equal(t, []string{"pollution_1", "traffic_1", "traffic_2", "traffic_3"}, ids)

	updates, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[da.EdgeKey]float64{key12: 0.5, key23: 0.8}, roundAll(updates))

	updates, err = s.Poll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, updates, "poll drains the buffer")
}

func TestSensorSourceLatestReadingWins(t *testing.T) {
	s := newSensorSource(t, testGraph(t))

	_, err := s.Ingest("test", reading("a", 0.0005, 0.005, map[string]float64{"speed": 40}))
	require.NoError(t, err)
	_, err = s.Ingest("test", reading("b", 0.0004, 0.006, map[string]float64{"speed": 10}))
	require.NoError(t, err)

	updates, err := s.Poll(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.8, updates[key12], 1e-9)
}

func roundAll(m map[da.EdgeKey]float64) map[da.EdgeKey]float64 {
	out := make(map[da.EdgeKey]float64, len(m))
	for k, v := range m {
		out[k] = util.RoundFloat(v, 6)
	}
	return out
}

func TestMultiSource(t *testing.T) {
	ok := &stubSource{updates: map[da.EdgeKey]float64{key12: 0.3}}
	failing := &stubSource{err: errors.New("broker down")}
	late := &stubSource{updates: map[da.EdgeKey]float64{key12: 0.6, key23: 0.1}}

	updates, err := NewMultiSource(ok, failing).Poll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, map[da.EdgeKey]float64{key12: 0.3}, updates)

	updates, err = NewMultiSource(ok, late).Poll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[da.EdgeKey]float64{key12: 0.6, key23: 0.1}, updates)

	partial := &stubSource{updates: map[da.EdgeKey]float64{key23: 0.4}, err: errors.New("one sensor timed out")}
	updates, err = NewMultiSource(ok, partial).Poll(context.Background())
	assert.Error(t, err)
	assert.Equal(t, map[da.EdgeKey]float64{key12: 0.3, key23: 0.4}, updates)
}

func TestSensorReadingsOverrideSimulatedTraffic(t *testing.T) {
	g := testGraph(t)
	sensors := newSensorSource(t, g)
	simulated, err := NewSimulatedSource(g, 1.0, 0.2, 9)
	require.NoError(t, err)

	res, err := sensors.Ingest("http", reading("traffic_1", 0.0005, 0.005, map[string]float64{"speed": 10}))
	require.NoError(t, err)
	require.True(t, res.Applied)

	updates, err := NewSensorOverrideSource(sensors, simulated).Poll(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.8, updates[key12], 1e-9)
	assert.Contains(t, updates, key23)
	assert.LessOrEqual(t, updates[key23], 0.2)
}

type recordingIngester struct {
	readings []SensorReading
}

func (r *recordingIngester) Ingest(_ string, reading SensorReading) (IngestResult, error) {
	r.readings = append(r.readings, reading)
	return IngestResult{}, nil
}

func TestMQTTHandlePayload(t *testing.T) {
	sink := &recordingIngester{}
	sub := NewMQTTSubscriber(config.MQTTConfig{Topic: "ecoflow/sensors/#", QoS: 1}, sink, zaptest.NewLogger(t))

	sub.handlePayload("ecoflow/sensors/t1", []byte(`{"sensor_id":"t1","timestamp":1700000000,`+
		`"location":{"lat":0.001,"lon":0.002},"measurements":{"speed":12.5}}`))
	sub.handlePayload("ecoflow/sensors/t2", []byte(`{not json`))

	require.Len(t, sink.readings, 1)
	got := sink.readings[0]
	assert.Equal(t, "t1", got.SensorID)
	assert.Equal(t, 0.002, got.Location.Lon)
	assert.Equal(t, 12.5, got.Measurements[MeasurementSpeed])
}

func TestMQTTPayloadReachesSensorSource(t *testing.T) {
	g := testGraph(t)
	s := newSensorSource(t, g)
	sub := NewMQTTSubscriber(config.MQTTConfig{}, s, zaptest.NewLogger(t))

	sub.handlePayload("ecoflow/sensors/t1", []byte(`{"sensor_id":"t1","timestamp":1700000000,`+
		`"location":{"lat":0.0005,"lon":0.005},"measurements":{"speed":0}}`))

	u, err := NewUpdater(g, s, time.Minute, nil)
	require.NoError(t, err)
	applied, err := u.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1.0, g.GetCongestion(key12))
}

func TestMQTTRunToleratesUnreachableBroker(t *testing.T) {
	sub := NewMQTTSubscriber(config.MQTTConfig{
		Broker:   "tcp://127.0.0.1:1",
		Topic:    "ecoflow/sensors/#",
		ClientID: "ecoflow-test",
	}, &recordingIngester{}, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- sub.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
		assert.ErrorIs(t, ctx.Err(), context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("mqtt subscriber did not stop after cancellation")
	}
}
