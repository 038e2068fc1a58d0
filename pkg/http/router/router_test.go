package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Highlander2003/EcoFlow/pkg"
	"github.com/Highlander2003/EcoFlow/pkg/config"
	da "github.com/Highlander2003/EcoFlow/pkg/datastructure"
	"github.com/Highlander2003/EcoFlow/pkg/engine"
	helper "github.com/Highlander2003/EcoFlow/pkg/http/router/routerhelper"
	"github.com/Highlander2003/EcoFlow/pkg/http/usecases"
	"github.com/Highlander2003/EcoFlow/pkg/metrics"
	"github.com/Highlander2003/EcoFlow/pkg/spatialindex"
	"github.com/Highlander2003/EcoFlow/pkg/traffic"
	"github.com/Highlander2003/EcoFlow/pkg/util"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type routeBody struct {
	ID     string       `json:"id"`
	Nodes  []da.NodeID  `json:"nodes"`
	Edges  []da.EdgeKey `json:"edges"`
	Path   string       `json:"path"`
	Cached bool         `json:"cached"`
}

// newTestHandler: 1->2->3->4 chain, a direct 1->4 edge and an isolated node 5.
func newTestHandler(t *testing.T) (http.Handler, *da.Graph) {
	t.Helper()
	b := da.NewGraphBuilder()
	require.NoError(t, b.AddNode(1, 0, 0))
	require.NoError(t, b.AddNode(2, 0.003, 0.003))
	require.NoError(t, b.AddNode(3, 0.003, 0.011))
	require.NoError(t, b.AddNode(4, 0, 0.015))
	require.NoError(t, b.AddNode(5, 0.02, 0.02))
	for _, e := range []struct {
		from, to      da.NodeID
		length, speed float64
	}{
		{1, 2, 500, 40},
		{2, 3, 1500, 30},
		{3, 4, 800, 50},
		{1, 4, 2000, 60},
	} {
		_, err := b.AddEdge(e.from, e.to, e.length, e.speed, pkg.RESIDENTIAL)
		require.NoError(t, err)
	}
	graph := b.Build()

	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	cfg.Optimizer.PopulationSize = 12
	cfg.Optimizer.Generations = 3
	cfg.Optimizer.Seed = 7

	log := zaptest.NewLogger(t)
	eng, err := engine.NewEngine(graph, cfg, log)
	require.NoError(t, err)

	rt := spatialindex.NewRtree()
	rt.Build(graph, log)

	routingService, err := usecases.NewRoutingService(log, eng, rt, cfg.Spatial.SnapRadiusKm, 16)
	require.NoError(t, err)
	sensors := traffic.NewSensorSource(graph, rt, cfg.Spatial.SnapRadiusKm, log)

	metrics.RegisterDefault()
	api := NewAPI(log, cfg.HTTP, routingService, usecases.NewMapService(graph), usecases.NewSensorService(sensors))
	return api.Handler(), graph
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, apiResponse) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp apiResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestComputeRoutes(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantCode   string
		wantNodes  []da.NodeID
	}{
		{
			name:       "node ids",
			target:     "/api/computeRoutes?origin=1&destination=4&vehicle=bus",
			wantStatus: http.StatusOK,
			wantNodes:  []da.NodeID{1, 4},
		},
		{
			name:       "coordinates snapped to nearest nodes",
			target:     "/api/computeRoutes?origin_lat=0.0001&origin_lon=0.0001&destination_lat=0.0001&destination_lon=0.0149",
			wantStatus: http.StatusOK,
			wantNodes:  []da.NodeID{1, 4},
		},
		{
			name:       "same origin and destination",
			target:     "/api/computeRoutes?origin=2&destination=2",
			wantStatus: http.StatusOK,
			wantNodes:  []da.NodeID{2},
		},
		{
			name:       "unknown node",
			target:     "/api/computeRoutes?origin=1&destination=99",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "unreachable destination",
			target:     "/api/computeRoutes?origin=1&destination=5",
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "no_path",
		},
		{
			name:       "unknown vehicle",
			target:     "/api/computeRoutes?origin=1&destination=4&vehicle=rocket",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
		{
			name:       "malformed destination",
			target:     "/api/computeRoutes?origin=1&destination=abc",
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
		{
			name:       "latitude out of range",
			target:     "/api/computeRoutes?origin_lat=91&origin_lon=0&destination_lat=0&destination_lon=0",
			wantStatus: http.StatusBadRequest,
			wantCode:   "bad_request",
		},
		{
			name:       "no road near coordinates",
			target:     "/api/computeRoutes?origin_lat=10&origin_lon=10&destination_lat=0&destination_lon=0",
			wantStatus: http.StatusNotFound,
			wantCode:   "not_found",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := do(t, h, http.MethodGet, tc.target, "")
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			if tc.wantCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tc.wantCode, resp.Error.Code)
				return
			}
			var route routeBody
			require.NoError(t, json.Unmarshal(resp.Data, &route))
			assert.Equal(t, tc.wantNodes, route.Nodes)
			assert.NotEmpty(t, route.ID)
			assert.Len(t, route.Edges, len(tc.wantNodes)-1)
		})
	}
}

func TestComputeRoutesCacheFollowsTrafficEpoch(t *testing.T) {
	h, graph := newTestHandler(t)
	target := "/api/computeRoutes?origin=1&destination=4&vehicle=bus"

	decode := func() routeBody {
		rec, resp := do(t, h, http.MethodGet, target, "")
		require.Equal(t, http.StatusOK, rec.Code)
		var route routeBody
		require.NoError(t, json.Unmarshal(resp.Data, &route))
		return route
	}

	first := decode()
	assert.False(t, first.Cached)
	second := decode()
	assert.True(t, second.Cached)
	assert.Equal(t, first.Nodes, second.Nodes)

	graph.ApplyTrafficUpdate(map[da.EdgeKey]float64{da.NewEdgeKey(1, 4, 0): 0.9})
	third := decode()
	assert.False(t, third.Cached)
	assert.Equal(t, []da.NodeID{1, 2, 3, 4}, third.Nodes)
}

func TestOptimizeWaypoints(t *testing.T) {
	h, _ := newTestHandler(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantNodes  []da.NodeID
	}{
		{
			name:       "visits every waypoint",
			body:       `{"waypoints":[1,2,4],"vehicle":"bus"}`,
			wantStatus: http.StatusOK,
			wantNodes:  []da.NodeID{1, 2, 3, 4},
		},
		{
			name:       "single waypoint",
			body:       `{"waypoints":[3]}`,
			wantStatus: http.StatusOK,
			wantNodes:  []da.NodeID{3},
		},
		{
			name:       "unknown field",
			body:       `{"waypoints":[1,4],"speed":3}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing waypoints",
			body:       `{"vehicle":"bus"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown waypoint",
			body:       `{"waypoints":[1,42,4]}`,
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, resp := do(t, h, http.MethodPost, "/api/optimizeWaypoints", tc.body)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())
			if tc.wantNodes == nil {
				require.NotNil(t, resp.Error)
				return
			}

			var body struct {
				Route       routeBody         `json:"route"`
				ParetoFront []json.RawMessage `json:"pareto_front"`
				Generations []json.RawMessage `json:"generations"`
			}
			require.NoError(t, json.Unmarshal(resp.Data, &body))
			assert.Equal(t, tc.wantNodes, body.Route.Nodes)
			if len(tc.wantNodes) > 2 {
				assert.NotEmpty(t, body.ParetoFront)
				assert.Len(t, body.Generations, 4)
			}
		})
	}
}

func TestMapDataAndHealth(t *testing.T) {
	h, _ := newTestHandler(t)

	rec, resp := do(t, h, http.MethodGet, "/api/mapData?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var data struct {
		Nodes []json.RawMessage `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Len(t, data.Nodes, 2)
	assert.Len(t, data.Edges, 2)

	rec, _ = do(t, h, http.MethodGet, "/api/mapData?limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status string `json:"status"`
		Nodes  int    `json:"nodes"`
		Edges  int    `json:"edges"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &health))
	assert.Equal(t, "OK", health.Status)
	assert.Equal(t, 5, health.Nodes)
	assert.Equal(t, 4, health.Edges)

	rec, _ = do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ".", rec.Body.String())

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ecoflow_http_requests_total")
}

func TestSensors(t *testing.T) {
	h, _ := newTestHandler(t)

	reading := `{"sensor_id":"traffic_1","timestamp":1700000000,"location":{"lat":0.0015,"lon":0.0015},"measurements":{"speed":20}}`
	rec, resp := do(t, h, http.MethodPost, "/api/sensors", reading)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var res traffic.IngestResult
	require.NoError(t, json.Unmarshal(resp.Data, &res))
	assert.True(t, res.Applied)
	require.NotNil(t, res.Edge)
	assert.Equal(t, da.NewEdgeKey(1, 2, 0), *res.Edge)
	assert.InDelta(t, 0.5, res.Congestion, 1e-9)

	rec, _ = do(t, h, http.MethodPost, "/api/sensors", `{"sensor_id":"traffic_2"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, resp = do(t, h, http.MethodGet, "/api/sensors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var sensors []traffic.SensorStatus
	require.NoError(t, json.Unmarshal(resp.Data, &sensors))
	require.Len(t, sensors, 1)
	assert.Equal(t, "traffic_1", sensors[0].SensorID)
}

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("rejects non json bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("waypoints=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		EnforceJSONHandler(ok).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("rate limit", func(t *testing.T) {
		h := Limit(0.001, 1)(ok)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("timeout sets a deadline", func(t *testing.T) {
		var hasDeadline bool
		h := Timeout(time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, hasDeadline = r.Context().Deadline()
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.True(t, hasDeadline)
	})

	t.Run("real ip", func(t *testing.T) {
		var remote string
		h := RealIP(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			remote = r.RemoteAddr
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
		h.ServeHTTP(httptest.NewRecorder(), req)
		assert.Equal(t, "10.0.0.7", remote)
	})

	t.Run("request id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		RequestID(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc")
		rec = httptest.NewRecorder()
		RequestID(ok).ServeHTTP(rec, req)
		assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
	})

	t.Run("recovers panics", func(t *testing.T) {
		api := &API{log: zaptest.NewLogger(t)}
		h := api.recoverPanic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("secret db password")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "secret")

		var resp apiResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, util.MessageInternalServerError, resp.Error.Message)
	})
}

func TestMetricsUseRouteTemplates(t *testing.T) {
	h, _ := newTestHandler(t)
	unmatched := metrics.HTTPRequests.WithLabelValues(http.MethodGet, helper.UnmatchedRoute, "404")
	before := testutil.ToFloat64(unmatched)

	for _, path := range []string{"/wp-admin", "/random/garbage", "/api/computeRoutesX"} {
		rec, _ := do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	assert.Equal(t, before+3, testutil.ToFloat64(unmatched))

	rec, _ := do(t, h, http.MethodGet, "/api/mapData?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `path="/api/mapData"`)
	assert.NotContains(t, body, "wp-admin")
	assert.NotContains(t, body, "computeRoutesX")
}
