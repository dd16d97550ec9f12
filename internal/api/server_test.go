package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/handlers"
	"github.com/ramonehamilton/NMJL-Companion/internal/api/response"
	apiwebsocket "github.com/ramonehamilton/NMJL-Companion/internal/api/websocket"
	"github.com/ramonehamilton/NMJL-Companion/internal/events"
	"github.com/ramonehamilton/NMJL-Companion/internal/logging"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/engine"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/probability"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/turn"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage"
	"github.com/ramonehamilton/NMJL-Companion/internal/storage/models"
)

// completeHand fills the "scenario" pattern with one joker in the kong.
var completeHand = []string{"1D", "1D", "1D", "joker", "5B", "6B", "7B", "east", "east", "east", "9C", "9C", "white", "north"}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Pattern{
		{
			ID: "scenario", Section: "Test", Line: 1, Points: 25, Difficulty: catalog.DifficultyMedium,
			Groups: []catalog.Group{
				{ID: "ones", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "1D", JokersAllowed: true},
				{ID: "run", Kind: catalog.KindSequence, SuitRole: catalog.RoleNone, Values: "5B,6B,7B"},
				{ID: "winds", Kind: catalog.KindPung, SuitRole: catalog.RoleNone, Values: "east", JokersAllowed: true},
				{ID: "nines", Kind: catalog.KindPair, SuitRole: catalog.RoleNone, Values: "9C"},
				{ID: "soap", Kind: catalog.KindSingle, SuitRole: catalog.RoleNone, Values: "white"},
				{ID: "north", Kind: catalog.KindSingle, SuitRole: catalog.RoleNone, Values: "north"},
			},
		},
		{
			ID: "2025-1", Section: "2025", Line: 1, Points: 25, Difficulty: catalog.DifficultyMedium,
			Groups: []catalog.Group{
				{ID: "G1", Kind: catalog.KindKong, SuitRole: catalog.RoleNone, Values: "flower", JokersAllowed: true},
				{ID: "G2", Kind: catalog.KindSequence, SuitRole: catalog.RoleAny, Values: "2025"},
				{ID: "G3", Kind: catalog.KindPung, SuitRole: catalog.RoleSecond, Values: "2", JokersAllowed: true},
				{ID: "G4", Kind: catalog.KindPung, SuitRole: catalog.RoleThird, Values: "2", JokersAllowed: true},
			},
		},
	}, catalog.DefaultMaxVariations)
	require.NoError(t, err)
	return cat
}

type testServer struct {
	server *Server
	engine *engine.Engine
	events *events.Dispatcher
	store  *storage.Service
}

func newTestServer(t *testing.T, cfg *Config, withStore bool) *testServer {
	t.Helper()
	dispatcher := events.NewDispatcher(logging.Discard())
	e, err := engine.New(testCatalog(t), engine.DefaultPolicies(), engine.Options{Events: dispatcher}, logging.Discard())
	require.NoError(t, err)

	ts := &testServer{engine: e, events: dispatcher}
	deps := Deps{Engine: e, Events: dispatcher}
	if withStore {
		db, err := storage.Open(storage.DefaultConfig(filepath.Join(t.TempDir(), "api.db")))
		require.NoError(t, err)
		ts.store = storage.NewService(db)
		t.Cleanup(func() { _ = ts.store.Close() })
		dispatcher.Register(storage.NewRunLog(ts.store, logging.Discard()))
		deps.Storage = ts.store
	}

	if cfg == nil {
		cfg = DefaultConfig()
		cfg.RateLimit = 0
	}
	ts.server, err = NewServer(cfg, deps, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ts.server.Shutdown(context.Background()) })
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.server.Handler().ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps a {"data": ...} response into v.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NoError(t, json.Unmarshal(envelope.Data, v))
}

func TestNewServerRequiresEngine(t *testing.T) {
	_, err := NewServer(DefaultConfig(), Deps{}, logging.Discard())
	assert.Error(t, err)
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 5*time.Second, cfg.ScanTimeout)
	assert.False(t, cfg.Debug)
}

func TestNewServerNilConfig(t *testing.T) {
	e, err := engine.New(testCatalog(t), engine.DefaultPolicies(), engine.Options{}, logging.Discard())
	require.NoError(t, err)

	s, err := NewServer(nil, Deps{Engine: e}, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })

	assert.Equal(t, 8080, s.Port())
	assert.NotNil(t, s.WebSocketHub())
	assert.Empty(t, s.Addr(), "not started")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil, false)

	for _, path := range []string{"/health", "/api/v1/health"} {
		rec := ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)

		var health handlers.HealthStatus
		decodeData(t, rec, &health)
		assert.Equal(t, "ok", health.Status)
		assert.Equal(t, ts.engine.Catalog().Version(), health.CatalogVersion)
		assert.Equal(t, 2, health.Patterns)
		assert.Equal(t, ts.engine.PolicyVersion(), health.PolicyVersion)
	}
}

func TestPatternEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, false)

	t.Run("list", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/patterns", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var listing handlers.CatalogListing
		decodeData(t, rec, &listing)
		assert.Equal(t, []string{"Test", "2025"}, listing.Sections)
		require.Len(t, listing.Patterns, 2)
		assert.Equal(t, "scenario", listing.Patterns[0].ID)
		assert.Equal(t, 1, listing.Patterns[0].Variations)
		assert.Equal(t, 6, listing.Patterns[1].Variations)
	})

	t.Run("list by section", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/patterns?section=test", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var listing handlers.CatalogListing
		decodeData(t, rec, &listing)
		require.Len(t, listing.Patterns, 1)
		assert.Equal(t, "scenario", listing.Patterns[0].ID)
	})

	t.Run("get", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/patterns/2025-1", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var detail handlers.PatternDetail
		decodeData(t, rec, &detail)
		assert.Equal(t, "2025-1", detail.ID)
		assert.Len(t, detail.Groups, 4)
		assert.Equal(t, 6, detail.Variations)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/patterns/nope", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("variations paged", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/patterns/2025-1/variations?page=2&page_size=4", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var page struct {
			Data       []json.RawMessage `json:"data"`
			Page       int               `json:"page"`
			TotalCount int               `json:"total_count"`
			TotalPages int               `json:"total_pages"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		assert.Len(t, page.Data, 2)
		assert.Equal(t, 2, page.Page)
		assert.Equal(t, 6, page.TotalCount)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("variations bad page", func(t *testing.T) {
		for _, q := range []string{"page=0", "page=x", "page_size=0", "page_size=501"} {
			rec := ts.do(t, http.MethodGet, "/api/v1/patterns/2025-1/variations?"+q, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, q)
		}
	})

	t.Run("variations unknown", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/api/v1/patterns/nope/variations", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAnalysisEndpoints(t *testing.T) {
	ts := newTestServer(t, nil, false)
	req := engine.Request{Hand: completeHand}

	t.Run("match", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analysis/match", req)
		require.Equal(t, http.StatusOK, rec.Code)

		var report engine.Report
		decodeData(t, rec, &report)
		assert.Len(t, report.Facts, 2)
		assert.Nil(t, report.Ranking, "match stops before ranking")
	})

	t.Run("rank", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analysis/rank", req)
		require.Equal(t, http.StatusOK, rec.Code)

		var report engine.Report
		decodeData(t, rec, &report)
		top, ok := report.Top()
		require.True(t, ok)
		assert.Equal(t, "scenario", top.PatternID)
		assert.Nil(t, report.Recommendations)
	})

	t.Run("recommend", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analysis/recommend", req)
		require.Equal(t, http.StatusOK, rec.Code)

		var report engine.Report
		decodeData(t, rec, &report)
		require.NotNil(t, report.Recommendations)
		assert.NotEmpty(t, report.Recommendations.TileActions)
	})

	t.Run("full", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analysis/full", req)
		require.Equal(t, http.StatusOK, rec.Code)

		var report engine.Report
		decodeData(t, rec, &report)
		assert.NotEmpty(t, report.RunID)
		assert.Nil(t, report.Failure)
		assert.Contains(t, rec.Body.String(), `"ok":true`)
		require.NotNil(t, report.Ranking)
		require.NotNil(t, report.Recommendations)
	})

	t.Run("empty hand is a failure report", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/analysis/full", engine.Request{})
		require.Equal(t, http.StatusOK, rec.Code)

		var envelope response.AnalysisResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.False(t, envelope.OK)
		assert.Equal(t, engine.DiagnosticEmptyHand, envelope.Diagnostic)
		require.NotNil(t, envelope.Failure)

		var report engine.Report
		decodeData(t, rec, &report)
		require.NotNil(t, report.Failure)
		assert.Equal(t, engine.DiagnosticEmptyHand, report.Diagnostic)
	})

	t.Run("turn", func(t *testing.T) {
		state := turn.GameState{
			Hand:    completeHand,
			Context: analysis.GameContext{Phase: analysis.PhaseGameplay, WallTilesRemaining: 40, RoundNumber: 5},
		}
		rec := ts.do(t, http.MethodPost, "/api/v1/turn/analyze", state)
		require.Equal(t, http.StatusOK, rec.Code)

		var out turn.Analysis
		decodeData(t, rec, &out)
		assert.Nil(t, out.Failure)
		assert.True(t, out.Can(turn.LegalMahjong))
	})

	t.Run("probability", func(t *testing.T) {
		body := handlers.ProbabilityRequest{Request: engine.Request{Hand: completeHand}, PatternID: "2025-1"}
		rec := ts.do(t, http.MethodPost, "/api/v1/probability", body)
		require.Equal(t, http.StatusOK, rec.Code)

		var est probability.Estimate
		decodeData(t, rec, &est)
		assert.Equal(t, "2025-1", est.PatternID)
		assert.Equal(t, probability.MethodHypergeometric, est.Method)
	})

	t.Run("probability picks the top pattern", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/api/v1/probability", engine.Request{Hand: completeHand})
		require.Equal(t, http.StatusOK, rec.Code)

		var est probability.Estimate
		decodeData(t, rec, &est)
		assert.Equal(t, "scenario", est.PatternID)
	})
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t, nil, false)

	t.Run("wrong content type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/full", strings.NewReader(`{"hand":["1D"]}`))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("content type with charset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/match", strings.NewReader(`{"hand":["1D"]}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/full", strings.NewReader(`{"hand":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("errors are counted", func(t *testing.T) {
		stats := ts.engine.Metrics().GetStats()
		assert.GreaterOrEqual(t, stats.APIErrors, uint64(2))
		assert.GreaterOrEqual(t, stats.APIRequests, uint64(3))
	})
}

func TestRateLimit(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	cfg.RateBurst = 2
	ts := newTestServer(t, cfg, false)

	get := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		ts.server.Handler().ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, get("192.0.2.1:1000").Code)
	assert.Equal(t, http.StatusOK, get("192.0.2.1:1001").Code)
	limited := get("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	// Another client has its own bucket.
	assert.Equal(t, http.StatusOK, get("192.0.2.2:1000").Code)
}

func TestRunsAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil, true)

	rec := ts.do(t, http.MethodPost, "/api/v1/analysis/full", engine.Request{Hand: completeHand})
	require.Equal(t, http.StatusOK, rec.Code)
	var report engine.Report
	decodeData(t, rec, &report)

	rec = ts.do(t, http.MethodGet, "/api/v1/runs?limit=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []*models.AnalysisRun
	decodeData(t, rec, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].RunID)
	assert.Equal(t, "scenario", runs[0].TopPatternID)

	rec = ts.do(t, http.MethodGet, "/api/v1/runs?limit=0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m handlers.MetricsReport
	decodeData(t, rec, &m)
	require.NotNil(t, m.Analysis)
	assert.Equal(t, uint64(1), m.Analysis.Scans)
	assert.Nil(t, m.Cache, "no cache configured")
	require.NotNil(t, m.Runs)
	assert.Equal(t, 1, m.Runs.Runs)
}

func TestRunsRequireStore(t *testing.T) {
	ts := newTestServer(t, nil, false)

	rec := ts.do(t, http.MethodGet, "/api/v1/runs", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m handlers.MetricsReport
	decodeData(t, rec, &m)
	assert.Nil(t, m.Runs)
}

func TestDebugStatsviz(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 0
	cfg.Debug = true
	ts := newTestServer(t, cfg, false)

	rec := ts.do(t, http.MethodGet, "/debug/statsviz", nil)
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)

	rec = ts.do(t, http.MethodGet, "/debug/statsviz/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

// wsEvent is a websocket message with its payload left raw.
type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func readWS(t *testing.T, conn *websocket.Conn) wsEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wsEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestLiveSession(t *testing.T) {
	ts := newTestServer(t, nil, false)
	httpServer := httptest.NewServer(ts.server.Handler())
	t.Cleanup(httpServer.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(httpServer.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	started := readWS(t, conn)
	require.Equal(t, apiwebsocket.TypeSessionStarted, started.Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "ping"}))
	assert.Equal(t, apiwebsocket.TypePong, readWS(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "bogus"}))
	assert.Equal(t, apiwebsocket.TypeError, readWS(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"type": "analyze",
		"data": engine.Request{Hand: completeHand},
	}))

	// The submission ack and the result race; collect both.
	seen := make(map[string]wsEvent)
	for {
		ev := readWS(t, conn)
		seen[ev.Type] = ev
		_, submitted := seen[apiwebsocket.TypeScanSubmitted]
		_, result := seen[apiwebsocket.TypeScanResult]
		_, completed := seen[events.TypeAnalysisCompleted]
		if submitted && result && completed {
			break
		}
	}

	var ack struct {
		Seq uint64 `json:"seq"`
	}
	require.NoError(t, json.Unmarshal(seen[apiwebsocket.TypeScanSubmitted].Data, &ack))
	assert.Equal(t, uint64(1), ack.Seq)

	var result engine.ScanResult
	require.NoError(t, json.Unmarshal(seen[apiwebsocket.TypeScanResult].Data, &result))
	assert.Equal(t, uint64(1), result.Seq)
	top, ok := result.Report.Top()
	require.True(t, ok)
	assert.Equal(t, "scenario", top.PatternID)

	var completed events.AnalysisCompletedEvent
	require.NoError(t, json.Unmarshal(seen[events.TypeAnalysisCompleted].Data, &completed))
	assert.Equal(t, result.Report.RunID, completed.RunID)
	assert.Nil(t, completed.Report)
}
